package rbac

import (
	"context"
	"fmt"
	"time"
)

// memStore is an in-memory Store for exercising the service layer without a
// database.
type memStore struct {
	seq         int
	permissions map[string]*Permission
	roles       map[string]*Role
	users       map[string]*User
}

func newMemStore() *memStore {
	return &memStore{
		permissions: make(map[string]*Permission),
		roles:       make(map[string]*Role),
		users:       make(map[string]*User),
	}
}

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%04d", m.seq)
}

func (m *memStore) Permissions(ctx context.Context) PermissionStore { return (*memPerms)(m) }
func (m *memStore) Roles(ctx context.Context) RoleStore             { return (*memRoles)(m) }
func (m *memStore) Users(ctx context.Context) UserStore             { return (*memUsers)(m) }

type memPerms memStore

func (m *memPerms) Create(ctx context.Context, p *Permission) error {
	if p.ID == "" {
		p.ID = (*memStore)(m).nextID()
	}
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.permissions[p.ID] = &cp
	return nil
}

func (m *memPerms) Find(ctx context.Context, id string) (*Permission, error) {
	p, ok := m.permissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPerms) FindByName(ctx context.Context, name string) (*Permission, error) {
	for _, p := range m.permissions {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memPerms) FindByIDs(ctx context.Context, ids []string) ([]*Permission, error) {
	var out []*Permission
	for _, id := range ids {
		if p, ok := m.permissions[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPerms) List(ctx context.Context, category Category) ([]*Permission, error) {
	var out []*Permission
	for _, p := range m.permissions {
		if category != "" && p.Category != category {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPerms) Update(ctx context.Context, p *Permission) error {
	if _, ok := m.permissions[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.permissions[p.ID] = &cp
	return nil
}

func (m *memPerms) Delete(ctx context.Context, id string) error {
	if _, ok := m.permissions[id]; !ok {
		return ErrNotFound
	}
	delete(m.permissions, id)
	return nil
}

func (m *memPerms) Ensure(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		if _, err := m.FindByName(ctx, p.Name); err == nil {
			continue
		}
		cp := p
		if err := m.Create(ctx, &cp); err != nil {
			return err
		}
	}
	return nil
}

type memRoles memStore

func (m *memRoles) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = (*memStore)(m).nextID()
	}
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	cp := *role
	cp.PermissionIDs = append([]string(nil), role.PermissionIDs...)
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Find(ctx context.Context, id string) (*Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	cp.PermissionIDs = append([]string(nil), role.PermissionIDs...)
	return &cp, nil
}

func (m *memRoles) FindByName(ctx context.Context, name string) (*Role, error) {
	for id, role := range m.roles {
		if role.Name == name {
			return m.Find(ctx, id)
		}
	}
	return nil, ErrNotFound
}

func (m *memRoles) List(ctx context.Context, includeSystem bool) ([]*Role, error) {
	var out []*Role
	for id, role := range m.roles {
		if !includeSystem && role.IsSystemRole {
			continue
		}
		cp, _ := m.Find(ctx, id)
		out = append(out, cp)
	}
	return out, nil
}

func (m *memRoles) Update(ctx context.Context, role *Role) error {
	if _, ok := m.roles[role.ID]; !ok {
		return ErrNotFound
	}
	cp := *role
	cp.PermissionIDs = append([]string(nil), role.PermissionIDs...)
	cp.UpdatedAt = time.Now().UTC()
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Delete(ctx context.Context, id string) error {
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memRoles) SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	role, ok := m.roles[roleID]
	if !ok {
		return ErrNotFound
	}
	role.PermissionIDs = append([]string(nil), permissionIDs...)
	role.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memRoles) PermissionsForRole(ctx context.Context, roleID string) ([]*Permission, error) {
	role, ok := m.roles[roleID]
	if !ok {
		return nil, ErrNotFound
	}
	var out []*Permission
	for _, pid := range role.PermissionIDs {
		if p, ok := m.permissions[pid]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRoles) UserCount(ctx context.Context, roleID string) (int, error) {
	count := 0
	for _, u := range m.users {
		for _, rid := range u.RoleIDs {
			if rid == roleID {
				count++
				break
			}
		}
	}
	return count, nil
}

type memUsers memStore

func (m *memUsers) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = (*memStore)(m).nextID()
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	cp.RoleIDs = append([]string(nil), u.RoleIDs...)
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(ctx context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	cp.RoleIDs = append([]string(nil), u.RoleIDs...)
	return &cp, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	for id, u := range m.users {
		if u.Email == email {
			return m.Find(ctx, id)
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) List(ctx context.Context) ([]*User, error) {
	var out []*User
	for id := range m.users {
		u, _ := m.Find(ctx, id)
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) Update(ctx context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	cp.RoleIDs = append([]string(nil), u.RoleIDs...)
	cp.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) AssignRole(ctx context.Context, userID, roleID string) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	for _, rid := range u.RoleIDs {
		if rid == roleID {
			return nil
		}
	}
	u.RoleIDs = append(u.RoleIDs, roleID)
	return nil
}

func (m *memUsers) RemoveRole(ctx context.Context, userID, roleID string) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	for i, rid := range u.RoleIDs {
		if rid == roleID {
			u.RoleIDs = append(u.RoleIDs[:i], u.RoleIDs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LastLogin = &at
	return nil
}
