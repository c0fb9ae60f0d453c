package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sergiogc4/taskhub/internal/ids"
	"github.com/sergiogc4/taskhub/internal/rbac"
)

// Permission store ----------------------------------------------------------

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Create(ctx context.Context, p *rbac.Permission) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into permissions(id, name, description, category, is_system)
		values($1,$2,$3,$4,$5)
		returning created_at`,
		p.ID, p.Name, p.Description, string(p.Category), p.IsSystemPermission,
	)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *permissionStore) Find(ctx context.Context, id string) (*rbac.Permission, error) {
	return scanPermission(s.db.QueryRowContext(ctx, `
		select id, name, description, category, is_system, created_at
		from permissions where id=$1`, id))
}

func (s *permissionStore) FindByName(ctx context.Context, name string) (*rbac.Permission, error) {
	return scanPermission(s.db.QueryRowContext(ctx, `
		select id, name, description, category, is_system, created_at
		from permissions where name=$1`, name))
}

func (s *permissionStore) FindByIDs(ctx context.Context, permIDs []string) ([]*rbac.Permission, error) {
	perms := make([]*rbac.Permission, 0, len(permIDs))
	for _, id := range permIDs {
		p, err := s.Find(ctx, id)
		if errors.Is(err, rbac.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

func (s *permissionStore) List(ctx context.Context, category rbac.Category) ([]*rbac.Permission, error) {
	query := `select id, name, description, category, is_system, created_at from permissions order by name`
	args := []any{}
	if category != "" {
		query = `select id, name, description, category, is_system, created_at from permissions where category=$1 order by name`
		args = append(args, string(category))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*rbac.Permission
	for rows.Next() {
		p, err := scanPermissionRow(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) Update(ctx context.Context, p *rbac.Permission) error {
	res, err := s.db.ExecContext(ctx, `
		update permissions set name=$2, description=$3, category=$4 where id=$1`,
		p.ID, p.Name, p.Description, string(p.Category),
	)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (s *permissionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from permissions where id=$1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (s *permissionStore) Ensure(ctx context.Context, perms []rbac.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx, `
			insert into permissions(id, name, description, category, is_system)
			values($1,$2,$3,$4,$5)
			on conflict (name) do nothing`,
			p.ID, p.Name, p.Description, string(p.Category), p.IsSystemPermission,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Role store ----------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *rbac.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into roles(id, name, description, is_system)
		values($1,$2,$3,$4)
		returning created_at, updated_at`,
		role.ID, role.Name, role.Description, role.IsSystemRole,
	)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	for _, permID := range role.PermissionIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions(role_id, permission_id) values($1,$2)
			on conflict do nothing`, role.ID, permID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *roleStore) Find(ctx context.Context, id string) (*rbac.Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, `
		select id, name, description, is_system, created_at, updated_at
		from roles where id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadPermissionIDs(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*rbac.Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, `
		select id, name, description, is_system, created_at, updated_at
		from roles where name=$1`, name))
	if err != nil {
		return nil, err
	}
	if err := s.loadPermissionIDs(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *roleStore) List(ctx context.Context, includeSystem bool) ([]*rbac.Role, error) {
	query := `select id, name, description, is_system, created_at, updated_at from roles order by name`
	if !includeSystem {
		query = `select id, name, description, is_system, created_at, updated_at from roles where is_system=false order by name`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		var role rbac.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, role := range roles {
		if err := s.loadPermissionIDs(ctx, role); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (s *roleStore) Update(ctx context.Context, role *rbac.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update roles set name=$2, description=$3, updated_at=now() where id=$1`,
		role.ID, role.Name, role.Description,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, role.ID); err != nil {
		return err
	}
	for _, permID := range role.PermissionIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions(role_id, permission_id) values($1,$2)
			on conflict do nothing`, role.ID, permID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id=$1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, permID := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions(role_id, permission_id) values($1,$2)
			on conflict do nothing`, roleID, permID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `update roles set updated_at=now() where id=$1`, roleID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) PermissionsForRole(ctx context.Context, roleID string) ([]*rbac.Permission, error) {
	// Inner join: a dangling permission reference contributes nothing.
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.description, p.category, p.is_system, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id=$1
		order by p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*rbac.Permission
	for rows.Next() {
		p, err := scanPermissionRow(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *roleStore) UserCount(ctx context.Context, roleID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from user_roles where role_id=$1`, roleID).Scan(&count)
	return count, err
}

func (s *roleStore) loadPermissionIDs(ctx context.Context, role *rbac.Role) error {
	rows, err := s.db.QueryContext(ctx,
		`select permission_id from role_permissions where role_id=$1 order by permission_id`, role.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	role.PermissionIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		role.PermissionIDs = append(role.PermissionIDs, id)
	}
	return rows.Err()
}

// User store ----------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *rbac.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into users(id, name, email, password_hash, is_active)
		values($1,$2,$3,$4,$5)
		returning created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.IsActive,
	)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	for _, roleID := range u.RoleIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles(user_id, role_id) values($1,$2)
			on conflict do nothing`, u.ID, roleID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *userStore) Find(ctx context.Context, id string) (*rbac.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, is_active, last_login, created_at, updated_at
		from users where id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadRoleIDs(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*rbac.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, is_active, last_login, created_at, updated_at
		from users where email=$1`, email))
	if err != nil {
		return nil, err
	}
	if err := s.loadRoleIDs(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userStore) List(ctx context.Context) ([]*rbac.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, email, password_hash, is_active, last_login, created_at, updated_at
		from users order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*rbac.User
	for rows.Next() {
		var (
			u         rbac.User
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLogin = &t
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := s.loadRoleIDs(ctx, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *userStore) Update(ctx context.Context, u *rbac.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users set name=$2, email=$3, password_hash=$4, is_active=$5, updated_at=now()
		where id=$1`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.IsActive,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *userStore) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles(user_id, role_id) values($1,$2)
		on conflict do nothing`, userID, roleID)
	return mapWriteError(err)
}

func (s *userStore) RemoveRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`, userID, roleID)
	return err
}

func (s *userStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login=$2 where id=$1`, userID, at)
	return err
}

func (s *userStore) loadRoleIDs(ctx context.Context, u *rbac.User) error {
	rows, err := s.db.QueryContext(ctx,
		`select role_id from user_roles where user_id=$1 order by role_id`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	u.RoleIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		u.RoleIDs = append(u.RoleIDs, id)
	}
	return rows.Err()
}

// scan helpers --------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermission(row rowScanner) (*rbac.Permission, error) {
	p, err := scanPermissionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	return p, err
}

func scanPermissionRow(row rowScanner) (*rbac.Permission, error) {
	var (
		p        rbac.Permission
		category string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &category, &p.IsSystemPermission, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Category = rbac.Category(category)
	return &p, nil
}

func scanRole(row rowScanner) (*rbac.Role, error) {
	var role rbac.Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func scanUser(row rowScanner) (*rbac.User, error) {
	var (
		u         rbac.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rbac.ErrNotFound
	}
	return nil
}
