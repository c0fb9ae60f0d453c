package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sergiogc4/taskhub/internal/audit"
	"github.com/sergiogc4/taskhub/internal/rbac"
	"github.com/sergiogc4/taskhub/internal/task"
)

// --- in-memory rbac store ----------------------------------------------------

type memRBACStore struct {
	mu    sync.Mutex
	seq   int
	perms map[string]*rbac.Permission
	roles map[string]*rbac.Role
	users map[string]*rbac.User
}

func newMemRBACStore() *memRBACStore {
	return &memRBACStore{
		perms: make(map[string]*rbac.Permission),
		roles: make(map[string]*rbac.Role),
		users: make(map[string]*rbac.User),
	}
}

func (m *memRBACStore) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%04d", m.seq)
}

func (m *memRBACStore) Permissions(ctx context.Context) rbac.PermissionStore { return (*memPerms)(m) }
func (m *memRBACStore) Roles(ctx context.Context) rbac.RoleStore             { return (*memRoles)(m) }
func (m *memRBACStore) Users(ctx context.Context) rbac.UserStore             { return (*memUsers)(m) }

type memPerms memRBACStore

func (m *memPerms) Create(ctx context.Context, p *rbac.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = (*memRBACStore)(m).nextID()
	}
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.perms[p.ID] = &cp
	return nil
}

func (m *memPerms) Find(ctx context.Context, id string) (*rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPerms) FindByName(ctx context.Context, name string) (*rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.perms {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, rbac.ErrNotFound
}

func (m *memPerms) FindByIDs(ctx context.Context, ids []string) ([]*rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*rbac.Permission
	for _, id := range ids {
		if p, ok := m.perms[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPerms) List(ctx context.Context, category rbac.Category) ([]*rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*rbac.Permission
	for _, p := range m.perms {
		if category != "" && p.Category != category {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPerms) Update(ctx context.Context, p *rbac.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[p.ID]; !ok {
		return rbac.ErrNotFound
	}
	cp := *p
	m.perms[p.ID] = &cp
	return nil
}

func (m *memPerms) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(m.perms, id)
	return nil
}

func (m *memPerms) Ensure(ctx context.Context, perms []rbac.Permission) error {
	for i := range perms {
		if _, err := m.FindByName(ctx, perms[i].Name); err == nil {
			continue
		}
		cp := perms[i]
		if err := m.Create(ctx, &cp); err != nil {
			return err
		}
	}
	return nil
}

type memRoles memRBACStore

func (m *memRoles) Create(ctx context.Context, role *rbac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role.ID == "" {
		role.ID = (*memRBACStore)(m).nextID()
	}
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	cp := *role
	cp.PermissionIDs = append([]string(nil), role.PermissionIDs...)
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Find(ctx context.Context, id string) (*rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(id)
}

func (m *memRoles) findLocked(id string) (*rbac.Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	cp := *role
	cp.PermissionIDs = append([]string(nil), role.PermissionIDs...)
	return &cp, nil
}

func (m *memRoles) FindByName(ctx context.Context, name string) (*rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, role := range m.roles {
		if role.Name == name {
			return m.findLocked(id)
		}
	}
	return nil, rbac.ErrNotFound
}

func (m *memRoles) List(ctx context.Context, includeSystem bool) ([]*rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*rbac.Role
	for id, role := range m.roles {
		if !includeSystem && role.IsSystemRole {
			continue
		}
		cp, _ := m.findLocked(id)
		out = append(out, cp)
	}
	return out, nil
}

func (m *memRoles) Update(ctx context.Context, role *rbac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return rbac.ErrNotFound
	}
	cp := *role
	cp.PermissionIDs = append([]string(nil), role.PermissionIDs...)
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memRoles) SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleID]
	if !ok {
		return rbac.ErrNotFound
	}
	role.PermissionIDs = append([]string(nil), permissionIDs...)
	return nil
}

func (m *memRoles) PermissionsForRole(ctx context.Context, roleID string) ([]*rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleID]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	var out []*rbac.Permission
	for _, pid := range role.PermissionIDs {
		if p, ok := m.perms[pid]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRoles) UserCount(ctx context.Context, roleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type memUsers memRBACStore

func (m *memUsers) Create(ctx context.Context, u *rbac.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = (*memRBACStore)(m).nextID()
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	cp.RoleIDs = append([]string(nil), u.RoleIDs...)
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(ctx context.Context, id string) (*rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(id)
}

func (m *memUsers) findLocked(id string) (*rbac.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	cp := *u
	cp.RoleIDs = append([]string(nil), u.RoleIDs...)
	return &cp, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			return m.findLocked(id)
		}
	}
	return nil, rbac.ErrNotFound
}

func (m *memUsers) List(ctx context.Context) ([]*rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*rbac.User
	for id := range m.users {
		u, _ := m.findLocked(id)
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) Update(ctx context.Context, u *rbac.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return rbac.ErrNotFound
	}
	cp := *u
	cp.RoleIDs = append([]string(nil), u.RoleIDs...)
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) AssignRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return rbac.ErrNotFound
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
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return rbac.ErrNotFound
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
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return rbac.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

// --- in-memory task store ----------------------------------------------------

type memTaskStore struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]*task.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[string]*task.Task)}
}

func (m *memTaskStore) Create(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("task-%03d", m.seq)
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskStore) Find(ctx context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*task.Task
	for _, t := range m.tasks {
		if t.OwnerID == ownerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTaskStore) List(ctx context.Context) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*task.Task
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTaskStore) Update(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return task.ErrNotFound
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return task.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTaskStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.OwnerID == ownerID {
			delete(m.tasks, id)
		}
	}
	return nil
}

// --- in-memory audit store ---------------------------------------------------

type memAuditStore struct {
	mu      sync.Mutex
	seq     int
	entries []*audit.Entry
}

func (m *memAuditStore) Append(ctx context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if e.ID == "" {
		e.ID = fmt.Sprintf("audit-%03d", m.seq)
	}
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memAuditStore) Find(ctx context.Context, id string) (*audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, audit.ErrNotFound
}

func (m *memAuditStore) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*audit.Entry
	for _, e := range m.entries {
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memAuditStore) Stats(ctx context.Context) (*audit.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &audit.Stats{TotalActions: len(m.entries)}, nil
}

func (m *memAuditStore) TopActions(ctx context.Context, from, to time.Time, limit int) ([]audit.ActionCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.entries {
		if inAuditRange(e.Timestamp, from, to) {
			counts[e.Action]++
		}
	}
	out := make([]audit.ActionCount, 0, len(counts))
	for action, n := range counts {
		out = append(out, audit.ActionCount{Action: action, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAuditStore) TopUsers(ctx context.Context, from, to time.Time, limit int) ([]audit.UserCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]*audit.UserCount)
	for _, e := range m.entries {
		if !inAuditRange(e.Timestamp, from, to) {
			continue
		}
		uc, ok := counts[e.UserID]
		if !ok {
			uc = &audit.UserCount{UserID: e.UserID, UserName: e.UserName}
			counts[e.UserID] = uc
		}
		uc.Count++
	}
	out := make([]audit.UserCount, 0, len(counts))
	for _, uc := range counts {
		out = append(out, *uc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func inAuditRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

func (m *memAuditStore) all() []*audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*audit.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// --- harness -----------------------------------------------------------------

type testAPI struct {
	t        *testing.T
	api      *API
	handler  http.Handler
	rbac     *rbac.Service
	audits   *memAuditStore
	recorder *audit.Recorder

	adminToken string
	userToken  string
	adminID    string
	userID     string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	t.Setenv("TASKHUB_AUTH_SECRET", "httpapi-test-secret")
	rbac.ResetSecretForTests()
	t.Cleanup(rbac.ResetSecretForTests)

	ctx := context.Background()

	store := newMemRBACStore()
	taskStore := newMemTaskStore()
	auditStore := &memAuditStore{}

	tasks, err := task.NewService(taskStore)
	if err != nil {
		t.Fatalf("task service: %v", err)
	}
	rbacSvc, err := rbac.NewService(store, rbac.WithOwnedResourceCleaner(tasks))
	if err != nil {
		t.Fatalf("rbac service: %v", err)
	}
	if err := rbacSvc.EnsureSeed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	audits, err := audit.NewService(auditStore)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	recorder := audit.NewRecorder(auditStore)

	api := New(Config{
		RBAC:     rbacSvc,
		Tasks:    tasks,
		Audits:   audits,
		Recorder: recorder,
		Version:  "test",
	})

	h := &testAPI{
		t:        t,
		api:      api,
		handler:  api.Handler(),
		rbac:     rbacSvc,
		audits:   auditStore,
		recorder: recorder,
	}

	adminRole, err := store.Roles(ctx).FindByName(ctx, rbac.RoleAdmin)
	if err != nil {
		t.Fatalf("admin role: %v", err)
	}
	admin, err := rbacSvc.CreateUser(ctx, "Admin", "admin@example.com", "secret1", []string{adminRole.ID}, true)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	member, err := rbacSvc.Register(ctx, "Member", "member@example.com", "secret1")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	h.adminID = admin.ID
	h.userID = member.ID
	h.adminToken = h.tokenFor(admin.ID)
	h.userToken = h.tokenFor(member.ID)
	return h
}

func (h *testAPI) tokenFor(userID string) string {
	h.t.Helper()
	token, err := rbac.GenerateToken(userID, nil, time.Hour)
	if err != nil {
		h.t.Fatalf("generate token: %v", err)
	}
	return token
}

func (h *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rr.Body.String())
	}
	return env
}
