package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sergiogc4/taskhub/internal/audit"
	"github.com/sergiogc4/taskhub/internal/ids"
)

// AuditStore implements audit.Store on PostgreSQL.
type AuditStore struct {
	db *sql.DB
}

var _ audit.Store = (*AuditStore)(nil)

// NewAuditStore wraps an existing connection.
func NewAuditStore(db *sql.DB) *AuditStore { return &AuditStore{db: db} }

func (s *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	changes := []byte("{}")
	if len(e.Changes) > 0 {
		data, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs(id, user_id, user_name, action, resource, resource_type, status, changes, error_message, ip_address, user_agent, ts)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, nullIfEmpty(e.UserID), e.UserName, e.Action, e.Resource, string(e.ResourceType),
		string(e.Status), changes, nullIfEmpty(e.ErrorMessage), nullIfEmpty(e.IPAddress),
		nullIfEmpty(e.UserAgent), e.Timestamp,
	)
	return err
}

func (s *AuditStore) Find(ctx context.Context, id string) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, user_name, action, resource, resource_type, status, changes, error_message, ip_address, user_agent, ts
		from audit_logs where id=$1`, id)
	e, err := scanAuditEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrNotFound
	}
	return e, err
}

func (s *AuditStore) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != "" {
		where = append(where, "user_id="+arg(f.UserID))
	}
	if f.Action != "" {
		where = append(where, "action="+arg(f.Action))
	}
	if f.Resource != "" {
		where = append(where, "resource ilike "+arg("%"+f.Resource+"%"))
	}
	if f.Status != "" {
		where = append(where, "status="+arg(string(f.Status)))
	}
	if !f.From.IsZero() {
		where = append(where, "ts >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "ts <= "+arg(f.To))
	}
	clause := ""
	if len(where) > 0 {
		clause = " where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "select count(*) from audit_logs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	query := `
		select id, user_id, user_name, action, resource, resource_type, status, changes, error_message, ip_address, user_agent, ts
		from audit_logs` + clause +
		" order by ts desc limit " + arg(f.Limit) + " offset " + arg(offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (s *AuditStore) Stats(ctx context.Context) (*audit.Stats, error) {
	stats := &audit.Stats{}

	var successCount int
	err := s.db.QueryRowContext(ctx, `
		select count(*), count(*) filter (where status='success') from audit_logs`,
	).Scan(&stats.TotalActions, &successCount)
	if err != nil {
		return nil, err
	}
	if stats.TotalActions > 0 {
		stats.SuccessRate = float64(successCount) / float64(stats.TotalActions) * 100
	}

	if stats.TopActions, err = s.TopActions(ctx, time.Time{}, time.Time{}, 10); err != nil {
		return nil, err
	}
	if stats.TopUsers, err = s.TopUsers(ctx, time.Time{}, time.Time{}, 10); err != nil {
		return nil, err
	}

	errRows, err := s.db.QueryContext(ctx, `
		select action, coalesce(error_message, ''), count(*) as cnt from audit_logs
		where status='error'
		group by action, error_message order by cnt desc limit 10`)
	if err != nil {
		return nil, err
	}
	defer errRows.Close()
	for errRows.Next() {
		var ec audit.ErrorCount
		if err := errRows.Scan(&ec.Action, &ec.Error, &ec.Count); err != nil {
			return nil, err
		}
		stats.RecentErrors = append(stats.RecentErrors, ec)
	}
	return stats, errRows.Err()
}

func (s *AuditStore) TopActions(ctx context.Context, from, to time.Time, limit int) ([]audit.ActionCount, error) {
	clause, args := tsRange(from, to)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select action, count(*) as cnt from audit_logs%s
		group by action order by cnt desc limit $%d`, clause, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.ActionCount
	for rows.Next() {
		var ac audit.ActionCount
		if err := rows.Scan(&ac.Action, &ac.Count); err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

func (s *AuditStore) TopUsers(ctx context.Context, from, to time.Time, limit int) ([]audit.UserCount, error) {
	clause, args := tsRange(from, to)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select coalesce(user_id, ''), min(user_name), count(*) as cnt from audit_logs%s
		group by user_id order by cnt desc limit $%d`, clause, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.UserCount
	for rows.Next() {
		var uc audit.UserCount
		if err := rows.Scan(&uc.UserID, &uc.UserName, &uc.Count); err != nil {
			return nil, err
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

// tsRange builds an optional "where ts ..." clause from zero-meaning bounds.
func tsRange(from, to time.Time) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("ts <= $%d", len(args)))
	}
	if len(where) == 0 {
		return "", nil
	}
	return " where " + strings.Join(where, " and "), args
}

func scanAuditEntry(row rowScanner) (*audit.Entry, error) {
	var (
		e            audit.Entry
		userID       sql.NullString
		resourceType string
		status       string
		changes      []byte
		errorMessage sql.NullString
		ipAddress    sql.NullString
		userAgent    sql.NullString
	)
	if err := row.Scan(&e.ID, &userID, &e.UserName, &e.Action, &e.Resource, &resourceType,
		&status, &changes, &errorMessage, &ipAddress, &userAgent, &e.Timestamp); err != nil {
		return nil, err
	}
	e.UserID = userID.String
	e.ResourceType = audit.ResourceType(resourceType)
	e.Status = audit.Status(status)
	e.ErrorMessage = errorMessage.String
	e.IPAddress = ipAddress.String
	e.UserAgent = userAgent.String
	if len(changes) > 0 && string(changes) != "{}" {
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return nil, fmt.Errorf("decode changes: %w", err)
		}
	}
	return &e, nil
}
