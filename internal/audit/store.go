package audit

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested audit entry does not exist.
var ErrNotFound = errors.New("audit: not found")

// Filter narrows audit log queries. Zero values mean "no constraint".
// Results are always ordered by timestamp descending.
type Filter struct {
	UserID   string
	Action   string
	Resource string
	Status   Status
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

// ActionCount is an aggregation bucket for top-action queries.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// UserCount is an aggregation bucket for top-user queries.
type UserCount struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Count    int    `json:"count"`
}

// ErrorCount is an aggregation bucket for recurring failures.
type ErrorCount struct {
	Action string `json:"action"`
	Error  string `json:"error"`
	Count  int    `json:"count"`
}

// Stats summarizes the audit trail for reporting.
type Stats struct {
	TotalActions int           `json:"total_actions"`
	SuccessRate  float64       `json:"success_rate"`
	TopActions   []ActionCount `json:"top_actions"`
	TopUsers     []UserCount   `json:"top_users"`
	RecentErrors []ErrorCount  `json:"recent_errors"`
}

// Store persists and queries append-only audit entries. Entries are never
// mutated or deleted after Append. Zero from/to bounds on the aggregation
// queries mean the whole trail.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Find(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, f Filter) ([]*Entry, int, error)
	Stats(ctx context.Context) (*Stats, error)
	TopActions(ctx context.Context, from, to time.Time, limit int) ([]ActionCount, error)
	TopUsers(ctx context.Context, from, to time.Time, limit int) ([]UserCount, error)
}
