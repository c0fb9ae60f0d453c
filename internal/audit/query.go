package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	defaultTopLimit = 10
	maxTopLimit     = 100
)

// Page is one page of audit entries with pagination metadata.
type Page struct {
	Entries     []*Entry `json:"entries"`
	Count       int      `json:"count"`
	Total       int      `json:"total"`
	Pages       int      `json:"pages"`
	CurrentPage int      `json:"current_page"`
}

// Service answers read-only audit log queries.
type Service struct {
	store Store
}

// NewService constructs the query service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	return &Service{store: store}, nil
}

// List returns a page of entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Status != "" && f.Status != StatusSuccess && f.Status != StatusError {
		return nil, errors.New("status must be success or error")
	}
	f.UserID = strings.TrimSpace(f.UserID)
	f.Action = strings.TrimSpace(f.Action)
	f.Resource = strings.TrimSpace(f.Resource)

	entries, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	pages := total / f.Limit
	if total%f.Limit != 0 {
		pages++
	}
	return &Page{
		Entries:     entries,
		Count:       len(entries),
		Total:       total,
		Pages:       pages,
		CurrentPage: f.Page,
	}, nil
}

// ByUser returns a page of entries for one actor.
func (s *Service) ByUser(ctx context.Context, userID string, page, limit int) (*Page, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	return s.List(ctx, Filter{UserID: userID, Page: page, Limit: limit})
}

// Get returns a single entry by id.
func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("entry id is required")
	}
	return s.store.Find(ctx, id)
}

// Stats summarizes the trail: totals, success rate and top aggregations.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

// TopActions returns the most frequent actions within the optional time
// range, most frequent first.
func (s *Service) TopActions(ctx context.Context, from, to time.Time, limit int) ([]ActionCount, error) {
	return s.store.TopActions(ctx, from, to, clampTopLimit(limit))
}

// TopUsers returns the most active actors within the optional time range,
// most active first.
func (s *Service) TopUsers(ctx context.Context, from, to time.Time, limit int) ([]UserCount, error) {
	return s.store.TopUsers(ctx, from, to, clampTopLimit(limit))
}

func clampTopLimit(limit int) int {
	if limit < 1 {
		return defaultTopLimit
	}
	if limit > maxTopLimit {
		return maxTopLimit
	}
	return limit
}
