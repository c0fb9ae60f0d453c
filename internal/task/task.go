// Package task is the business-logic collaborator gated by the RBAC core. It
// stays deliberately thin: it consumes authorization decisions, it does not
// make them.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("task: not found")
	ErrInvalidInput = errors.New("task: invalid input")
)

// TaskStatus is the closed set of workflow states.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// Priority levels.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is one unit of work owned by a user.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Store persists tasks.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, id string) (*Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Task, error)
	List(ctx context.Context) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
	// DeleteByOwner removes every task owned by the user. Used as the
	// user-deletion cascade.
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// Service wraps the store with validation.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("task store is required")
	}
	return &Service{store: store}, nil
}

// Create validates and persists a new task for the owner.
func (s *Service) Create(ctx context.Context, ownerID, title, description string, priority Priority, dueDate *time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if priority != PriorityLow && priority != PriorityMedium && priority != PriorityHigh {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}
	t := &Task{
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      StatusPending,
		Priority:    priority,
		DueDate:     dueDate,
		OwnerID:     ownerID,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a single task.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.store.Find(ctx, id)
}

// ListByOwner returns the owner's tasks.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*Task, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// List returns every task. Admin surface only.
func (s *Service) List(ctx context.Context) ([]*Task, error) {
	return s.store.List(ctx)
}

// Update carries optional task field changes.
type Update struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *Priority
	DueDate     *time.Time
}

// Apply validates and persists field changes.
func (s *Service) Apply(ctx context.Context, id string, upd Update) (*Task, error) {
	t, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		t.Title = title
	}
	if upd.Description != nil {
		t.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Status != nil {
		status := *upd.Status
		if status != StatusPending && status != StatusInProgress && status != StatusCompleted {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		t.Status = status
	}
	if upd.Priority != nil {
		priority := *upd.Priority
		if priority != PriorityLow && priority != PriorityMedium && priority != PriorityHigh {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
		}
		t.Priority = priority
	}
	if upd.DueDate != nil {
		t.DueDate = upd.DueDate
	}
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// DeleteByOwner removes every task owned by the user. Satisfies the RBAC
// core's cascade hook.
func (s *Service) DeleteByOwner(ctx context.Context, ownerID string) error {
	return s.store.DeleteByOwner(ctx, ownerID)
}
