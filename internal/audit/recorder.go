package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sergiogc4/taskhub/internal/obs"
)

const defaultWriteTimeout = 5 * time.Second

// Recorder persists audit entries. Synchronous writes are used where the
// entry may be the only record of an action (denied attempts); everything
// else goes through RecordAsync so the response path never waits on, or
// fails because of, audit storage.
type Recorder struct {
	store        Store
	writeTimeout time.Duration
	now          func() time.Time

	wg sync.WaitGroup
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithWriteTimeout bounds how long a detached audit write may run.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithRecorderClock overrides the time source (useful for tests).
func WithRecorderClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:        store,
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends the entry synchronously. Used for denied authorization
// attempts, which must be written before the response returns.
func (r *Recorder) Record(ctx context.Context, e *Entry) error {
	r.finalize(e)
	return r.store.Append(ctx, e)
}

// RecordAsync appends the entry without blocking the caller. The write runs
// on a fresh context so it completes even if the client disconnects; a
// persistence failure is logged and swallowed.
func (r *Recorder) RecordAsync(e *Entry) {
	r.finalize(e)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()
		if err := r.store.Append(ctx, e); err != nil {
			obs.AuditWriteFailed()
			obs.LogError("audit write failed", map[string]any{
				"action": e.Action,
				"error":  err.Error(),
			})
		}
	}()
}

// Wait blocks until all in-flight asynchronous writes have finished. Used by
// tests and graceful shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) finalize(e *Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	if e.ResourceType == "" {
		e.ResourceType = ResourceOther
	}
	if e.UserName == "" {
		e.UserName = "anonymous"
	}
}
