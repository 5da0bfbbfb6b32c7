package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stratix.org/internal/ids"
	"stratix.org/internal/obs"
)

// ErrUnavailable reports that the audit store rejected the entry after
// retries. Privileged operations must fail closed when they see it.
var ErrUnavailable = errors.New("audit: store unavailable")

// Actor type labels used in entries.
const (
	ActorSuperadmin = "superadmin"
	ActorUser       = "user"
	ActorSystem     = "system"
)

// Entry is an immutable record of a privileged action or authentication
// event. Entries are append-only; the application never mutates or deletes
// them.
type Entry struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorType  string            `json:"actor_type"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Before     json.RawMessage   `json:"before,omitempty"`
	After      json.RawMessage   `json:"after,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Filter selects entries for the read-only query interface.
type Filter struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	From       time.Time
	To         time.Time
	Limit      int
	// Cursor is the ID of the last entry from the previous page; results
	// are newest-first and strictly older than the cursor.
	Cursor string
}

// Store persists entries. Append must be atomic per entry; Query returns
// entries newest-first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}

const (
	appendAttempts   = 3
	appendBackoff    = 50 * time.Millisecond
	maxAppendBackoff = 500 * time.Millisecond
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Writer appends entries with bounded retry. It is fire-and-forget from the
// caller's perspective only in the sense that it needs no response payload;
// a confirmed-lost entry is surfaced as ErrUnavailable so privileged
// mutations can refuse to proceed.
type Writer struct {
	store Store
	now   func() time.Time
	sleep func(time.Duration)
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) WriterOption {
	return func(w *Writer) {
		if fn != nil {
			w.now = fn
		}
	}
}

// WithSleep overrides the backoff sleeper, for tests.
func WithSleep(fn func(time.Duration)) WriterOption {
	return func(w *Writer) {
		if fn != nil {
			w.sleep = fn
		}
	}
}

// NewWriter constructs a Writer over store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{store: store, now: time.Now, sleep: time.Sleep}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Append assigns the entry an id and timestamp if missing, writes it with
// capped backoff, and mirrors it to the structured log.
func (w *Writer) Append(ctx context.Context, entry Entry) error {
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return errors.New("audit: action is required")
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = w.now().UTC()
	}

	var lastErr error
	backoff := appendBackoff
	for attempt := 0; attempt < appendAttempts; attempt++ {
		if attempt > 0 {
			w.sleep(backoff)
			backoff *= 2
			if backoff > maxAppendBackoff {
				backoff = maxAppendBackoff
			}
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		lastErr = w.store.Append(ctx, entry)
		if lastErr == nil {
			w.mirror(entry)
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Query serves the paginated read-only interface consumed by the admin UI.
func (w *Writer) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	return w.store.Query(ctx, filter)
}

// mirror writes the entry to the shared JSON log so the audit trail shows
// up in log aggregation even when the store-backed query path is down.
func (w *Writer) mirror(entry Entry) {
	line := map[string]any{
		"ts":         entry.OccurredAt.Format(time.RFC3339Nano),
		"type":       "audit",
		"event":      entry.Action,
		"actor_type": entry.ActorType,
		"actor_id":   entry.ActorID,
	}
	if entry.TargetType != "" {
		line["target_type"] = entry.TargetType
		line["target_id"] = entry.TargetID
	}
	if entry.IP != "" {
		line["ip"] = entry.IP
	}
	if len(entry.Metadata) > 0 {
		line["fields"] = entry.Metadata
	}
	obs.LogRequest(line)
}
