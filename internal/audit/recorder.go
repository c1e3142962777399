package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AshishBhandari123/bvas-project/internal/platform/metrics"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

// Store persists trail entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, q Query) ([]Entry, int, error)
}

// Recorder appends entries to the store and fans them out to an optional
// publisher inbox. Record never returns an error: the trail is advisory, so
// persistence failures are logged and counted, not propagated to the
// business operation.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	inbox   chan<- Entry
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithMetrics counts append failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithInbox fans recorded entries out to a publisher channel. Sends are
// non-blocking; a full inbox drops the fan-out copy, never the store write.
func WithInbox(inbox chan<- Entry) Option {
	return func(r *Recorder) { r.inbox = inbox }
}

func NewRecorder(store Store, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{store: store, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry, enriched with request metadata from ctx.
func (r *Recorder) Record(ctx context.Context, action, entityType, entityID string, actor domain.UserID, details string) {
	entry := Entry{
		ID:          uuid.New(),
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		PerformedBy: actor,
		PerformedAt: requestcontext.Now(ctx),
		Details:     details,
		IPAddress:   requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
	}

	if err := r.store.Append(ctx, entry); err != nil {
		if r.metrics != nil {
			r.metrics.AuditFailures.Inc()
		}
		r.logger.ErrorContext(ctx, "audit trail append failed",
			"request_id", requestcontext.RequestID(ctx),
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		return
	}

	if r.inbox != nil {
		select {
		case r.inbox <- entry:
		default:
			r.logger.WarnContext(ctx, "audit publisher inbox full, dropping fan-out copy",
				"action", action,
				"entity_id", entityID,
			)
		}
	}
}

// List exposes the trail for the admin endpoint.
func (r *Recorder) List(ctx context.Context, q Query) ([]Entry, int, error) {
	return r.store.List(ctx, q.Normalize())
}
