package outbox

import (
	"context"
	"time"
)

// Repository persists outbox rows. Insert is called within the same
// transaction as the state change it reports; the pump-facing methods run
// in their own, separate transactions (spec.md §5).
type Repository interface {
	Insert(ctx context.Context, e Event) error

	// ListDispatchable returns pending/failed rows whose NextAttemptAt has
	// elapsed, oldest first, up to limit — the outbox pump's poll query.
	ListDispatchable(ctx context.Context, now time.Time, limit int) ([]Event, error)

	MarkPublished(ctx context.Context, eventID string, at time.Time) error

	// MarkFailed records a failed publish attempt and schedules the next
	// retry at nextAttemptAt, or moves the row to StatusDead once attempts
	// exhausts the configured retry budget (spec.md §6: retry.budget).
	MarkFailed(ctx context.Context, eventID string, at, nextAttemptAt time.Time, dead bool) error
}
