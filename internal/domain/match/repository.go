package match

import (
	"context"
	"time"
)

// Repository exposes match read/write operations. Writes are narrow and
// explicit: the core never owns full CRUD over match scheduling, only the
// fields the Deadline Gate and Scoring Engine need to react to (spec.md §1:
// matches are "referenceable entities with the minimal attributes the core
// needs").
type Repository interface {
	GetByID(ctx context.Context, matchID string) (Match, bool, error)
	ListByIDs(ctx context.Context, matchIDs []string) ([]Match, error)

	// ListScheduled returns every match still in StatusScheduled, ordered by
	// BettingClosesAt ascending. It backs the Deadline Gate's startup
	// catch-up scan and its min-heap rebuild (spec.md §4.1).
	ListScheduled(ctx context.Context) ([]Match, error)

	// SetResult records the final score and advances status to finished
	// (or another terminal status). The usecase layer does not call it;
	// confirming a Result leaves the Match row's scores untouched.
	SetResult(ctx context.Context, matchID string, homeScore, awayScore int, status Status, at time.Time) error

	// SetStatus transitions status only (e.g. postponed/cancelled), leaving
	// scores untouched.
	SetStatus(ctx context.Context, matchID string, status Status, at time.Time) error

	// RescheduleWindow updates ScheduledAt/BettingClosesAt without checking
	// the match's status; the usecase layer does not call it.
	RescheduleWindow(ctx context.Context, matchID string, scheduledAt, bettingClosesAt time.Time) error
}
