package prediction

import (
	"context"
	"time"
)

// Repository exposes prediction persistence. Submit/Update/Cancel are
// transactional against the caller's storage; the usecase layer owns the
// deadline and status-transition checks, not this interface (spec.md §4.2).
type Repository interface {
	GetByID(ctx context.Context, predictionID string) (Prediction, bool, error)

	// GetByUserMatch returns the caller's existing prediction for a match
	// within a group, if any — used to enforce "at most one live prediction
	// per (user, group, match)" (spec.md §3).
	GetByUserMatch(ctx context.Context, userID, groupID, matchID string) (Prediction, bool, error)

	// Insert creates a new pending prediction.
	Insert(ctx context.Context, p Prediction) error

	// UpdatePayload overwrites the forecast fields of a still-pending
	// prediction and bumps UpdatedAt.
	UpdatePayload(ctx context.Context, predictionID string, winner Winner, homeGoals, awayGoals *int, notes string, at time.Time) error

	// SetStatus transitions status (e.g. cancelled, voided) without touching
	// the forecast fields.
	SetStatus(ctx context.Context, predictionID string, status Status, at time.Time) error

	// SetSettled records the points a settlement run awarded for this
	// prediction's match and advances status to settled.
	SetSettled(ctx context.Context, predictionID string, points int, at time.Time) error

	// ListByMatch returns every prediction on a match, across all groups;
	// the Scoring Engine fans settlement out over this set (spec.md §4.4).
	ListByMatch(ctx context.Context, matchID string) ([]Prediction, error)

	// ListByMatchStatus narrows ListByMatch to a single status, used to find
	// the still-pending predictions a new/amended result must settle.
	ListByMatchStatus(ctx context.Context, matchID string, status Status) ([]Prediction, error)

	// ListForUser returns a user's predictions, optionally scoped to one
	// group, newest first.
	ListForUser(ctx context.Context, userID, groupID string) ([]Prediction, error)
}
