package settlement

import "context"

// Repository persists settlement records. Insert must be a write-once,
// conflict-tolerant operation keyed on (PredictionID, ResultVersion): the
// Postgres implementation backs this with an `ON CONFLICT DO NOTHING`
// upsert and reports whether a row was actually written, so the caller can
// tell a fresh settlement apart from a replayed no-op (spec.md §7).
type Repository interface {
	// Insert writes a new settlement row. inserted is false when a row for
	// (PredictionID, ResultVersion) already existed and nothing changed.
	Insert(ctx context.Context, s Settlement) (inserted bool, err error)

	GetByPredictionVersion(ctx context.Context, predictionID string, resultVersion int) (Settlement, bool, error)

	// ListByMatch returns every settlement ever written for a match, across
	// all result versions — used to reconstruct leaderboard deltas when a
	// later version supersedes an earlier one (spec.md §4.5 rebuild).
	ListByMatch(ctx context.Context, matchID string) ([]Settlement, error)

	// ListLatestByMatch returns, per prediction, only the settlement for the
	// highest result version settled so far — the set that should currently
	// count toward a leaderboard.
	ListLatestByMatch(ctx context.Context, matchID string) ([]Settlement, error)

	// ListByUser returns every current (latest-version, non-reversal)
	// settlement a user has earned within one (group, season) — the source
	// of truth a leaderboard rebuild replays from (spec.md §4.5).
	ListByUser(ctx context.Context, userID, groupID, seasonID string) ([]Settlement, error)
}
