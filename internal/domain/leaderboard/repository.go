package leaderboard

import "context"

// Repository persists the materialized per-group standings. The usecase
// layer recomputes an Entry's aggregate fields and calls Upsert; Repository
// implementations never compute points themselves (spec.md §4.5).
type Repository interface {
	// Upsert writes (or replaces) one entry's aggregate counters. Rank is
	// not persisted by Upsert — it is recomputed on read via Rank, since
	// rank is a function of the whole group's entries, not a per-user fact.
	Upsert(ctx context.Context, e Entry) error

	Get(ctx context.Context, groupID, seasonID, userID string) (Entry, bool, error)

	// ListByGroup returns every entry for a (group, season), unranked
	// (callers apply Rank themselves, with their choice of TieBreak).
	ListByGroup(ctx context.Context, groupID, seasonID string) ([]Entry, error)

	// DeleteByGroup clears a (group, season)'s materialized entries, used as
	// the first step of a full Rebuild from Settlement history.
	DeleteByGroup(ctx context.Context, groupID, seasonID string) error
}
