package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/predictor-league/internal/domain/leaderboard"
	"github.com/riskibarqy/predictor-league/internal/usecase"
)

// LeaderboardRepository is an in-memory leaderboard.Repository. ApplyDelta
// additionally gives SettlementRepository a genuinely additive write, the
// way the Postgres ON CONFLICT DO UPDATE arithmetic does (spec.md §4.5).
type LeaderboardRepository struct {
	mu      sync.RWMutex
	entries map[string]leaderboard.Entry // keyed by groupID|seasonID|userID
}

func NewLeaderboardRepository() *LeaderboardRepository {
	return &LeaderboardRepository{entries: make(map[string]leaderboard.Entry)}
}

func leaderboardKey(groupID, seasonID, userID string) string {
	return groupID + "|" + seasonID + "|" + userID
}

func (r *LeaderboardRepository) Upsert(_ context.Context, e leaderboard.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[leaderboardKey(e.GroupID, e.SeasonID, e.UserID)] = e
	return nil
}

func (r *LeaderboardRepository) Get(_ context.Context, groupID, seasonID, userID string) (leaderboard.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[leaderboardKey(groupID, seasonID, userID)]
	return e, ok, nil
}

func (r *LeaderboardRepository) ListByGroup(_ context.Context, groupID, seasonID string) ([]leaderboard.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]leaderboard.Entry, 0)
	for _, e := range r.entries {
		if e.GroupID == groupID && e.SeasonID == seasonID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *LeaderboardRepository) DeleteByGroup(_ context.Context, groupID, seasonID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		if e.GroupID == groupID && e.SeasonID == seasonID {
			delete(r.entries, key)
		}
	}
	return nil
}

// ApplyDelta performs the additive upsert SettlementRepository needs within
// SettleOne/VoidOne.
func (r *LeaderboardRepository) ApplyDelta(_ context.Context, delta usecase.LeaderboardDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := leaderboardKey(delta.GroupID, delta.SeasonID, delta.UserID)
	e := r.entries[key]
	e.GroupID = delta.GroupID
	e.SeasonID = delta.SeasonID
	e.UserID = delta.UserID
	e.TotalPoints += delta.Points
	e.ExactScoreCount += delta.Exact
	e.WinnerOnlyCount += delta.Winner
	e.SettledPredictionCount += delta.Count
	if !delta.At.IsZero() {
		e.LastUpdatedAt = delta.At
	}
	r.entries[key] = e
	return nil
}
