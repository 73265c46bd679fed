package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/leaderboard"
	"github.com/riskibarqy/predictor-league/internal/domain/settlement"
)

// LeaderboardDelta is an additive adjustment applied to one user's entry
// within a group. Fields may be negative for amendments/voids.
type LeaderboardDelta struct {
	UserID   string
	GroupID  string
	SeasonID string
	Points   int
	Exact    int
	Winner   int
	Count    int
	At       time.Time
}

// LeaderboardService maintains and queries per-group standings (spec.md
// §4.5).
type LeaderboardService struct {
	repo     leaderboard.Repository
	settleRepo settlement.Repository
	tieBreak leaderboard.TieBreak
	now      func() time.Time
}

func NewLeaderboardService(repo leaderboard.Repository, settleRepo settlement.Repository, tb leaderboard.TieBreak) *LeaderboardService {
	return &LeaderboardService{repo: repo, settleRepo: settleRepo, tieBreak: tb, now: time.Now}
}

// Apply reads the user's current entry, adds the delta, and writes the sum
// back through Repository.Upsert, which stores the entry as given. The read
// and the write are separate calls with no row lock between them.
// SettlementStore.SettleOne/VoidOne apply their own leaderboard deltas and
// do not call Apply.
func (s *LeaderboardService) Apply(ctx context.Context, delta LeaderboardDelta) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.Apply")
	defer span.End()

	current, _, err := s.repo.Get(ctx, delta.GroupID, delta.SeasonID, delta.UserID)
	if err != nil {
		return fmt.Errorf("get leaderboard entry: %w", err)
	}

	current.GroupID = delta.GroupID
	current.SeasonID = delta.SeasonID
	current.UserID = delta.UserID
	current.TotalPoints += delta.Points
	current.ExactScoreCount += delta.Exact
	current.WinnerOnlyCount += delta.Winner
	current.SettledPredictionCount += delta.Count
	if !delta.At.IsZero() {
		current.LastUpdatedAt = delta.At
	}

	if err := s.repo.Upsert(ctx, current); err != nil {
		return fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return nil
}

// TopN returns the top n ranked entries for a (group, season).
func (s *LeaderboardService) TopN(ctx context.Context, groupID, seasonID string, n int) ([]leaderboard.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.TopN")
	defer span.End()

	entries, err := s.repo.ListByGroup(ctx, groupID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list group entries: %w", err)
	}
	ranked := leaderboard.Rank(entries, s.tieBreak)
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// UserRank returns a single user's ranked entry within a (group, season).
func (s *LeaderboardService) UserRank(ctx context.Context, groupID, seasonID, userID string) (leaderboard.Entry, bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.UserRank")
	defer span.End()

	entries, err := s.repo.ListByGroup(ctx, groupID, seasonID)
	if err != nil {
		return leaderboard.Entry{}, false, fmt.Errorf("list group entries: %w", err)
	}
	ranked := leaderboard.Rank(entries, s.tieBreak)
	for _, e := range ranked {
		if e.UserID == userID {
			return e, true, nil
		}
	}
	return leaderboard.Entry{}, false, nil
}

// AroundUser returns the 2k+1 entries centered on userID (spec.md §4.5).
func (s *LeaderboardService) AroundUser(ctx context.Context, groupID, seasonID, userID string, k int) ([]leaderboard.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.AroundUser")
	defer span.End()

	entries, err := s.repo.ListByGroup(ctx, groupID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list group entries: %w", err)
	}
	ranked := leaderboard.Rank(entries, s.tieBreak)

	idx := -1
	for i, e := range ranked {
		if e.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: user %s has no entry in group %s season %s", ErrNotFound, userID, groupID, seasonID)
	}

	start := idx - k
	if start < 0 {
		start = 0
	}
	end := idx + k + 1
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end], nil
}

// Rebuild recomputes a group's entries from scratch by summing every
// current (latest-version) Settlement, per user (spec.md §4.5: "the recovery procedure for any suspected aggregate
// drift"). It is idempotent: running it twice in a row yields the same
// entries.
func (s *LeaderboardService) Rebuild(ctx context.Context, groupID, seasonID string, memberUserIDs []string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.Rebuild")
	defer span.End()

	if err := s.repo.DeleteByGroup(ctx, groupID, seasonID); err != nil {
		return fmt.Errorf("clear group entries: %w", err)
	}

	for _, userID := range memberUserIDs {
		settlements, err := s.settleRepo.ListByUser(ctx, userID, groupID, seasonID)
		if err != nil {
			return fmt.Errorf("list settlements for user %s: %w", userID, err)
		}

		// ListByUser already resolves reversals to the current, non-void
		// settlement per prediction (settlement.Repository docs), so every
		// row returned here counts toward the rebuilt entry as-is.
		entry := leaderboard.Entry{GroupID: groupID, SeasonID: seasonID, UserID: userID}
		for _, sm := range settlements {
			entry.TotalPoints += sm.Points
			entry.SettledPredictionCount++
			switch sm.Outcome {
			case settlement.OutcomeExact:
				entry.ExactScoreCount++
			case settlement.OutcomeWinner:
				entry.WinnerOnlyCount++
			}
			if sm.SettledAt.After(entry.LastUpdatedAt) {
				entry.LastUpdatedAt = sm.SettledAt
			}
		}
		if err := s.repo.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("upsert rebuilt entry for user %s: %w", userID, err)
		}
	}
	return nil
}
