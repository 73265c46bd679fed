package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/leaderboard"
	"github.com/riskibarqy/predictor-league/internal/domain/settlement"
	"github.com/riskibarqy/predictor-league/internal/infrastructure/repository/memory"
)

func newLeaderboardTestService(t *testing.T, tb leaderboard.TieBreak) (*LeaderboardService, *memory.LeaderboardRepository, *memory.PredictionRepository, *memory.SettlementRepository) {
	t.Helper()
	leaderboardRepo := memory.NewLeaderboardRepository()
	predRepo := memory.NewPredictionRepository()
	settlementRepo := memory.NewSettlementRepository(predRepo, leaderboardRepo)
	svc := NewLeaderboardService(leaderboardRepo, settlementRepo, tb)
	return svc, leaderboardRepo, predRepo, settlementRepo
}

func TestLeaderboardService_Apply_AccumulatesAdditively(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})

	if err := svc.Apply(context.Background(), LeaderboardDelta{UserID: "user-1", GroupID: "group-1", SeasonID: "season-1", Points: 3, Exact: 1, Count: 1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := svc.Apply(context.Background(), LeaderboardDelta{UserID: "user-1", GroupID: "group-1", SeasonID: "season-1", Points: 1, Count: 1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	entry, found, err := repo.Get(context.Background(), "group-1", "season-1", "user-1")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if entry.TotalPoints != 4 || entry.ExactScoreCount != 1 || entry.SettledPredictionCount != 2 {
		t.Fatalf("unexpected accumulated entry: %+v", entry)
	}
}

func TestLeaderboardService_TopN_OrdersByPointsThenExactThenUserID(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})
	seedEntries(t, repo, []leaderboard.Entry{
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-b", TotalPoints: 10, ExactScoreCount: 1},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-a", TotalPoints: 10, ExactScoreCount: 2},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-c", TotalPoints: 5, ExactScoreCount: 0},
	})

	top, err := svc.TopN(context.Background(), "group-1", "season-1", 0)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top))
	}
	if top[0].UserID != "user-a" || top[0].Rank != 1 {
		t.Fatalf("expected user-a ranked first (higher exact count), got %+v", top[0])
	}
	if top[1].UserID != "user-b" || top[1].Rank != 2 {
		t.Fatalf("expected user-b ranked second, got %+v", top[1])
	}
	if top[2].UserID != "user-c" || top[2].Rank != 3 {
		t.Fatalf("expected user-c ranked third, got %+v", top[2])
	}
}

func TestLeaderboardService_TopN_LimitsResults(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})
	seedEntries(t, repo, []leaderboard.Entry{
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-a", TotalPoints: 10},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-b", TotalPoints: 9},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-c", TotalPoints: 8},
	})

	top, err := svc.TopN(context.Background(), "group-1", "season-1", 2)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
}

func TestLeaderboardService_TieBreakEfficiency_PrefersFewerSettled(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{Efficiency: true})
	seedEntries(t, repo, []leaderboard.Entry{
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-volume", TotalPoints: 10, ExactScoreCount: 2, SettledPredictionCount: 20},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-efficient", TotalPoints: 10, ExactScoreCount: 2, SettledPredictionCount: 5},
	})

	top, err := svc.TopN(context.Background(), "group-1", "season-1", 0)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if top[0].UserID != "user-efficient" {
		t.Fatalf("expected user-efficient ranked first under efficiency tie-break, got %+v", top[0])
	}
}

func TestLeaderboardService_UserRank_ReturnsRankedEntry(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})
	seedEntries(t, repo, []leaderboard.Entry{
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-a", TotalPoints: 10},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-b", TotalPoints: 5},
	})

	entry, found, err := svc.UserRank(context.Background(), "group-1", "season-1", "user-b")
	if err != nil || !found {
		t.Fatalf("UserRank: found=%v err=%v", found, err)
	}
	if entry.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", entry.Rank)
	}
}

func TestLeaderboardService_UserRank_NotFound(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})
	seedEntries(t, repo, []leaderboard.Entry{{GroupID: "group-1", SeasonID: "season-1", UserID: "user-a", TotalPoints: 10}})

	_, found, err := svc.UserRank(context.Background(), "group-1", "season-1", "user-missing")
	if err != nil {
		t.Fatalf("UserRank: %v", err)
	}
	if found {
		t.Fatalf("did not expect a ranked entry for a user with no standing")
	}
}

func TestLeaderboardService_AroundUser_ReturnsWindowCenteredOnUser(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})
	seedEntries(t, repo, []leaderboard.Entry{
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-1", TotalPoints: 50},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-2", TotalPoints: 40},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-3", TotalPoints: 30},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-4", TotalPoints: 20},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-5", TotalPoints: 10},
	})

	window, err := svc.AroundUser(context.Background(), "group-1", "season-1", "user-3", 1)
	if err != nil {
		t.Fatalf("AroundUser: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("expected a 3-entry window, got %d", len(window))
	}
	if window[0].UserID != "user-2" || window[1].UserID != "user-3" || window[2].UserID != "user-4" {
		t.Fatalf("unexpected window contents: %+v", window)
	}
}

func TestLeaderboardService_AroundUser_ClampsAtEdges(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})
	seedEntries(t, repo, []leaderboard.Entry{
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-1", TotalPoints: 50},
		{GroupID: "group-1", SeasonID: "season-1", UserID: "user-2", TotalPoints: 40},
	})

	window, err := svc.AroundUser(context.Background(), "group-1", "season-1", "user-1", 5)
	if err != nil {
		t.Fatalf("AroundUser: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("expected window to clamp to available entries, got %d", len(window))
	}
}

func TestLeaderboardService_AroundUser_RejectsUnknownUser(t *testing.T) {
	t.Parallel()

	svc, repo, _, _ := newLeaderboardTestService(t, leaderboard.TieBreak{})
	seedEntries(t, repo, []leaderboard.Entry{{GroupID: "group-1", SeasonID: "season-1", UserID: "user-1", TotalPoints: 50}})

	if _, err := svc.AroundUser(context.Background(), "group-1", "season-1", "user-missing", 1); err == nil {
		t.Fatalf("expected an error for a user with no leaderboard entry")
	}
}

func TestLeaderboardService_Rebuild_ReplaysSettlementsExcludingVoided(t *testing.T) {
	t.Parallel()

	svc, repo, predRepo, settlementRepo := newLeaderboardTestService(t, leaderboard.TieBreak{})

	seedPrediction(t, predRepo, "pred-1", "user-1", "group-1", "match-1", 2, 1, "HOME")
	seedPrediction(t, predRepo, "pred-2", "user-1", "group-1", "match-2", 0, 0, "DRAW")

	if _, err := settlementRepo.Insert(context.Background(), settlement.Settlement{
		ID: "s-1", PredictionID: "pred-1", MatchID: "match-1", ResultVersion: 1,
		Outcome: settlement.OutcomeExact, Points: 3, SettledAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed settlement 1: %v", err)
	}
	// A void/reversal for pred-2's only settlement: the prediction contributes
	// nothing once its only settlement row is reversed (settlement.VoidedMarker).
	if _, err := settlementRepo.Insert(context.Background(), settlement.Settlement{
		ID: "s-2", PredictionID: "pred-2", MatchID: "match-2", ResultVersion: 1,
		Outcome: settlement.OutcomeExact, Points: 3, SettledAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed settlement 2: %v", err)
	}
	if _, err := settlementRepo.Insert(context.Background(), settlement.Settlement{
		ID: "s-2-void", PredictionID: "pred-2", MatchID: "match-2", ResultVersion: settlement.VoidedMarker(1),
		Outcome: settlement.OutcomeVoid, Points: -3, SettledAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed settlement 2 void: %v", err)
	}

	// Pollute the group with a stale upsert Rebuild must overwrite.
	// seedPrediction leaves SeasonID empty, so Rebuild here targets the
	// empty season to match.
	if err := repo.Upsert(context.Background(), leaderboard.Entry{GroupID: "group-1", SeasonID: "", UserID: "user-1", TotalPoints: 999}); err != nil {
		t.Fatalf("seed stale entry: %v", err)
	}

	if err := svc.Rebuild(context.Background(), "group-1", "", []string{"user-1"}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	entry, found, err := repo.Get(context.Background(), "group-1", "", "user-1")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if entry.TotalPoints != 3 || entry.ExactScoreCount != 1 || entry.SettledPredictionCount != 1 {
		t.Fatalf("expected rebuild to count only the non-reversed settlement, got %+v", entry)
	}
}

func seedEntries(t *testing.T, repo *memory.LeaderboardRepository, entries []leaderboard.Entry) {
	t.Helper()
	for _, e := range entries {
		if err := repo.Upsert(context.Background(), e); err != nil {
			t.Fatalf("seed entry %s: %v", e.UserID, err)
		}
	}
}
