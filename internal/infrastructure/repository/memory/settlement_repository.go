package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
	"github.com/riskibarqy/predictor-league/internal/domain/settlement"
	"github.com/riskibarqy/predictor-league/internal/usecase"
)

// SettlementRepository is an in-memory usecase.SettlementStore: SettleOne
// and VoidOne mutate the settlement, prediction, and leaderboard maps under
// one mutex, standing in for the single-transaction guarantee the Postgres
// implementation provides via BeginTxx.
type SettlementRepository struct {
	mu           sync.Mutex
	settlements  map[string]settlement.Settlement // keyed by predictionID|resultVersion
	predRepo     *PredictionRepository
	leaderboard  *LeaderboardRepository
}

func NewSettlementRepository(predRepo *PredictionRepository, leaderboardRepo *LeaderboardRepository) *SettlementRepository {
	return &SettlementRepository{
		settlements: make(map[string]settlement.Settlement),
		predRepo:    predRepo,
		leaderboard: leaderboardRepo,
	}
}

func settlementKey(predictionID string, resultVersion int) string {
	return fmt.Sprintf("%s|%d", predictionID, resultVersion)
}

func (r *SettlementRepository) Insert(_ context.Context, s settlement.Settlement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := settlementKey(s.PredictionID, s.ResultVersion)
	if _, exists := r.settlements[key]; exists {
		return false, nil
	}
	r.settlements[key] = s
	return true, nil
}

func (r *SettlementRepository) GetByPredictionVersion(_ context.Context, predictionID string, resultVersion int) (settlement.Settlement, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settlements[settlementKey(predictionID, resultVersion)]
	return s, ok, nil
}

func (r *SettlementRepository) ListByMatch(_ context.Context, matchID string) ([]settlement.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]settlement.Settlement, 0)
	for _, s := range r.settlements {
		if s.MatchID == matchID {
			out = append(out, s)
		}
	}
	sortSettlements(out)
	return out, nil
}

func (r *SettlementRepository) ListLatestByMatch(_ context.Context, matchID string) ([]settlement.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latestByPrediction := make(map[string]settlement.Settlement)
	for _, s := range r.settlements {
		if s.MatchID != matchID {
			continue
		}
		if cur, ok := latestByPrediction[s.PredictionID]; !ok || s.ResultVersion > cur.ResultVersion {
			latestByPrediction[s.PredictionID] = s
		}
	}
	out := make([]settlement.Settlement, 0, len(latestByPrediction))
	for _, s := range latestByPrediction {
		out = append(out, s)
	}
	sortSettlements(out)
	return out, nil
}

func (r *SettlementRepository) ListByUser(ctx context.Context, userID, groupID, seasonID string) ([]settlement.Settlement, error) {
	predictions, err := r.predRepo.ListForUser(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	predictionIDs := make(map[string]struct{}, len(predictions))
	for _, p := range predictions {
		if seasonID != "" && p.SeasonID != seasonID {
			continue
		}
		predictionIDs[p.ID] = struct{}{}
	}

	r.mu.Lock()
	byPrediction := make(map[string][]settlement.Settlement)
	for _, s := range r.settlements {
		if _, ok := predictionIDs[s.PredictionID]; ok {
			byPrediction[s.PredictionID] = append(byPrediction[s.PredictionID], s)
		}
	}
	r.mu.Unlock()

	out := make([]settlement.Settlement, 0, len(byPrediction))
	for _, rows := range byPrediction {
		if cur, ok := currentSettlement(rows); ok {
			out = append(out, cur)
		}
	}
	sortSettlements(out)
	return out, nil
}

// currentSettlement resolves one prediction's full settlement history (every
// forward settle plus any reversal rows) to the row that presently counts
// toward a leaderboard: the highest forward ResultVersion written, unless a
// reversal row voiding exactly that version exists, in which case the
// prediction currently contributes nothing.
func currentSettlement(rows []settlement.Settlement) (settlement.Settlement, bool) {
	var forward settlement.Settlement
	haveForward := false
	voided := make(map[int]bool)
	for _, s := range rows {
		if s.Outcome == settlement.OutcomeVoid {
			voided[-s.ResultVersion] = true
			continue
		}
		if !haveForward || s.ResultVersion > forward.ResultVersion {
			forward = s
			haveForward = true
		}
	}
	if !haveForward || voided[forward.ResultVersion] {
		return settlement.Settlement{}, false
	}
	return forward, true
}

func (r *SettlementRepository) SettleOne(ctx context.Context, s settlement.Settlement, p prediction.Prediction, delta usecase.LeaderboardDelta) (bool, error) {
	r.mu.Lock()
	key := settlementKey(s.PredictionID, s.ResultVersion)
	if _, exists := r.settlements[key]; exists {
		r.mu.Unlock()
		return false, nil
	}
	r.settlements[key] = s
	r.mu.Unlock()

	if err := r.predRepo.SetSettled(ctx, p.ID, p.PointsEarned, s.SettledAt); err != nil {
		return false, err
	}
	if err := r.leaderboard.ApplyDelta(ctx, delta); err != nil {
		return false, err
	}
	return true, nil
}

// VoidOne writes a reversal row for a prior settlement rather than mutating
// it: s is the caller-constructed reversal (settlement.VoidedMarker-keyed,
// Outcome = OutcomeVoid, Points = -prior), so Settlement stays write-once and
// the original row survives as an untouched audit trail entry (spec.md §3,
// §4.4).
func (r *SettlementRepository) VoidOne(ctx context.Context, s settlement.Settlement, predictionID string, delta usecase.LeaderboardDelta) (bool, error) {
	r.mu.Lock()
	key := settlementKey(s.PredictionID, s.ResultVersion)
	if _, exists := r.settlements[key]; exists {
		r.mu.Unlock()
		return false, nil
	}
	r.settlements[key] = s
	r.mu.Unlock()

	if err := r.predRepo.SetStatus(ctx, predictionID, prediction.StatusVoided, s.SettledAt); err != nil {
		return false, err
	}
	if err := r.leaderboard.ApplyDelta(ctx, delta); err != nil {
		return false, err
	}
	return true, nil
}

func sortSettlements(settlements []settlement.Settlement) {
	sort.Slice(settlements, func(i, j int) bool {
		if settlements[i].PredictionID == settlements[j].PredictionID {
			return settlements[i].ResultVersion < settlements[j].ResultVersion
		}
		return settlements[i].PredictionID < settlements[j].PredictionID
	})
}
