package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
	"github.com/riskibarqy/predictor-league/internal/domain/result"
	"github.com/riskibarqy/predictor-league/internal/domain/settlement"
	"github.com/riskibarqy/predictor-league/internal/platform/id"
	"github.com/riskibarqy/predictor-league/internal/platform/logging"
)

// SettlementStore is the transactional port the Scoring Engine writes
// through: per prediction, the settlement row, the prediction's points/
// status, and the leaderboard delta are applied together (spec.md §4.4:
// "every write occurs in one transaction per prediction").
type SettlementStore interface {
	settlement.Repository

	// SettleOne writes a Settlement row, advances the prediction's points/
	// status, and applies the leaderboard delta atomically. inserted is
	// false when the settlement already existed (replayed event), in which
	// case no other part of the write happens either.
	SettleOne(ctx context.Context, s settlement.Settlement, p prediction.Prediction, delta LeaderboardDelta) (inserted bool, err error)

	// VoidOne writes a reversal row for a prior settlement (s.ResultVersion =
	// settlement.VoidedMarker(priorVersion), Outcome = OutcomeVoid), marks
	// the prediction voided, and applies a compensating leaderboard delta.
	// inserted is false when the reversal already existed (replayed event).
	VoidOne(ctx context.Context, s settlement.Settlement, predictionID string, delta LeaderboardDelta) (inserted bool, err error)
}

// ScoringConfig carries the point values spec.md §4.4 calls
// "sport-parameterizable".
type ScoringConfig struct {
	ExactPoints  int
	WinnerPoints int
	// SettlementConcurrency bounds the worker pool fanning out per-prediction
	// settlement within one match (spec.md §5: "suspends per prediction, not
	// per match").
	SettlementConcurrency int
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{ExactPoints: 3, WinnerPoints: 1, SettlementConcurrency: 16}
}

// ScoringService computes point awards and settles predictions against
// confirmed/amended/voided results (spec.md §4.4).
type ScoringService struct {
	predictionRepo prediction.Repository
	store          SettlementStore
	ids            id.Generator
	cfg            ScoringConfig
	logger         *logging.Logger
	now            func() time.Time
}

func NewScoringService(
	predictionRepo prediction.Repository,
	store SettlementStore,
	ids id.Generator,
	cfg ScoringConfig,
	logger *logging.Logger,
) *ScoringService {
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	if cfg.ExactPoints <= 0 {
		cfg.ExactPoints = DefaultScoringConfig().ExactPoints
	}
	if cfg.WinnerPoints <= 0 {
		cfg.WinnerPoints = DefaultScoringConfig().WinnerPoints
	}
	if cfg.SettlementConcurrency <= 0 {
		cfg.SettlementConcurrency = DefaultScoringConfig().SettlementConcurrency
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ScoringService{
		predictionRepo: predictionRepo,
		store:          store,
		ids:            ids,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}
}

// score implements spec.md §4.4's scoring rule: a pure function of the
// prediction's forecast and the confirmed result.
func (s *ScoringService) score(p prediction.Prediction, r result.Result) (settlement.Outcome, int) {
	actualWinner := prediction.WinnerFromScore(r.HomeScore, r.AwayScore)

	if p.PredictedHomeGoal != nil && p.PredictedAwayGoal != nil &&
		*p.PredictedHomeGoal == r.HomeScore && *p.PredictedAwayGoal == r.AwayScore {
		return settlement.OutcomeExact, s.cfg.ExactPoints
	}
	if p.PredictedWinner == actualWinner {
		return settlement.OutcomeWinner, s.cfg.WinnerPoints
	}
	return settlement.OutcomeMiss, 0
}

// SettleResult runs the settlement algorithm for a newly confirmed result
// version, fanning out one goroutine per prediction bounded by a pool
// (spec.md §4.4, §5).
func (s *ScoringService) SettleResult(ctx context.Context, r result.Result) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.SettleResult")
	defer span.End()

	predictions, err := s.predictionRepo.ListByMatch(ctx, r.MatchID)
	if err != nil {
		return fmt.Errorf("list predictions for match %s: %w", r.MatchID, err)
	}

	pool, err := ants.NewPool(s.cfg.SettlementConcurrency)
	if err != nil {
		return fmt.Errorf("create settlement pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, p := range predictions {
		p := p
		if p.Status == prediction.StatusCancelled || p.Status == prediction.StatusVoided {
			continue
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if settleErr := s.settleOnePrediction(ctx, p, r); settleErr != nil {
				s.logger.ErrorContext(ctx, "settle prediction failed",
					"prediction_id", p.ID, "match_id", r.MatchID, "result_version", r.Version, "error", settleErr)
			}
		})
		if submitErr != nil {
			wg.Done()
			s.logger.ErrorContext(ctx, "submit settlement task failed", "prediction_id", p.ID, "error", submitErr)
		}
	}
	wg.Wait()
	return nil
}

func (s *ScoringService) settleOnePrediction(ctx context.Context, p prediction.Prediction, r result.Result) error {
	outcome, points := s.score(p, r)

	settlementID, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate settlement id: %w", err)
	}

	sm := settlement.Settlement{
		ID:            settlementID,
		PredictionID:  p.ID,
		MatchID:       r.MatchID,
		ResultVersion: r.Version,
		Outcome:       outcome,
		Points:        points,
		SettledAt:     s.now().UTC(),
	}
	if err := sm.Validate(); err != nil {
		// A permanent validation failure on a prediction should not occur
		// given admission invariants; log and skip so other predictions are
		// not blocked (spec.md §4.4 Failure semantics).
		s.logger.ErrorContext(ctx, "invalid settlement skipped", "prediction_id", p.ID, "error", err)
		return nil
	}

	prior, hasPrior, err := s.store.GetByPredictionVersion(ctx, p.ID, r.Version-1)
	if err != nil {
		return fmt.Errorf("get prior settlement: %w", err)
	}
	delta := LeaderboardDelta{
		UserID:   p.UserID,
		GroupID:  p.GroupID,
		SeasonID: p.SeasonID,
		Points:   points,
		Exact:    boolToInt(outcome == settlement.OutcomeExact),
		Winner:   boolToInt(outcome == settlement.OutcomeWinner),
		Count:    1,
		At:       sm.SettledAt,
	}
	if hasPrior && r.Version > 1 {
		// Amendment: compensate for the prior version's contribution rather
		// than double-counting (spec.md §4.4 Amendment algorithm).
		delta.Points = points - prior.Points
		delta.Exact = boolToInt(outcome == settlement.OutcomeExact) - boolToInt(prior.Outcome == settlement.OutcomeExact)
		delta.Winner = boolToInt(outcome == settlement.OutcomeWinner) - boolToInt(prior.Outcome == settlement.OutcomeWinner)
		delta.Count = 0
	}

	p.PointsEarned = points
	p.Status = prediction.StatusSettled

	inserted, err := s.store.SettleOne(ctx, sm, p, delta)
	if err != nil {
		return fmt.Errorf("settle prediction %s: %w", p.ID, err)
	}
	if !inserted {
		// Already settled for this exact result version: a replayed event,
		// no-op by design (spec.md §4.4 Concurrency).
		return nil
	}
	return nil
}

// VoidResult reverses every settlement written against a result's final
// version once that result is voided (spec.md §4.4 Void algorithm).
func (s *ScoringService) VoidResult(ctx context.Context, matchID string, lastVersion int) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.VoidResult")
	defer span.End()

	settlements, err := s.store.ListByMatch(ctx, matchID)
	if err != nil {
		return fmt.Errorf("list settlements for match %s: %w", matchID, err)
	}

	for _, sm := range settlements {
		if sm.ResultVersion != lastVersion {
			continue
		}

		p, found, err := s.predictionRepo.GetByID(ctx, sm.PredictionID)
		if err != nil {
			s.logger.ErrorContext(ctx, "load prediction for void failed", "prediction_id", sm.PredictionID, "match_id", matchID, "error", err)
			continue
		}
		if !found {
			s.logger.ErrorContext(ctx, "prediction for void not found", "prediction_id", sm.PredictionID, "match_id", matchID)
			continue
		}

		reversalID, err := s.ids.NewID()
		if err != nil {
			s.logger.ErrorContext(ctx, "generate reversal settlement id failed", "prediction_id", sm.PredictionID, "error", err)
			continue
		}
		reversal := settlement.Settlement{
			ID:            reversalID,
			PredictionID:  sm.PredictionID,
			MatchID:       matchID,
			ResultVersion: settlement.VoidedMarker(lastVersion),
			Outcome:       settlement.OutcomeVoid,
			Points:        -sm.Points,
			SettledAt:     s.now().UTC(),
		}
		if err := reversal.Validate(); err != nil {
			s.logger.ErrorContext(ctx, "invalid void reversal skipped", "prediction_id", sm.PredictionID, "error", err)
			continue
		}

		delta := LeaderboardDelta{
			UserID:   p.UserID,
			GroupID:  p.GroupID,
			SeasonID: p.SeasonID,
			Points:   -sm.Points,
			Exact:    -boolToInt(sm.Outcome == settlement.OutcomeExact),
			Winner:   -boolToInt(sm.Outcome == settlement.OutcomeWinner),
			Count:    -1,
			At:       reversal.SettledAt,
		}
		if _, err := s.store.VoidOne(ctx, reversal, sm.PredictionID, delta); err != nil {
			s.logger.ErrorContext(ctx, "void settlement failed", "prediction_id", sm.PredictionID, "match_id", matchID, "error", err)
		}
	}
	return nil
}

// EnsureMatchSettled reconciles a match's settlements against its latest
// confirmed/amended result, settling any prediction a crashed or
// partially-delivered run left pending. It is the reconciliation sweep
// analogous to the teacher's EnsureLeagueUpToDate debounce.
func (s *ScoringService) EnsureMatchSettled(ctx context.Context, r result.Result) error {
	if r.ResultType != result.TypeFinal || !r.IsFinal() {
		return nil
	}
	return s.SettleResult(ctx, r)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
