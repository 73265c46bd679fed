package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/group"
	"github.com/riskibarqy/predictor-league/internal/domain/match"
	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
	"github.com/riskibarqy/predictor-league/internal/platform/id"
)

// PredictionService owns admission and mutation of predictions: the load
// match → check membership → consult clock → validate payload → write
// pipeline described in spec.md §4.2.
type PredictionService struct {
	predictionRepo prediction.Repository
	matchRepo      match.Repository
	groupRepo      group.Repository
	clock          *ClockService
	ids            id.Generator
	now            func() time.Time
}

func NewPredictionService(
	predictionRepo prediction.Repository,
	matchRepo match.Repository,
	groupRepo group.Repository,
	clock *ClockService,
	ids id.Generator,
) *PredictionService {
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	return &PredictionService{
		predictionRepo: predictionRepo,
		matchRepo:      matchRepo,
		groupRepo:      groupRepo,
		clock:          clock,
		ids:            ids,
		now:            time.Now,
	}
}

// SubmitInput is the payload for Submit.
type SubmitInput struct {
	UserID  string
	GroupID string
	MatchID string
	Payload prediction.Payload
}

// Submit admits a new prediction, running the full admission algorithm from
// spec.md §4.2.
func (s *PredictionService) Submit(ctx context.Context, in SubmitInput) (prediction.Prediction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PredictionService.Submit")
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.GroupID = strings.TrimSpace(in.GroupID)
	in.MatchID = strings.TrimSpace(in.MatchID)
	if in.UserID == "" || in.GroupID == "" || in.MatchID == "" {
		return prediction.Prediction{}, fmt.Errorf("%w: user, group, and match ids are required", ErrInvalidInput)
	}

	m, err := s.loadAdmissibleMatch(ctx, in.MatchID)
	if err != nil {
		return prediction.Prediction{}, err
	}

	if err := s.requireMembership(ctx, in.GroupID, in.UserID); err != nil {
		return prediction.Prediction{}, err
	}

	now := s.now().UTC()
	if err := s.requireOpen(ctx, m, now); err != nil {
		return prediction.Prediction{}, err
	}

	winner, homeGoals, awayGoals, err := in.Payload.Normalize()
	if err != nil {
		return prediction.Prediction{}, err
	}

	existing, found, err := s.predictionRepo.GetByUserMatch(ctx, in.UserID, in.GroupID, in.MatchID)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("lookup existing prediction: %w", err)
	}
	if found && existing.Status != prediction.StatusCancelled {
		return prediction.Prediction{}, fmt.Errorf("%w: prediction %s already exists for this match, use Update", ErrConflict, existing.ID)
	}

	predID, err := s.ids.NewID()
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("generate prediction id: %w", err)
	}

	p := prediction.Prediction{
		ID:                predID,
		UserID:            in.UserID,
		GroupID:           in.GroupID,
		MatchID:           in.MatchID,
		SeasonID:          m.SeasonID,
		PredictedWinner:   winner,
		PredictedHomeGoal: homeGoals,
		PredictedAwayGoal: awayGoals,
		PlacedAt:          now,
		UpdatedAt:         now,
		Status:            prediction.StatusPending,
		Notes:             in.Payload.Notes,
	}

	if err := s.predictionRepo.Insert(ctx, p); err != nil {
		return prediction.Prediction{}, fmt.Errorf("insert prediction: %w", err)
	}
	return p, nil
}

// UpdateInput is the payload for Update.
type UpdateInput struct {
	PredictionID string
	UserID       string
	Payload      prediction.Payload
}

// Update overwrites a still-pending prediction's forecast, re-running the
// same admission checks as Submit.
func (s *PredictionService) Update(ctx context.Context, in UpdateInput) (prediction.Prediction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PredictionService.Update")
	defer span.End()

	existing, found, err := s.predictionRepo.GetByID(ctx, in.PredictionID)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("get prediction: %w", err)
	}
	if !found {
		return prediction.Prediction{}, fmt.Errorf("%w: prediction %s", ErrNotFound, in.PredictionID)
	}
	if existing.UserID != in.UserID {
		return prediction.Prediction{}, fmt.Errorf("%w: prediction %s is not owned by caller", ErrUnauthorized, in.PredictionID)
	}
	if !existing.Mutable() {
		return prediction.Prediction{}, fmt.Errorf("%w: prediction %s is not pending", ErrConflict, in.PredictionID)
	}

	m, err := s.loadAdmissibleMatch(ctx, existing.MatchID)
	if err != nil {
		return prediction.Prediction{}, err
	}

	now := s.now().UTC()
	if err := s.requireOpen(ctx, m, now); err != nil {
		return prediction.Prediction{}, err
	}

	winner, homeGoals, awayGoals, err := in.Payload.Normalize()
	if err != nil {
		return prediction.Prediction{}, err
	}

	if err := s.predictionRepo.UpdatePayload(ctx, existing.ID, winner, homeGoals, awayGoals, in.Payload.Notes, now); err != nil {
		return prediction.Prediction{}, fmt.Errorf("update prediction: %w", err)
	}

	existing.PredictedWinner = winner
	existing.PredictedHomeGoal = homeGoals
	existing.PredictedAwayGoal = awayGoals
	existing.Notes = in.Payload.Notes
	existing.UpdatedAt = now
	return existing, nil
}

// Cancel withdraws a pending prediction while its window is still open.
// Cancelled predictions are excluded from settlement (spec.md §4.2, §4.4).
func (s *PredictionService) Cancel(ctx context.Context, predictionID, userID string) (prediction.Prediction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PredictionService.Cancel")
	defer span.End()

	existing, found, err := s.predictionRepo.GetByID(ctx, predictionID)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("get prediction: %w", err)
	}
	if !found {
		return prediction.Prediction{}, fmt.Errorf("%w: prediction %s", ErrNotFound, predictionID)
	}
	if existing.UserID != userID {
		return prediction.Prediction{}, fmt.Errorf("%w: prediction %s is not owned by caller", ErrUnauthorized, predictionID)
	}
	if !existing.Mutable() {
		return prediction.Prediction{}, fmt.Errorf("%w: prediction %s is not pending", ErrConflict, predictionID)
	}

	m, found, err := s.matchRepo.GetByID(ctx, existing.MatchID)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("get match: %w", err)
	}
	if !found {
		return prediction.Prediction{}, fmt.Errorf("%w: match %s", ErrNotFound, existing.MatchID)
	}

	now := s.now().UTC()
	if err := s.requireOpen(ctx, m, now); err != nil {
		return prediction.Prediction{}, err
	}

	if err := s.predictionRepo.SetStatus(ctx, existing.ID, prediction.StatusCancelled, now); err != nil {
		return prediction.Prediction{}, fmt.Errorf("cancel prediction: %w", err)
	}
	existing.Status = prediction.StatusCancelled
	existing.UpdatedAt = now
	return existing, nil
}

// ListForMatch returns every prediction on a match, the set the Scoring
// Engine iterates during settlement.
func (s *PredictionService) ListForMatch(ctx context.Context, matchID string) ([]prediction.Prediction, error) {
	return s.predictionRepo.ListByMatch(ctx, matchID)
}

// ListForUser returns a user's predictions, optionally scoped to one group.
func (s *PredictionService) ListForUser(ctx context.Context, userID, groupID string) ([]prediction.Prediction, error) {
	return s.predictionRepo.ListForUser(ctx, userID, groupID)
}

func (s *PredictionService) loadAdmissibleMatch(ctx context.Context, matchID string) (match.Match, error) {
	m, found, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !found {
		return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	if match.IsTerminalForScoring(m.Status) {
		return match.Match{}, fmt.Errorf("%w: match %s is no longer accepting predictions", ErrDeadlineExceeded, matchID)
	}
	return m, nil
}

func (s *PredictionService) requireMembership(ctx context.Context, groupID, userID string) error {
	ok, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s is not a member of group %s", ErrUnauthorized, userID, groupID)
	}
	return nil
}

// requireOpen consults the Match Clock when available, falling back to a
// direct comparison against the persisted match row — the clock service is
// a cache of the same predicate, never its sole source of truth (spec.md
// §4.1: "admission uses the storage layer's current timestamp").
func (s *PredictionService) requireOpen(ctx context.Context, m match.Match, now time.Time) error {
	if s.clock != nil {
		openness, err := s.clock.IsOpen(ctx, m.ID, now)
		if err != nil {
			return fmt.Errorf("consult match clock: %w", err)
		}
		if openness == OpennessOpen {
			return nil
		}
		if openness == OpennessClosed {
			return fmt.Errorf("%w: betting window for match %s has closed", ErrDeadlineExceeded, m.ID)
		}
	}
	if match.NormalizeStatus(m.Status) == match.StatusScheduled && now.Before(m.BettingClosesAt) {
		return nil
	}
	return fmt.Errorf("%w: betting window for match %s has closed", ErrDeadlineExceeded, m.ID)
}
