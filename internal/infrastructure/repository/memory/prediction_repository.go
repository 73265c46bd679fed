package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
)

// PredictionRepository is an in-memory prediction.Repository, enforcing the
// same (user, group, match) uniqueness the Postgres implementation enforces
// via a constraint.
type PredictionRepository struct {
	mu          sync.RWMutex
	predictions map[string]prediction.Prediction
}

func NewPredictionRepository() *PredictionRepository {
	return &PredictionRepository{predictions: make(map[string]prediction.Prediction)}
}

func (r *PredictionRepository) GetByID(_ context.Context, predictionID string) (prediction.Prediction, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predictions[predictionID]
	return p, ok, nil
}

func (r *PredictionRepository) GetByUserMatch(_ context.Context, userID, groupID, matchID string) (prediction.Prediction, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.predictions {
		if p.UserID == userID && p.GroupID == groupID && p.MatchID == matchID {
			return p, true, nil
		}
	}
	return prediction.Prediction{}, false, nil
}

func (r *PredictionRepository) Insert(_ context.Context, p prediction.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.predictions {
		if existing.UserID == p.UserID && existing.GroupID == p.GroupID && existing.MatchID == p.MatchID {
			return fmt.Errorf("prediction already exists for user=%s group=%s match=%s", p.UserID, p.GroupID, p.MatchID)
		}
	}
	r.predictions[p.ID] = p
	return nil
}

func (r *PredictionRepository) UpdatePayload(_ context.Context, predictionID string, winner prediction.Winner, homeGoals, awayGoals *int, notes string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.predictions[predictionID]
	if !ok {
		return nil
	}
	p.PredictedWinner = winner
	p.PredictedHomeGoal = homeGoals
	p.PredictedAwayGoal = awayGoals
	p.Notes = notes
	p.UpdatedAt = at
	r.predictions[predictionID] = p
	return nil
}

func (r *PredictionRepository) SetStatus(_ context.Context, predictionID string, status prediction.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.predictions[predictionID]
	if !ok {
		return nil
	}
	p.Status = status
	p.UpdatedAt = at
	r.predictions[predictionID] = p
	return nil
}

func (r *PredictionRepository) SetSettled(_ context.Context, predictionID string, points int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.predictions[predictionID]
	if !ok {
		return nil
	}
	p.PointsEarned = points
	p.Status = prediction.StatusSettled
	p.UpdatedAt = at
	r.predictions[predictionID] = p
	return nil
}

func (r *PredictionRepository) ListByMatch(_ context.Context, matchID string) ([]prediction.Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]prediction.Prediction, 0)
	for _, p := range r.predictions {
		if p.MatchID == matchID {
			out = append(out, p)
		}
	}
	sortByPlacedAt(out)
	return out, nil
}

func (r *PredictionRepository) ListByMatchStatus(_ context.Context, matchID string, status prediction.Status) ([]prediction.Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]prediction.Prediction, 0)
	for _, p := range r.predictions {
		if p.MatchID == matchID && p.Status == status {
			out = append(out, p)
		}
	}
	sortByPlacedAt(out)
	return out, nil
}

func (r *PredictionRepository) ListForUser(_ context.Context, userID, groupID string) ([]prediction.Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]prediction.Prediction, 0)
	for _, p := range r.predictions {
		if p.UserID != userID {
			continue
		}
		if groupID != "" && p.GroupID != groupID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

func sortByPlacedAt(predictions []prediction.Prediction) {
	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].PlacedAt.Equal(predictions[j].PlacedAt) {
			return predictions[i].ID < predictions[j].ID
		}
		return predictions[i].PlacedAt.Before(predictions[j].PlacedAt)
	})
}
