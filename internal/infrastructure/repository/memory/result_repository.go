package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/outbox"
	"github.com/riskibarqy/predictor-league/internal/domain/result"
)

// ResultRepository is an in-memory usecase.ResultStore: the result row and
// its outbox event are appended under the same mutex, standing in for the
// single-transaction guarantee the Postgres implementation provides.
type ResultRepository struct {
	mu      sync.RWMutex
	results map[string]result.Result
	outbox  *OutboxRepository
}

func NewResultRepository(outboxRepo *OutboxRepository) *ResultRepository {
	return &ResultRepository{results: make(map[string]result.Result), outbox: outboxRepo}
}

func (r *ResultRepository) GetByID(_ context.Context, resultID string) (result.Result, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[resultID]
	return res, ok, nil
}

func (r *ResultRepository) GetLatestForMatch(_ context.Context, matchID string, resultType result.Type) (result.Result, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest result.Result
	found := false
	for _, res := range r.results {
		if res.MatchID != matchID || res.ResultType != resultType {
			continue
		}
		if !found || res.Version > latest.Version {
			latest = res
			found = true
		}
	}
	return latest, found, nil
}

func (r *ResultRepository) ListVersionsForMatch(_ context.Context, matchID string, resultType result.Type) ([]result.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]result.Result, 0)
	for _, res := range r.results {
		if res.MatchID == matchID && res.ResultType == resultType {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *ResultRepository) Insert(_ context.Context, res result.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.results {
		if existing.ID != res.ID && existing.MatchID == res.MatchID && existing.ResultType == res.ResultType && existing.Version == res.Version {
			return fmt.Errorf("result already exists for match=%s type=%s version=%d", res.MatchID, res.ResultType, res.Version)
		}
	}
	r.results[res.ID] = res
	return nil
}

func (r *ResultRepository) SetStatus(_ context.Context, resultID string, status result.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[resultID]
	if !ok {
		return nil
	}
	res.Status = status
	if status == result.StatusConfirmed {
		t := at
		res.ConfirmedAt = &t
	}
	r.results[resultID] = res
	return nil
}

func (r *ResultRepository) InsertWithEvent(ctx context.Context, res result.Result, ev outbox.Event) error {
	if err := r.Insert(ctx, res); err != nil {
		return err
	}
	return r.outbox.Insert(ctx, ev)
}

func (r *ResultRepository) TransitionWithEvent(ctx context.Context, resultID string, to result.Status, at time.Time, ev *outbox.Event) error {
	if err := r.SetStatus(ctx, resultID, to, at); err != nil {
		return err
	}
	if ev != nil {
		return r.outbox.Insert(ctx, *ev)
	}
	return nil
}
