package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/riskibarqy/predictor-league/internal/domain/leaderboard"
	basecache "github.com/riskibarqy/predictor-league/internal/platform/cache"
	"github.com/riskibarqy/predictor-league/internal/platform/resilience"
)

// LeaderboardRepository wraps a leaderboard.Repository with a read-through
// Redis cache bounded by leaderboard.staleness.maxSeconds (spec.md §4.5,
// §6): reads within that window serve a previously computed snapshot
// instead of recomputing against the underlying store. Writes invalidate
// the affected keys immediately, so staleness only ever favors a read
// racing a concurrent write, never a write being lost. A process-local
// fallback (the teacher's platform/cache.Store) absorbs Redis outages so a
// leaderboard read degrades to the underlying store rather than failing.
type LeaderboardRepository struct {
	next     leaderboard.Repository
	client   *redis.Client
	ttl      time.Duration
	fallback *basecache.Store
	flight   resilience.SingleFlight
}

func NewLeaderboardRepository(next leaderboard.Repository, client *redis.Client, ttl time.Duration) *LeaderboardRepository {
	return &LeaderboardRepository{
		next:     next,
		client:   client,
		ttl:      ttl,
		fallback: basecache.NewStore(ttl),
	}
}

func (r *LeaderboardRepository) Upsert(ctx context.Context, e leaderboard.Entry) error {
	if err := r.next.Upsert(ctx, e); err != nil {
		return err
	}
	r.invalidateGroup(ctx, e.GroupID, e.SeasonID)
	r.invalidateEntry(ctx, e.GroupID, e.SeasonID, e.UserID)
	return nil
}

func (r *LeaderboardRepository) Get(ctx context.Context, groupID, seasonID, userID string) (leaderboard.Entry, bool, error) {
	key := "leaderboard:entry:" + groupID + ":" + seasonID + ":" + userID
	var cached cachedLeaderboardEntry
	if r.readThrough(ctx, key, &cached) {
		return cached.Value, cached.Exists, nil
	}

	v, err, _ := r.flight.Do(key, func() (any, error) {
		item, exists, err := r.next.Get(ctx, groupID, seasonID, userID)
		if err != nil {
			return nil, err
		}
		got := cachedLeaderboardEntry{Value: item, Exists: exists}
		r.writeThrough(ctx, key, got)
		return got, nil
	})
	if err != nil {
		return leaderboard.Entry{}, false, err
	}
	got, _ := v.(cachedLeaderboardEntry)
	return got.Value, got.Exists, nil
}

func (r *LeaderboardRepository) ListByGroup(ctx context.Context, groupID, seasonID string) ([]leaderboard.Entry, error) {
	key := "leaderboard:group:" + groupID + ":" + seasonID
	var cached []leaderboard.Entry
	if r.readThrough(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := r.flight.Do(key, func() (any, error) {
		items, err := r.next.ListByGroup(ctx, groupID, seasonID)
		if err != nil {
			return nil, err
		}
		snapshot := append([]leaderboard.Entry(nil), items...)
		r.writeThrough(ctx, key, snapshot)
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	items, _ := v.([]leaderboard.Entry)
	return items, nil
}

func (r *LeaderboardRepository) DeleteByGroup(ctx context.Context, groupID, seasonID string) error {
	if err := r.next.DeleteByGroup(ctx, groupID, seasonID); err != nil {
		return err
	}
	r.invalidateGroup(ctx, groupID, seasonID)
	r.fallback.DeletePrefix(ctx, "leaderboard:entry:"+groupID+":"+seasonID+":")
	return nil
}

type cachedLeaderboardEntry struct {
	Value  leaderboard.Entry `json:"value"`
	Exists bool              `json:"exists"`
}

// readThrough tries Redis, then the local fallback, decoding into out.
// Reports whether a cache hit populated out.
func (r *LeaderboardRepository) readThrough(ctx context.Context, key string, out any) bool {
	if r.client != nil {
		raw, err := r.client.Get(ctx, key).Bytes()
		if err == nil {
			if decodeErr := sonic.Unmarshal(raw, out); decodeErr == nil {
				return true
			}
		}
	}
	if v, ok := r.fallback.Get(ctx, key); ok {
		if raw, ok := v.([]byte); ok {
			if decodeErr := sonic.Unmarshal(raw, out); decodeErr == nil {
				return true
			}
		}
	}
	return false
}

func (r *LeaderboardRepository) writeThrough(ctx context.Context, key string, value any) {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return
	}
	if r.client != nil {
		r.client.Set(ctx, key, raw, r.ttl)
	}
	r.fallback.Set(ctx, key, raw)
}

func (r *LeaderboardRepository) invalidateGroup(ctx context.Context, groupID, seasonID string) {
	key := "leaderboard:group:" + groupID + ":" + seasonID
	if r.client != nil {
		r.client.Del(ctx, key)
	}
	r.fallback.Delete(ctx, key)
}

func (r *LeaderboardRepository) invalidateEntry(ctx context.Context, groupID, seasonID, userID string) {
	key := "leaderboard:entry:" + groupID + ":" + seasonID + ":" + userID
	if r.client != nil {
		r.client.Del(ctx, key)
	}
	r.fallback.Delete(ctx, key)
}
