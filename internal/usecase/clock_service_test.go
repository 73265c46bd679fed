package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/match"
	"github.com/riskibarqy/predictor-league/internal/infrastructure/repository/memory"
)

func TestClockService_IsOpen_OpenBeforeDeadline(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(2*time.Hour), now.Add(time.Hour))
	matchRepo := memory.NewMatchRepository(m)
	svc := NewClockService(matchRepo, nil)

	openness, err := svc.IsOpen(context.Background(), "match-1", now)
	if err != nil {
		t.Fatalf("IsOpen: %v", err)
	}
	if openness != OpennessOpen {
		t.Fatalf("expected open, got %q", openness)
	}
}

func TestClockService_IsOpen_ClosedAfterDeadline(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(time.Hour), now.Add(-time.Minute))
	matchRepo := memory.NewMatchRepository(m)
	svc := NewClockService(matchRepo, nil)

	openness, err := svc.IsOpen(context.Background(), "match-1", now)
	if err != nil {
		t.Fatalf("IsOpen: %v", err)
	}
	if openness != OpennessClosed {
		t.Fatalf("expected closed, got %q", openness)
	}
}

func TestClockService_IsOpen_ClosedForNonScheduledMatch(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(2*time.Hour), now.Add(time.Hour))
	m.Status = match.StatusLive
	matchRepo := memory.NewMatchRepository(m)
	svc := NewClockService(matchRepo, nil)

	openness, err := svc.IsOpen(context.Background(), "match-1", now)
	if err != nil {
		t.Fatalf("IsOpen: %v", err)
	}
	if openness != OpennessClosed {
		t.Fatalf("expected closed for a live match, got %q", openness)
	}
}

func TestClockService_IsOpen_UnknownForMissingMatch(t *testing.T) {
	t.Parallel()

	matchRepo := memory.NewMatchRepository()
	svc := NewClockService(matchRepo, nil)

	openness, err := svc.IsOpen(context.Background(), "missing", time.Now())
	if err != nil {
		t.Fatalf("IsOpen: %v", err)
	}
	if openness != OpennessUnknown {
		t.Fatalf("expected unknown, got %q", openness)
	}
}

func TestClockService_CatchUp_DispatchesAlreadyElapsedMatches(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	elapsed := newTestMatch("match-elapsed", now.Add(-time.Hour), now.Add(-time.Minute))
	future := newTestMatch("match-future", now.Add(2*time.Hour), now.Add(time.Hour))
	matchRepo := memory.NewMatchRepository(elapsed, future)
	svc := NewClockService(matchRepo, nil)

	closures := make(chan Closure, 4)
	svc.Subscribe(func(_ context.Context, c Closure) { closures <- c })

	if err := svc.catchUp(context.Background()); err != nil {
		t.Fatalf("catchUp: %v", err)
	}

	select {
	case c := <-closures:
		if c.MatchID != "match-elapsed" {
			t.Fatalf("expected closure for match-elapsed, got %q", c.MatchID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for catch-up closure")
	}

	select {
	case c := <-closures:
		t.Fatalf("did not expect a closure for the future match, got %+v", c)
	default:
	}
}

func TestClockService_Run_FiresCloseOnceWindowElapses(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(time.Hour), now.Add(60*time.Millisecond))
	matchRepo := memory.NewMatchRepository(m)
	svc := NewClockService(matchRepo, nil)

	closures := make(chan Closure, 1)
	svc.Subscribe(func(_ context.Context, c Closure) { closures <- c })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case c := <-closures:
		if c.MatchID != "match-1" {
			t.Fatalf("expected closure for match-1, got %q", c.MatchID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for scheduled closure")
	}

	cancel()
	<-done
}

func TestClockService_Schedule_WakesRunningLoopForEarlierDeadline(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	far := newTestMatch("match-far", now.Add(time.Hour), now.Add(time.Hour))
	matchRepo := memory.NewMatchRepository(far)
	svc := NewClockService(matchRepo, nil)

	closures := make(chan Closure, 1)
	svc.Subscribe(func(_ context.Context, c Closure) { closures <- c })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	near := newTestMatch("match-near", now.Add(time.Hour), now.Add(60*time.Millisecond))
	matchRepo.Put(near)
	svc.Schedule(near.ID, near.BettingClosesAt)

	select {
	case c := <-closures:
		if c.MatchID != "match-near" {
			t.Fatalf("expected closure for match-near, got %q", c.MatchID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the rescheduled closure")
	}

	cancel()
	<-done
}
