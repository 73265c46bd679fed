package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/outbox"
	"github.com/riskibarqy/predictor-league/internal/infrastructure/repository/memory"
)

type stubPublisher struct {
	mu       sync.Mutex
	fail     map[string]bool
	received []string
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{fail: make(map[string]bool)}
}

func (p *stubPublisher) Publish(_ context.Context, _, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[key] {
		return errors.New("publish failed")
	}
	p.received = append(p.received, key)
	return nil
}

func seedOutboxEvent(t *testing.T, repo *memory.OutboxRepository, id, key string, createdAt time.Time) outbox.Event {
	t.Helper()
	ev := outbox.Event{
		ID:          id,
		Type:        outbox.EventResultConfirmed,
		AggregateID: key,
		Key:         key,
		Version:     1,
		Payload:     []byte(`{"ok":true}`),
		Status:      outbox.StatusPending,
		CreatedAt:   createdAt,
	}
	if err := repo.Insert(context.Background(), ev); err != nil {
		t.Fatalf("seed outbox event %s: %v", id, err)
	}
	return ev
}

func TestOutboxPumpService_Tick_PublishesAndMarksPublished(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	seedOutboxEvent(t, repo, "ev-1", "match-1", time.Now().UTC().Add(-time.Second))

	publisher := newStubPublisher()
	svc := NewOutboxPumpService(repo, publisher, DefaultOutboxPumpConfig(), nil)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	remaining, err := repo.ListDispatchable(context.Background(), time.Now().UTC().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListDispatchable: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no dispatchable events after a successful publish, got %d", len(remaining))
	}
	if len(publisher.received) != 1 || publisher.received[0] != "match-1" {
		t.Fatalf("expected the event to be published once, got %+v", publisher.received)
	}
}

func TestOutboxPumpService_Tick_RetriesOnPublishFailure(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	seedOutboxEvent(t, repo, "ev-1", "match-1", time.Now().UTC().Add(-time.Second))

	publisher := newStubPublisher()
	publisher.fail["match-1"] = true
	svc := NewOutboxPumpService(repo, publisher, DefaultOutboxPumpConfig(), nil)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	ev, found, err := repo.GetByID(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !found {
		t.Fatalf("expected event to still exist after a failed publish")
	}
	if ev.Status != outbox.StatusFailed {
		t.Fatalf("expected status failed, got %q", ev.Status)
	}
	if ev.Attempts != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", ev.Attempts)
	}
	if !ev.NextAttemptAt.After(time.Now().UTC()) {
		t.Fatalf("expected next attempt to be scheduled in the future, got %v", ev.NextAttemptAt)
	}
}

func TestOutboxPumpService_Tick_DeadLettersAfterRetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	seedOutboxEvent(t, repo, "ev-1", "match-1", time.Now().UTC().Add(-48*time.Hour))

	publisher := newStubPublisher()
	publisher.fail["match-1"] = true
	svc := NewOutboxPumpService(repo, publisher, DefaultOutboxPumpConfig(), nil)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	ev, found, err := repo.GetByID(context.Background(), "ev-1")
	if err != nil || !found {
		t.Fatalf("GetByID: found=%v err=%v", found, err)
	}
	if ev.Status != outbox.StatusDead {
		t.Fatalf("expected status dead after exhausting the retry budget, got %q", ev.Status)
	}

	remaining, err := repo.ListDispatchable(context.Background(), time.Now().UTC().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListDispatchable: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected a dead-lettered event to no longer be dispatchable, got %d", len(remaining))
	}
}

func TestOutboxPumpService_Tick_SkipsEventsNotYetDueForRetry(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	ev := seedOutboxEvent(t, repo, "ev-1", "match-1", time.Now().UTC().Add(-time.Hour))
	ev.Status = outbox.StatusFailed
	ev.NextAttemptAt = time.Now().UTC().Add(time.Hour)
	if err := repo.Insert(context.Background(), ev); err != nil {
		t.Fatalf("re-seed delayed event: %v", err)
	}

	publisher := newStubPublisher()
	svc := NewOutboxPumpService(repo, publisher, DefaultOutboxPumpConfig(), nil)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(publisher.received) != 0 {
		t.Fatalf("expected no publish attempts before the retry delay elapses, got %+v", publisher.received)
	}
}

func TestOutboxPumpService_Backoff_CapsAtMaxDelay(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	svc := NewOutboxPumpService(repo, newStubPublisher(), OutboxPumpConfig{
		PollInterval: time.Second,
		BatchSize:    10,
		Topic:        "test",
		BaseDelay:    time.Second,
		MaxDelay:     4 * time.Second,
		RetryBudget:  time.Hour,
	}, nil)

	if d := svc.backoff(1); d != time.Second {
		t.Fatalf("expected first attempt delay of 1s, got %v", d)
	}
	if d := svc.backoff(5); d != 4*time.Second {
		t.Fatalf("expected backoff to cap at 4s, got %v", d)
	}
}
