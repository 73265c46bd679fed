package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/outbox"
	"github.com/riskibarqy/predictor-league/internal/platform/logging"
)

// EventPublisher is the transport port the outbox pump dispatches through.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// OutboxPumpConfig controls the poll cadence and retry budget (spec.md §5:
// "exponential backoff (base 1 s, cap 5 min, max 24 h per event) before
// moving to a dead-letter queue").
type OutboxPumpConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Topic        string
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	RetryBudget  time.Duration
}

func DefaultOutboxPumpConfig() OutboxPumpConfig {
	return OutboxPumpConfig{
		PollInterval: time.Second,
		BatchSize:    100,
		Topic:        "predictor-league.events",
		BaseDelay:    time.Second,
		MaxDelay:     5 * time.Minute,
		RetryBudget:  24 * time.Hour,
	}
}

// OutboxPumpService polls the outbox for dispatchable rows and publishes
// them at-least-once, retrying transient failures with exponential backoff
// and dead-lettering rows that exhaust their retry budget (spec.md §5, §7).
type OutboxPumpService struct {
	repo      outbox.Repository
	publisher EventPublisher
	cfg       OutboxPumpConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewOutboxPumpService(repo outbox.Repository, publisher EventPublisher, cfg OutboxPumpConfig, logger *logging.Logger) *OutboxPumpService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultOutboxPumpConfig().PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultOutboxPumpConfig().BatchSize
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultOutboxPumpConfig().Topic
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultOutboxPumpConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultOutboxPumpConfig().MaxDelay
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = DefaultOutboxPumpConfig().RetryBudget
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxPumpService{repo: repo, publisher: publisher, cfg: cfg, logger: logger, now: time.Now}
}

// Run polls and dispatches until ctx is cancelled.
func (s *OutboxPumpService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.ErrorContext(ctx, "outbox pump tick failed", "error", err)
			}
		}
	}
}

func (s *OutboxPumpService) tick(ctx context.Context) error {
	now := s.now().UTC()
	events, err := s.repo.ListDispatchable(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list dispatchable events: %w", err)
	}

	for _, ev := range events {
		s.dispatchOne(ctx, ev)
	}
	return nil
}

func (s *OutboxPumpService) dispatchOne(ctx context.Context, ev outbox.Event) {
	now := s.now().UTC()
	err := s.publisher.Publish(ctx, s.cfg.Topic, ev.Key, ev.Payload)
	if err == nil {
		if markErr := s.repo.MarkPublished(ctx, ev.ID, now); markErr != nil {
			s.logger.ErrorContext(ctx, "mark outbox event published failed", "event_id", ev.ID, "error", markErr)
		}
		return
	}

	attempts := ev.Attempts + 1
	elapsed := now.Sub(ev.CreatedAt)
	dead := elapsed >= s.cfg.RetryBudget
	next := now.Add(s.backoff(attempts))
	if failErr := s.repo.MarkFailed(ctx, ev.ID, now, next, dead); failErr != nil {
		s.logger.ErrorContext(ctx, "mark outbox event failed", "event_id", ev.ID, "error", failErr)
	}
	if dead {
		s.logger.ErrorContext(ctx, "outbox event dead-lettered", "event_id", ev.ID, "type", ev.Type, "attempts", attempts, "publish_error", err)
		return
	}
	s.logger.WarnContext(ctx, "outbox event publish failed, will retry", "event_id", ev.ID, "type", ev.Type, "attempts", attempts, "next_attempt_at", next, "error", err)
}

// backoff computes exponential backoff with a configured cap, doubling per
// attempt starting from BaseDelay.
func (s *OutboxPumpService) backoff(attempts int) time.Duration {
	delay := s.cfg.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	return delay
}
