package app

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/predictor-league/external/eventbus"
	"github.com/riskibarqy/predictor-league/internal/config"
	"github.com/riskibarqy/predictor-league/internal/domain/leaderboard"
	"github.com/riskibarqy/predictor-league/internal/domain/match"
	"github.com/riskibarqy/predictor-league/internal/domain/result"
	cacherepo "github.com/riskibarqy/predictor-league/internal/infrastructure/repository/cache"
	postgresrepo "github.com/riskibarqy/predictor-league/internal/infrastructure/repository/postgres"
	idgen "github.com/riskibarqy/predictor-league/internal/platform/id"
	"github.com/riskibarqy/predictor-league/internal/platform/logging"
	"github.com/riskibarqy/predictor-league/internal/platform/resilience"
	"github.com/riskibarqy/predictor-league/internal/usecase"
)

// App wires together every moving part the worker process supervises: the
// Match Clock scheduler, the Outbox pump, and the usecase services they
// drive (spec.md §2's five cooperating components).
type App struct {
	DB          *sqlx.DB
	Clock       *usecase.ClockService
	Outbox      *usecase.OutboxPumpService
	Predict     *usecase.PredictionService
	Result      *usecase.ResultService
	Scoring     *usecase.ScoringService
	Leaderboard *usecase.LeaderboardService

	closers []func() error
}

func Build(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	var matchRepo match.Repository = postgresrepo.NewMatchRepository(db)
	predictionRepo := postgresrepo.NewPredictionRepository(db)
	groupRepo := postgresrepo.NewGroupRepository(db)
	outboxRepo := postgresrepo.NewOutboxRepository(db)
	resultRepo := postgresrepo.NewResultRepository(db)
	settlementRepo := postgresrepo.NewSettlementRepository(db)

	var leaderboardRepo leaderboard.Repository = postgresrepo.NewLeaderboardRepository(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	leaderboardStaleness := time.Duration(cfg.LeaderboardStalenessMaxSeconds) * time.Second
	leaderboardRepo = cacherepo.NewLeaderboardRepository(leaderboardRepo, redisClient, leaderboardStaleness)

	publisher := eventbus.NewKafkaPublisher(eventbus.KafkaPublisherConfig{
		Brokers: cfg.KafkaBrokers,
		Timeout: 10 * time.Second,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.KafkaCircuitEnabled,
			FailureThreshold: cfg.KafkaCircuitFailureCount,
			OpenTimeout:      cfg.KafkaCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.KafkaCircuitHalfOpenMaxReq,
		},
	}, logger)

	ids := idgen.NewUUIDGenerator()

	clockSvc := usecase.NewClockService(matchRepo, logger)
	predictSvc := usecase.NewPredictionService(predictionRepo, matchRepo, groupRepo, clockSvc, ids)
	resultSvc := usecase.NewResultService(resultRepo, matchRepo, ids)

	tieBreak := leaderboard.TieBreak{
		Efficiency: cfg.TieBreakEfficiency,
		HeadToHead: cfg.TieBreakHeadToHead,
	}
	leaderboardSvc := usecase.NewLeaderboardService(leaderboardRepo, settlementRepo, tieBreak)

	scoringCfg := usecase.ScoringConfig{
		ExactPoints:  cfg.ScoringExactPoints,
		WinnerPoints: cfg.ScoringWinnerPoints,
	}
	scoringSvc := usecase.NewScoringService(predictionRepo, settlementRepo, ids, scoringCfg, logger)

	// Settlement fans out per prediction the moment a match's betting window
	// closes, provided a result has already been confirmed for it. Result
	// confirmations, amendments and voids after that point are only written
	// to the outbox by ResultService; nothing in this process consumes those
	// events or calls the scoring engine for them.
	clockSvc.Subscribe(func(ctx context.Context, c usecase.Closure) {
		r, found, err := resultRepo.GetLatestForMatch(ctx, c.MatchID, result.TypeFinal)
		if err != nil {
			logger.ErrorContext(ctx, "deadline gate: load result for closed match failed", "match_id", c.MatchID, "error", err)
			return
		}
		if !found {
			return
		}
		if err := scoringSvc.EnsureMatchSettled(ctx, r); err != nil {
			logger.ErrorContext(ctx, "settle match on window close failed", "match_id", c.MatchID, "error", err)
		}
	})

	outboxCfg := usecase.OutboxPumpConfig{
		Topic:       cfg.KafkaTopic,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		RetryBudget: cfg.RetryBudget,
	}
	outboxSvc := usecase.NewOutboxPumpService(outboxRepo, publisher, outboxCfg, logger)

	app := &App{
		DB:          db,
		Clock:       clockSvc,
		Outbox:      outboxSvc,
		Predict:     predictSvc,
		Result:      resultSvc,
		Scoring:     scoringSvc,
		Leaderboard: leaderboardSvc,
	}
	app.closers = append(app.closers, db.Close, publisher.Close, redisClient.Close)

	return app, nil
}

// Close releases every resource Build opened, in reverse order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run starts the Match Clock scheduler and the Outbox pump as supervised
// goroutines. It blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- a.Clock.Run(ctx) }()
	go func() { errCh <- a.Outbox.Run(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
