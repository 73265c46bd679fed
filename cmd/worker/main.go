package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riskibarqy/predictor-league/internal/app"
	"github.com/riskibarqy/predictor-league/internal/config"
	"github.com/riskibarqy/predictor-league/internal/observability"
	"github.com/riskibarqy/predictor-league/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)

	closeUptrace, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	defer closeUptrace(context.Background())

	stopPyroscope, err := observability.InitPyroscope(cfg, slog.Default())
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	if stopPyroscope != nil {
		defer stopPyroscope()
	}

	pprofSrv, err := observability.StartPprofServer(cfg, slog.Default())
	if err != nil {
		logger.Error("start pprof server", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("worker starting", "service", cfg.ServiceName, "env", cfg.AppEnv)
	runErr := a.Run(ctx)

	if err := observability.StopPprofServer(pprofSrv, slog.Default(), 5*time.Second); err != nil {
		logger.Error("stop pprof server", "error", err)
	}

	if err := a.Close(); err != nil {
		logger.Error("close app", "error", err)
	}

	if runErr != nil {
		logger.Error("worker stopped with error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
