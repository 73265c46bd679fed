package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_DefaultsByEnv(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SwaggerEnabled {
		t.Fatalf("expected SwaggerEnabled=false by default in prod")
	}
	if cfg.ScoringExactPoints != 3 || cfg.ScoringWinnerPoints != 1 {
		t.Fatalf("unexpected scoring defaults: exact=%d winner=%d", cfg.ScoringExactPoints, cfg.ScoringWinnerPoints)
	}
	if cfg.WindowDefaultClosure != "matchStart" {
		t.Fatalf("unexpected window default closure: %q", cfg.WindowDefaultClosure)
	}
	if !cfg.TieBreakEfficiency {
		t.Fatalf("expected TieBreakEfficiency=true (fewerPredictionsHigher) by default")
	}
}

func TestLoad_PprofDefaultsAddrWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PPROF_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PprofAddr != ":6060" {
		t.Fatalf("unexpected PprofAddr: %q", cfg.PprofAddr)
	}
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("APP_SERVICE_NAME", "predictor-league-worker")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PyroscopeAppName != "predictor-league-worker" {
		t.Fatalf("unexpected PyroscopeAppName: %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_ScoringPointsValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("SCORING_EXACT_POINTS", "1")
	t.Setenv("SCORING_WINNER_POINTS", "1")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when SCORING_WINNER_POINTS >= SCORING_EXACT_POINTS")
	}
}

func TestLoad_WindowClosureParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("WINDOW_DEFAULT_CLOSURE", "minutesBeforeStart:15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowDefaultClosure != "minutesBeforeStart" || cfg.WindowMinutesBeforeStart != 15 {
		t.Fatalf("unexpected window closure: %q %d", cfg.WindowDefaultClosure, cfg.WindowMinutesBeforeStart)
	}
}

func TestLoad_WindowClosureRejectsInvalidValue(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("WINDOW_DEFAULT_CLOSURE", "minutesBeforeStart:0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-positive minutesBeforeStart")
	}
}

func TestLoad_TieBreakEfficiencyParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("TIEBREAK_EFFICIENCY", "morePredictionsHigher")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TieBreakEfficiency {
		t.Fatalf("expected TieBreakEfficiency=false for morePredictionsHigher")
	}
}

func TestLoad_RetryDelayValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("RETRY_BASE_DELAY", "10s")
	t.Setenv("RETRY_MAX_DELAY", "5s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when RETRY_MAX_DELAY < RETRY_BASE_DELAY")
	}
}

func TestLoad_KafkaBrokersParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,broker-3:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"broker-1:9092", "broker-2:9092", "broker-3:9092"}
	if len(cfg.KafkaBrokers) != len(want) {
		t.Fatalf("unexpected KafkaBrokers: %v", cfg.KafkaBrokers)
	}
	for i, b := range want {
		if cfg.KafkaBrokers[i] != b {
			t.Fatalf("unexpected KafkaBrokers[%d]: got %q want %q", i, cfg.KafkaBrokers[i], b)
		}
	}
}

func TestLoad_DBDisablePreparedBinaryParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("DB_DISABLE_PREPARED_BINARY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DBDisablePreparedBinary {
		t.Fatalf("expected DBDisablePreparedBinary=true")
	}
}

func TestLoad_LeaderboardStalenessValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("LEADERBOARD_STALENESS_MAX_SECONDS", "-1")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative LEADERBOARD_STALENESS_MAX_SECONDS")
	}
}

func TestLoad_LogLevelParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("APP_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != parseLogLevel("warn") {
		t.Fatalf("unexpected LogLevel: %v", cfg.LogLevel)
	}
}

func TestLoad_KafkaCircuitDefaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.KafkaCircuitEnabled {
		t.Fatalf("expected KafkaCircuitEnabled=true by default")
	}
	if cfg.KafkaCircuitOpenTimeout != 30*time.Second {
		t.Fatalf("unexpected KafkaCircuitOpenTimeout: %s", cfg.KafkaCircuitOpenTimeout)
	}
}
