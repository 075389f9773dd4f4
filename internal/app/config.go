package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/envutil"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
)

// Config is the process configuration, read once at startup. Prod deployments
// fail fast on a weak secret, a sqlite store, or DEBUG logging.
type Config struct {
	AppEnv      string
	DatabaseURL string
	RedisURL    string
	TrackerURI  string
	SecretKey   string
	LogLevel    string
	APIRoot     string
	Port        string
	ExportDir   string

	WorkerConcurrency      int
	WorkerMaxAttempts      int
	WorkerSoftTimeLimit    time.Duration
	WorkerHardTimeLimit    time.Duration
	WorkerRetryDelay       time.Duration
	WorkerRetryBackoffMax  time.Duration
	WorkerMaxTasksPerChild int
}

const defaultSecretKey = "change-me"

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		AppEnv:      strings.ToLower(envutil.GetEnv("APP_ENV", "local", log)),
		DatabaseURL: envutil.GetEnv("DATABASE_URL", "", log),
		RedisURL:    envutil.GetEnv("REDIS_URL", envutil.GetEnv("REDIS_ADDR", "", log), log),
		TrackerURI:  envutil.GetEnv("MLFLOW_TRACKING_URI", "", log),
		SecretKey:   envutil.GetEnv("SECRET_KEY", defaultSecretKey, log),
		LogLevel:    strings.ToUpper(envutil.GetEnv("LOG_LEVEL", "INFO", log)),
		APIRoot:     envutil.GetEnv("API_ROOT", "/api/v1", log),
		Port:        envutil.GetEnv("PORT", "8080", log),
		ExportDir:   envutil.GetEnv("EXPORT_DIR", "./exports", log),

		WorkerConcurrency:      envutil.GetEnvAsInt("WORKER_CONCURRENCY", 2, log),
		WorkerMaxAttempts:      envutil.GetEnvAsInt("WORKER_MAX_ATTEMPTS", 3, log),
		WorkerSoftTimeLimit:    secondsEnv("WORKER_TASK_SOFT_TIME_LIMIT", 600, log),
		WorkerHardTimeLimit:    secondsEnv("WORKER_TASK_TIME_LIMIT", 900, log),
		WorkerRetryDelay:       secondsEnv("WORKER_TASK_RETRY_DELAY", 5, log),
		WorkerRetryBackoffMax:  secondsEnv("WORKER_TASK_RETRY_BACKOFF_MAX", 600, log),
		WorkerMaxTasksPerChild: envutil.GetEnvAsInt("WORKER_MAX_TASKS_PER_CHILD", 200, log),
	}

	switch cfg.AppEnv {
	case "local", "test", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (want local, test, or prod)", cfg.AppEnv)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.AppEnv != "test" {
			return Config{}, fmt.Errorf("DATABASE_URL is required")
		}
		// Shared cache keeps the pooled sqlite connections on one database.
		cfg.DatabaseURL = "file::memory:?cache=shared"
	}

	// Time limits below a minute make stale-reclaim race normal handlers.
	if cfg.WorkerSoftTimeLimit < 60*time.Second {
		cfg.WorkerSoftTimeLimit = 60 * time.Second
	}
	if cfg.WorkerHardTimeLimit < 60*time.Second {
		cfg.WorkerHardTimeLimit = 60 * time.Second
	}
	if cfg.WorkerHardTimeLimit <= cfg.WorkerSoftTimeLimit {
		cfg.WorkerHardTimeLimit = cfg.WorkerSoftTimeLimit + 60*time.Second
	}

	if cfg.AppEnv == "prod" {
		if len(cfg.SecretKey) < 32 || cfg.SecretKey == defaultSecretKey {
			return Config{}, fmt.Errorf("APP_ENV=prod requires SECRET_KEY of at least 32 non-placeholder characters")
		}
		if strings.HasPrefix(cfg.DatabaseURL, "sqlite://") || strings.HasPrefix(cfg.DatabaseURL, "file:") {
			return Config{}, fmt.Errorf("APP_ENV=prod forbids sqlite DATABASE_URL")
		}
		if cfg.LogLevel == "DEBUG" {
			return Config{}, fmt.Errorf("APP_ENV=prod forbids LOG_LEVEL=DEBUG")
		}
	}
	return cfg, nil
}

func secondsEnv(key string, def int, log *logger.Logger) time.Duration {
	return time.Duration(envutil.GetEnvAsInt(key, def, log)) * time.Second
}
