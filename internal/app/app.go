// Package app wires configuration, store, repos, services, workers and the
// HTTP router into one runnable process.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	redisbus "github.com/yungbote/nexusknowledge-backend/internal/clients/redis"
	"github.com/yungbote/nexusknowledge-backend/internal/data/db"
	"github.com/yungbote/nexusknowledge-backend/internal/observability"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services

	bus          redisbus.JobBus
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode, os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "nexusknowledge",
		Environment: cfg.AppEnv,
		Version:     os.Getenv("APP_VERSION"),
	})

	store, err := db.NewStoreService(cfg.DatabaseURL, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("store automigrate: %w", err)
	}
	theDB := store.DB()

	var bus redisbus.JobBus
	if strings.TrimSpace(cfg.RedisURL) != "" {
		b, err := redisbus.NewJobBus(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis job bus: %w", err)
		}
		bus = b
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, bus)
	if err != nil {
		log.Sync()
		return nil, err
	}
	router := wireRouter(log, cfg, theDB, bus, reposet, serviceset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		bus:          bus,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the worker pool and, when redis is configured, the nudge
// listener that wakes executors on enqueue.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.JobWorker != nil {
		go func() {
			if err := a.Services.JobWorker.Start(ctx); err != nil {
				a.Log.Error("job worker stopped", "error", err)
			}
		}()
	}
	if a.bus != nil && a.Services.JobWorker != nil {
		if err := a.bus.StartListener(ctx, func(string) { a.Services.JobWorker.Nudge() }); err != nil {
			a.Log.Warn("job bus listener failed to start", "error", err)
		}
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
