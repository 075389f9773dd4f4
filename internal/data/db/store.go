package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
)

type StoreService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewStoreService opens the store named by databaseURL. Postgres DSNs
// (postgres:// or postgresql://) are the production path; sqlite URLs
// (sqlite:///path or file:path) back local and test environments.
func NewStoreService(databaseURL string, logg *logger.Logger) (*StoreService, error) {
	serviceLog := logg.With("service", "StoreService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	// TranslateError maps driver duplicate-key failures onto
	// gorm.ErrDuplicatedKey so the worker can tell constraint violations
	// from transient I/O.
	cfg := &gorm.Config{Logger: gormLog, TranslateError: true}

	var dial gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		dial = postgres.Open(databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dial = sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	case databaseURL == ":memory:", strings.HasPrefix(databaseURL, "file:"):
		dial = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", databaseURL)
	}

	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	if dial.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
		}
	} else {
		// SQLite needs FK enforcement switched on per connection.
		if err := db.Exec(`PRAGMA foreign_keys = ON;`).Error; err != nil {
			return nil, fmt.Errorf("failed to enable sqlite foreign keys: %w", err)
		}
	}

	return &StoreService{db: db, log: serviceLog}, nil
}

func (s *StoreService) DB() *gorm.DB { return s.db }
