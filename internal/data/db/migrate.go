package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Pipeline core
		&types.RawData{},
		&types.ConversationTurn{},
		&types.Entity{},
		&types.Relationship{},
		&types.CorrelationCandidate{},

		// Async surfaces
		&types.UserFeedback{},
		&types.JobRun{},

		// Experiment tracking mirror
		&types.TrackerRun{},
	)
}

func (s *StoreService) AutoMigrateAll() error {
	s.log.Info("Auto migrating store tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
