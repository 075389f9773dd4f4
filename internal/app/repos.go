package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
)

type Repos struct {
	RawData       repos.RawDataRepo
	Turns         repos.ConversationTurnRepo
	Entities      repos.EntityRepo
	Relationships repos.RelationshipRepo
	Candidates    repos.CorrelationCandidateRepo
	Feedback      repos.UserFeedbackRepo
	TrackerRuns   repos.TrackerRunRepo
	JobRuns       repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		RawData:       repos.NewRawDataRepo(db, log),
		Turns:         repos.NewConversationTurnRepo(db, log),
		Entities:      repos.NewEntityRepo(db, log),
		Relationships: repos.NewRelationshipRepo(db, log),
		Candidates:    repos.NewCorrelationCandidateRepo(db, log),
		Feedback:      repos.NewUserFeedbackRepo(db, log),
		TrackerRuns:   repos.NewTrackerRunRepo(db, log),
		JobRuns:       repos.NewJobRunRepo(db, log),
	}
}
