package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	redisbus "github.com/yungbote/nexusknowledge-backend/internal/clients/redis"
	internalhttp "github.com/yungbote/nexusknowledge-backend/internal/http"
	httpH "github.com/yungbote/nexusknowledge-backend/internal/http/handlers"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, db *gorm.DB, bus redisbus.JobBus, r Repos, s Services) *gin.Engine {
	return internalhttp.NewRouter(internalhttp.RouterConfig{
		Log:             log,
		APIRoot:         cfg.APIRoot,
		IngestHandler:   httpH.NewIngestHandler(s.Ingestion, r.RawData, r.Turns, s.Jobs),
		JobHandler:      httpH.NewJobHandler(s.Jobs, r.RawData),
		SearchHandler:   httpH.NewSearchHandler(s.Search),
		FeedbackHandler: httpH.NewFeedbackHandler(s.Feedback),
		HealthHandler:   httpH.NewHealthHandler(db, bus),
	})
}
