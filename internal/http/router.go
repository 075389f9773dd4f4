package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/nexusknowledge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/nexusknowledge-backend/internal/http/middleware"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	// APIRoot is the mount prefix for every route except the health check.
	APIRoot string

	IngestHandler   *httpH.IngestHandler
	JobHandler      *httpH.JobHandler
	SearchHandler   *httpH.SearchHandler
	FeedbackHandler *httpH.FeedbackHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	root := cfg.APIRoot
	if root == "" {
		root = "/api/v1"
	}
	api := r.Group(root)
	{
		if cfg.IngestHandler != nil {
			api.POST("/ingest", cfg.IngestHandler.Ingest)
			api.POST("/ingest/markdown", cfg.IngestHandler.IngestMarkdown)
			api.GET("/raw/:id", cfg.IngestHandler.GetRaw)
			api.GET("/raw/:id/turns", cfg.IngestHandler.ListTurns)
		}

		if cfg.JobHandler != nil {
			api.POST("/raw/:id/stages/:stage", cfg.JobHandler.QueueStage)
			api.GET("/raw/:id/jobs", cfg.JobHandler.ListJobsForRaw)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.GET("/queue/stats", cfg.JobHandler.QueueStats)
		}

		if cfg.SearchHandler != nil {
			api.GET("/search", cfg.SearchHandler.Search)
		}

		if cfg.FeedbackHandler != nil {
			api.POST("/feedback", cfg.FeedbackHandler.Submit)
			api.GET("/feedback", cfg.FeedbackHandler.List)
			api.GET("/feedback/:id", cfg.FeedbackHandler.Get)
			api.PATCH("/feedback/:id/status", cfg.FeedbackHandler.UpdateStatus)
		}
	}

	return r
}
