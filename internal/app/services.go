package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/analysis"
	redisbus "github.com/yungbote/nexusknowledge-backend/internal/clients/redis"
	"github.com/yungbote/nexusknowledge-backend/internal/correlation"
	"github.com/yungbote/nexusknowledge-backend/internal/export"
	"github.com/yungbote/nexusknowledge-backend/internal/ingestion"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/pipeline"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/worker"
	"github.com/yungbote/nexusknowledge-backend/internal/normalization"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/search"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
	"github.com/yungbote/nexusknowledge-backend/internal/tracking"
)

type Services struct {
	Ingestion  ingestion.Service
	Normalizer normalization.Service
	Analyzer   analysis.Service
	Correlator correlation.Service
	Search     search.Service
	Exporter   export.Service
	Tracker    tracking.Tracker
	Jobs       services.JobService
	Feedback   services.FeedbackService
	JobWorker  *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, bus redisbus.JobBus) (Services, error) {
	tracker := tracking.Tracker(tracking.NewDBRecorder(r.TrackerRuns, cfg.TrackerURI, log))

	registry := runtime.NewRegistry()
	jobWorker := worker.New(db, log, r.JobRuns, registry, worker.Options{
		Concurrency:      cfg.WorkerConcurrency,
		MaxAttempts:      cfg.WorkerMaxAttempts,
		RetryDelay:       cfg.WorkerRetryDelay,
		RetryBackoffMax:  cfg.WorkerRetryBackoffMax,
		SoftTimeLimit:    cfg.WorkerSoftTimeLimit,
		HardTimeLimit:    cfg.WorkerHardTimeLimit,
		MaxTasksPerChild: cfg.WorkerMaxTasksPerChild,
	})

	jobService := services.NewJobService(r.JobRuns, bus, jobWorker.Nudge, log)
	feedbackService := services.NewFeedbackService(r.Feedback, jobService, log)

	normalizer := normalization.NewService(r.RawData, r.Turns, log)
	analyzer := analysis.NewService(r.RawData, r.Turns, r.Entities, analysis.NewLexiconClassifier(), tracker, log)
	correlator := correlation.NewService(r.RawData, r.Turns, r.Entities, r.Candidates, r.Relationships, tracker, log)
	searcher := search.NewService(r.Turns, r.Entities, log)
	exporter := export.NewService(r.RawData, r.Turns, r.Entities, r.Relationships, tracker, log)
	ingester := ingestion.NewService(r.RawData, log)

	handlers := []runtime.Handler{
		pipeline.NewNormalizeHandler(normalizer, jobService, log),
		pipeline.NewAnalyzeHandler(analyzer, jobService, log),
		pipeline.NewGenerateCandidatesHandler(correlator, r.RawData, jobService, log),
		pipeline.NewFuseCandidatesHandler(correlator, log),
		pipeline.NewExportHandler(exporter, cfg.ExportDir, log),
		pipeline.NewPersistFeedbackHandler(feedbackService, log),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return Services{}, err
		}
	}

	return Services{
		Ingestion:  ingester,
		Normalizer: normalizer,
		Analyzer:   analyzer,
		Correlator: correlator,
		Search:     searcher,
		Exporter:   exporter,
		Tracker:    tracker,
		Jobs:       jobService,
		Feedback:   feedbackService,
		JobWorker:  jobWorker,
	}, nil
}
