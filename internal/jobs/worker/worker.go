// Package worker drives the durable job queue: it claims runnable job_runs,
// dispatches them to registered handlers and applies the retry policy.
package worker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

// Options tunes the pool. Zero values fall back to the defaults below.
type Options struct {
	Concurrency       int
	MaxAttempts       int
	RetryDelay        time.Duration // base delay before the first retry
	RetryBackoffMax   time.Duration // cap on the exponential backoff
	SoftTimeLimit     time.Duration // context deadline handed to handlers
	HardTimeLimit     time.Duration // stale-heartbeat reclaim threshold
	MaxTasksPerChild  int           // executor recycles after this many runs
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	if o.RetryBackoffMax <= 0 {
		o.RetryBackoffMax = 600 * time.Second
	}
	if o.SoftTimeLimit <= 0 {
		o.SoftTimeLimit = 600 * time.Second
	}
	if o.HardTimeLimit <= 0 {
		o.HardTimeLimit = 900 * time.Second
	}
	if o.MaxTasksPerChild <= 0 {
		o.MaxTasksPerChild = 200
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 15 * time.Second
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	opts     Options
	nudge    chan struct{}
}

func New(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, opts Options) *Worker {
	opts.withDefaults()
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		opts:     opts,
		nudge:    make(chan struct{}, 1),
	}
}

// Nudge wakes an idle executor without waiting out the poll interval. Safe
// to call from any goroutine; extra nudges coalesce.
func (w *Worker) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// Start runs the pool until ctx is canceled. Each executor claims one run at
// a time and recycles itself after MaxTasksPerChild runs, so slow leaks in
// handler code cannot accumulate forever.
func (w *Worker) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		id := i
		g.Go(func() error {
			for {
				if err := w.executorLoop(ctx, id); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				w.log.Debug("executor recycled", "executor", id)
			}
		})
	}
	return g.Wait()
}

// executorLoop processes up to MaxTasksPerChild runs, then returns so the
// caller spawns a fresh pass.
func (w *Worker) executorLoop(ctx context.Context, id int) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	tasks := 0
	for tasks < w.opts.MaxTasksPerChild {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-w.nudge:
		}
		job, err := w.repo.ClaimNextRunnable(ctx, w.opts.MaxAttempts, w.opts.HardTimeLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Warn("claim failed", "executor", id, "error", err)
			continue
		}
		if job == nil {
			continue
		}
		tasks++
		w.execute(ctx, job)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	// The soft limit is the deadline handlers observe; the hard limit is
	// enforced by stale-heartbeat reclaim if the handler wedges entirely.
	runCtx, cancel := context.WithTimeout(ctx, w.opts.SoftTimeLimit)
	defer cancel()

	hbCtx, stopHeartbeat := context.WithCancel(runCtx)
	go w.heartbeatLoop(hbCtx, job)
	defer stopHeartbeat()

	jc := runtime.NewContext(runCtx, w.db, job, w.repo)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("no handler registered", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType), nil)
		return
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		runErr = h.Run(jc)
	}()
	stopHeartbeat()

	if runErr == nil {
		if job.Status == types.JobStatusRunning {
			// Handler returned nil without terminating the run itself.
			jc.Succeed(job.Stage, nil)
		}
		return
	}
	w.resolveFailure(jc, job, runErr)
}

// resolveFailure applies the retry policy: transient failures with attempts
// left get an exponential backoff with jitter; everything else is terminal.
func (w *Worker) resolveFailure(jc *runtime.Context, job *types.JobRun, runErr error) {
	stage := job.Stage
	if stage == "" {
		stage = "run"
	}
	if apperr.Transient(runErr) && job.Attempts < w.opts.MaxAttempts {
		retryAt := time.Now().UTC().Add(w.backoff(job.Attempts))
		w.log.Warn("job failed, retry scheduled",
			"job_id", job.ID, "job_type", job.JobType,
			"attempts", job.Attempts, "retry_at", retryAt, "error", runErr)
		jc.Fail(stage, runErr, &retryAt)
		return
	}
	w.log.Error("job failed terminally",
		"job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", runErr)
	jc.Fail(stage, runErr, nil)
}

// backoff doubles the base delay per prior attempt, caps it, then applies
// ±20% jitter so redeliveries from one incident spread out.
func (w *Worker) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := float64(w.opts.RetryDelay) * math.Pow(2, float64(attempts-1))
	if max := float64(w.opts.RetryBackoffMax); delay > max {
		delay = max
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(delay * jitter)
}

func (w *Worker) heartbeatLoop(ctx context.Context, job *types.JobRun) {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.repo.Heartbeat(ctx, nil, job.ID); err != nil && ctx.Err() == nil {
				w.log.Warn("heartbeat failed", "job_id", job.ID, "error", err)
			}
		}
	}
}
