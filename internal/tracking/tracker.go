// Package tracking records stage-level experiment runs: parameters, metrics,
// tags and artifact locations for each pipeline stage execution. Recording is
// best effort by contract; a tracker never fails the stage that calls it.
package tracking

import (
	"context"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/ctxutil"
)

const (
	RunStatusRunning  = "RUNNING"
	RunStatusFinished = "FINISHED"
	RunStatusFailed   = "FAILED"
)

// Tracker is the recording surface handed to pipeline stages. StartRun
// returns an opaque run id; the zero value means the run could not be
// opened and subsequent calls with it are no-ops.
type Tracker interface {
	StartRun(ctx context.Context, experimentID, runName string) string
	LogParams(ctx context.Context, runID string, params map[string]interface{})
	LogMetrics(ctx context.Context, runID string, metrics map[string]float64)
	SetTag(ctx context.Context, runID, key, value string)
	LogArtifact(ctx context.Context, runID, artifactsURI string)
	EndRun(ctx context.Context, runID, status string)
}

// TagRun applies the tags every stage run carries: the task name, the
// executing component, and the request's correlation id when the context
// holds one.
func TagRun(ctx context.Context, tr Tracker, runID, taskName string) {
	tr.SetTag(ctx, runID, "task_name", taskName)
	tr.SetTag(ctx, runID, "component", "worker_task")
	if cid := ctxutil.CorrelationID(ctx); cid != "" {
		tr.SetTag(ctx, runID, "correlation_id", cid)
	}
}

// Nop discards every call. Used when tracking is disabled and in tests.
type Nop struct{}

func NewNop() Tracker { return Nop{} }

func (Nop) StartRun(context.Context, string, string) string          { return "" }
func (Nop) LogParams(context.Context, string, map[string]interface{}) {}
func (Nop) LogMetrics(context.Context, string, map[string]float64)    {}
func (Nop) SetTag(context.Context, string, string, string)            {}
func (Nop) LogArtifact(context.Context, string, string)               {}
func (Nop) EndRun(context.Context, string, string)                    {}
