package tracking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

// DBRecorder persists runs into the tracker_runs table. Every failure is
// logged at WARN and swallowed so a broken tracking store never takes the
// pipeline down with it.
type DBRecorder struct {
	runs         repos.TrackerRunRepo
	artifactsURI string
	log          *logger.Logger
}

// NewDBRecorder records runs under artifactsURI (the MLFLOW_TRACKING_URI
// location); each run's artifacts_uri is seeded as <artifactsURI>/<run id>.
// An empty artifactsURI leaves the column unset until LogArtifact.
func NewDBRecorder(runs repos.TrackerRunRepo, artifactsURI string, baseLog *logger.Logger) *DBRecorder {
	return &DBRecorder{
		runs:         runs,
		artifactsURI: strings.TrimRight(artifactsURI, "/"),
		log:          baseLog.With("component", "tracking"),
	}
}

func (t *DBRecorder) StartRun(ctx context.Context, experimentID, runName string) string {
	status := RunStatusRunning
	run := &types.TrackerRun{
		RunID:        uuid.New(),
		ExperimentID: experimentID,
		StartTime:    time.Now().UTC(),
		Status:       &status,
		Tags:         datatypes.JSON([]byte(`{}`)),
		Params:       datatypes.JSON([]byte(`{}`)),
		Metrics:      datatypes.JSON([]byte(`{}`)),
	}
	if runName != "" {
		run.RunName = &runName
	}
	if t.artifactsURI != "" {
		uri := t.artifactsURI + "/" + run.RunID.String()
		run.ArtifactsURI = &uri
	}
	if _, err := t.runs.Create(ctx, nil, run); err != nil {
		t.log.Warn("tracking start_run failed", "experiment_id", experimentID, "error", err)
		return ""
	}
	return run.RunID.String()
}

func (t *DBRecorder) LogParams(ctx context.Context, runID string, params map[string]interface{}) {
	if len(params) == 0 {
		return
	}
	t.mergeColumn(ctx, runID, "params", func(existing map[string]interface{}) {
		for k, v := range params {
			existing[k] = v
		}
	})
}

func (t *DBRecorder) LogMetrics(ctx context.Context, runID string, metrics map[string]float64) {
	if len(metrics) == 0 {
		return
	}
	t.mergeColumn(ctx, runID, "metrics", func(existing map[string]interface{}) {
		for k, v := range metrics {
			existing[k] = v
		}
	})
}

func (t *DBRecorder) SetTag(ctx context.Context, runID, key, value string) {
	if key == "" {
		return
	}
	t.mergeColumn(ctx, runID, "tags", func(existing map[string]interface{}) {
		existing[key] = value
	})
}

func (t *DBRecorder) LogArtifact(ctx context.Context, runID, artifactsURI string) {
	if runID == "" || artifactsURI == "" {
		return
	}
	if err := t.runs.UpdateFields(ctx, nil, runID, map[string]interface{}{
		"artifacts_uri": artifactsURI,
	}); err != nil {
		t.log.Warn("tracking log_artifact failed", "run_id", runID, "error", err)
	}
}

func (t *DBRecorder) EndRun(ctx context.Context, runID, status string) {
	if runID == "" {
		return
	}
	if status == "" {
		status = RunStatusFinished
	}
	if err := t.runs.UpdateFields(ctx, nil, runID, map[string]interface{}{
		"status":   status,
		"end_time": time.Now().UTC(),
	}); err != nil {
		t.log.Warn("tracking end_run failed", "run_id", runID, "error", err)
	}
}

// mergeColumn read-modify-writes one JSON column of the run row. Runs are
// touched by a single worker at a time, so the unguarded merge is safe.
func (t *DBRecorder) mergeColumn(ctx context.Context, runID, column string, apply func(map[string]interface{})) {
	if runID == "" {
		return
	}
	run, err := t.runs.GetByRunID(ctx, nil, runID)
	if err != nil || run == nil {
		t.log.Warn("tracking merge load failed", "run_id", runID, "column", column, "error", err)
		return
	}
	var existing map[string]interface{}
	raw := t.columnValue(run, column)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &existing); err != nil {
			t.log.Warn("tracking merge decode failed", "run_id", runID, "column", column, "error", err)
		}
	}
	if existing == nil {
		existing = map[string]interface{}{}
	}
	apply(existing)
	merged, err := json.Marshal(existing)
	if err != nil {
		t.log.Warn("tracking merge encode failed", "run_id", runID, "column", column, "error", err)
		return
	}
	if err := t.runs.UpdateFields(ctx, nil, runID, map[string]interface{}{
		column: datatypes.JSON(merged),
	}); err != nil {
		t.log.Warn("tracking merge write failed", "run_id", runID, "column", column, "error", err)
	}
}

func (t *DBRecorder) columnValue(run *types.TrackerRun, column string) []byte {
	switch column {
	case "params":
		return run.Params
	case "metrics":
		return run.Metrics
	case "tags":
		return run.Tags
	}
	return nil
}
