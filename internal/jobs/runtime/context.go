package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/ctxutil"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

// Context is the execution handle for one claimed job run. It wraps the
// job_run row, the decoded payload and the only sanctioned ways to report
// progress or terminate the run. Handlers never write job_run directly.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	payload map[string]any
}

// NewContext decodes the payload eagerly and promotes the correlation id
// from the payload into the context's trace data, so every log line of the
// handler carries it.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo) *Context {
	c := &Context{
		Ctx:  ctx,
		DB:   db,
		Job:  job,
		Repo: repo,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil || c.Job == nil {
		return
	}
	correlationID := ""
	if c.Job.CorrelationID != nil {
		correlationID = strings.TrimSpace(*c.Job.CorrelationID)
	}
	if correlationID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		CorrelationID: correlationID,
	})
}

// Payload returns the decoded payload map. Never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads a payload field and parses it as a UUID. Returns
// (uuid.Nil, false) when missing or unparseable.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// PayloadFloat reads a numeric payload field.
func (c *Context) PayloadFloat(key string) (float64, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// PayloadString reads a string payload field, trimmed.
func (c *Context) PayloadString(key string) (string, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return s, s != ""
}

// Progress records the stage the run is in and refreshes the heartbeat.
// Canceled runs are never overwritten; callers learn that by the run staying
// canceled in storage.
func (c *Context) Progress(stage string) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC()
	ok, _ := c.Repo.UpdateFieldsUnlessStatus(ctx, nil, c.Job.ID, map[string]interface{}{
		"stage":        stage,
		"heartbeat_at": now,
		"updated_at":   now,
	}, []string{types.JobStatusCanceled})
	if !ok {
		return
	}
	c.Job.Stage = stage
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
}

// Fail marks the run failed at the given stage. A non-nil retryAt schedules
// a redelivery; nil makes the failure terminal.
func (c *Context) Fail(stage string, err error, retryAt *time.Time) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	updates := map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}
	if retryAt != nil {
		updates["next_retry_at"] = *retryAt
	} else {
		updates["next_retry_at"] = nil
	}
	ok, _ := c.Repo.UpdateFieldsUnlessStatus(ctx, nil, c.Job.ID, updates, []string{types.JobStatusCanceled})
	if !ok {
		return
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.NextRetryAt = retryAt
	c.Job.UpdatedAt = now
}

// Succeed marks the run terminally succeeded and persists its result.
func (c *Context) Succeed(stage string, result map[string]any) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC()
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte(`{}`)
	}
	updates := map[string]interface{}{
		"status":        types.JobStatusSucceeded,
		"stage":         stage,
		"error":         "",
		"result":        datatypes.JSON(raw),
		"locked_at":     nil,
		"next_retry_at": nil,
		"updated_at":    now,
	}
	ok, _ := c.Repo.UpdateFieldsUnlessStatus(ctx, nil, c.Job.ID, updates, []string{types.JobStatusCanceled})
	if !ok {
		return
	}
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Stage = stage
	c.Job.Error = ""
	c.Job.Result = datatypes.JSON(raw)
	c.Job.LockedAt = nil
	c.Job.NextRetryAt = nil
	c.Job.UpdatedAt = now
}
