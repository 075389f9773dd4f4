// Package export renders processed payloads as Obsidian-flavoured Markdown
// files with deterministic YAML front-matter.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/tracking"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type Service interface {
	Export(ctx context.Context, rawDataID uuid.UUID, directory string) ([]string, error)
}

type service struct {
	rawData       repos.RawDataRepo
	turns         repos.ConversationTurnRepo
	entities      repos.EntityRepo
	relationships repos.RelationshipRepo
	tracker       tracking.Tracker
	clock         func() time.Time
	log           *logger.Logger
}

func NewService(
	rawData repos.RawDataRepo,
	turns repos.ConversationTurnRepo,
	entities repos.EntityRepo,
	relationships repos.RelationshipRepo,
	tracker tracking.Tracker,
	baseLog *logger.Logger,
) Service {
	return &service{
		rawData:       rawData,
		turns:         turns,
		entities:      entities,
		relationships: relationships,
		tracker:       tracker,
		clock:         func() time.Time { return time.Now().UTC() },
		log:           baseLog.With("service", "export"),
	}
}

// NewServiceWithClock pins the export timestamp, which pins the output bytes.
func NewServiceWithClock(
	rawData repos.RawDataRepo,
	turns repos.ConversationTurnRepo,
	entities repos.EntityRepo,
	relationships repos.RelationshipRepo,
	tracker tracking.Tracker,
	clock func() time.Time,
	baseLog *logger.Logger,
) Service {
	s := NewService(rawData, turns, entities, relationships, tracker, baseLog).(*service)
	s.clock = clock
	return s
}

// Export writes one Markdown file for the raw payload and returns the paths
// written. Output depends only on Store contents and the export timestamp.
func (s *service) Export(ctx context.Context, rawDataID uuid.UUID, directory string) ([]string, error) {
	raw, err := s.rawData.GetByID(ctx, nil, rawDataID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: raw data %s", apperr.ErrNotFound, rawDataID)
	}
	if raw.Status == lifecycle.StatusIngested || raw.Status == lifecycle.StatusFailed {
		return nil, fmt.Errorf("%w: raw data %s has no normalized turns to export", apperr.ErrExport, rawDataID)
	}

	runID := s.tracker.StartRun(ctx, "export", "export_"+rawDataID.String())
	s.tracker.SetTag(ctx, runID, "raw_data_id", rawDataID.String())
	tracking.TagRun(ctx, s.tracker, runID, "export")
	log := s.log.WithCorrelation(ctx)
	started := time.Now()

	turns, err := s.turns.ListForRaw(ctx, nil, rawDataID)
	if err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return nil, err
	}
	entities, err := s.entities.ListForRaw(ctx, nil, rawDataID)
	if err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return nil, err
	}
	relationships, err := s.relationships.ListForRaw(ctx, nil, rawDataID)
	if err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return nil, err
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return nil, fmt.Errorf("%w: %v", apperr.ErrExport, err)
	}

	title := exportTitle(raw)
	body := renderDocument(raw, title, turns, len(entities), len(relationships), s.clock())
	path := filepath.Join(directory, slug(title, raw.ID)+".md")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return nil, fmt.Errorf("%w: %v", apperr.ErrExport, err)
	}

	s.tracker.LogMetrics(ctx, runID, map[string]float64{
		"files_exported":   1,
		"duration_seconds": time.Since(started).Seconds(),
	})
	s.tracker.SetTag(ctx, runID, "status", "succeeded")
	s.tracker.EndRun(ctx, runID, tracking.RunStatusFinished)

	log.Info("payload exported", "raw_data_id", rawDataID, "path", path)
	return []string{path}, nil
}

func exportTitle(raw *types.RawData) string {
	if len(raw.Metadata) > 0 {
		var meta map[string]interface{}
		if err := json.Unmarshal(raw.Metadata, &meta); err == nil {
			if title, ok := meta["title"].(string); ok && title != "" {
				return title
			}
		}
	}
	return "Conversation " + raw.ID.String()
}

// slug lowercases the title and collapses every non-alphanumeric run into a
// single dash. When nothing survives, the raw id's hex is used.
func slug(title string, rawDataID uuid.UUID) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return strings.ReplaceAll(rawDataID.String(), "-", "")
	}
	return out
}

func renderDocument(raw *types.RawData, title string, turns []*types.ConversationTurn, entityCount, relationshipCount int, exportedAt time.Time) string {
	meta := map[string]interface{}{}
	if len(raw.Metadata) > 0 {
		_ = json.Unmarshal(raw.Metadata, &meta)
	}
	front := map[string]interface{}{
		"entity_count":       entityCount,
		"exported_at":        exportedAt.Format(time.RFC3339),
		"metadata":           meta,
		"raw_data_id":        raw.ID.String(),
		"relationship_count": relationshipCount,
		"source_type":        raw.SourceType,
		"status":             raw.Status,
		"title":              title,
		"turn_count":         len(turns),
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(frontMatter(front))
	b.WriteString("---\n\n")
	b.WriteString("# " + title + "\n")
	for _, turn := range turns {
		b.WriteString("\n## " + turn.Speaker + " - turn " + fmt.Sprintf("%d", turn.TurnIndex) + "\n")
		b.WriteString(turn.Timestamp.UTC().Format(time.RFC3339) + "\n\n")
		b.WriteString(turn.Text + "\n")
	}
	return b.String()
}
