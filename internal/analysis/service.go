// Package analysis runs sentiment classification over normalized turns and
// persists the verdicts as SENTIMENT entities.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/tracking"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

// flushThreshold bounds how many pending entities accumulate before a batch
// write.
const flushThreshold = 100

type Service interface {
	Analyze(ctx context.Context, rawDataID uuid.UUID) (int, error)
}

type service struct {
	rawData    repos.RawDataRepo
	turns      repos.ConversationTurnRepo
	entities   repos.EntityRepo
	classifier Classifier
	tracker    tracking.Tracker
	log        *logger.Logger
}

func NewService(
	rawData repos.RawDataRepo,
	turns repos.ConversationTurnRepo,
	entities repos.EntityRepo,
	classifier Classifier,
	tracker tracking.Tracker,
	baseLog *logger.Logger,
) Service {
	return &service{
		rawData:    rawData,
		turns:      turns,
		entities:   entities,
		classifier: classifier,
		tracker:    tracker,
		log:        baseLog.With("service", "analysis"),
	}
}

// Analyze streams the turns of one raw payload in conversation order,
// classifies each and writes SENTIMENT entities in batches. A payload with
// no turns is marked ANALYSIS_FAILED.
func (s *service) Analyze(ctx context.Context, rawDataID uuid.UUID) (int, error) {
	raw, err := s.rawData.GetByID(ctx, nil, rawDataID)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, fmt.Errorf("%w: raw data %s", apperr.ErrNotFound, rawDataID)
	}

	runID := s.tracker.StartRun(ctx, "analysis", "analyze_"+rawDataID.String())
	s.tracker.SetTag(ctx, runID, "raw_data_id", rawDataID.String())
	s.tracker.SetTag(ctx, runID, "source_type", raw.SourceType)
	tracking.TagRun(ctx, s.tracker, runID, "analyze")
	log := s.log.WithCorrelation(ctx)
	started := time.Now()

	var (
		pending  []*types.Entity
		total    int
		positive int
		negative int
		neutral  int
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if _, err := s.entities.Create(ctx, nil, pending); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	err = s.turns.StreamForRaw(ctx, nil, rawDataID, func(chunk []*types.ConversationTurn) error {
		for _, turn := range chunk {
			verdict := s.classifier.Classify(turn.Text)
			entity, err := sentimentEntity(turn.ID, verdict)
			if err != nil {
				return err
			}
			pending = append(pending, entity)
			total++
			switch verdict.Label {
			case LabelPositive:
				positive++
			case LabelNegative:
				negative++
			default:
				neutral++
			}
			if len(pending) >= flushThreshold {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.tracker.SetTag(ctx, runID, "status", "failed")
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return 0, err
	}

	if total == 0 {
		now := time.Now().UTC()
		if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusAnalysisFailed, &now); err != nil {
			return 0, err
		}
		s.tracker.SetTag(ctx, runID, "status", "failed")
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return 0, fmt.Errorf("%w: no turns to analyze", apperr.ErrAnalysis)
	}
	if err := flush(); err != nil {
		s.tracker.SetTag(ctx, runID, "status", "failed")
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return 0, err
	}

	now := time.Now().UTC()
	if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusAnalyzed, &now); err != nil {
		return 0, err
	}

	denom := float64(total)
	s.tracker.LogMetrics(ctx, runID, map[string]float64{
		"turns_analyzed":   float64(total),
		"positive_ratio":   float64(positive) / denom,
		"negative_ratio":   float64(negative) / denom,
		"neutral_ratio":    float64(neutral) / denom,
		"duration_seconds": time.Since(started).Seconds(),
	})
	s.tracker.SetTag(ctx, runID, "status", "succeeded")
	s.tracker.EndRun(ctx, runID, tracking.RunStatusFinished)

	log.Info("payload analyzed",
		"raw_data_id", rawDataID, "turns", total,
		"positive", positive, "negative", negative, "neutral", neutral)
	return total, nil
}

func sentimentEntity(turnID uuid.UUID, verdict Classification) (*types.Entity, error) {
	meta, err := json.Marshal(map[string]interface{}{
		"positive_matches": verdict.PositiveMatches,
		"negative_matches": verdict.NegativeMatches,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAnalysis, err)
	}
	label := verdict.Label
	score := verdict.Score
	return &types.Entity{
		ID:                 uuid.New(),
		ConversationTurnID: turnID,
		Type:               "SENTIMENT",
		Value:              label,
		Sentiment:          &label,
		Relevance:          &score,
		Metadata:           datatypes.JSON(meta),
	}, nil
}
