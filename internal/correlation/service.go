// Package correlation proposes candidate links between same-sentiment turns
// and fuses them into a relationship graph.
package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
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

// Default score thresholds. Generation is permissive so fusion has material
// to reject; fusion is the stricter gate.
const (
	DefaultGenerateMinScore = 0.05
	DefaultFuseMinScore     = 0.2
)

// FuseResult reports how fusion partitioned the pending candidates.
type FuseResult struct {
	Confirmed int
	Rejected  int
}

type Service interface {
	GenerateCandidates(ctx context.Context, rawDataID uuid.UUID, minScore float64) (int, error)
	FuseCandidates(ctx context.Context, rawDataID uuid.UUID, minScore float64) (*FuseResult, error)
}

type service struct {
	rawData       repos.RawDataRepo
	turns         repos.ConversationTurnRepo
	entities      repos.EntityRepo
	candidates    repos.CorrelationCandidateRepo
	relationships repos.RelationshipRepo
	tracker       tracking.Tracker
	log           *logger.Logger
}

func NewService(
	rawData repos.RawDataRepo,
	turns repos.ConversationTurnRepo,
	entities repos.EntityRepo,
	candidates repos.CorrelationCandidateRepo,
	relationships repos.RelationshipRepo,
	tracker tracking.Tracker,
	baseLog *logger.Logger,
) Service {
	return &service{
		rawData:       rawData,
		turns:         turns,
		entities:      entities,
		candidates:    candidates,
		relationships: relationships,
		tracker:       tracker,
		log:           baseLog.With("service", "correlation"),
	}
}

// GenerateCandidates pairs up sentiment entities that share a label and
// scores each pair by relevance proximity. Pairs already proposed in earlier
// runs are skipped, so re-running is idempotent. A payload with no sentiment
// entities or no turns is marked CORRELATION_SKIPPED and the skip surfaces
// as a correlation error.
func (s *service) GenerateCandidates(ctx context.Context, rawDataID uuid.UUID, minScore float64) (int, error) {
	if minScore <= 0 {
		minScore = DefaultGenerateMinScore
	}
	raw, err := s.rawData.GetByID(ctx, nil, rawDataID)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, fmt.Errorf("%w: raw data %s", apperr.ErrNotFound, rawDataID)
	}

	runID := s.tracker.StartRun(ctx, "correlation", "generate_candidates_"+rawDataID.String())
	s.tracker.SetTag(ctx, runID, "raw_data_id", rawDataID.String())
	tracking.TagRun(ctx, s.tracker, runID, "generate_candidates")
	log := s.log.WithCorrelation(ctx)
	started := time.Now()

	sentiments, err := s.entities.ListSentimentForRaw(ctx, nil, rawDataID)
	if err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return 0, err
	}
	now := time.Now().UTC()
	if len(sentiments) == 0 {
		if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusCorrelationSkipped, &now); err != nil {
			return 0, err
		}
		s.tracker.SetTag(ctx, runID, "status", "failed")
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		log.Info("correlation skipped, no sentiment entities", "raw_data_id", rawDataID)
		return 0, fmt.Errorf("%w: no sentiment entities available for correlation", apperr.ErrCorrelation)
	}

	turns, err := s.turns.ListForRaw(ctx, nil, rawDataID)
	if err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return 0, err
	}
	if len(turns) == 0 {
		if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusCorrelationSkipped, &now); err != nil {
			return 0, err
		}
		s.tracker.SetTag(ctx, runID, "status", "failed")
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		log.Info("correlation skipped, no normalized turns", "raw_data_id", rawDataID)
		return 0, fmt.Errorf("%w: no normalized turns available for correlation", apperr.ErrCorrelation)
	}
	turnByID := make(map[uuid.UUID]*types.ConversationTurn, len(turns))
	for _, t := range turns {
		turnByID[t.ID] = t
	}

	prior, err := s.candidates.ListForRaw(ctx, nil, rawDataID, "")
	if err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return 0, err
	}
	seen := make(map[string]bool, len(prior))
	for _, c := range prior {
		seen[pairKey(c.SourceEntityID, c.TargetEntityID)] = true
	}

	var created []*types.CorrelationCandidate
	for i := 0; i < len(sentiments); i++ {
		for j := i + 1; j < len(sentiments); j++ {
			a, b := sentiments[i], sentiments[j]
			if a.Value != b.Value {
				continue
			}
			key := pairKey(a.ID, b.ID)
			if seen[key] {
				continue
			}
			// Entities whose turn was detached (SET NULL cleanup) cannot be
			// rationalised; leave them out rather than guessing.
			if turnByID[a.ConversationTurnID] == nil || turnByID[b.ConversationTurnID] == nil {
				continue
			}
			score := pairScore(a.Relevance, b.Relevance)
			if score < minScore {
				continue
			}
			candidate, err := buildCandidate(rawDataID, a, b, score, turnByID, now)
			if err != nil {
				s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
				return 0, err
			}
			created = append(created, candidate)
			seen[key] = true
		}
	}

	if _, err := s.candidates.Create(ctx, nil, created); err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return 0, err
	}
	if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusCorrelationGenerated, &now); err != nil {
		return 0, err
	}

	s.tracker.LogMetrics(ctx, runID, map[string]float64{
		"candidates_generated": float64(len(created)),
		"duration_seconds":     time.Since(started).Seconds(),
	})
	s.tracker.SetTag(ctx, runID, "status", "succeeded")
	s.tracker.EndRun(ctx, runID, tracking.RunStatusFinished)

	log.Info("candidates generated", "raw_data_id", rawDataID, "count", len(created))
	return len(created), nil
}

// FuseCandidates resolves the pending candidates of one raw payload:
// candidates at or above the threshold become confirmed relationships, the
// rest are rejected.
func (s *service) FuseCandidates(ctx context.Context, rawDataID uuid.UUID, minScore float64) (*FuseResult, error) {
	if minScore <= 0 {
		minScore = DefaultFuseMinScore
	}
	raw, err := s.rawData.GetByID(ctx, nil, rawDataID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: raw data %s", apperr.ErrNotFound, rawDataID)
	}

	runID := s.tracker.StartRun(ctx, "correlation", "fuse_candidates_"+rawDataID.String())
	s.tracker.SetTag(ctx, runID, "raw_data_id", rawDataID.String())
	tracking.TagRun(ctx, s.tracker, runID, "fuse_candidates")
	log := s.log.WithCorrelation(ctx)
	started := time.Now()

	pending, err := s.candidates.ListForRaw(ctx, nil, rawDataID, lifecycle.CandidatePending)
	if err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return nil, err
	}

	var (
		confirmedIDs  []uuid.UUID
		rejectedIDs   []uuid.UUID
		relationships []*types.Relationship
	)
	for _, c := range pending {
		if c.Score >= minScore {
			rel, err := buildRelationship(rawDataID, c)
			if err != nil {
				s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
				return nil, err
			}
			relationships = append(relationships, rel)
			confirmedIDs = append(confirmedIDs, c.ID)
		} else {
			rejectedIDs = append(rejectedIDs, c.ID)
		}
	}

	if _, err := s.relationships.Create(ctx, nil, relationships); err != nil {
		s.tracker.EndRun(ctx, runID, tracking.RunStatusFailed)
		return nil, err
	}
	if err := s.candidates.UpdateStatusByIDs(ctx, nil, confirmedIDs, lifecycle.CandidateConfirmed); err != nil {
		return nil, err
	}
	if err := s.candidates.UpdateStatusByIDs(ctx, nil, rejectedIDs, lifecycle.CandidateRejected); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if len(relationships) > 0 {
		if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusCorrelated, &now); err != nil {
			return nil, err
		}
	} else {
		existing, err := s.relationships.CountForRaw(ctx, nil, rawDataID)
		if err != nil {
			return nil, err
		}
		if existing == 0 {
			if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusCorrelationReviewed, &now); err != nil {
				return nil, err
			}
		}
	}

	s.tracker.LogMetrics(ctx, runID, map[string]float64{
		"relationships_confirmed": float64(len(confirmedIDs)),
		"relationships_rejected":  float64(len(rejectedIDs)),
		"duration_seconds":        time.Since(started).Seconds(),
	})
	s.tracker.SetTag(ctx, runID, "status", "succeeded")
	s.tracker.EndRun(ctx, runID, tracking.RunStatusFinished)

	log.Info("candidates fused",
		"raw_data_id", rawDataID, "confirmed", len(confirmedIDs), "rejected", len(rejectedIDs))
	return &FuseResult{Confirmed: len(confirmedIDs), Rejected: len(rejectedIDs)}, nil
}

// pairKey canonicalises an unordered entity pair.
func pairKey(a, b uuid.UUID) string {
	x, y := orderPair(a, b)
	return x.String() + "|" + y.String()
}

func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if strings.Compare(a.String(), b.String()) <= 0 {
		return a, b
	}
	return b, a
}

// pairScore rewards relevance proximity: identical scores give 1, scores a
// full unit apart give 0.
func pairScore(a, b *float64) float64 {
	var av, bv float64
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	delta := math.Abs(av - bv)
	if delta > 1 {
		delta = 1
	}
	return math.Max(0, 1-delta)
}

func buildCandidate(rawDataID uuid.UUID, a, b *types.Entity, score float64, turnByID map[uuid.UUID]*types.ConversationTurn, now time.Time) (*types.CorrelationCandidate, error) {
	src, dst := a, b
	if first, _ := orderPair(a.ID, b.ID); first != a.ID {
		src, dst = b, a
	}
	convA := turnByID[src.ConversationTurnID].ConversationID.String()
	convB := turnByID[dst.ConversationTurnID].ConversationID.String()
	rationale := fmt.Sprintf("Both turns share %s sentiment in conversations %s and %s.", src.Value, convA, convB)
	meta, err := json.Marshal(map[string]interface{}{
		"turn_a":    convA,
		"turn_b":    convB,
		"sentiment": src.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCorrelation, err)
	}
	return &types.CorrelationCandidate{
		ID:             uuid.New(),
		RawDataID:      rawDataID,
		SourceEntityID: src.ID,
		TargetEntityID: dst.ID,
		Score:          score,
		Status:         lifecycle.CandidatePending,
		Rationale:      &rationale,
		CreatedAt:      now,
		Metadata:       datatypes.JSON(meta),
	}, nil
}

func buildRelationship(rawDataID uuid.UUID, c *types.CorrelationCandidate) (*types.Relationship, error) {
	rationale := ""
	if c.Rationale != nil {
		rationale = *c.Rationale
	}
	meta, err := json.Marshal(map[string]interface{}{
		"raw_data_id": rawDataID.String(),
		"rationale":   rationale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCorrelation, err)
	}
	strength := c.Score
	return &types.Relationship{
		ID:             uuid.New(),
		SourceEntityID: c.SourceEntityID,
		TargetEntityID: c.TargetEntityID,
		Type:           "SENTIMENT_LINK",
		Strength:       &strength,
		Metadata:       datatypes.JSON(meta),
	}, nil
}
