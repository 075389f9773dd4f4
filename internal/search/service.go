// Package search ranks conversation turns against a query by blending
// keyword coverage with token-set similarity.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/nexusknowledge-backend/internal/analysis"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

const (
	// keywordWeight/semanticWeight blend coverage of query tokens with the
	// Jaccard similarity of the two token sets.
	keywordWeight  = 0.7
	semanticWeight = 0.3

	// candidateFactor over-fetches before re-ranking.
	candidateFactor = 5

	snippetLimit = 200
)

// Result is one ranked hit.
type Result struct {
	TurnID         uuid.UUID `json:"turn_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	TurnIndex      int       `json:"turn_index"`
	Speaker        string    `json:"speaker"`
	Snippet        string    `json:"snippet"`
	Score          float64   `json:"score"`
	Sentiment      string    `json:"sentiment,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type Service interface {
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
}

type service struct {
	turns    repos.ConversationTurnRepo
	entities repos.EntityRepo
	log      *logger.Logger
}

func NewService(turns repos.ConversationTurnRepo, entities repos.EntityRepo, baseLog *logger.Logger) Service {
	return &service{turns: turns, entities: entities, log: baseLog.With("service", "search")}
}

// Search fetches recent turns matching any query token, re-ranks them with
// the blended score and annotates the survivors with sentiment.
func (s *service) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	queryTokens := analysis.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, fmt.Errorf("%w: query has no searchable tokens", apperr.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 10
	}

	candidates, err := s.turns.SearchByTokens(ctx, nil, queryTokens, candidateFactor*limit)
	if err != nil {
		return nil, err
	}

	querySet := tokenSet(queryTokens)
	type scored struct {
		turn  *types.ConversationTurn
		score float64
	}
	var ranked []scored
	for _, turn := range candidates {
		textTokens := analysis.Tokenize(turn.Text)
		score := blendedScore(querySet, textTokens)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{turn: turn, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	turnIDs := make([]uuid.UUID, 0, len(ranked))
	for _, r := range ranked {
		turnIDs = append(turnIDs, r.turn.ID)
	}
	sentimentByTurn, err := s.sentiments(ctx, turnIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, &Result{
			TurnID:         r.turn.ID,
			ConversationID: r.turn.ConversationID,
			TurnIndex:      r.turn.TurnIndex,
			Speaker:        r.turn.Speaker,
			Snippet:        snippet(r.turn.Text),
			Score:          r.score,
			Sentiment:      sentimentByTurn[r.turn.ID],
			Timestamp:      r.turn.Timestamp,
		})
	}
	return out, nil
}

func (s *service) sentiments(ctx context.Context, turnIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	entities, err := s.entities.ListSentimentByTurnIDs(ctx, nil, turnIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(entities))
	for _, e := range entities {
		if _, ok := out[e.ConversationTurnID]; !ok {
			out[e.ConversationTurnID] = e.Value
		}
	}
	return out, nil
}

func blendedScore(querySet map[string]bool, textTokens []string) float64 {
	if len(textTokens) == 0 {
		return 0
	}
	textSet := tokenSet(textTokens)
	var matched, intersection int
	for token := range querySet {
		if textSet[token] {
			matched++
			intersection++
		}
	}
	union := len(querySet) + len(textSet) - intersection
	keyword := float64(matched) / float64(len(querySet))
	semantic := 0.0
	if union > 0 {
		semantic = float64(intersection) / float64(union)
	}
	return keywordWeight*keyword + semanticWeight*semantic
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// snippet trims the text and caps it at snippetLimit runes, appending an
// ellipsis when truncated.
func snippet(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= snippetLimit {
		return trimmed
	}
	return string(runes[:snippetLimit-3]) + "..."
}
