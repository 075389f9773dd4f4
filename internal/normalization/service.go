// Package normalization flattens heterogeneous conversational payloads into
// ordered conversation turns with stable conversation identity.
package normalization

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type Service interface {
	Normalize(ctx context.Context, rawDataID uuid.UUID) (int, error)
}

type service struct {
	rawData repos.RawDataRepo
	turns   repos.ConversationTurnRepo
	log     *logger.Logger
}

func NewService(rawData repos.RawDataRepo, turns repos.ConversationTurnRepo, baseLog *logger.Logger) Service {
	return &service{rawData: rawData, turns: turns, log: baseLog.With("service", "normalization")}
}

// conversation is one flattened conversation: its messages in payload order
// plus the metadata accumulated while walking down to it.
type conversation struct {
	messages []interface{}
	metadata map[string]interface{}
}

// Normalize parses the raw content, flattens it into conversations, derives
// stable conversation ids and persists the turns in one batch. Undecodable
// content and payloads with no conversations mark the raw FAILED.
func (s *service) Normalize(ctx context.Context, rawDataID uuid.UUID) (int, error) {
	raw, err := s.rawData.GetByID(ctx, nil, rawDataID)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, fmt.Errorf("%w: raw data %s", apperr.ErrNotFound, rawDataID)
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(raw.Content), &parsed); err != nil {
		s.markFailed(ctx, rawDataID)
		return 0, fmt.Errorf("%w: content is not valid JSON: %v", apperr.ErrNormalization, err)
	}

	// A malformed message aborts before any status write, so the record
	// stays replayable; only "no conversations at all" marks it FAILED.
	conversations, err := collectConversations(parsed, nil)
	if err != nil {
		return 0, err
	}
	if len(conversations) == 0 {
		s.markFailed(ctx, rawDataID)
		return 0, fmt.Errorf("%w: no conversations found in payload", apperr.ErrNormalization)
	}

	now := time.Now().UTC()
	var turns []*types.ConversationTurn
	for _, conv := range conversations {
		conversationID := conversationIdentity(conv.metadata)
		for idx, rawMessage := range conv.messages {
			message, _ := rawMessage.(map[string]interface{})
			turn, err := buildTurn(rawDataID, conversationID, idx, message, conv.metadata, now)
			if err != nil {
				return 0, err
			}
			turns = append(turns, turn)
		}
	}

	if _, err := s.turns.Create(ctx, nil, turns); err != nil {
		return 0, err
	}
	if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusNormalized, &now); err != nil {
		return 0, err
	}
	s.log.Info("payload normalized",
		"raw_data_id", rawDataID, "conversations", len(conversations), "turns", len(turns))
	return len(turns), nil
}

func (s *service) markFailed(ctx context.Context, rawDataID uuid.UUID) {
	now := time.Now().UTC()
	if err := s.rawData.UpdateStatus(ctx, nil, rawDataID, lifecycle.StatusFailed, &now); err != nil {
		s.log.Error("failed to mark raw data FAILED", "raw_data_id", rawDataID, "error", err)
	}
}

// collectConversations walks the parse tree. An object with a "messages"
// list is one conversation, its metadata the object's other keys (minus both
// list keys) merged over the inherited metadata. An object with a
// "conversations" list recurses into the children with its own keys as
// inherited metadata; any other object recurses into all of its container
// values, so conversations wrapped in envelope keys are still found. Lists
// are walked element by element. A non-object message is an error.
func collectConversations(node interface{}, inherited map[string]interface{}) ([]conversation, error) {
	switch v := node.(type) {
	case map[string]interface{}:
		var out []conversation
		if messages, ok := v["messages"].([]interface{}); ok {
			for idx, m := range messages {
				if _, isObject := m.(map[string]interface{}); !isObject {
					return nil, fmt.Errorf("%w: message %d is not an object", apperr.ErrNormalization, idx)
				}
			}
			out = append(out, conversation{
				messages: messages,
				metadata: mergeMetadata(inherited, v, "messages", "conversations"),
			})
		}
		if children, ok := v["conversations"].([]interface{}); ok {
			meta := mergeMetadata(inherited, v, "conversations")
			for _, child := range children {
				nested, err := collectConversations(child, meta)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
			}
		} else {
			for _, value := range v {
				switch value.(type) {
				case map[string]interface{}, []interface{}:
					nested, err := collectConversations(value, inherited)
					if err != nil {
						return nil, err
					}
					out = append(out, nested...)
				}
			}
		}
		return out, nil
	case []interface{}:
		var out []conversation
		for _, child := range v {
			nested, err := collectConversations(child, inherited)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func mergeMetadata(inherited, own map[string]interface{}, exclude ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(inherited)+len(own))
	for k, v := range inherited {
		out[k] = v
	}
	for k, v := range own {
		skip := false
		for _, e := range exclude {
			if k == e {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		out[k] = v
	}
	return out
}

// conversationIdentity derives a stable id. A non-empty source_id (snake or
// camel case) produces a name-based UUID in the URL namespace, so re-ingests
// of the same logical conversation land on the same id; otherwise the
// conversation gets a fresh random id.
func conversationIdentity(metadata map[string]interface{}) uuid.UUID {
	for _, key := range []string{"source_id", "sourceId"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return uuid.NewSHA1(uuid.NameSpaceURL, []byte(v))
		}
	}
	return uuid.New()
}

func buildTurn(rawDataID, conversationID uuid.UUID, index int, message, convMeta map[string]interface{}, now time.Time) (*types.ConversationTurn, error) {
	role, _ := message["role"].(string)
	speaker := "UNKNOWN"
	if role != "" {
		speaker = strings.ToUpper(role)
	}

	text, _ := message["content"].(string)
	text = strings.TrimSpace(text)

	ts := now
	if rawTS, ok := message["timestamp"].(string); ok && rawTS != "" {
		if parsed, err := parseTimestamp(rawTS); err == nil {
			ts = parsed
		}
	}

	messageMeta, _ := message["metadata"].(map[string]interface{})
	if messageMeta == nil {
		messageMeta = map[string]interface{}{}
	}
	turnMeta := map[string]interface{}{
		"role":     role,
		"metadata": messageMeta,
	}
	if platform, ok := convMeta["source_platform"]; ok {
		turnMeta["source_platform"] = platform
	}
	metaJSON, err := json.Marshal(turnMeta)
	if err != nil {
		return nil, fmt.Errorf("%w: turn metadata not serialisable: %v", apperr.ErrNormalization, err)
	}

	rawID := rawDataID
	return &types.ConversationTurn{
		ID:             uuid.New(),
		RawDataID:      &rawID,
		ConversationID: conversationID,
		TurnIndex:      index,
		Speaker:        speaker,
		Text:           text,
		Timestamp:      ts,
		Metadata:       datatypes.JSON(metaJSON),
	}, nil
}

// parseTimestamp accepts RFC 3339 with or without offset, promoting naive
// times to UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
