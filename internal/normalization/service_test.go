package normalization

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/data/db"
	"github.com/yungbote/nexusknowledge-backend/internal/ingestion"
	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type fixture struct {
	db      *gorm.DB
	rawData repos.RawDataRepo
	turns   repos.ConversationTurnRepo
	ingest  ingestion.Service
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	store, err := db.NewStoreService(dsn, logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := db.AutoMigrateAll(store.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logger.NewNop()
	rawData := repos.NewRawDataRepo(store.DB(), log)
	turns := repos.NewConversationTurnRepo(store.DB(), log)
	return &fixture{
		db:      store.DB(),
		rawData: rawData,
		turns:   turns,
		ingest:  ingestion.NewService(rawData, log),
		svc:     NewService(rawData, turns, log),
	}
}

func (f *fixture) mustIngest(t *testing.T, content interface{}) *types.RawData {
	t.Helper()
	result, err := f.ingest.Ingest(context.Background(), "deepseek_chat", nil, content, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return result.RawData
}

func conversationPayload(sourceID string) map[string]interface{} {
	return map[string]interface{}{
		"source_platform": "deepseek",
		"source_id":       sourceID,
		"messages": []interface{}{
			map[string]interface{}{"role": "user", "content": "I love this feature", "timestamp": "2024-05-01T10:00:00Z"},
			map[string]interface{}{"role": "assistant", "content": "I'm sorry to hear that"},
		},
	}
}

func TestNormalizeFlattensConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.mustIngest(t, conversationPayload("s1"))

	count, err := f.svc.Normalize(ctx, raw.ID)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("turn count = %d, want 2", count)
	}

	updated, err := f.rawData.GetByID(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("reload raw: %v", err)
	}
	if updated.Status != lifecycle.StatusNormalized {
		t.Fatalf("status = %s, want %s", updated.Status, lifecycle.StatusNormalized)
	}

	turns, err := f.turns.ListForRaw(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("persisted %d turns, want 2", len(turns))
	}
	if turns[0].Speaker != "USER" || turns[1].Speaker != "ASSISTANT" {
		t.Fatalf("speakers = %s, %s", turns[0].Speaker, turns[1].Speaker)
	}
	if turns[0].TurnIndex != 0 || turns[1].TurnIndex != 1 {
		t.Fatalf("turn order not preserved: %d, %d", turns[0].TurnIndex, turns[1].TurnIndex)
	}
	if turns[0].ConversationID != turns[1].ConversationID {
		t.Fatalf("turns of one conversation must share an id")
	}
}

func TestNormalizeMalformedContentFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.mustIngest(t, "{")

	_, err := f.svc.Normalize(ctx, raw.ID)
	if !errors.Is(err, apperr.ErrNormalization) {
		t.Fatalf("err = %v, want ErrNormalization", err)
	}

	updated, err := f.rawData.GetByID(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("reload raw: %v", err)
	}
	if updated.Status != lifecycle.StatusFailed {
		t.Fatalf("status = %s, want %s", updated.Status, lifecycle.StatusFailed)
	}
	turns, err := f.turns.ListForRaw(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("failed normalization must not leave turns behind, found %d", len(turns))
	}
}

func TestNormalizeNestedConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.mustIngest(t, map[string]interface{}{
		"source_platform": "deepseek",
		"conversations": []interface{}{
			map[string]interface{}{
				"source_id": "inner-1",
				"messages": []interface{}{
					map[string]interface{}{"role": "user", "content": "hello"},
				},
			},
			map[string]interface{}{
				"source_id": "inner-2",
				"messages": []interface{}{
					map[string]interface{}{"role": "user", "content": "hi again"},
					map[string]interface{}{"role": "assistant", "content": "welcome back"},
				},
			},
		},
	})

	count, err := f.svc.Normalize(ctx, raw.ID)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("turn count = %d, want 3", count)
	}

	turns, err := f.turns.ListForRaw(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	ids := map[string]bool{}
	for _, turn := range turns {
		ids[turn.ConversationID.String()] = true
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 distinct conversation ids, got %d", len(ids))
	}
}

func TestNormalizeStableConversationIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.mustIngest(t, conversationPayload("stable-source"))
	if _, err := f.svc.Normalize(ctx, first.ID); err != nil {
		t.Fatalf("Normalize first: %v", err)
	}

	firstTurns, err := f.turns.ListForRaw(ctx, nil, first.ID)
	if err != nil {
		t.Fatalf("list first: %v", err)
	}
	want := uuid.NewSHA1(uuid.NameSpaceURL, []byte("stable-source"))
	if firstTurns[0].ConversationID != want {
		t.Fatalf("conversation id = %s, want the name-based id %s", firstTurns[0].ConversationID, want)
	}

	// A second raw with the same source_id derives the same conversation id,
	// so its turns collide on the (conversation_id, turn_index) unique index
	// instead of silently forking the conversation.
	payload := conversationPayload("stable-source")
	payload["extra"] = "v2"
	second := f.mustIngest(t, payload)
	if second.ID == first.ID {
		t.Fatalf("fixture payloads unexpectedly collided")
	}
	if _, err := f.svc.Normalize(ctx, second.ID); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("err = %v, want gorm.ErrDuplicatedKey", err)
	}
}

func TestNormalizeFindsWrappedConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.mustIngest(t, map[string]interface{}{
		"data": map[string]interface{}{
			"source_id": "wrapped-1",
			"messages": []interface{}{
				map[string]interface{}{"role": "user", "content": "hello from inside an envelope"},
			},
		},
	})

	count, err := f.svc.Normalize(ctx, raw.ID)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("turn count = %d, want 1", count)
	}
	updated, err := f.rawData.GetByID(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("reload raw: %v", err)
	}
	if updated.Status != lifecycle.StatusNormalized {
		t.Fatalf("status = %s, want %s", updated.Status, lifecycle.StatusNormalized)
	}
	turns, err := f.turns.ListForRaw(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("persisted %d turns, want 1", len(turns))
	}
	if turns[0].ConversationID != uuid.NewSHA1(uuid.NameSpaceURL, []byte("wrapped-1")) {
		t.Fatalf("wrapped conversation lost its source_id derived identity")
	}
}

func TestNormalizeNonObjectMessageKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.mustIngest(t, map[string]interface{}{
		"source_id": "bad-msg",
		"messages":  []interface{}{"just a string"},
	})

	_, err := f.svc.Normalize(ctx, raw.ID)
	if !errors.Is(err, apperr.ErrNormalization) {
		t.Fatalf("err = %v, want ErrNormalization", err)
	}

	// The record stays replayable; no FAILED transition, no turns.
	updated, err := f.rawData.GetByID(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("reload raw: %v", err)
	}
	if updated.Status != lifecycle.StatusIngested {
		t.Fatalf("status = %s, want %s", updated.Status, lifecycle.StatusIngested)
	}
	turns, err := f.turns.ListForRaw(ctx, nil, raw.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("no turns expected, found %d", len(turns))
	}
}

func TestNormalizeUnknownRaw(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Normalize(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
