package search

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/nexusknowledge-backend/internal/analysis"
	"github.com/yungbote/nexusknowledge-backend/internal/data/db"
	"github.com/yungbote/nexusknowledge-backend/internal/ingestion"
	"github.com/yungbote/nexusknowledge-backend/internal/normalization"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/tracking"
)

func newSearchService(t *testing.T, messages []interface{}) Service {
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
	entities := repos.NewEntityRepo(store.DB(), log)
	ctx := context.Background()

	result, err := ingestion.NewService(rawData, log).Ingest(ctx, "deepseek_chat", nil, map[string]interface{}{
		"source_id": "search-fixture",
		"messages":  messages,
	}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := normalization.NewService(rawData, turns, log).Normalize(ctx, result.RawData.ID); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	analyze := analysis.NewService(rawData, turns, entities, analysis.NewLexiconClassifier(), tracking.NewNop(), log)
	if _, err := analyze.Analyze(ctx, result.RawData.ID); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return NewService(turns, entities, log)
}

func message(role, content string) map[string]interface{} {
	return map[string]interface{}{"role": role, "content": content}
}

func TestSearchRanksByCoverage(t *testing.T) {
	svc := newSearchService(t, []interface{}{
		message("user", "deployment pipeline failed last night"),
		message("assistant", "the deployment went fine"),
		message("user", "unrelated chatter about lunch"),
	})

	results, err := svc.Search(context.Background(), "deployment pipeline failed", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !strings.Contains(results[0].Snippet, "pipeline failed") {
		t.Fatalf("best hit should cover more query tokens, got %q", results[0].Snippet)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("results not sorted by score: %v then %v", results[0].Score, results[1].Score)
	}
	for _, r := range results {
		if r.Score <= 0 || r.Score > 1 {
			t.Fatalf("score %v out of (0, 1]", r.Score)
		}
	}
}

func TestSearchAnnotatesSentiment(t *testing.T) {
	svc := newSearchService(t, []interface{}{
		message("user", "I love the new dashboard"),
	})

	results, err := svc.Search(context.Background(), "dashboard", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Sentiment != analysis.LabelPositive {
		t.Fatalf("sentiment = %q, want %s", results[0].Sentiment, analysis.LabelPositive)
	}
	if results[0].Speaker != "USER" {
		t.Fatalf("speaker = %q", results[0].Speaker)
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	var messages []interface{}
	for i := 0; i < 6; i++ {
		messages = append(messages, message("user", "retry budget exhausted again"))
	}
	svc := newSearchService(t, messages)

	results, err := svc.Search(context.Background(), "retry budget", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newSearchService(t, []interface{}{message("user", "anything")})

	if _, err := svc.Search(context.Background(), "   !!! ", 10); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSearchTruncatesSnippet(t *testing.T) {
	long := "observability " + strings.Repeat("word ", 60)
	svc := newSearchService(t, []interface{}{message("user", long)})

	results, err := svc.Search(context.Background(), "observability", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	snippet := results[0].Snippet
	if len([]rune(snippet)) > 200 {
		t.Fatalf("snippet is %d runes, cap is 200", len([]rune(snippet)))
	}
	if !strings.HasSuffix(snippet, "...") {
		t.Fatalf("truncated snippet should end with an ellipsis: %q", snippet)
	}
}
