// Package ingestion accepts conversational payloads, deduplicates them by
// content fingerprint and records them for the asynchronous pipeline.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/canonical"
	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

// Result reports what an ingest attempt did. Created is false when the
// payload hashed to an existing record, in which case RawData is that
// existing record with its metadata merged.
type Result struct {
	RawData *types.RawData
	Created bool
}

type Service interface {
	Ingest(ctx context.Context, sourceType string, sourceID *string, content interface{}, metadata map[string]interface{}) (*Result, error)
	IngestMarkdownFile(ctx context.Context, path string) (*Result, error)
}

type service struct {
	rawData repos.RawDataRepo
	log     *logger.Logger
}

func NewService(rawData repos.RawDataRepo, baseLog *logger.Logger) Service {
	return &service{rawData: rawData, log: baseLog.With("service", "ingestion")}
}

// Ingest canonicalises the payload, fingerprints it and either creates a new
// INGESTED record or merges metadata into the record that already carries the
// same fingerprint. The same payload therefore always lands on one row, no
// matter how many times or in what key order it is submitted.
func (s *service) Ingest(ctx context.Context, sourceType string, sourceID *string, content interface{}, metadata map[string]interface{}) (*Result, error) {
	if sourceType == "" {
		return nil, fmt.Errorf("%w: source_type is required", apperr.ErrInvalidArgument)
	}
	canonicalContent, err := canonical.Serialize(content)
	if err != nil {
		return nil, err
	}
	if canonicalContent == "" {
		return nil, fmt.Errorf("%w: content is empty", apperr.ErrInvalidArgument)
	}
	hash := canonical.Fingerprint(canonicalContent)
	metadata = withSourceID(metadata, sourceID)

	existing, err := s.rawData.GetByContentHash(ctx, nil, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.mergeMetadata(ctx, existing, metadata); err != nil {
			return nil, err
		}
		if err := s.backfillSourceID(ctx, existing, sourceID); err != nil {
			return nil, err
		}
		s.log.Info("duplicate payload merged",
			"raw_data_id", existing.ID, "content_hash", hash, "source_type", sourceType)
		return &Result{RawData: existing, Created: false}, nil
	}

	metadataJSON, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	record := &types.RawData{
		ID:          uuid.New(),
		SourceType:  sourceType,
		SourceID:    sourceID,
		Content:     canonicalContent,
		ContentHash: hash,
		Metadata:    metadataJSON,
		Status:      lifecycle.StatusIngested,
		IngestedAt:  time.Now().UTC(),
	}
	if _, err := s.rawData.Create(ctx, nil, record); err != nil {
		// Lost the race against a concurrent submit of the same payload;
		// fall back to the merge path on the winning row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, getErr := s.rawData.GetByContentHash(ctx, nil, hash)
			if getErr != nil {
				return nil, getErr
			}
			if winner != nil {
				if mergeErr := s.mergeMetadata(ctx, winner, metadata); mergeErr != nil {
					return nil, mergeErr
				}
				if fillErr := s.backfillSourceID(ctx, winner, sourceID); fillErr != nil {
					return nil, fillErr
				}
				return &Result{RawData: winner, Created: false}, nil
			}
		}
		return nil, err
	}
	s.log.Info("payload ingested",
		"raw_data_id", record.ID, "content_hash", hash, "source_type", sourceType)
	return &Result{RawData: record, Created: true}, nil
}

// IngestMarkdownFile reads a markdown document and ingests it as a
// single-turn conversation, with the file's provenance recorded in metadata.
func (s *service) IngestMarkdownFile(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	content := string(body)
	modifiedAt := info.ModTime().UTC().Format(time.RFC3339)

	title := markdownTitle(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	metadata := map[string]interface{}{
		"title":              title,
		"source_path":        absPath,
		"source_filename":    filepath.Base(path),
		"source_modified_at": modifiedAt,
		"imported_at":        time.Now().UTC().Format(time.RFC3339),
	}
	payload := map[string]interface{}{
		"version":         "1.0",
		"source_platform": "markdown",
		"source_id":       absPath,
		"messages": []interface{}{
			map[string]interface{}{
				"role":      "user",
				"content":   content,
				"timestamp": modifiedAt,
			},
		},
	}
	return s.Ingest(ctx, "markdown", &absPath, payload, metadata)
}

// markdownTitle returns the first heading's text, if any.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		}
	}
	return ""
}

// withSourceID copies the submitted metadata and seeds source_id when the
// caller supplied one and the map does not carry the key yet.
func withSourceID(metadata map[string]interface{}, sourceID *string) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if sourceID != nil && *sourceID != "" {
		if _, ok := out["source_id"]; !ok {
			out["source_id"] = *sourceID
		}
	}
	return out
}

// backfillSourceID stamps source_id onto a deduplicated record that was first
// ingested without one.
func (s *service) backfillSourceID(ctx context.Context, record *types.RawData, sourceID *string) error {
	if sourceID == nil || *sourceID == "" {
		return nil
	}
	if record.SourceID != nil && *record.SourceID != "" {
		return nil
	}
	if err := s.rawData.UpdateFields(ctx, nil, record.ID, map[string]interface{}{
		"source_id": *sourceID,
	}); err != nil {
		return err
	}
	id := *sourceID
	record.SourceID = &id
	return nil
}

// mergeMetadata overlays new keys onto the stored metadata, new values
// winning on conflict, and persists the result. A nil or empty metadata map
// leaves the record untouched.
func (s *service) mergeMetadata(ctx context.Context, record *types.RawData, metadata map[string]interface{}) error {
	if len(metadata) == 0 {
		return nil
	}
	merged := map[string]interface{}{}
	if len(record.Metadata) > 0 {
		if err := json.Unmarshal(record.Metadata, &merged); err != nil {
			s.log.Warn("stored metadata unreadable, overwriting", "raw_data_id", record.ID, "error", err)
			merged = map[string]interface{}{}
		}
	}
	for k, v := range metadata {
		merged[k] = v
	}
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("%w: metadata not serialisable: %v", apperr.ErrInvalidArgument, err)
	}
	if err := s.rawData.UpdateFields(ctx, nil, record.ID, map[string]interface{}{
		"metadata": datatypes.JSON(mergedJSON),
	}); err != nil {
		return err
	}
	record.Metadata = datatypes.JSON(mergedJSON)
	return nil
}

func encodeMetadata(metadata map[string]interface{}) (datatypes.JSON, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata not serialisable: %v", apperr.ErrInvalidArgument, err)
	}
	return datatypes.JSON(raw), nil
}
