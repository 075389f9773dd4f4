// Package canonical defines the serialisation that content fingerprints are
// computed over. Strings pass through untouched; any structured value is
// rendered as JSON with lexicographically sorted keys and no insignificant
// whitespace. Dedup correctness depends on these bytes staying stable.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
)

// Serialize returns the canonical string form of a JSON value.
func Serialize(content any) (string, error) {
	if s, ok := content.(string); ok {
		return s, nil
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, content); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Fingerprint returns the lowercase SHA-256 hex digest of a canonical string.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("%w: key %q: %v", apperr.ErrInvalidArgument, k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: content is not JSON-serialisable: %v", apperr.ErrInvalidArgument, err)
		}
		buf.Write(b)
	}
	return nil
}
