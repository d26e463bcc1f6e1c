// Package artifact persists run outputs (day reports, skeletons, prompts)
// keyed by run ID and a relative path.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"roadplan/internal/util/jsonutil"
)

// Store defines operations for persisting run artifacts.
type Store interface {
	Put(ctx context.Context, runID, path string, content []byte) error
	Get(ctx context.Context, runID, path string) ([]byte, error)
	GetURL(ctx context.Context, runID, path string) (string, error)
	List(ctx context.Context, runID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

// normalize trims both parts and strips leading slashes from path.
func normalize(runID, path string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if runID == "" {
		return "", "", fmt.Errorf("run_id is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	if strings.Contains(path, "..") {
		return "", "", fmt.Errorf("path %q escapes the run", path)
	}
	return runID, path, nil
}

func objectKey(runID, path string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

// PutJSON stores v as indented JSON without HTML escaping.
func PutJSON(ctx context.Context, s Store, runID, path string, v any) error {
	raw, err := jsonutil.MarshalIndentNoEscape(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.Put(ctx, runID, path, raw)
}

// GetJSON loads a JSON artifact into v.
func GetJSON(ctx context.Context, s Store, runID, path string, v any) error {
	raw, err := s.Get(ctx, runID, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
