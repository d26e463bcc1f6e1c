package places

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"roadplan/internal/types"
)

// StaticValidator answers from a fixed gazetteer. It backs offline CLI
// runs and tests.
type StaticValidator struct {
	entries map[string]types.PlaceDetails
}

func NewStaticValidator(entries map[string]types.PlaceDetails) *StaticValidator {
	s := &StaticValidator{entries: make(map[string]types.PlaceDetails, len(entries))}
	for name, d := range entries {
		s.entries[strings.ToLower(strings.TrimSpace(name))] = d
	}
	return s
}

// LoadStaticValidator reads a JSON object of name -> PlaceDetails.
func LoadStaticValidator(path string) (*StaticValidator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("places: read gazetteer: %w", err)
	}
	var entries map[string]types.PlaceDetails
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("places: parse gazetteer %s: %w", path, err)
	}
	return NewStaticValidator(entries), nil
}

func (s *StaticValidator) Validate(ctx context.Context, name, _ string) (types.PlaceDetails, error) {
	if err := ctx.Err(); err != nil {
		return types.PlaceDetails{}, err
	}
	d, ok := s.entries[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return types.PlaceDetails{}, ErrNotFound
	}
	return d, nil
}
