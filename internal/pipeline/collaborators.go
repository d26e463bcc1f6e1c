// Package pipeline holds the itinerary stages: waypoint selection, intra-day
// route optimisation, conflict detection and conflict resolution, plus the
// per-day repair loop and the multi-day runner.
package pipeline

import (
	"context"
	"log"
	"time"

	"roadplan/internal/types"
)

// ContentGenerator proposes waypoints and replacement activities.
type ContentGenerator interface {
	ProposeCandidates(ctx context.Context, req types.CandidateRequest) (types.CandidateProposal, error)
	ProposeReplacement(ctx context.Context, req types.ReplacementRequest) (types.Activity, error)
}

// PlaceValidator confirms a named place exists.
type PlaceValidator interface {
	Validate(ctx context.Context, name, country string) (types.PlaceDetails, error)
}

// DistanceService answers travel-time questions.
type DistanceService interface {
	TravelTime(ctx context.Context, from, to types.LatLng, mode types.TravelMode) (types.TravelEstimate, error)
}

const (
	DefaultGenerationTimeout = 25 * time.Second
	DefaultLookupTimeout     = 10 * time.Second
)

func withTimeout(ctx context.Context, d, def time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = def
	}
	return context.WithTimeout(ctx, d)
}

func loggerOr(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.Default()
}
