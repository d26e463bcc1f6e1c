package types

import "strings"

const (
	DefaultMinNights = 1
	DefaultMaxNights = 5
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinate was never set.
func (p LatLng) IsZero() bool { return p.Lat == 0 && p.Lng == 0 }

// CandidatePlace is an unvalidated waypoint proposal.
type CandidatePlace struct {
	Name          string   `json:"name"`
	Country       string   `json:"country,omitempty"`
	Justification string   `json:"justification,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
	MinNights     int      `json:"min_nights,omitempty"`
	MaxNights     int      `json:"max_nights,omitempty"`
}

// Sanitize fills night defaults and swaps an inverted range.
// It returns a warning when the range had to be swapped.
func (c CandidatePlace) Sanitize() (CandidatePlace, string) {
	out := c
	out.Name = strings.TrimSpace(out.Name)
	out.Country = strings.TrimSpace(out.Country)
	if out.MinNights <= 0 {
		out.MinNights = DefaultMinNights
	}
	if out.MaxNights <= 0 {
		out.MaxNights = DefaultMaxNights
	}
	var warning string
	if out.MinNights > out.MaxNights {
		warning = "min nights > max nights for " + out.Name + ", swapped"
		out.MinNights, out.MaxNights = out.MaxNights, out.MinNights
	}
	return out, warning
}

// PlaceDetails is what the place validation collaborator returns.
type PlaceDetails struct {
	Location         LatLng   `json:"location"`
	FormattedAddress string   `json:"formatted_address"`
	PlaceID          string   `json:"place_id"`
	Types            []string `json:"types,omitempty"`

	// OpeningHours is only filled for venue lookups.
	OpeningHours []OpeningPeriod `json:"opening_hours,omitempty"`
}

// ValidatedPlace is a candidate confirmed to exist.
type ValidatedPlace struct {
	CandidatePlace
	Verified         bool     `json:"verified"`
	Location         LatLng   `json:"location"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	PlaceID          string   `json:"place_id,omitempty"`
	Types            []string `json:"types,omitempty"`
	Nights           int      `json:"nights"`
}

// NewValidatedPlace merges a candidate with validation details.
func NewValidatedPlace(c CandidatePlace, d PlaceDetails) ValidatedPlace {
	return ValidatedPlace{
		CandidatePlace:   c,
		Verified:         true,
		Location:         d.Location,
		FormattedAddress: d.FormattedAddress,
		PlaceID:          d.PlaceID,
		Types:            append([]string(nil), d.Types...),
	}
}

// SkeletonMeta records how a skeleton was produced.
type SkeletonMeta struct {
	TargetCount      int      `json:"target_count"`
	Degraded         bool     `json:"degraded_allocation"`
	Fallback         bool     `json:"fallback"`
	FailureReason    string   `json:"failure_reason,omitempty"`
	ThemeInsights    []string `json:"theme_insights,omitempty"`
	DroppedWaypoints []string `json:"dropped_waypoints,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`

	// UnallocatedNights counts nights left over once every waypoint hit its maximum.
	UnallocatedNights int `json:"unallocated_nights,omitempty"`
}

// RouteSkeleton is the ordered waypoint plan for a trip.
type RouteSkeleton struct {
	Origin      ValidatedPlace   `json:"origin"`
	Destination ValidatedPlace   `json:"destination"`
	Waypoints   []ValidatedPlace `json:"waypoints"`
	Alternates  []CandidatePlace `json:"alternates,omitempty"`
	Meta        SkeletonMeta     `json:"metadata"`
}

// TotalNights sums the nights allocated to waypoints.
func (s RouteSkeleton) TotalNights() int {
	n := 0
	for _, w := range s.Waypoints {
		n += w.Nights
	}
	return n
}
