package types

// CandidateRequest is what waypoint selection asks the content collaborator for.
type CandidateRequest struct {
	Origin       string      `json:"origin"`
	Destination  string      `json:"destination"`
	Country      string      `json:"country,omitempty"`
	Waypoints    int         `json:"waypoint_count"`
	Alternates   int         `json:"alternate_count"`
	Style        TravelStyle `json:"travel_style"`
	BudgetTier   string      `json:"budget_tier"`
	NightsOnRoad int         `json:"nights_on_road"`
}

// CandidateProposal is the normalised collaborator answer.
type CandidateProposal struct {
	Origin        CandidatePlace   `json:"origin"`
	Destination   CandidatePlace   `json:"destination"`
	Waypoints     []CandidatePlace `json:"waypoints"`
	Alternates    []CandidatePlace `json:"alternates"`
	ThemeInsights []string         `json:"theme_insights,omitempty"`
}

// ReplacementRequest describes the slot a new activity must fill. It always
// carries the exclusion list and the reason so the collaborator cannot
// re-propose the failing place.
type ReplacementRequest struct {
	City            string      `json:"city"`
	Country         string      `json:"country,omitempty"`
	Date            string      `json:"date"`
	Weekday         string      `json:"day_of_week"`
	Window          TimeWindow  `json:"time_window"`
	ActivityType    string      `json:"activity_type,omitempty"`
	Energy          string      `json:"energy_level,omitempty"`
	Style           TravelStyle `json:"travel_style,omitempty"`
	DayTheme        string      `json:"day_theme,omitempty"`
	RemainingBudget *float64    `json:"remaining_budget,omitempty"`
	MaxCost         *float64    `json:"max_cost,omitempty"`
	Near            *LatLng     `json:"near,omitempty"`
	RadiusKm        float64     `json:"radius_km,omitempty"`
	RequireOpen     bool        `json:"require_open"`
	Excluded        []string    `json:"excluded"`
	Reason          string      `json:"reason"`
}

// TravelEstimate is the distance collaborator answer.
type TravelEstimate struct {
	DistanceMeters  int  `json:"distance_meters"`
	DurationSeconds int  `json:"duration_seconds"`
	Estimated       bool `json:"estimated,omitempty"`
}

// Minutes returns the duration rounded up to whole minutes.
func (e TravelEstimate) Minutes() int {
	return (e.DurationSeconds + 59) / 60
}

// TravelMode selects the routing profile.
type TravelMode string

const (
	ModeWalking   TravelMode = "walking"
	ModeDriving   TravelMode = "driving"
	ModeTransit   TravelMode = "transit"
	ModeBicycling TravelMode = "bicycling"
)
