package types

import "strings"

// TravelStyle biases which waypoints the content collaborator proposes.
type TravelStyle string

const (
	StyleAdventure   TravelStyle = "adventure"
	StyleCulture     TravelStyle = "culture"
	StyleFood        TravelStyle = "food"
	StyleHiddenGems  TravelStyle = "hidden-gems"
	StyleBestOverall TravelStyle = "best-overall"
)

// ParseTravelStyle maps free-form input onto a known style.
// The second return value is false when the input was not recognised
// and the default style was substituted.
func ParseTravelStyle(s string) (TravelStyle, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", "-")
	norm = strings.ReplaceAll(norm, " ", "-")
	switch TravelStyle(norm) {
	case StyleAdventure, StyleCulture, StyleFood, StyleHiddenGems, StyleBestOverall:
		return TravelStyle(norm), true
	case "hiddengems":
		return StyleHiddenGems, true
	case "", "best", "bestoverall":
		return StyleBestOverall, norm != ""
	}
	return StyleBestOverall, false
}

// TripRequest is the immutable input to waypoint selection.
type TripRequest struct {
	Origin              string      `json:"origin"`
	Destination         string      `json:"destination"`
	Country             string      `json:"country,omitempty"`
	StopCount           int         `json:"stop_count"`
	Style               TravelStyle `json:"style"`
	BudgetTier          string      `json:"budget_tier"`
	NightsOnRoad        int         `json:"nights_on_road"`
	NightsAtDestination int         `json:"nights_at_destination"`
}

// Normalized returns a copy with the style resolved and negative counts zeroed.
// warnings lists every correction that was applied.
func (r TripRequest) Normalized() (TripRequest, []string) {
	var warnings []string
	out := r
	out.Origin = strings.TrimSpace(out.Origin)
	out.Destination = strings.TrimSpace(out.Destination)
	style, ok := ParseTravelStyle(string(out.Style))
	if !ok {
		warnings = append(warnings, "unknown travel style "+string(out.Style)+", using best-overall")
	}
	out.Style = style
	if out.StopCount < 0 {
		warnings = append(warnings, "negative stop count clamped to 0")
		out.StopCount = 0
	}
	if out.NightsOnRoad < 0 {
		warnings = append(warnings, "negative nights on road clamped to 0")
		out.NightsOnRoad = 0
	}
	if out.NightsAtDestination < 0 {
		warnings = append(warnings, "negative nights at destination clamped to 0")
		out.NightsAtDestination = 0
	}
	if strings.TrimSpace(out.BudgetTier) == "" {
		out.BudgetTier = "moderate"
	}
	return out, warnings
}

// TripContext carries the trip-level constraints the resolver hands to
// the content collaborator when it asks for a replacement.
type TripContext struct {
	Style           TravelStyle `json:"style"`
	Country         string      `json:"country,omitempty"`
	RemainingBudget *float64    `json:"remaining_budget,omitempty"`
	DayTheme        string      `json:"day_theme,omitempty"`
	Excluded        []string    `json:"excluded,omitempty"`
}
