package types

// ConflictType is the fixed conflict taxonomy.
type ConflictType string

const (
	ConflictTimelineOverlap        ConflictType = "timeline_overlap"
	ConflictInsufficientBuffer     ConflictType = "insufficient_buffer"
	ConflictClosedAllDay           ConflictType = "closed_all_day"
	ConflictBeforeOpening          ConflictType = "before_opening"
	ConflictAfterClosing           ConflictType = "after_closing"
	ConflictMissingHoursData       ConflictType = "missing_hours_data"
	ConflictUnrealisticWalk        ConflictType = "unrealistic_walk"
	ConflictInsufficientTravelTime ConflictType = "insufficient_travel_time"
	ConflictBudgetExceeded         ConflictType = "budget_exceeded"
	ConflictBudgetWarning          ConflictType = "budget_warning"
)

// IsAvailability reports whether the conflict concerns opening hours.
func (t ConflictType) IsAvailability() bool {
	switch t {
	case ConflictClosedAllDay, ConflictBeforeOpening, ConflictAfterClosing:
		return true
	}
	return false
}

// Severity orders conflicts for resolution.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns 0 for critical up to 3 for low; unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Blocking reports whether the severity keeps a day from being considered resolved.
func (s Severity) Blocking() bool { return s == SeverityCritical || s == SeverityHigh }

// ConflictDetails is the type-specific payload. Only the fields relevant
// to the conflict type are populated.
type ConflictDetails struct {
	GapMinutes           int     `json:"gap_minutes"`
	RequiredBuffer       int     `json:"required_buffer,omitempty"`
	Weekday              string  `json:"weekday,omitempty"`
	ScheduledStart       *Clock  `json:"scheduled_start,omitempty"`
	OpensAt              *Clock  `json:"opens_at,omitempty"`
	ClosesAt             *Clock  `json:"closes_at,omitempty"`
	MinutesBeforeOpening int     `json:"minutes_before_opening,omitempty"`
	MinutesAfterClosing  int     `json:"minutes_after_closing,omitempty"`
	TravelMinutes        int     `json:"travel_minutes,omitempty"`
	AvailableMinutes     int     `json:"available_minutes,omitempty"`
	ShortfallMinutes     int     `json:"shortfall_minutes,omitempty"`
	DistanceMeters       int     `json:"distance_meters,omitempty"`
	Estimated            bool    `json:"estimated,omitempty"`
	TotalCost            float64 `json:"total_cost,omitempty"`
	Ceiling              float64 `json:"ceiling,omitempty"`
	UsageRatio           float64 `json:"usage_ratio,omitempty"`
}

// Conflict is a detected problem in a day plan. Conflicts are values and
// are never mutated after detection.
type Conflict struct {
	Type     ConflictType    `json:"type"`
	Severity Severity        `json:"severity"`
	Indices  []int           `json:"indices"`
	Message  string          `json:"message"`
	Details  ConflictDetails `json:"details"`
}

// Subject returns the activity index a repair should act on: the later
// activity for pairwise conflicts, the only one otherwise, -1 for day-wide.
func (c Conflict) Subject() int {
	if len(c.Indices) == 0 {
		return -1
	}
	return c.Indices[len(c.Indices)-1]
}

// ResolutionType records what the resolver attempted.
type ResolutionType string

const (
	ResolutionActivityRegenerated ResolutionType = "activity_regenerated"
	ResolutionTimelineAdjusted    ResolutionType = "timeline_adjusted"
	ResolutionRegenerationFailed  ResolutionType = "regeneration_failed"
	ResolutionAdjustmentFailed    ResolutionType = "adjustment_failed"
	ResolutionLoggedWarnings      ResolutionType = "logged_warnings"
)

// Resolution is an itemised repair record.
type Resolution struct {
	Type         ResolutionType `json:"type"`
	Success      bool           `json:"success"`
	ConflictType ConflictType   `json:"conflict_type,omitempty"`
	Index        int            `json:"index"`
	Before       string         `json:"before,omitempty"`
	After        string         `json:"after,omitempty"`
	ShiftMinutes int            `json:"shift_minutes,omitempty"`
	Attempts     int            `json:"attempts,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}
