package types

// OptimizeResult is the outcome of intra-day reordering.
type OptimizeResult struct {
	Optimized          bool       `json:"optimized"`
	Activities         []Activity `json:"activities"`
	ImprovementMinutes float64    `json:"improvement_minutes"`
	BeforeMinutes      float64    `json:"before_minutes"`
	AfterMinutes       float64    `json:"after_minutes"`
	Buckets            [][]int    `json:"buckets,omitempty"`
	EstimatedPairs     int        `json:"estimated_pairs,omitempty"`
}

// ResolveResult is the outcome of one resolver pass.
type ResolveResult struct {
	Resolved    bool         `json:"resolved"`
	Activities  []Activity   `json:"activities"`
	Resolutions []Resolution `json:"resolutions"`
}

// DayReport summarises the full optimise/detect/resolve loop for one day.
type DayReport struct {
	Day          DayItinerary   `json:"day"`
	Optimization OptimizeResult `json:"optimization"`
	Conflicts    []Conflict     `json:"conflicts"`
	Resolutions  []Resolution   `json:"resolutions"`
	Passes       int            `json:"passes"`
	Resolved     bool           `json:"resolved"`
}
