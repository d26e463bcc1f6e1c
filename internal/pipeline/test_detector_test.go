package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadplan/internal/distance"
	"roadplan/internal/types"
)

// 2024-06-10 is a Monday.
const monday = "2024-06-10"

func venue(a types.Activity, loc types.LatLng, hours []types.OpeningPeriod, cost string) types.Activity {
	a = located(a, loc)
	a.Place.Validated = true
	a.Place.OpeningHours = hours
	a.Place.Cost = cost
	return a
}

func newDetector() *ConflictDetector {
	return &ConflictDetector{Distance: distance.Estimator{}, Logger: quietLogger()}
}

func TestDetectInsufficientBuffer(t *testing.T) {
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		act("Cathedral", 9, 0, 10, 0),
		act("Museum", 10, 5, 11, 0),
	}}
	cs := newDetector().Detect(context.Background(), day, nil)
	require.Len(t, cs, 1)
	assert.Equal(t, types.ConflictInsufficientBuffer, cs[0].Type)
	assert.Equal(t, types.SeverityMedium, cs[0].Severity)
	assert.Equal(t, 5, cs[0].Details.GapMinutes)
	assert.Equal(t, []int{0, 1}, cs[0].Indices)
}

func TestDetectOverlap(t *testing.T) {
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		act("a", 9, 0, 10, 30),
		act("b", 10, 0, 11, 0),
		act("c", 11, 10, 12, 0),
	}}
	cs := newDetector().Detect(context.Background(), day, nil)
	require.Len(t, cs, 1)
	assert.Equal(t, types.ConflictTimelineOverlap, cs[0].Type)
	assert.Equal(t, types.SeverityHigh, cs[0].Severity)
	assert.Equal(t, -30, cs[0].Details.GapMinutes)
}

func TestDetectBeforeOpening(t *testing.T) {
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		venue(act("Palais Longchamp", 8, 0, 9, 0), vieuxPort, weekly(clock(10, 0), clock(18, 0), 1, 2, 3), ""),
	}}
	cs := newDetector().Detect(context.Background(), day, nil)
	require.Len(t, cs, 1)
	c := cs[0]
	assert.Equal(t, types.ConflictBeforeOpening, c.Type)
	assert.Equal(t, types.SeverityHigh, c.Severity)
	assert.Equal(t, 120, c.Details.MinutesBeforeOpening)
	require.NotNil(t, c.Details.OpensAt)
	assert.Equal(t, clock(10, 0), *c.Details.OpensAt)
	assert.Equal(t, "Monday", c.Details.Weekday)
}

func TestDetectAvailability(t *testing.T) {
	cases := []struct {
		name     string
		a        types.Activity
		want     types.ConflictType
		severity types.Severity
	}{
		{"closed on monday", venue(act("x", 10, 0, 11, 0), vieuxPort, weekly(clock(9, 0), clock(17, 0), 2, 3), ""),
			types.ConflictClosedAllDay, types.SeverityCritical},
		{"after closing", venue(act("x", 19, 0, 20, 0), vieuxPort, weekly(clock(9, 0), clock(18, 0), 1), ""),
			types.ConflictAfterClosing, types.SeverityHigh},
		{"no hours", venue(act("x", 19, 0, 20, 0), vieuxPort, nil, ""),
			types.ConflictMissingHoursData, types.SeverityLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			day := types.DayItinerary{Date: monday, Activities: []types.Activity{tc.a}}
			cs := newDetector().Detect(context.Background(), day, nil)
			require.Len(t, cs, 1)
			assert.Equal(t, tc.want, cs[0].Type)
			assert.Equal(t, tc.severity, cs[0].Severity)
		})
	}
}

func TestDetectAfterClosingMinutes(t *testing.T) {
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		venue(act("x", 19, 0, 20, 0), vieuxPort, weekly(clock(9, 0), clock(18, 0), 1), ""),
	}}
	cs := newDetector().Detect(context.Background(), day, nil)
	require.Len(t, cs, 1)
	assert.Equal(t, 60, cs[0].Details.MinutesAfterClosing)
}

func TestDetectSkipsUnvalidatedAndBadDates(t *testing.T) {
	closed := weekly(clock(9, 0), clock(17, 0), 2)
	unvalidated := venue(act("x", 10, 0, 11, 0), vieuxPort, closed, "")
	unvalidated.Place.Validated = false

	day := types.DayItinerary{Date: monday, Activities: []types.Activity{unvalidated}}
	assert.Empty(t, newDetector().Detect(context.Background(), day, nil))

	bad := types.DayItinerary{Date: "next tuesday", Activities: []types.Activity{
		venue(act("x", 10, 0, 11, 0), vieuxPort, closed, ""),
	}}
	assert.Empty(t, newDetector().Detect(context.Background(), bad, nil))
}

func TestDetectInsufficientTravelTime(t *testing.T) {
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		located(act("Vieux-Port", 9, 0, 10, 0), vieuxPort),
		located(act("MuCEM", 10, 10, 11, 0), mucem),
	}}
	cs := newDetector().Detect(context.Background(), day, nil)
	require.Len(t, cs, 1)
	c := cs[0]
	assert.Equal(t, types.ConflictInsufficientTravelTime, c.Type)
	assert.Equal(t, types.SeverityCritical, c.Severity)
	assert.Equal(t, 14, c.Details.TravelMinutes)
	assert.Equal(t, 10, c.Details.AvailableMinutes)
	assert.Equal(t, 4, c.Details.ShortfallMinutes)
}

func TestDetectUnrealisticWalk(t *testing.T) {
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		located(act("Aix", 9, 0, 10, 0), aix),
		located(act("Marseille", 16, 0, 17, 0), vieuxPort),
	}}
	cs := newDetector().Detect(context.Background(), day, nil)
	require.Len(t, cs, 1)
	assert.Equal(t, types.ConflictUnrealisticWalk, cs[0].Type)
	assert.Equal(t, types.SeverityHigh, cs[0].Severity)

	day.Activities[1].Window = types.TimeWindow{Start: clock(10, 30), End: clock(11, 0)}
	cs = newDetector().Detect(context.Background(), day, nil)
	require.Len(t, cs, 2)
	assert.Equal(t, types.ConflictUnrealisticWalk, cs[0].Type)
	assert.Equal(t, types.ConflictInsufficientTravelTime, cs[1].Type)
}

func TestDetectTravelLookupFailureIsEstimated(t *testing.T) {
	d := &ConflictDetector{Distance: failingDistance{}, Logger: quietLogger(), LookupTimeout: time.Second}
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		located(act("Vieux-Port", 9, 0, 10, 0), vieuxPort),
		located(act("MuCEM", 10, 10, 11, 0), mucem),
	}}
	cs := d.Detect(context.Background(), day, nil)
	require.Len(t, cs, 1)
	assert.True(t, cs[0].Details.Estimated)
	assert.Equal(t, 14, cs[0].Details.TravelMinutes)
}

func costDay() types.DayItinerary {
	acts := []types.Activity{
		act("Château d'If", 9, 0, 10, 0),
		act("Notre-Dame de la Garde", 10, 30, 11, 30),
		act("Musée Cantini", 12, 0, 13, 0),
	}
	for i, cost := range []string{"€15", "Free", "€8.50"} {
		acts[i].Place = &types.PlaceRef{Cost: cost}
	}
	return types.DayItinerary{Date: monday, Activities: acts}
}

func TestDetectBudgetExceeded(t *testing.T) {
	cs := newDetector().Detect(context.Background(), costDay(), ptr(20.0))
	require.Len(t, cs, 1)
	c := cs[0]
	assert.Equal(t, types.ConflictBudgetExceeded, c.Type)
	assert.Equal(t, types.SeverityHigh, c.Severity)
	assert.InDelta(t, 23.5, c.Details.TotalCost, 1e-9)
	assert.Equal(t, []int{0}, c.Indices)
}

func TestDetectBudgetWarning(t *testing.T) {
	cs := newDetector().Detect(context.Background(), costDay(), ptr(25.0))
	require.Len(t, cs, 1)
	assert.Equal(t, types.ConflictBudgetWarning, cs[0].Type)
	assert.Equal(t, types.SeverityLow, cs[0].Severity)

	assert.Empty(t, newDetector().Detect(context.Background(), costDay(), ptr(100.0)))
	assert.Empty(t, newDetector().Detect(context.Background(), costDay(), nil))
}

func TestDetectOrderAndDeterminism(t *testing.T) {
	day := costDay()
	day.Activities[1] = venue(day.Activities[1], vieuxPort, weekly(clock(12, 0), clock(18, 0), 1), "Free")
	day.Activities[2] = venue(day.Activities[2], mucem, nil, "€8.50")
	day.Activities[2].Window = types.TimeWindow{Start: clock(11, 35), End: clock(12, 30)}

	d := newDetector()
	first := d.Detect(context.Background(), day, ptr(20.0))
	second := d.Detect(context.Background(), day, ptr(20.0))
	assert.Equal(t, first, second)

	var got []types.ConflictType
	for _, c := range first {
		got = append(got, c.Type)
	}
	assert.Equal(t, []types.ConflictType{
		types.ConflictInsufficientBuffer,
		types.ConflictBeforeOpening,
		types.ConflictMissingHoursData,
		types.ConflictInsufficientTravelTime,
		types.ConflictBudgetExceeded,
	}, got)
}

func TestParseCost(t *testing.T) {
	cases := map[string]float64{
		"€15":                       15,
		"Free":                      0,
		"gratuit":                   0,
		"Free entry":                0,
		"€8.50":                     8.5,
		"8,50 EUR":                  8.5,
		"1,250":                     1250,
		"1.250,75 €":                1250.75,
		"$1,250.75":                 1250.75,
		"Adults 12, kids 6":         12,
		"Adults €15, children free": 15,
		"Gratuit / 5 € exposition":  5,
		"ask at the desk":           0,
		"":                          0,
	}
	for in, want := range cases {
		if got := ParseCost(in); got != want {
			t.Fatalf("ParseCost(%q)=%v want %v", in, got, want)
		}
	}
	assert.Equal(t, 23.5, TotalCost([]string{"€15", "Free", "€8.50"}))
	assert.Equal(t, 20.0, TotalCost([]string{"Adults €15, children free", "€5"}))
}

func TestDetectBudgetCountsPartlyFreeAdmission(t *testing.T) {
	day := costDay()
	day.Activities[1].Place.Cost = "Adults €15, children free"
	cs := newDetector().Detect(context.Background(), day, ptr(30.0))
	require.Len(t, cs, 1)
	assert.Equal(t, types.ConflictBudgetExceeded, cs[0].Type)
	assert.Equal(t, 38.5, cs[0].Details.TotalCost)
}

func TestWindowsOn(t *testing.T) {
	overnight := []types.OpeningPeriod{{
		Open:  types.DayTime{Day: 5, Time: clock(22, 0)},
		Close: &types.DayTime{Day: 6, Time: clock(2, 0)},
	}}
	assert.Equal(t, []openWindow{{open: 0, close: clock(2, 0)}}, windowsOn(overnight, time.Saturday))
	assert.Equal(t, []openWindow{{open: clock(22, 0), close: clock(26, 0)}}, windowsOn(overnight, time.Friday))
	assert.Empty(t, windowsOn(overnight, time.Sunday))

	always := []types.OpeningPeriod{{Open: types.DayTime{Day: 0, Time: 0}}}
	for d := time.Sunday; d <= time.Saturday; d++ {
		assert.Equal(t, []openWindow{{open: 0, close: minutesPerDay}}, windowsOn(always, d))
	}
}

func TestCheckAvailabilityBetweenWindows(t *testing.T) {
	split := append(weekly(clock(9, 0), clock(12, 0), 1), weekly(clock(14, 0), clock(18, 0), 1)...)
	chk := checkAvailability(split, time.Monday, clock(13, 0))
	assert.Equal(t, availBeforeOpening, chk.status)
	assert.Equal(t, clock(14, 0), chk.opensAt)

	assert.Equal(t, availOpen, checkAvailability(split, time.Monday, clock(9, 0)).status)
	assert.Equal(t, availAfterClosing, checkAvailability(split, time.Monday, clock(18, 0)).status)
}
