package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"roadplan/internal/common/utils"
	"roadplan/internal/distance"
	"roadplan/internal/types"
)

const (
	DefaultBufferMinutes   = 10
	DefaultMaxWalkMinutes  = 30
	DefaultBudgetWarnRatio = 0.8
)

// ConflictDetector inspects a day plan for timeline, availability,
// geographic and budget problems. It never mutates the day.
type ConflictDetector struct {
	Distance DistanceService
	Mode     types.TravelMode
	Logger   *log.Logger

	BufferMinutes   int
	MaxWalkMinutes  int
	BudgetWarnRatio float64
	LookupTimeout   time.Duration
}

func (d *ConflictDetector) buffer() int {
	if d.BufferMinutes > 0 {
		return d.BufferMinutes
	}
	return DefaultBufferMinutes
}

// Detect returns conflicts grouped by check (timeline, availability,
// geographic, budget) and ordered by activity index within each group.
// The budget check runs only when ceiling is non-nil.
func (d *ConflictDetector) Detect(ctx context.Context, day types.DayItinerary, ceiling *float64) []types.Conflict {
	out := make([]types.Conflict, 0)
	out = append(out, d.timeline(day.Activities)...)
	out = append(out, d.availability(day)...)
	out = append(out, d.geographic(ctx, day.Activities)...)
	if ceiling != nil {
		out = append(out, d.budget(day.Activities, *ceiling)...)
	}
	return out
}

func (d *ConflictDetector) timeline(acts []types.Activity) []types.Conflict {
	var out []types.Conflict
	buffer := d.buffer()
	for i := 0; i+1 < len(acts); i++ {
		cur, next := acts[i], acts[i+1]
		gap := int(next.Window.Start - cur.Window.End)
		switch {
		case gap < 0:
			out = append(out, types.Conflict{
				Type:     types.ConflictTimelineOverlap,
				Severity: types.SeverityHigh,
				Indices:  []int{i, i + 1},
				Message:  fmt.Sprintf("%s overlaps %s by %d min", cur.Name, next.Name, -gap),
				Details:  types.ConflictDetails{GapMinutes: gap, RequiredBuffer: buffer},
			})
		case gap < buffer:
			out = append(out, types.Conflict{
				Type:     types.ConflictInsufficientBuffer,
				Severity: types.SeverityMedium,
				Indices:  []int{i, i + 1},
				Message:  fmt.Sprintf("only %d min between %s and %s, need %d", gap, cur.Name, next.Name, buffer),
				Details:  types.ConflictDetails{GapMinutes: gap, RequiredBuffer: buffer},
			})
		}
	}
	return out
}

func (d *ConflictDetector) availability(day types.DayItinerary) []types.Conflict {
	var out []types.Conflict
	weekday, err := day.Weekday()
	dateOK := err == nil
	if !dateOK {
		loggerOr(d.Logger).Printf("detector: day=%d skipping opening hours: %v", day.Index, err)
	}
	for i, a := range day.Activities {
		if a.Place == nil || !a.Place.Validated {
			continue
		}
		if len(a.Place.OpeningHours) == 0 {
			out = append(out, types.Conflict{
				Type:     types.ConflictMissingHoursData,
				Severity: types.SeverityLow,
				Indices:  []int{i},
				Message:  fmt.Sprintf("no opening hours known for %s", a.Name),
			})
			continue
		}
		if !dateOK {
			continue
		}
		if c, ok := availabilityConflict(i, a, weekday); ok {
			out = append(out, c)
		}
	}
	return out
}

func availabilityConflict(i int, a types.Activity, weekday time.Weekday) (types.Conflict, bool) {
	start := a.Window.Start
	chk := checkAvailability(a.Place.OpeningHours, weekday, start)
	details := types.ConflictDetails{Weekday: weekday.String(), ScheduledStart: &start}
	switch chk.status {
	case availClosedAllDay:
		return types.Conflict{
			Type:     types.ConflictClosedAllDay,
			Severity: types.SeverityCritical,
			Indices:  []int{i},
			Message:  fmt.Sprintf("%s is closed on %s", a.Name, weekday),
			Details:  details,
		}, true
	case availBeforeOpening:
		opens := chk.opensAt
		details.OpensAt = &opens
		details.MinutesBeforeOpening = int(opens - start)
		return types.Conflict{
			Type:     types.ConflictBeforeOpening,
			Severity: types.SeverityHigh,
			Indices:  []int{i},
			Message:  fmt.Sprintf("%s starts at %s but opens at %s", a.Name, start, opens),
			Details:  details,
		}, true
	case availAfterClosing:
		closes := chk.closesAt
		details.ClosesAt = &closes
		details.MinutesAfterClosing = int(start - closes)
		return types.Conflict{
			Type:     types.ConflictAfterClosing,
			Severity: types.SeverityHigh,
			Indices:  []int{i},
			Message:  fmt.Sprintf("%s starts at %s but closes at %s", a.Name, start, closes),
			Details:  details,
		}, true
	}
	return types.Conflict{}, false
}

func (d *ConflictDetector) geographic(ctx context.Context, acts []types.Activity) []types.Conflict {
	var out []types.Conflict
	maxWalk := d.MaxWalkMinutes
	if maxWalk <= 0 {
		maxWalk = DefaultMaxWalkMinutes
	}
	for i := 0; i+1 < len(acts); i++ {
		from, ok1 := acts[i].Location()
		to, ok2 := acts[i+1].Location()
		if !ok1 || !ok2 {
			continue
		}
		est := d.travel(ctx, from, to)
		travel := est.Minutes()
		gap := int(acts[i+1].Window.Start - acts[i].Window.End)
		details := types.ConflictDetails{
			TravelMinutes:    travel,
			AvailableMinutes: gap,
			GapMinutes:       gap,
			DistanceMeters:   est.DistanceMeters,
			Estimated:        est.Estimated,
		}
		if travel > maxWalk {
			out = append(out, types.Conflict{
				Type:     types.ConflictUnrealisticWalk,
				Severity: types.SeverityHigh,
				Indices:  []int{i, i + 1},
				Message:  fmt.Sprintf("%d min walk from %s to %s", travel, acts[i].Name, acts[i+1].Name),
				Details:  details,
			})
		}
		if travel > gap {
			sd := details
			sd.ShortfallMinutes = travel - gap
			out = append(out, types.Conflict{
				Type:     types.ConflictInsufficientTravelTime,
				Severity: types.SeverityCritical,
				Indices:  []int{i, i + 1},
				Message:  fmt.Sprintf("%d min needed to reach %s, %d available", travel, acts[i+1].Name, gap),
				Details:  sd,
			})
		}
	}
	return out
}

func (d *ConflictDetector) travel(ctx context.Context, from, to types.LatLng) types.TravelEstimate {
	return lookupTravel(ctx, d.Distance, d.Mode, d.LookupTimeout, d.Logger, "detector", from, to)
}

// lookupTravel asks svc for a travel time and falls back to a straight-line
// estimate when svc is nil or the lookup fails.
func lookupTravel(ctx context.Context, svc DistanceService, mode types.TravelMode, timeout time.Duration, logger *log.Logger, component string, from, to types.LatLng) types.TravelEstimate {
	if mode == "" {
		mode = types.ModeWalking
	}
	if svc != nil {
		cctx, cancel := withTimeout(ctx, timeout, DefaultLookupTimeout)
		est, err := svc.TravelTime(cctx, from, to, mode)
		cancel()
		if err == nil {
			return est
		}
		loggerOr(logger).Printf("%s: travel time lookup failed, estimating: %v", component, err)
	}
	return distance.Estimate(from, to, mode)
}

func (d *ConflictDetector) budget(acts []types.Activity, ceiling float64) []types.Conflict {
	ratio := d.BudgetWarnRatio
	if ratio <= 0 {
		ratio = DefaultBudgetWarnRatio
	}
	costs := make([]string, len(acts))
	priciest, priciestCost := -1, 0.0
	for i, a := range acts {
		costs[i] = a.Cost()
		if c := ParseCost(costs[i]); c > priciestCost {
			priciest, priciestCost = i, c
		}
	}
	total := TotalCost(costs)
	var indices []int
	if priciest >= 0 {
		indices = []int{priciest}
	}
	usage := 0.0
	if ceiling > 0 {
		usage = utils.Round2(total / ceiling)
	}
	details := types.ConflictDetails{TotalCost: total, Ceiling: ceiling, UsageRatio: usage}
	switch {
	case total > ceiling:
		return []types.Conflict{{
			Type:     types.ConflictBudgetExceeded,
			Severity: types.SeverityHigh,
			Indices:  indices,
			Message:  fmt.Sprintf("day costs %.2f, over the %.2f budget", total, ceiling),
			Details:  details,
		}}
	case total > ratio*ceiling:
		return []types.Conflict{{
			Type:     types.ConflictBudgetWarning,
			Severity: types.SeverityLow,
			Indices:  indices,
			Message:  fmt.Sprintf("day costs %.2f, %.0f%% of the budget", total, usage*100),
			Details:  details,
		}}
	}
	return nil
}
