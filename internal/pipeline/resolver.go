package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"roadplan/internal/common/geo"
	"roadplan/internal/places"
	"roadplan/internal/types"
)

const (
	DefaultMaxAttempts = 2
	DefaultRadiusKm    = 2.0
)

var errNoGenerator = errors.New("pipeline: no content generator configured")

// ConflictResolver repairs detected conflicts in severity order using
// local timeline shifts or regenerated activities.
type ConflictResolver struct {
	Content ContentGenerator
	// Places, when set, confirms regenerated activities exist.
	Places PlaceValidator
	// Distance answers travel checks for shifts and replacements; nil
	// falls back to straight-line estimates.
	Distance DistanceService
	Mode     types.TravelMode
	Logger   *log.Logger

	MaxAttempts       int
	RadiusKm          float64
	BufferMinutes     int
	MaxWalkMinutes    int
	GenerationTimeout time.Duration
	LookupTimeout     time.Duration
}

type resolveState struct {
	day      types.DayItinerary
	acts     []types.Activity
	tc       types.TripContext
	replaced map[int]bool
	// ceiling is the day budget seen on any budget conflict in the batch
	ceiling *float64
	// proposals the collaborator already offered for this day
	rejected []string
}

// Resolve never fails: every attempt, successful or not, is itemised in the
// result. Resolved is true only when no attempt failed and no blocking
// conflict from the batch still holds against the repaired plan.
func (r *ConflictResolver) Resolve(ctx context.Context, day types.DayItinerary, conflicts []types.Conflict, tc types.TripContext) types.ResolveResult {
	st := &resolveState{
		day:      day,
		acts:     day.Clone().Activities,
		tc:       tc,
		replaced: map[int]bool{},
		ceiling:  budgetCeiling(conflicts),
	}
	ordered := append([]types.Conflict(nil), conflicts...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Severity.Rank() < ordered[j].Severity.Rank() })

	var out []types.Resolution
	var warnings []string
	reported := make([]bool, len(ordered))
	for k, c := range ordered {
		if c.Severity == types.SeverityLow {
			warnings = append(warnings, c.Message)
			continue
		}
		// a replacement may already have cleared it
		if st.touchesReplaced(c) && !r.holds(ctx, st, c) {
			continue
		}
		res, ok := r.resolveOne(ctx, st, c)
		if !ok {
			continue
		}
		reported[k] = !res.Success
		out = append(out, res)
	}

	for k, c := range ordered {
		if reported[k] || !c.Severity.Blocking() || !r.holds(ctx, st, c) {
			continue
		}
		loggerOr(r.Logger).Printf("resolver: day=%d %s on %v still present", day.Index, c.Type, c.Indices)
		res := types.Resolution{
			Type:         types.ResolutionAdjustmentFailed,
			ConflictType: c.Type,
			Index:        c.Subject(),
			Reason:       "still present after repair",
		}
		if i := c.Subject(); i >= 0 && i < len(st.acts) {
			res.Before = st.acts[i].Name
		}
		out = append(out, res)
	}

	if len(warnings) > 0 {
		loggerOr(r.Logger).Printf("resolver: day=%d %d advisory conflicts logged", day.Index, len(warnings))
		out = append(out, types.Resolution{
			Type:     types.ResolutionLoggedWarnings,
			Success:  true,
			Index:    -1,
			Warnings: warnings,
		})
	}

	resolved := true
	for _, res := range out {
		if !res.Success {
			resolved = false
			break
		}
	}
	if out == nil {
		out = []types.Resolution{}
	}
	return types.ResolveResult{Resolved: resolved, Activities: st.acts, Resolutions: out}
}

func budgetCeiling(conflicts []types.Conflict) *float64 {
	for _, c := range conflicts {
		if c.Type == types.ConflictBudgetExceeded || c.Type == types.ConflictBudgetWarning {
			v := c.Details.Ceiling
			return &v
		}
	}
	return nil
}

func (st *resolveState) touchesReplaced(c types.Conflict) bool {
	for _, i := range c.Indices {
		if st.replaced[i] {
			return true
		}
	}
	return false
}

func (st *resolveState) total() float64 {
	costs := make([]string, len(st.acts))
	for i, a := range st.acts {
		costs[i] = a.Cost()
	}
	return TotalCost(costs)
}

// costCap is the most the activity at idx may cost for the day to fit
// under ceiling.
func (st *resolveState) costCap(idx int, ceiling float64) float64 {
	return math.Max(0, ceiling-(st.total()-ParseCost(st.acts[idx].Cost())))
}

// holds re-checks a conflict against the current plan.
func (r *ConflictResolver) holds(ctx context.Context, st *resolveState, c types.Conflict) bool {
	switch {
	case c.Type.IsAvailability():
		i := c.Subject()
		if i < 0 || i >= len(st.acts) {
			return false
		}
		a := st.acts[i]
		if a.Place == nil || !a.Place.Validated || len(a.Place.OpeningHours) == 0 {
			return false
		}
		wd, err := st.day.Weekday()
		if err != nil {
			return false
		}
		_, ok := availabilityConflict(i, a, wd)
		return ok

	case c.Type == types.ConflictTimelineOverlap, c.Type == types.ConflictInsufficientBuffer:
		i, j, ok := st.pair(c)
		if !ok {
			return false
		}
		gap := st.gap(i, j)
		if c.Type == types.ConflictTimelineOverlap {
			return gap < 0
		}
		return gap < r.buffer()

	case c.Type == types.ConflictInsufficientTravelTime, c.Type == types.ConflictUnrealisticWalk:
		i, j, ok := st.pair(c)
		if !ok {
			return false
		}
		travel, ok := r.travelBetween(ctx, st.acts[i], st.acts[j])
		if !ok {
			return false
		}
		if c.Type == types.ConflictUnrealisticWalk {
			return travel > r.maxWalk()
		}
		return travel > st.gap(i, j)

	case c.Type == types.ConflictBudgetExceeded:
		return st.total() > c.Details.Ceiling
	}
	return false
}

func (st *resolveState) pair(c types.Conflict) (int, int, bool) {
	if len(c.Indices) != 2 {
		return 0, 0, false
	}
	i, j := c.Indices[0], c.Indices[1]
	if i < 0 || j >= len(st.acts) || i >= j {
		return 0, 0, false
	}
	return i, j, true
}

func (st *resolveState) gap(i, j int) int {
	return int(st.acts[j].Window.Start - st.acts[i].Window.End)
}

func (r *ConflictResolver) maxWalk() int {
	if r.MaxWalkMinutes > 0 {
		return r.MaxWalkMinutes
	}
	return DefaultMaxWalkMinutes
}

// travelBetween returns travel minutes when both activities are located.
func (r *ConflictResolver) travelBetween(ctx context.Context, from, to types.Activity) (int, bool) {
	a, ok1 := from.Location()
	b, ok2 := to.Location()
	if !ok1 || !ok2 {
		return 0, false
	}
	return r.travel(ctx, a, b).Minutes(), true
}

func (r *ConflictResolver) travel(ctx context.Context, from, to types.LatLng) types.TravelEstimate {
	return lookupTravel(ctx, r.Distance, r.Mode, r.LookupTimeout, r.Logger, "resolver", from, to)
}

// clearance is the gap needed between from and to: the buffer, or the
// travel time when that is longer.
func (r *ConflictResolver) clearance(ctx context.Context, from, to types.Activity) int {
	need := r.buffer()
	if travel, ok := r.travelBetween(ctx, from, to); ok && travel > need {
		need = travel
	}
	return need
}

func (r *ConflictResolver) resolveOne(ctx context.Context, st *resolveState, c types.Conflict) (types.Resolution, bool) {
	idx := c.Subject()
	if idx < 0 || idx >= len(st.acts) {
		return types.Resolution{}, false
	}
	switch {
	case c.Type.IsAvailability():
		req := r.baseRequest(st, idx, c)
		req.RequireOpen = true
		return r.regenerate(ctx, st, c, idx, req), true

	case c.Type == types.ConflictInsufficientTravelTime:
		if res, ok := r.shiftForTravel(ctx, st, c, idx); ok {
			return res, true
		}
		return r.regenerate(ctx, st, c, idx, r.nearRequest(st, idx, c)), true

	case c.Type == types.ConflictUnrealisticWalk:
		return r.regenerate(ctx, st, c, idx, r.nearRequest(st, idx, c)), true

	case c.Type == types.ConflictBudgetExceeded:
		if st.total() <= c.Details.Ceiling {
			return types.Resolution{}, false
		}
		req := r.baseRequest(st, idx, c)
		maxCost := st.costCap(idx, c.Details.Ceiling)
		req.MaxCost = &maxCost
		return r.regenerate(ctx, st, c, idx, req), true

	case c.Type == types.ConflictTimelineOverlap, c.Type == types.ConflictInsufficientBuffer:
		return r.shiftForBuffer(ctx, st, c, idx), true
	}
	return types.Resolution{}, false
}

func (r *ConflictResolver) buffer() int {
	if r.BufferMinutes > 0 {
		return r.BufferMinutes
	}
	return DefaultBufferMinutes
}

// shiftForTravel pushes the later activity forward by the travel shortfall
// measured against the current plan.
func (r *ConflictResolver) shiftForTravel(ctx context.Context, st *resolveState, c types.Conflict, idx int) (types.Resolution, bool) {
	if idx == 0 {
		return types.Resolution{}, false
	}
	travel, ok := r.travelBetween(ctx, st.acts[idx-1], st.acts[idx])
	if !ok {
		travel = c.Details.TravelMinutes
	}
	need := travel - st.gap(idx-1, idx)
	if need <= 0 {
		return types.Resolution{Type: types.ResolutionTimelineAdjusted, Success: true, ConflictType: c.Type, Index: idx,
			Before: st.acts[idx].Name, After: st.acts[idx].Name, Reason: "already satisfied"}, true
	}
	if !r.canShift(ctx, st, idx, need) {
		return types.Resolution{}, false
	}
	return r.applyShift(st, c, idx, need), true
}

func (r *ConflictResolver) shiftForBuffer(ctx context.Context, st *resolveState, c types.Conflict, idx int) types.Resolution {
	res := types.Resolution{ConflictType: c.Type, Index: idx, Before: st.acts[idx].Name}
	if idx == 0 {
		res.Type = types.ResolutionAdjustmentFailed
		res.Reason = "no preceding activity"
		return res
	}
	need := r.clearance(ctx, st.acts[idx-1], st.acts[idx]) - st.gap(idx-1, idx)
	if need <= 0 {
		res.Type = types.ResolutionTimelineAdjusted
		res.Success = true
		res.After = st.acts[idx].Name
		res.Reason = "already satisfied"
		return res
	}
	if !r.canShift(ctx, st, idx, need) {
		res.Type = types.ResolutionAdjustmentFailed
		res.Reason = fmt.Sprintf("shifting %d min would collide with the next activity", need)
		return res
	}
	return r.applyShift(st, c, idx, need)
}

// canShift checks the moved activity still leaves its successor the buffer
// or the travel time, whichever is longer, ends before midnight and starts
// inside its opening hours.
func (r *ConflictResolver) canShift(ctx context.Context, st *resolveState, idx, minutes int) bool {
	a := st.acts[idx]
	start := a.Window.Start + types.Clock(minutes)
	end := a.Window.End + types.Clock(minutes)
	if end > minutesPerDay {
		return false
	}
	if idx+1 < len(st.acts) {
		next := st.acts[idx+1]
		if end+types.Clock(r.clearance(ctx, a, next)) > next.Window.Start {
			return false
		}
	}
	if a.Place != nil && a.Place.Validated && len(a.Place.OpeningHours) > 0 {
		if wd, err := st.day.Weekday(); err == nil {
			if checkAvailability(a.Place.OpeningHours, wd, start).status != availOpen {
				return false
			}
		}
	}
	return true
}

func (r *ConflictResolver) applyShift(st *resolveState, c types.Conflict, idx, minutes int) types.Resolution {
	a := &st.acts[idx]
	a.Window.Start += types.Clock(minutes)
	a.Window.End += types.Clock(minutes)
	loggerOr(r.Logger).Printf("resolver: day=%d shifted %q by %dmin (%s)", st.day.Index, a.Name, minutes, c.Type)
	return types.Resolution{
		Type:         types.ResolutionTimelineAdjusted,
		Success:      true,
		ConflictType: c.Type,
		Index:        idx,
		Before:       a.Name,
		After:        a.Name,
		ShiftMinutes: minutes,
	}
}

func (r *ConflictResolver) baseRequest(st *resolveState, idx int, c types.Conflict) types.ReplacementRequest {
	a := st.acts[idx]
	req := types.ReplacementRequest{
		City:            st.day.City,
		Country:         st.tc.Country,
		Date:            st.day.Date,
		Window:          a.Window,
		ActivityType:    a.Type,
		Energy:          a.Energy,
		Style:           st.tc.Style,
		DayTheme:        st.tc.DayTheme,
		RemainingBudget: st.tc.RemainingBudget,
		Reason:          string(c.Type),
	}
	if wd, err := st.day.Weekday(); err == nil {
		req.Weekday = wd.String()
	}
	return req
}

// nearRequest constrains the replacement to a radius around the preceding
// activity when its location is known.
func (r *ConflictResolver) nearRequest(st *resolveState, idx int, c types.Conflict) types.ReplacementRequest {
	req := r.baseRequest(st, idx, c)
	if idx > 0 {
		if loc, ok := st.acts[idx-1].Location(); ok {
			req.Near = &loc
			req.RadiusKm = r.RadiusKm
			if req.RadiusKm <= 0 {
				req.RadiusKm = DefaultRadiusKm
			}
		}
	}
	return req
}

func (st *resolveState) exclusions(idx int) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}
	for _, n := range st.tc.Excluded {
		add(n)
	}
	add(st.acts[idx].Name)
	for i, a := range st.acts {
		if i != idx {
			add(a.Name)
		}
	}
	for _, n := range st.rejected {
		add(n)
	}
	return out
}

func (r *ConflictResolver) regenerate(ctx context.Context, st *resolveState, c types.Conflict, idx int, req types.ReplacementRequest) types.Resolution {
	before := st.acts[idx]
	res := types.Resolution{ConflictType: c.Type, Index: idx, Before: before.Name}
	if r.Content == nil {
		res.Type = types.ResolutionRegenerationFailed
		res.Reason = errNoGenerator.Error()
		return res
	}
	if req.MaxCost == nil && st.ceiling != nil {
		maxCost := st.costCap(idx, *st.ceiling)
		req.MaxCost = &maxCost
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	var lastErr error
	for n := 1; n <= attempts; n++ {
		res.Attempts = n
		req.Excluded = st.exclusions(idx)
		cctx, cancel := withTimeout(ctx, r.GenerationTimeout, DefaultGenerationTimeout)
		act, err := r.Content.ProposeReplacement(cctx, req)
		if err == nil {
			act, err = r.check(cctx, st, idx, act, req)
		}
		cancel()
		if err != nil {
			lastErr = err
			if act.Name != "" {
				st.rejected = append(st.rejected, act.Name)
			}
			loggerOr(r.Logger).Printf("resolver: day=%d regenerate %q attempt %d/%d: %v", st.day.Index, before.Name, n, attempts, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		act.Window = before.Window
		st.acts[idx] = act
		st.replaced[idx] = true
		loggerOr(r.Logger).Printf("resolver: day=%d replaced %q with %q (%s)", st.day.Index, before.Name, act.Name, c.Type)
		res.Type = types.ResolutionActivityRegenerated
		res.Success = true
		res.After = act.Name
		return res
	}
	res.Type = types.ResolutionRegenerationFailed
	if lastErr != nil {
		res.Reason = lastErr.Error()
	}
	return res
}

// check validates a proposal against the request constraints and its
// neighbours in the plan. The returned activity keeps its name on error so
// it can be excluded.
func (r *ConflictResolver) check(ctx context.Context, st *resolveState, idx int, act types.Activity, req types.ReplacementRequest) (types.Activity, error) {
	if strings.TrimSpace(act.Name) == "" {
		return act, errors.New("replacement has no name")
	}
	for _, ex := range req.Excluded {
		if strings.EqualFold(strings.TrimSpace(ex), strings.TrimSpace(act.Name)) {
			return act, fmt.Errorf("replacement %q is excluded", act.Name)
		}
	}
	if r.Places != nil {
		d, err := r.Places.Validate(ctx, act.Name, st.tc.Country)
		switch {
		case errors.Is(err, places.ErrNotFound):
			return act, fmt.Errorf("replacement %q not found", act.Name)
		case err != nil:
			loggerOr(r.Logger).Printf("resolver: validation unavailable for %q, keeping unvalidated: %v", act.Name, err)
		default:
			act = mergePlace(act, d)
		}
	}
	if act.Place != nil && act.Place.Validated && len(act.Place.OpeningHours) > 0 {
		if wd, err := st.day.Weekday(); err == nil {
			if checkAvailability(act.Place.OpeningHours, wd, req.Window.Start).status != availOpen {
				return act, fmt.Errorf("replacement %q is not open at %s", act.Name, req.Window.Start)
			}
		}
	}
	if req.Near != nil {
		if loc, ok := act.Location(); ok {
			if km := geo.Distance(*req.Near, loc); km > req.RadiusKm {
				return act, fmt.Errorf("replacement %q is %.1f km away, limit %.1f", act.Name, km, req.RadiusKm)
			}
		}
	}
	if req.MaxCost != nil {
		if cost := ParseCost(act.Cost()); cost > *req.MaxCost {
			return act, fmt.Errorf("replacement %q costs %.2f, limit %.2f", act.Name, cost, *req.MaxCost)
		}
	}
	act.Window = req.Window
	if idx > 0 {
		if err := r.reachable(ctx, st.acts[idx-1], act); err != nil {
			return act, err
		}
	}
	if idx+1 < len(st.acts) {
		if err := r.reachable(ctx, act, st.acts[idx+1]); err != nil {
			return act, err
		}
	}
	return act, nil
}

// reachable rejects a leg that would be an unrealistic walk or longer than
// the gap between the two activities.
func (r *ConflictResolver) reachable(ctx context.Context, from, to types.Activity) error {
	travel, ok := r.travelBetween(ctx, from, to)
	if !ok {
		return nil
	}
	if travel > r.maxWalk() {
		return fmt.Errorf("%d min walk between %q and %q", travel, from.Name, to.Name)
	}
	if gap := int(to.Window.Start - from.Window.End); travel > gap {
		return fmt.Errorf("%d min needed between %q and %q, %d available", travel, from.Name, to.Name, gap)
	}
	return nil
}

func mergePlace(act types.Activity, d types.PlaceDetails) types.Activity {
	out := act.Clone()
	if out.Place == nil {
		out.Place = &types.PlaceRef{}
	}
	loc := d.Location
	out.Place.Validated = true
	out.Place.PlaceID = d.PlaceID
	out.Place.Location = &loc
	if d.FormattedAddress != "" {
		out.Place.Address = d.FormattedAddress
	}
	if len(d.OpeningHours) > 0 {
		out.Place.OpeningHours = d.OpeningHours
	}
	return out
}
