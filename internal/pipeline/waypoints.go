package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"roadplan/internal/common/geo"
	"roadplan/internal/common/utils"
	"roadplan/internal/types"
)

const (
	MinTargetWaypoints = 1
	MaxTargetWaypoints = 10
	AlternateCount     = 3

	weightProgression   = 0.4
	weightValidation    = 0.3
	weightHighlights    = 0.2
	weightJustification = 0.1

	highlightCap     = 5
	justificationCap = 200
)

// NightPolicy distributes nights over ordered waypoints given their
// recommended ranges. It returns one count per waypoint and whether the
// degraded one-night-each fallback was used.
type NightPolicy func(mins, maxs []int, nights int) (alloc []int, degraded bool)

// WaypointSelector turns a trip request into a validated, ordered route skeleton.
type WaypointSelector struct {
	Content ContentGenerator
	Places  PlaceValidator
	Nights  NightPolicy
	Logger  *log.Logger

	GenerationTimeout time.Duration
	LookupTimeout     time.Duration
}

// TargetWaypointCount is round(nights/2) clamped to [1,10], then capped by
// the requested stop count when one was given.
func TargetWaypointCount(nightsOnRoad, stopCount int) int {
	n := int(math.Round(float64(nightsOnRoad) / 2))
	n = utils.ClampInt(n, MinTargetWaypoints, MaxTargetWaypoints)
	if stopCount > 0 && n > stopCount {
		n = stopCount
	}
	return n
}

// Select never fails: collaborator failures produce a fallback skeleton
// with the reason recorded in its metadata.
func (s *WaypointSelector) Select(ctx context.Context, in types.TripRequest) types.RouteSkeleton {
	lg := loggerOr(s.Logger)
	req, warnings := in.Normalized()
	for _, w := range warnings {
		lg.Printf("waypoints: %s", w)
	}
	target := TargetWaypointCount(req.NightsOnRoad, req.StopCount)
	meta := types.SkeletonMeta{TargetCount: target, Warnings: warnings}

	proposal, err := s.propose(ctx, req, target)
	if err != nil {
		lg.Printf("waypoints: candidates failed origin=%q destination=%q err=%v", req.Origin, req.Destination, err)
		return s.fallback(ctx, req, meta, err)
	}
	meta.ThemeInsights = proposal.ThemeInsights

	origin := s.validateEndpoint(ctx, proposal.Origin, req.Country, &meta)
	destination := s.validateEndpoint(ctx, proposal.Destination, req.Country, &meta)
	destination.Nights = req.NightsAtDestination

	alternates := make([]types.CandidatePlace, 0, len(proposal.Alternates))
	for _, c := range proposal.Alternates {
		c, warn := c.Sanitize()
		if warn != "" {
			meta.Warnings = append(meta.Warnings, warn)
		}
		alternates = append(alternates, c)
	}

	var validated []types.ValidatedPlace
	for _, c := range proposal.Waypoints {
		c, warn := c.Sanitize()
		if warn != "" {
			lg.Printf("waypoints: %s", warn)
			meta.Warnings = append(meta.Warnings, warn)
		}
		country := c.Country
		if country == "" {
			country = req.Country
		}
		d, err := s.validate(ctx, c.Name, country)
		if err != nil {
			lg.Printf("waypoints: dropping %q: %v", c.Name, err)
			meta.DroppedWaypoints = append(meta.DroppedWaypoints, c.Name)
			continue
		}
		validated = append(validated, types.NewValidatedPlace(c, d))
	}

	kept, losers := selectTop(origin, destination, validated, target)
	alternates = append(alternates, losers...)

	ordered := orderFromOrigin(origin, kept)
	if origin.Location.IsZero() && len(kept) > 1 {
		meta.Warnings = append(meta.Warnings, "origin has no coordinates, waypoint order kept as proposed")
	}

	policy := s.Nights
	if policy == nil {
		policy = MiddleOutNights
	}
	mins := make([]int, len(ordered))
	maxs := make([]int, len(ordered))
	for i, w := range ordered {
		mins[i], maxs[i] = w.MinNights, w.MaxNights
	}
	alloc, degraded := policy(mins, maxs, req.NightsOnRoad)
	for i := range ordered {
		if i < len(alloc) {
			ordered[i].Nights = alloc[i]
		}
	}
	meta.Degraded = degraded
	if !degraded {
		if left := req.NightsOnRoad - utils.SumInts(alloc...); left > 0 {
			meta.UnallocatedNights = left
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("%d nights left unallocated, every waypoint is at its maximum", left))
		}
	}

	return types.RouteSkeleton{
		Origin:      origin,
		Destination: destination,
		Waypoints:   ordered,
		Alternates:  alternates,
		Meta:        meta,
	}
}

func (s *WaypointSelector) propose(ctx context.Context, req types.TripRequest, target int) (types.CandidateProposal, error) {
	if s.Content == nil {
		return types.CandidateProposal{}, fmt.Errorf("no content generator configured")
	}
	cctx, cancel := withTimeout(ctx, s.GenerationTimeout, DefaultGenerationTimeout)
	defer cancel()
	return s.Content.ProposeCandidates(cctx, types.CandidateRequest{
		Origin:       req.Origin,
		Destination:  req.Destination,
		Country:      req.Country,
		Waypoints:    target,
		Alternates:   AlternateCount,
		Style:        req.Style,
		BudgetTier:   req.BudgetTier,
		NightsOnRoad: req.NightsOnRoad,
	})
}

func (s *WaypointSelector) validate(ctx context.Context, name, country string) (types.PlaceDetails, error) {
	if s.Places == nil {
		return types.PlaceDetails{}, fmt.Errorf("no place validator configured")
	}
	vctx, cancel := withTimeout(ctx, s.LookupTimeout, DefaultLookupTimeout)
	defer cancel()
	return s.Places.Validate(vctx, name, country)
}

// validateEndpoint keeps origin and destination even when validation
// fails, flagged unverified, so the skeleton always has both ends.
func (s *WaypointSelector) validateEndpoint(ctx context.Context, c types.CandidatePlace, country string, meta *types.SkeletonMeta) types.ValidatedPlace {
	c, _ = c.Sanitize()
	if c.Country == "" {
		c.Country = country
	}
	d, err := s.validate(ctx, c.Name, c.Country)
	if err != nil {
		loggerOr(s.Logger).Printf("waypoints: endpoint %q unverified: %v", c.Name, err)
		meta.Warnings = append(meta.Warnings, fmt.Sprintf("endpoint %s could not be validated", c.Name))
		return types.ValidatedPlace{CandidatePlace: c}
	}
	return types.NewValidatedPlace(c, d)
}

func (s *WaypointSelector) fallback(ctx context.Context, req types.TripRequest, meta types.SkeletonMeta, cause error) types.RouteSkeleton {
	meta.Fallback = true
	meta.FailureReason = cause.Error()
	origin := s.validateEndpoint(ctx, types.CandidatePlace{Name: req.Origin}, req.Country, &meta)
	destination := s.validateEndpoint(ctx, types.CandidatePlace{Name: req.Destination}, req.Country, &meta)
	destination.Nights = req.NightsAtDestination
	return types.RouteSkeleton{
		Origin:      origin,
		Destination: destination,
		Waypoints:   []types.ValidatedPlace{},
		Meta:        meta,
	}
}

// selectTop keeps the best target waypoints by score. Ties keep proposal
// order; the rest are returned as alternates.
func selectTop(origin, destination types.ValidatedPlace, validated []types.ValidatedPlace, target int) ([]types.ValidatedPlace, []types.CandidatePlace) {
	if len(validated) <= target {
		return validated, nil
	}
	scores := ScoreWaypoints(origin, destination, validated, target)
	idx := make([]int, len(validated))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	keep := make([]bool, len(validated))
	for _, i := range idx[:target] {
		keep[i] = true
	}
	kept := make([]types.ValidatedPlace, 0, target)
	var losers []types.CandidatePlace
	for i, w := range validated {
		if keep[i] {
			kept = append(kept, w)
		} else {
			losers = append(losers, w.CandidatePlace)
		}
	}
	return kept, losers
}

// ScoreWaypoints rates each validated waypoint on geographic progression,
// validation, highlight richness and justification length.
func ScoreWaypoints(origin, destination types.ValidatedPlace, ws []types.ValidatedPlace, target int) []float64 {
	n := len(ws)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}
	if target <= 0 {
		target = 1
	}
	// rank along the route by fraction of the way from origin to destination
	frac := make([]float64, n)
	for i, w := range ws {
		frac[i] = progress(origin.Location, destination.Location, w.Location)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] < frac[order[b]] })
	rank := make([]int, n)
	for r, i := range order {
		rank[i] = r
	}

	for i, w := range ws {
		// distance from rank to the closest of target evenly spaced slots
		best := math.Inf(1)
		for k := 0; k < target; k++ {
			slot := (float64(k)+0.5)*float64(n)/float64(target) - 0.5
			if d := math.Abs(float64(rank[i]) - slot); d < best {
				best = d
			}
		}
		progression := 1 - best/float64(n)

		validation := 0.0
		if w.Verified {
			validation = 1
		}
		highlights := float64(min(len(w.Highlights), highlightCap)) / highlightCap
		justification := float64(min(utf8.RuneCountInString(w.Justification), justificationCap)) / justificationCap

		scores[i] = weightProgression*progression +
			weightValidation*validation +
			weightHighlights*highlights +
			weightJustification*justification
	}
	return scores
}

// progress is d(o,p) / (d(o,p) + d(p,d)), 0 at the origin and 1 at the
// destination. Missing coordinates put the point halfway.
func progress(o, d, p types.LatLng) float64 {
	if o.IsZero() || d.IsZero() || p.IsZero() {
		return 0.5
	}
	a := geo.Distance(o, p)
	b := geo.Distance(p, d)
	if a+b == 0 {
		return 0
	}
	return a / (a + b)
}

func orderFromOrigin(origin types.ValidatedPlace, ws []types.ValidatedPlace) []types.ValidatedPlace {
	out := make([]types.ValidatedPlace, 0, len(ws))
	if origin.Location.IsZero() {
		return append(out, ws...)
	}
	pts := make([]types.LatLng, len(ws))
	for i, w := range ws {
		pts[i] = w.Location
	}
	for _, i := range geo.NearestNeighbor(origin.Location, pts) {
		out = append(out, ws[i])
	}
	return out
}

// MiddleOutNights starts every waypoint at its minimum and hands out the
// rest one night at a time, middle waypoint(s) first, then their
// neighbours, never beyond a waypoint's maximum. When the minimums alone
// exceed nights, every waypoint gets exactly one night.
func MiddleOutNights(mins, maxs []int, nights int) ([]int, bool) {
	n := len(mins)
	alloc := make([]int, n)
	if n == 0 {
		return alloc, false
	}
	for i, m := range mins {
		if m <= 0 {
			m = types.DefaultMinNights
		}
		alloc[i] = m
	}
	if utils.SumInts(alloc...) > nights {
		for i := range alloc {
			alloc[i] = 1
		}
		return alloc, true
	}
	remaining := nights - utils.SumInts(alloc...)
	order := middleOutOrder(n)
	for remaining > 0 {
		progressed := false
		for _, i := range order {
			if remaining == 0 {
				break
			}
			ceiling := types.DefaultMaxNights
			if i < len(maxs) && maxs[i] > 0 {
				ceiling = maxs[i]
			}
			if alloc[i] >= ceiling {
				continue
			}
			alloc[i]++
			remaining--
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return alloc, false
}

// middleOutOrder lists indices starting at the middle and alternating
// outwards: n=5 gives 2,1,3,0,4 and n=4 gives 1,2,0,3.
func middleOutOrder(n int) []int {
	order := make([]int, 0, n)
	if n == 0 {
		return order
	}
	var lo, hi int
	if n%2 == 1 {
		mid := n / 2
		order = append(order, mid)
		lo, hi = mid-1, mid+1
	} else {
		lo, hi = n/2-1, n/2
	}
	for lo >= 0 || hi < n {
		if lo >= 0 {
			order = append(order, lo)
			lo--
		}
		if hi < n {
			order = append(order, hi)
			hi++
		}
	}
	return order
}
