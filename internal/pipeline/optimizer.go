package pipeline

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"roadplan/internal/common/geo"
	"roadplan/internal/common/utils"
	"roadplan/internal/types"
)

const (
	// BucketGapMinutes is the largest gap between two windows that still
	// lets the activities swap places.
	BucketGapMinutes = 30
	// MinImprovementMinutes is the saving below which a reordering is discarded.
	MinImprovementMinutes = 10
	DefaultMatrixWorkers  = 4
)

// RouteOptimizer reorders activities inside flexible time buckets to cut
// walking time between them.
type RouteOptimizer struct {
	Distance DistanceService
	// Limiter paces outbound matrix lookups; nil means unpaced.
	Limiter *rate.Limiter
	Workers int
	Mode    types.TravelMode
	Logger  *log.Logger

	LookupTimeout time.Duration
}

// Optimize returns the day unchanged unless a bucket-local reordering saves
// at least MinImprovementMinutes of travel.
func (o *RouteOptimizer) Optimize(ctx context.Context, day types.DayItinerary) types.OptimizeResult {
	acts := day.Clone().Activities
	res := types.OptimizeResult{Activities: acts}

	located := 0
	for _, a := range acts {
		if _, ok := a.Location(); ok {
			located++
		}
	}
	if located < 2 {
		return res
	}

	order := make([]int, len(acts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return acts[order[a]].Window.Start < acts[order[b]].Window.Start })

	buckets := Buckets(acts, order)
	res.Buckets = buckets

	matrix, estimated := o.buildMatrix(ctx, acts)
	res.EstimatedPairs = estimated

	candidate := make([]int, 0, len(acts))
	for _, b := range buckets {
		candidate = append(candidate, reorderBucket(acts, matrix, b)...)
	}

	before := routeSeconds(matrix, order)
	after := routeSeconds(matrix, candidate)
	res.BeforeMinutes = utils.Round2(before / 60)
	res.AfterMinutes = utils.Round2(after / 60)
	res.ImprovementMinutes = utils.Round2((before - after) / 60)
	if res.ImprovementMinutes < MinImprovementMinutes {
		return res
	}

	out := make([]types.Activity, 0, len(acts))
	pos := 0
	for _, b := range buckets {
		out = append(out, repack(acts, b, candidate[pos:pos+len(b)])...)
		pos += len(b)
	}
	loggerOr(o.Logger).Printf("optimizer: day=%d reordered saved=%.1fmin", day.Index, res.ImprovementMinutes)
	res.Optimized = true
	res.Activities = out
	return res
}

// repack lays the reordered activities of a bucket out from the bucket's
// first start. Each activity keeps its own duration and the k-th gap of the
// original bucket stays the k-th gap, so the bucket still ends when it did.
func repack(acts []types.Activity, bucket, order []int) []types.Activity {
	out := make([]types.Activity, 0, len(order))
	t := acts[bucket[0]].Window.Start
	for k, i := range order {
		a := acts[i].Clone()
		a.Window = types.TimeWindow{Start: t, End: t + types.Clock(a.Window.Duration())}
		out = append(out, a)
		if k+1 < len(bucket) {
			t = a.Window.End + (acts[bucket[k+1]].Window.Start - acts[bucket[k]].Window.End)
		}
	}
	return out
}

// Buckets groups time-sorted activity indices: an activity joins the
// current bucket when it starts at most BucketGapMinutes after the
// previous one ends.
func Buckets(acts []types.Activity, sorted []int) [][]int {
	var out [][]int
	var cur []int
	for k, i := range sorted {
		if k > 0 {
			prev := acts[sorted[k-1]]
			if int(acts[i].Window.Start-prev.Window.End) > BucketGapMinutes {
				out = append(out, cur)
				cur = nil
			}
		}
		cur = append(cur, i)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// reorderBucket walks the bucket greedily from its first member. Buckets
// holding an activity without coordinates keep their order.
func reorderBucket(acts []types.Activity, matrix [][]float64, bucket []int) []int {
	if len(bucket) < 3 {
		// with two members the walk always starts at the first one
		return append([]int(nil), bucket...)
	}
	for _, i := range bucket {
		if _, ok := acts[i].Location(); !ok {
			return append([]int(nil), bucket...)
		}
	}
	visited := make(map[int]bool, len(bucket))
	out := []int{bucket[0]}
	visited[bucket[0]] = true
	for len(out) < len(bucket) {
		cur := out[len(out)-1]
		best := -1
		for _, j := range bucket {
			if visited[j] {
				continue
			}
			if best < 0 || matrix[cur][j] < matrix[cur][best] {
				best = j
			}
		}
		visited[best] = true
		out = append(out, best)
	}
	return out
}

// routeSeconds sums travel between consecutive located activities.
func routeSeconds(matrix [][]float64, seq []int) float64 {
	total := 0.0
	for k := 1; k < len(seq); k++ {
		if v := matrix[seq[k-1]][seq[k]]; v > 0 {
			total += v
		}
	}
	return total
}

// buildMatrix fills a symmetric travel-time matrix in seconds. Pairs with a
// missing coordinate stay at -1. Failed lookups fall back to a
// straight-line walking estimate.
func (o *RouteOptimizer) buildMatrix(ctx context.Context, acts []types.Activity) ([][]float64, int) {
	n := len(acts)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			if i != j {
				matrix[i][j] = -1
			}
		}
	}
	mode := o.Mode
	if mode == "" {
		mode = types.ModeWalking
	}
	workers := o.Workers
	if workers <= 0 {
		workers = DefaultMatrixWorkers
	}

	var mu sync.Mutex
	estimated := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		from, ok := acts[i].Location()
		if !ok {
			continue
		}
		for j := i + 1; j < n; j++ {
			to, ok := acts[j].Location()
			if !ok {
				continue
			}
			i, j := i, j
			g.Go(func() error {
				secs, est := o.pairSeconds(gctx, from, to, mode)
				mu.Lock()
				matrix[i][j], matrix[j][i] = secs, secs
				if est {
					estimated++
				}
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	return matrix, estimated
}

func (o *RouteOptimizer) pairSeconds(ctx context.Context, from, to types.LatLng, mode types.TravelMode) (float64, bool) {
	if o.Distance != nil {
		if o.Limiter == nil || o.Limiter.Wait(ctx) == nil {
			cctx, cancel := withTimeout(ctx, o.LookupTimeout, DefaultLookupTimeout)
			est, err := o.Distance.TravelTime(cctx, from, to, mode)
			cancel()
			if err == nil {
				return float64(est.DurationSeconds), est.Estimated
			}
			loggerOr(o.Logger).Printf("optimizer: travel time lookup failed, estimating: %v", err)
		}
	}
	return float64(geo.WalkingSeconds(from, to)), true
}
