package pipeline

import (
	"context"
	"log"

	"roadplan/internal/types"
)

const DefaultMaxPasses = 3

// DayOptions tunes one run of the per-day loop.
type DayOptions struct {
	BudgetCeiling *float64
	Context       types.TripContext
	MaxPasses     int
	SkipOptimize  bool
}

// DayProcessor runs optimize, then detect and resolve until the day has no
// blocking conflicts, a pass makes no progress, or the pass budget runs out.
// A nil Optimizer skips reordering, a nil Detector uses the defaults with
// straight-line travel estimates, and a nil Resolver reports the conflicts
// without repairing them.
type DayProcessor struct {
	Optimizer *RouteOptimizer
	Detector  *ConflictDetector
	Resolver  *ConflictResolver
	Logger    *log.Logger
}

func (p *DayProcessor) Process(ctx context.Context, day types.DayItinerary, opts DayOptions) types.DayReport {
	logger := loggerOr(p.Logger)
	passes := opts.MaxPasses
	if passes <= 0 {
		passes = DefaultMaxPasses
	}

	cur := day.Clone()
	report := types.DayReport{Resolutions: []types.Resolution{}}
	if !opts.SkipOptimize && p.Optimizer != nil {
		report.Optimization = p.Optimizer.Optimize(ctx, cur)
		cur.Activities = report.Optimization.Activities
	} else {
		report.Optimization = types.OptimizeResult{Activities: cur.Clone().Activities}
	}

	detector := p.Detector
	if detector == nil {
		detector = &ConflictDetector{Logger: p.Logger}
	}
	conflicts := detector.Detect(ctx, cur, opts.BudgetCeiling)
	for p.Resolver != nil && report.Passes < passes && hasBlocking(conflicts) {
		if ctx.Err() != nil {
			logger.Printf("day: day=%d stopped: %v", day.Index, ctx.Err())
			break
		}
		report.Passes++
		res := p.Resolver.Resolve(ctx, cur, conflicts, opts.Context)
		report.Resolutions = append(report.Resolutions, res.Resolutions...)
		changed := !sameActivities(cur.Activities, res.Activities)
		cur.Activities = res.Activities
		conflicts = detector.Detect(ctx, cur, opts.BudgetCeiling)
		if !changed {
			break
		}
	}

	report.Day = cur
	report.Conflicts = conflicts
	report.Resolved = !hasBlocking(conflicts)
	logger.Printf("day: day=%d passes=%d conflicts=%d resolved=%t", day.Index, report.Passes, len(conflicts), report.Resolved)
	return report
}

func hasBlocking(conflicts []types.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity.Blocking() {
			return true
		}
	}
	return false
}

func sameActivities(a, b []types.Activity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Window != b[i].Window {
			return false
		}
	}
	return true
}
