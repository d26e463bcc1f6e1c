package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"roadplan/internal/repository/artifact"
	"roadplan/internal/scheduler"
	"roadplan/internal/types"
)

const DefaultTripWorkers = 4

type ctxKeyRunID struct{}

// WithRunID tags ctx with the run that artifacts are written under.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ctxKeyRunID{}, runID)
}

// RunIDFrom returns the run ID stored by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRunID{}).(string); ok {
		return v
	}
	return ""
}

// TripSummary is the run-level artifact written next to the day reports.
type TripSummary struct {
	RunID    string `json:"run_id"`
	Days     int    `json:"days"`
	Resolved int    `json:"resolved"`
	Failed   []int  `json:"unresolved_days,omitempty"`
}

type TripResult struct {
	RunID   string            `json:"run_id"`
	Reports []types.DayReport `json:"reports"`
	Summary TripSummary       `json:"summary"`
}

// TripRunner processes the days of a trip in parallel, busiest days first.
// Each worker owns a copy of its day; reports come back in input order.
type TripRunner struct {
	Days    *DayProcessor
	Store   artifact.Store
	Workers int
	Logger  *log.Logger
	// NewRunID overrides uuid generation, mainly for tests.
	NewRunID func() string
}

func (r *TripRunner) Run(ctx context.Context, days []types.DayItinerary, opts DayOptions) TripResult {
	logger := loggerOr(r.Logger)
	runID := RunIDFrom(ctx)
	if runID == "" {
		if r.NewRunID != nil {
			runID = r.NewRunID()
		} else {
			runID = uuid.NewString()
		}
		ctx = WithRunID(ctx, runID)
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultTripWorkers
	}

	weights := make([]int, len(days))
	for i, d := range days {
		weights[i] = len(d.Activities)
	}

	reports := make([]types.DayReport, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, i := range scheduler.HeavierFirst(weights) {
		day := days[i].Clone()
		g.Go(func() error {
			reports[i] = r.Days.Process(gctx, day, opts)
			r.persist(gctx, runID, fmt.Sprintf("day-%d.json", day.Index), reports[i])
			return nil
		})
	}
	_ = g.Wait()

	sum := TripSummary{RunID: runID, Days: len(days)}
	for _, rep := range reports {
		if rep.Resolved {
			sum.Resolved++
		} else {
			sum.Failed = append(sum.Failed, rep.Day.Index)
		}
	}
	r.persist(ctx, runID, "summary.json", sum)
	logger.Printf("trip: run=%s days=%d resolved=%d", runID, sum.Days, sum.Resolved)
	return TripResult{RunID: runID, Reports: reports, Summary: sum}
}

// persist is best effort: a store failure is logged and the run continues.
func (r *TripRunner) persist(ctx context.Context, runID, path string, v any) {
	if r.Store == nil {
		return
	}
	if err := artifact.PutJSON(ctx, r.Store, runID, path, v); err != nil {
		loggerOr(r.Logger).Printf("trip: run=%s persist %s: %v", runID, path, err)
	}
}
