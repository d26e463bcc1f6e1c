package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"roadplan/internal/app"
	"roadplan/internal/pipeline"
	"roadplan/internal/types"
)

// withComponents wires the pipeline for one command and releases it after.
func withComponents(cmd *cobra.Command, opts *rootOptions, fn func(c *app.Components) error) error {
	c, err := buildComponents(cmd.Context(), opts.logger(cmd))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func newSelectCmd(opts *rootOptions) *cobra.Command {
	var reqPath string
	cmd := &cobra.Command{
		Use:     "select",
		Short:   "Choose and order waypoints for a trip request",
		Args:    cobra.NoArgs,
		GroupID: "stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req types.TripRequest
			if err := readJSON(cmd, reqPath, &req); err != nil {
				return err
			}
			return withComponents(cmd, opts, func(c *app.Components) error {
				return opts.writeJSON(cmd, c.Selector.Select(cmd.Context(), req))
			})
		},
	}
	cmd.Flags().StringVarP(&reqPath, "request", "r", "-", "Trip request JSON file")
	return cmd
}

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var dayPath string
	cmd := &cobra.Command{
		Use:     "optimize",
		Short:   "Reorder same-window activities to cut travel time",
		Args:    cobra.NoArgs,
		GroupID: "stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var day types.DayItinerary
			if err := readJSON(cmd, dayPath, &day); err != nil {
				return err
			}
			return withComponents(cmd, opts, func(c *app.Components) error {
				return opts.writeJSON(cmd, c.Optimizer.Optimize(cmd.Context(), day))
			})
		},
	}
	cmd.Flags().StringVarP(&dayPath, "day", "d", "-", "Day itinerary JSON file")
	return cmd
}

func newDetectCmd(opts *rootOptions) *cobra.Command {
	var dayPath string
	cmd := &cobra.Command{
		Use:     "detect",
		Short:   "List timeline, availability, travel and budget conflicts",
		Args:    cobra.NoArgs,
		GroupID: "stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var day types.DayItinerary
			if err := readJSON(cmd, dayPath, &day); err != nil {
				return err
			}
			return withComponents(cmd, opts, func(c *app.Components) error {
				return opts.writeJSON(cmd, c.Detector.Detect(cmd.Context(), day, budgetFlag(cmd)))
			})
		},
	}
	cmd.Flags().StringVarP(&dayPath, "day", "d", "-", "Day itinerary JSON file")
	cmd.Flags().Float64("budget", 0, "Daily budget ceiling")
	return cmd
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var dayPath, conflictsPath, ctxPath string
	cmd := &cobra.Command{
		Use:     "resolve",
		Short:   "Repair detected conflicts in one pass",
		Long:    "Repair conflicts in one pass. Without --conflicts the day is run through the detector first.",
		Args:    cobra.NoArgs,
		GroupID: "stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var day types.DayItinerary
			if err := readJSON(cmd, dayPath, &day); err != nil {
				return err
			}
			var tc types.TripContext
			if ctxPath != "" {
				if err := readJSON(cmd, ctxPath, &tc); err != nil {
					return err
				}
			}
			var conflicts []types.Conflict
			if conflictsPath != "" {
				if err := readJSON(cmd, conflictsPath, &conflicts); err != nil {
					return err
				}
			}
			return withComponents(cmd, opts, func(c *app.Components) error {
				if conflictsPath == "" {
					conflicts = c.Detector.Detect(cmd.Context(), day, budgetFlag(cmd))
				}
				return opts.writeJSON(cmd, c.Resolver.Resolve(cmd.Context(), day, conflicts, tc))
			})
		},
	}
	cmd.Flags().StringVarP(&dayPath, "day", "d", "-", "Day itinerary JSON file")
	cmd.Flags().StringVar(&conflictsPath, "conflicts", "", "Conflicts JSON file")
	cmd.Flags().StringVar(&ctxPath, "context", "", "Trip context JSON file")
	cmd.Flags().Float64("budget", 0, "Daily budget ceiling")
	return cmd
}

func dayOptionFlags(cmd *cobra.Command, ctxPath *string, o *pipeline.DayOptions) {
	cmd.Flags().StringVar(ctxPath, "context", "", "Trip context JSON file")
	cmd.Flags().Float64("budget", 0, "Daily budget ceiling")
	cmd.Flags().IntVar(&o.MaxPasses, "max-passes", pipeline.DefaultMaxPasses, "Detect/resolve passes per day")
	cmd.Flags().BoolVar(&o.SkipOptimize, "skip-optimize", false, "Keep the activity order as given")
}

func loadDayOptions(cmd *cobra.Command, ctxPath string, o pipeline.DayOptions) (pipeline.DayOptions, error) {
	o.BudgetCeiling = budgetFlag(cmd)
	if ctxPath != "" {
		if err := readJSON(cmd, ctxPath, &o.Context); err != nil {
			return o, err
		}
	}
	return o, nil
}

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var dayPath, ctxPath string
	var dayOpts pipeline.DayOptions
	cmd := &cobra.Command{
		Use:     "process",
		Short:   "Optimize, detect and repair one day until it settles",
		Args:    cobra.NoArgs,
		GroupID: "stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var day types.DayItinerary
			if err := readJSON(cmd, dayPath, &day); err != nil {
				return err
			}
			o, err := loadDayOptions(cmd, ctxPath, dayOpts)
			if err != nil {
				return err
			}
			return withComponents(cmd, opts, func(c *app.Components) error {
				return opts.writeJSON(cmd, c.Days.Process(cmd.Context(), day, o))
			})
		},
	}
	cmd.Flags().StringVarP(&dayPath, "day", "d", "-", "Day itinerary JSON file")
	dayOptionFlags(cmd, &ctxPath, &dayOpts)
	return cmd
}

func newTripCmd(opts *rootOptions) *cobra.Command {
	var daysPath, ctxPath, runID string
	var dayOpts pipeline.DayOptions
	cmd := &cobra.Command{
		Use:     "trip",
		Short:   "Process every day of a trip in parallel and store the reports",
		Args:    cobra.NoArgs,
		GroupID: "runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var days []types.DayItinerary
			if err := readJSON(cmd, daysPath, &days); err != nil {
				return err
			}
			if len(days) == 0 {
				return fmt.Errorf("%s holds no days", daysPath)
			}
			o, err := loadDayOptions(cmd, ctxPath, dayOpts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if runID != "" {
				ctx = pipeline.WithRunID(ctx, runID)
			}
			return withComponents(cmd, opts, func(c *app.Components) error {
				return opts.writeJSON(cmd, c.Trips.Run(ctx, days, o))
			})
		},
	}
	cmd.Flags().StringVarP(&daysPath, "days", "d", "-", "JSON array of day itineraries")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run ID for stored artifacts (default: random)")
	dayOptionFlags(cmd, &ctxPath, &dayOpts)
	return cmd
}
