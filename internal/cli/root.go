// Package cli implements the roadplan command line: each pipeline stage
// runs against JSON files so plans can be inspected and replayed offline.
package cli

import (
	"context"
	"io"
	"log"

	"github.com/spf13/cobra"

	"roadplan/internal/app"
	"roadplan/internal/config"
)

var version = "dev"

func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

type rootOptions struct {
	quiet  bool
	pretty bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:     "roadplan",
		Version: version,
		Short:   "Itinerary construction and repair engine",
		Long: `roadplan selects waypoints for a road trip, reorders each day's activities
to cut travel time, and detects and repairs schedule conflicts.

Inputs are JSON files ("-" reads stdin); results are written to stdout as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress log output")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", true, "Indent JSON output")

	root.AddGroup(
		&cobra.Group{ID: "stages", Title: "Pipeline Stages:"},
		&cobra.Group{ID: "runs", Title: "Runs:"},
	)
	root.AddCommand(
		newSelectCmd(opts),
		newOptimizeCmd(opts),
		newDetectCmd(opts),
		newResolveCmd(opts),
		newProcessCmd(opts),
		newTripCmd(opts),
		newServeCmd(),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// buildComponents is swapped out in tests.
var buildComponents = func(ctx context.Context, logger *log.Logger) (*app.Components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, logger)
}

func (o *rootOptions) logger(cmd *cobra.Command) *log.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	if o.quiet {
		w = io.Discard
	}
	return log.New(w, "", log.LstdFlags)
}
