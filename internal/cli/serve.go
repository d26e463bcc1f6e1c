package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"roadplan/internal/app"
	"roadplan/internal/config"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Args:    cobra.NoArgs,
		GroupID: "runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen address, overrides PORT")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := app.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Println("server: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Shutdown(sctx)
}
