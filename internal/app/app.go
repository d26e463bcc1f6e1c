package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"roadplan/internal/config"
	"roadplan/internal/server"
)

type App struct {
	server     *server.Server
	components *Components
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.Default()
	c, err := Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to wire components: %w", err)
	}

	h := &server.Handler{
		Selector:  c.Selector,
		Optimizer: c.Optimizer,
		Detector:  c.Detector,
		Resolver:  c.Resolver,
		Days:      c.Days,
		Trips:     c.Trips,
		Store:     c.Store,
		Logger:    logger,
	}
	mux := server.NewMux(h, server.MuxOptions{
		AllowedOrigins:    cfg.AllowedOrigins,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
		Logger:            logger,
	})
	return &App{server: server.New(cfg.Port, mux), components: c}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(a.server.Shutdown(ctx), a.components.Close())
}
