package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"roadplan/internal/config"
	"roadplan/internal/content"
	"roadplan/internal/distance"
	"roadplan/internal/llm"
	"roadplan/internal/pipeline"
	"roadplan/internal/places"
	artifactrepo "roadplan/internal/repository/artifact"
)

// Components is the wired pipeline shared by the API server and the CLI.
type Components struct {
	LLM      llm.LLMClient
	Content  *content.Generator
	Places   pipeline.PlaceValidator
	Distance pipeline.DistanceService
	Store    artifactrepo.Store
	Prompts  *pipeline.PromptSaver

	Selector  *pipeline.WaypointSelector
	Optimizer *pipeline.RouteOptimizer
	Detector  *pipeline.ConflictDetector
	Resolver  *pipeline.ConflictResolver
	Days      *pipeline.DayProcessor
	Trips     *pipeline.TripRunner

	closers []func() error
}

// Build wires collaborators from cfg. The LLM, place and distance clients
// fall back to offline implementations when no credentials are configured.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Components, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Components{}

	store, closeStore, err := initArtifactStore(cfg)
	if err != nil {
		return nil, err
	}
	c.Store = store
	c.closers = append(c.closers, closeStore)
	c.Prompts = &pipeline.PromptSaver{Store: store, Logger: logger}

	base, err := newLLM(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	c.LLM = llm.Wrap(base,
		llm.WithHook(c.Prompts),
		llm.WithLogging(logger),
		llm.Retry(cfg.LLM.Retries, 500*time.Millisecond),
		llm.RateLimit(cfg.LLM.RPS, cfg.LLM.Burst),
		llm.Timeout(cfg.LLM.Timeout),
	)
	c.closers = append(c.closers, c.LLM.Close)
	c.Content = &content.Generator{LLM: c.LLM, Logger: logger}

	c.Places, err = newPlaces(cfg.Places)
	if err != nil {
		return nil, err
	}

	dist, closeRedis := newDistance(cfg, logger)
	c.Distance = dist
	c.closers = append(c.closers, closeRedis)

	c.Selector = &pipeline.WaypointSelector{
		Content:           c.Content,
		Places:            c.Places,
		Logger:            logger,
		GenerationTimeout: cfg.GenerationTimeout,
		LookupTimeout:     cfg.LookupTimeout,
	}
	c.Optimizer = &pipeline.RouteOptimizer{
		Distance:      c.Distance,
		Limiter:       rate.NewLimiter(rate.Limit(cfg.Distance.RPS), cfg.Distance.Concurrency),
		Workers:       cfg.Distance.Concurrency,
		Logger:        logger,
		LookupTimeout: cfg.LookupTimeout,
	}
	c.Detector = &pipeline.ConflictDetector{
		Distance:      c.Distance,
		Logger:        logger,
		LookupTimeout: cfg.LookupTimeout,
	}
	c.Resolver = &pipeline.ConflictResolver{
		Content:           c.Content,
		Places:            c.Places,
		Distance:          c.Distance,
		Logger:            logger,
		GenerationTimeout: cfg.GenerationTimeout,
		LookupTimeout:     cfg.LookupTimeout,
	}
	c.Days = &pipeline.DayProcessor{
		Optimizer: c.Optimizer,
		Detector:  c.Detector,
		Resolver:  c.Resolver,
		Logger:    logger,
	}
	c.Trips = &pipeline.TripRunner{
		Days:    c.Days,
		Store:   c.Store,
		Workers: cfg.TripWorkers,
		Logger:  logger,
	}
	return c, nil
}

func newLLM(ctx context.Context, cfg config.LLMConfig) (llm.LLMClient, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case "fake", "":
		log.Printf("llm: using fake client, content generation will fall back")
		return llm.NewFakeClient(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

func newPlaces(cfg config.PlacesConfig) (pipeline.PlaceValidator, error) {
	var next places.Validator
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		next = places.NewHTTPValidator(cfg.APIKey, cfg.BaseURL)
	case cfg.Gazetteer != "":
		s, err := places.LoadStaticValidator(cfg.Gazetteer)
		if err != nil {
			return nil, err
		}
		next = s
	default:
		log.Printf("places: no api key or gazetteer, every lookup reports not found")
		next = places.NewStaticValidator(nil)
	}
	return places.NewCachedValidator(next, cfg.CacheSize, cfg.CacheTTL), nil
}

func newDistance(cfg *config.Config, logger *log.Logger) (pipeline.DistanceService, func() error) {
	var next distance.Service = distance.Estimator{}
	if strings.TrimSpace(cfg.Distance.APIKey) != "" {
		next = distance.NewHTTPClient(cfg.Distance.APIKey, cfg.Distance.BaseURL)
	}
	closer := func() error { return nil }
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		rc := distance.NewRedisCached(next, rdb, cfg.Distance.CacheTTL)
		rc.Logger = logger
		next = rc
		closer = rdb.Close
	}
	return distance.NewCached(next, cfg.Distance.CacheSize, cfg.Distance.CacheTTL), closer
}

// Close releases clients and stores in reverse wiring order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
