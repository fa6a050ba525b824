package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/db"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/config"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/customization"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/generation"
	generativeAI "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/generative_ai"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/autosave"
)

// Container holds all application dependencies
type Container struct {
	Config               *config.Config
	Logger               *slog.Logger
	Pool                 *pgxpool.Pool
	Repository           customization.Repository
	CustomizationService *customization.ServiceImpl
	CustomizationHandler *customization.HandlerImpl
	GenerationHandler    *generation.HandlerImpl
}

// NewContainer initializes and returns a new dependency container. The itinerary
// store is the upstream REST backend or postgres, depending on store.driver.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := c.initPostgres(ctx)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		c.Repository = customization.NewRepositoryImpl(pool, logger)
	case config.StoreDriverUpstream:
		c.Repository = customization.NewUpstreamClient(cfg.Upstream, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	logger.Info("Itinerary store selected", slog.String("driver", cfg.Store.Driver))

	c.CustomizationService = customization.NewServiceImpl(c.Repository, customization.SessionConfig{
		TTL:             cfg.Sessions.TTL,
		CleanupInterval: cfg.Sessions.CleanupInterval,
		Autosave: autosave.Config{
			Window:        cfg.Autosave.Window,
			StatusDisplay: cfg.Autosave.StatusDisplay,
			SaveTimeout:   cfg.Autosave.SaveTimeout,
		},
	}, logger)
	c.CustomizationHandler = customization.NewHandler(c.CustomizationService, logger)

	aiClient, err := generativeAI.NewAIClient(ctx, cfg.Generation)
	switch {
	case errors.Is(err, generativeAI.ErrNotConfigured):
		logger.Warn("Itinerary generation disabled: no model API key configured")
	case err != nil:
		c.Close()
		return nil, err
	default:
		generationService := generation.NewServiceImpl(aiClient, c.Repository, logger)
		c.GenerationHandler = generation.NewHandler(generationService, logger)
	}

	return c, nil
}

func (c *Container) initPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	dbConfig, err := database.NewDatabaseConfig(c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, c.Logger); err != nil {
		return nil, err
	}
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, c.Logger)
	if err != nil {
		return nil, err
	}
	if !database.WaitForDB(ctx, pool, c.Logger) {
		pool.Close()
		return nil, errors.New("database not ready after waiting")
	}
	return pool, nil
}

// Shutdown flushes every open editing session, then releases the pool.
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.CustomizationService.Shutdown(ctx)
	c.Close()
	return err
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
