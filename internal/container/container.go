package container

import (
	"context"
	"fmt"

	"github.com/edmiller1/woofs-welcome-sub000/internal/config"
	"github.com/edmiller1/woofs-welcome-sub000/internal/repository"
	"github.com/edmiller1/woofs-welcome-sub000/internal/service"
	"github.com/edmiller1/woofs-welcome-sub000/internal/service/auth"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/database"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/redis"
)

// Container holds all application dependencies. Client handles are
// constructed once here and injected into every component; nothing reaches
// for an ambient singleton.
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *database.PostgresDB
	RedisClient *redis.Client
	Repos       *repository.Repositories
	Services    *service.Services
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	repos := &repository.Repositories{
		Views:          repository.NewViewRepository(db),
		Places:         repository.NewPlaceRepository(db),
		DailyAnalytics: repository.NewDailyAnalyticsRepository(db),
	}

	services := &service.Services{
		Auth:      auth.NewService(cfg.JWTSecret, log),
		Analytics: service.NewAnalyticsService(redisClient, repos, log),
	}

	return &Container{
		Config:      cfg,
		Logger:      log,
		DB:          db,
		RedisClient: redisClient,
		Repos:       repos,
		Services:    services,
	}, nil
}

// Close releases the container's client handles
func (c *Container) Close() error {
	var firstErr error

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			firstErr = fmt.Errorf("redis close: %w", err)
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}

	return firstErr
}
