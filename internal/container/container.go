package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"marketplace/categorizer/internal/api"
	"marketplace/categorizer/internal/config"
	"marketplace/categorizer/internal/oracle"
	"marketplace/categorizer/internal/proxy"
	"marketplace/categorizer/internal/queue"
	"marketplace/categorizer/internal/repository"
	"marketplace/categorizer/internal/service"
	"marketplace/categorizer/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Oracle     oracle.Oracle
	Resolver   *service.Resolver
	Repository repository.AssignmentRepository
	Queue      queue.Queue
	Jobs       state.JobStore

	JobService *service.JobService

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized. Redis and
// Postgres are connected only when enabled in the configuration.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	proxySupplier := proxy.NewProbedSupplier(ctx, cfg.LLM.Proxies, oracle.ProbeURL(cfg.LLM))
	prompt := oracle.LoadPrompt(cfg.Categorizer.PromptFile)
	container.Oracle = oracle.New(cfg.LLM, prompt, proxySupplier)

	catalog, err := service.LoadCatalog(cfg.Categorizer.MarketplacesFile, cfg.Categorizer.Preload)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	container.Resolver = service.NewResolver(catalog, container.Oracle, service.Settings{
		ShortlistMax: cfg.Categorizer.ShortlistMax,
		MaxNameChars: cfg.Categorizer.MaxNameChars,
		MaxDescChars: cfg.Categorizer.MaxDescChars,
		MaxParallel:  cfg.Categorizer.MaxParallel,
	})

	if cfg.Database.Enabled {
		db, err := pgxpool.New(ctx,
			fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Database.Host,
				cfg.Database.Port,
				cfg.Database.User,
				cfg.Database.Password,
				cfg.Database.Name,
			))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		container.db = db

		if err := repository.Migrate(ctx, db); err != nil {
			container.Close()
			return nil, err
		}
		container.Repository = repository.NewAssignmentRepository(db)
		log.Info("✅ Connected to Postgres successfully")
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		container.redis = rdb

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis)
		if err != nil {
			container.Close()
			return nil, err
		}
		container.Queue = redisQueue
		container.Jobs = state.NewRedisJobStore(rdb, time.Duration(cfg.Redis.JobTTL)*time.Second)

		container.JobService = service.NewJobService(
			container.Resolver,
			redisQueue,
			container.Jobs,
			container.Repository,
			cfg.Redis.ConsumerGroup,
			cfg.Redis.MinIdleTime,
			cfg.Redis.MaxRetries,
		)
	}

	return container, nil
}

// Reload re-reads the marketplace registry and taxonomies and swaps them in.
// On failure the previous generation stays live.
func (c *Container) Reload(ctx context.Context) error {
	catalog, err := service.LoadCatalog(c.Config.Categorizer.MarketplacesFile, c.Config.Categorizer.Preload)
	if err != nil {
		return err
	}
	c.Resolver.Swap(catalog)
	log.Infof("🔄 Reloaded %d marketplaces", len(catalog.Marketplaces))
	return nil
}

// Serve runs the HTTP API and, when requested and Redis is enabled, the job
// workers alongside it.
func (c *Container) Serve(ctx context.Context, withWorkers bool) error {
	server := api.NewServer(api.Deps{
		Categorizer: c.Config.Categorizer,
		Resolver:    c.Resolver,
		Jobs:        c.JobService,
		Assignments: c.Repository,
		Reload:      c.Reload,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx, fmt.Sprintf("%s:%d", c.Config.Server.Host, c.Config.Server.Port))
	})

	if withWorkers && c.JobService != nil {
		g.Go(func() error {
			return c.JobService.RunWorkers(ctx, c.Config.Redis.Workers)
		})
	}

	return g.Wait()
}

// RunWorkers processes queued categorization jobs until ctx is cancelled.
func (c *Container) RunWorkers(ctx context.Context) error {
	if c.JobService == nil {
		return fmt.Errorf("workers require redis.enabled=true")
	}
	return c.JobService.RunWorkers(ctx, c.Config.Redis.Workers)
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if closer, ok := c.Oracle.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}

	log.Info("Container shut down successfully")
	return nil
}
