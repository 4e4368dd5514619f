package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/ozon-catalog-crawler/internal/config"
	"github.com/Sternrassler/ozon-catalog-crawler/internal/crawler"
	"github.com/Sternrassler/ozon-catalog-crawler/internal/store"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/cache"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/client"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/logging"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/metrics"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var _ crawler.CatalogAPI = (*client.Client)(nil)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl the category catalog",
		Long: `Load seller credentials and category IDs, then crawl in two phases:
categories and attributes per credential shard, followed by the values of
every attribute dictionary discovered in the first phase.`,
		RunE: runCrawl,
	}
	cmd.Flags().Bool("migrate", false, "Create the crawler tables before crawling")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any unit of work failed")
	cmd.Flags().Bool("refresh-cache", false, "Drop cached category and attribute responses before crawling")
	return cmd
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	migrate, err := cmd.Flags().GetBool("migrate")
	if err != nil {
		return fmt.Errorf("failed to get migrate flag: %w", err)
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return fmt.Errorf("failed to get strict flag: %w", err)
	}
	refresh, err := cmd.Flags().GetBool("refresh-cache")
	if err != nil {
		return fmt.Errorf("failed to get refresh-cache flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := Crawl(ctx, cfg, CrawlOptions{Migrate: migrate, RefreshCache: refresh})
	if err != nil {
		return err
	}
	if strict {
		if err := summary.Err(); err != nil {
			return fmt.Errorf("crawl finished with %d failed units: %w", len(summary.Failures), err)
		}
	}
	return nil
}

// CrawlOptions adjusts a single crawl.
type CrawlOptions struct {
	// Migrate creates the crawler tables before loading inputs.
	Migrate bool

	// RefreshCache drops cached category and attribute responses first.
	// It has no effect without Redis.
	RefreshCache bool
}

// Crawl wires the configured collaborators and runs one crawl to completion.
func Crawl(ctx context.Context, cfg *config.Config, opts CrawlOptions) (*crawler.Summary, error) {
	logger := logging.NewLogger("crawler")
	logger.Info().Msg("Script started")

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr, logging.NewLogger("metrics"))
		if err != nil {
			return nil, err
		}
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := srv.Serve(metricsCtx); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	s, err := store.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns, logging.NewLogger("store"))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if opts.Migrate {
		if err := s.MigrateUp(ctx); err != nil {
			return nil, err
		}
	}

	creds := cfg.InlineCredentials()
	if len(creds) == 0 {
		creds, err = s.LoadCredentials(ctx, cfg.Crawl.CredentialsQuery)
		if err != nil {
			return nil, fmt.Errorf("getting data from DB failed: %w", err)
		}
	}
	ids, err := s.LoadCategoryIDs(ctx, cfg.Crawl.CategoryIDsQuery)
	if err != nil {
		return nil, fmt.Errorf("getting data from DB failed: %w", err)
	}

	api, closeAPI, err := newAPIClient(ctx, cfg, opts.RefreshCache)
	if err != nil {
		return nil, err
	}
	defer closeAPI()

	orchestrator := crawler.NewOrchestrator(api, s, cfg.WorkerConfig(), logger)
	summary, err := orchestrator.RunAll(ctx, creds, ids)
	if err != nil {
		return nil, err
	}

	logger.Info().Msg("Script completed")
	return summary, nil
}

// newAPIClient builds the seller API client, backed by Redis when enabled.
func newAPIClient(ctx context.Context, cfg *config.Config, refresh bool) (*client.Client, func(), error) {
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	clientCfg := client.DefaultConfig()
	clientCfg.BaseURL = cfg.API.BaseURL
	clientCfg.Language = cfg.API.Language
	clientCfg.Timeout = cfg.API.Timeout
	clientCfg.Retry = cfg.RetryPolicy()
	clientCfg.Tracker = ratelimit.NewTracker(redisClient, cfg.API.RequestsPerSecond, cfg.API.Burst, logging.NewLogger("ratelimit"))
	if redisClient != nil {
		manager := cache.NewManager(redisClient)
		if refresh {
			if err := purgeCatalogCache(ctx, manager); err != nil {
				redisClient.Close()
				return nil, nil, err
			}
		}
		clientCfg.Cache = manager
		clientCfg.CacheTTL = cfg.API.CacheTTL
	}

	api, err := client.New(clientCfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, err
	}

	closeFn := func() {
		api.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return api, closeFn, nil
}

func purgeCatalogCache(ctx context.Context, manager *cache.Manager) error {
	logger := logging.NewLogger("cache")
	for _, endpoint := range []string{client.EndpointCategoryTree, client.EndpointCategoryAttributes} {
		removed, err := manager.Purge(ctx, endpoint)
		if err != nil {
			return fmt.Errorf("failed to purge cache for %s: %w", endpoint, err)
		}
		logger.Info().Str("endpoint", endpoint).Int64("removed", removed).Msg("Cache purged")
	}
	return nil
}
