package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soberbookings/backend/internal/adapters/cache"
	"github.com/soberbookings/backend/internal/adapters/database"
	"github.com/soberbookings/backend/internal/adapters/search"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/infrastructure/clients/postgres"
	"github.com/soberbookings/backend/internal/infrastructure/clients/redis"
	"github.com/soberbookings/backend/internal/infrastructure/clients/typesense"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
	"github.com/soberbookings/backend/pkg/config"
	"github.com/soberbookings/backend/pkg/secrets"
)

const pageSize = 500

// cacheInvalidator drops cached curated results after a reindex.
type cacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	if res, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv()); err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load secrets from Vault")
	} else if res.Enabled {
		observability.GetLogger().Info().Str("path", res.Path).Strs("loaded", res.Loaded).Msg("secrets loaded from Vault")
	}

	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Environment)
	if err := observability.SetLevel(cfg.LogLevel); err != nil {
		observability.GetLogger().Warn().Err(err).Msg("ignoring invalid LOG_LEVEL")
	}
	logger := observability.GetLogger()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			logger.Fatal().Str("interval", intervalValue).Msg("interval must be a positive duration")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize Typesense client")
	}

	facilityRepo := database.NewFacilityAdapter(pgClient)
	index := search.NewTypesenseAdapter(tsClient)

	var invalidator cacheInvalidator
	if redisClient, err := redis.NewClient(&cfg.Redis); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, cached search results will expire on their own")
	} else {
		defer redisClient.Close()
		invalidator = database.NewCachedFacilityAdapter(facilityRepo, cache.NewRedisAdapter(redisClient))
	}

	reset = reset || os.Getenv("RESET_TYPESENSE") == "true"

	for {
		if err := indexOnce(ctx, tsClient, facilityRepo, index, invalidator, reset); err != nil {
			logger.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			return
		}

		reset = false
		logger.Info().Dur("next_run_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			logger.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(
	ctx context.Context,
	tsClient *typesense.Client,
	facilityRepo repositories.FacilityRepository,
	index repositories.FacilitySearchRepository,
	invalidator cacheInvalidator,
	reset bool,
) error {
	logger := observability.LoggerFromContext(ctx)

	if reset {
		logger.Info().Msg("deleting facilities collection before reindex")
		if _, err := tsClient.Client().Collection(typesense.FacilitiesCollection).Delete(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	var indexed, removed, failed int
	for offset := 0; ; offset += pageSize {
		facilities, err := facilityRepo.List(ctx, repositories.FacilityFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return err
		}

		for _, facility := range facilities {
			if facility == nil {
				continue
			}
			if !facility.IsActive {
				if err := index.Delete(ctx, facility.ID); err == nil {
					removed++
				}
				continue
			}
			if err := index.Index(ctx, facility); err != nil {
				failed++
				logger.Warn().Err(err).Str("facility_id", facility.ID).Msg("failed to index facility")
				continue
			}
			indexed++
		}

		if len(facilities) < pageSize {
			break
		}
	}

	logger.Info().
		Int("indexed", indexed).
		Int("removed", removed).
		Int("failed", failed).
		Msg("facility reindex finished")

	if invalidator != nil {
		if err := invalidator.InvalidateAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate cached search results")
		}
	}
	return nil
}
