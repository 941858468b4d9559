package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soberbookings/backend/internal/adapters/cache"
	"github.com/soberbookings/backend/internal/adapters/database"
	"github.com/soberbookings/backend/internal/adapters/events"
	"github.com/soberbookings/backend/internal/adapters/search"
	"github.com/soberbookings/backend/internal/adapters/sources"
	"github.com/soberbookings/backend/internal/api/handlers"
	"github.com/soberbookings/backend/internal/api/routes"
	"github.com/soberbookings/backend/internal/application/services"
	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/infrastructure/clients/places"
	"github.com/soberbookings/backend/internal/infrastructure/clients/postgres"
	"github.com/soberbookings/backend/internal/infrastructure/clients/redis"
	"github.com/soberbookings/backend/internal/infrastructure/clients/typesense"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
	"github.com/soberbookings/backend/pkg/config"
	"github.com/soberbookings/backend/pkg/secrets"
)

func main() {
	if res, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv()); err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load secrets from Vault")
	} else if res.Enabled {
		observability.GetLogger().Info().Str("path", res.Path).Strs("loaded", res.Loaded).Msg("secrets loaded from Vault")
	}

	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)
	if err := observability.SetLevel(cfg.LogLevel); err != nil {
		observability.GetLogger().Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid LOG_LEVEL")
	}
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	healthChecks := map[string]routes.HealthCheck{
		"postgres": pgClient.Ping,
	}

	// Redis is optional: without it curated results and Places responses
	// are not cached and discoveries are not published.
	var cacheProvider providers.CacheProvider
	var publisher *events.RedisDiscoveryPublisher
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, running without cache")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		publisher = events.NewRedisDiscoveryPublisher(redisClient)
		defer publisher.Close()
		healthChecks["redis"] = redisClient.Ping
	}

	var facilityRepo repositories.FacilityRepository = database.NewFacilityAdapter(pgClient)
	if cacheProvider != nil {
		facilityRepo = database.NewCachedFacilityAdapter(facilityRepo, cacheProvider)
	}

	var facilityIndex repositories.FacilitySearchRepository
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		logger.Warn().Err(err).Msg("Typesense unavailable, curated search served from PostgreSQL")
	} else {
		facilityIndex = search.NewTypesenseAdapter(typesenseClient)
	}

	primary := sources.NewCuratedSource(facilityIndex, facilityRepo)

	var supplemental providers.SupplementalSource
	if cfg.Places.APIKey != "" {
		placesOpts := []places.Option{
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithRateLimit(cfg.Places.RequestsPerSecond),
		}
		if cacheProvider != nil {
			placesOpts = append(placesOpts, places.WithCache(cacheProvider, cfg.Places.CacheTTLSeconds))
		}
		supplemental = sources.NewPlacesSource(
			places.NewClient(cfg.Places.APIKey, placesOpts...),
			sources.PlacesSourceConfig{
				EnrichmentConcurrency: cfg.Search.EnrichmentConcurrency,
				EnrichmentTimeout:     cfg.Search.EnrichmentTimeout,
			},
		)
	} else {
		logger.Warn().Msg("PLACES_API_KEY not set, supplemental search disabled")
	}

	analytics := services.NewSearchAnalyticsService(database.NewSearchAnalyticsAdapter(pgClient))

	searchOpts := []services.HybridSearchOption{services.WithSearchAnalytics(analytics)}
	if publisher != nil {
		searchOpts = append(searchOpts, services.WithDiscoveryPublisher(publisher))
	}
	hybridSearch := services.NewHybridSearchService(primary, supplemental, searchConfig(cfg.Search), searchOpts...)

	router := routes.NewRouter(
		handlers.NewSearchHandler(hybridSearch, analytics),
		healthChecks,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Search.SupplementalTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	// Flush background analytics writes and discovery publishes.
	hybridSearch.Wait()

	logger.Info().Msg("server stopped")
}

func searchConfig(c config.SearchConfig) services.SearchConfig {
	cfg := services.DefaultSearchConfig()
	cfg.SupplementalThreshold = c.SupplementalThreshold
	cfg.MaxSupplementalResults = c.MaxSupplementalResults
	cfg.SupplementalTimeout = c.SupplementalTimeout
	cfg.DefaultRadiusMiles = c.DefaultRadiusMiles
	cfg.VerifiedOnly = c.VerifiedOnly
	cfg.Dedup = services.DedupConfig{
		NameThreshold:    c.DedupNameThreshold,
		AddressThreshold: c.DedupAddressThreshold,
		ProximityMiles:   c.DedupProximityMiles,
		MinPhoneDigits:   cfg.Dedup.MinPhoneDigits,
		WebsiteThreshold: c.DedupWebsiteThreshold,
	}
	return cfg
}
