package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soberbookings/backend/internal/adapters/database"
	"github.com/soberbookings/backend/internal/adapters/search"
	"github.com/soberbookings/backend/internal/adapters/sources"
	"github.com/soberbookings/backend/internal/application/services"
	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/evaluation"
	"github.com/soberbookings/backend/internal/infrastructure/clients/places"
	"github.com/soberbookings/backend/internal/infrastructure/clients/postgres"
	"github.com/soberbookings/backend/internal/infrastructure/clients/typesense"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
	"github.com/soberbookings/backend/pkg/config"
	"github.com/soberbookings/backend/pkg/secrets"
)

func main() {
	goldenPath := flag.String("golden", "config/golden_assessments.json", "path to the golden assessment set")
	k := flag.Int("k", evaluation.DefaultK, "rank cutoff for recall, MRR and nDCG")
	withSupplemental := flag.Bool("supplemental", false, "include Google Places results in the ranked list")
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
	observability.InitLogger("facility-evaluate", cfg.Environment)
	if err := observability.SetLevel(cfg.LogLevel); err != nil {
		observability.GetLogger().Warn().Err(err).Msg("ignoring invalid LOG_LEVEL")
	}
	logger := observability.GetLogger()

	cases, err := evaluation.LoadGoldenCases(*goldenPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load golden cases")
	}
	if err := evaluation.ValidateGoldenCases(cases); err != nil {
		logger.Fatal().Err(err).Msg("invalid golden cases")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	var facilityIndex repositories.FacilitySearchRepository
	if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
		logger.Warn().Err(err).Msg("Typesense unavailable, evaluating against PostgreSQL")
	} else {
		facilityIndex = search.NewTypesenseAdapter(tsClient)
	}
	primary := sources.NewCuratedSource(facilityIndex, database.NewFacilityAdapter(pgClient))

	var supplemental providers.SupplementalSource
	if *withSupplemental {
		if cfg.Places.APIKey == "" {
			logger.Fatal().Msg("-supplemental requires PLACES_API_KEY")
		}
		supplemental = sources.NewPlacesSource(
			places.NewClient(cfg.Places.APIKey,
				places.WithBaseURL(cfg.Places.BaseURL),
				places.WithRateLimit(cfg.Places.RequestsPerSecond),
			),
			sources.PlacesSourceConfig{
				EnrichmentConcurrency: cfg.Search.EnrichmentConcurrency,
				EnrichmentTimeout:     cfg.Search.EnrichmentTimeout,
			},
		)
	}

	searchCfg := services.DefaultSearchConfig()
	searchCfg.SupplementalTimeout = cfg.Search.SupplementalTimeout
	searchCfg.DefaultRadiusMiles = cfg.Search.DefaultRadiusMiles
	hybridSearch := services.NewHybridSearchService(primary, supplemental, searchCfg)

	summary, err := evaluation.NewRunner(hybridSearch, *k, *withSupplemental).Run(ctx, cases)
	if err != nil {
		logger.Fatal().Err(err).Msg("evaluation aborted")
	}

	logger.Info().
		Int("cases", summary.TotalCases).
		Int("failed", summary.FailedCases).
		Float64("recall", summary.AvgRecallAtK).
		Float64("mrr", summary.AvgMRRAtK).
		Float64("ndcg", summary.AvgNDCGAtK).
		Dur("avg_latency", summary.AvgLatency).
		Msg("evaluation complete")

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to encode summary")
	}
	fmt.Println(string(out))
}
