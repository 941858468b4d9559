package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/soberbookings/backend/internal/infrastructure/observability"
	"github.com/soberbookings/backend/pkg/config"
	"github.com/soberbookings/backend/pkg/retry"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const (
	FacilitiesCollection = "facilities"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	logger := observability.GetLogger()

	retryConfig := retry.DefaultConfig()
	retryConfig.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", nextDelay).
			Msg("Typesense connection attempt failed")
	}

	err := retry.Do(context.Background(), retryConfig, "Typesense", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := client.Health(ctx, 2*time.Second)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// FacilitySchema describes the curated facility collection.
func FacilitySchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: FacilitiesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "street", Type: "string", Optional: pointer.True()},
			{Name: "city", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "state", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "zip_code", Type: "string", Optional: pointer.True()},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "care_levels", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "specialties", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "services", Type: "string[]", Optional: pointer.True()},
			{Name: "age_groups", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "gender_focus", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "special_populations", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "accepted_insurance", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "private_pay", Type: "bool", Optional: pointer.True()},
			{Name: "sliding_scale", Type: "bool", Optional: pointer.True()},
			{Name: "tags", Type: "string[]", Optional: pointer.True()},
			{Name: "verification_tier", Type: "string", Facet: pointer.True()},
			{Name: "verification_status", Type: "string", Facet: pointer.True()},
			{Name: "is_active", Type: "bool"},
			{Name: "updated_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("updated_at"),
	}
}

// InitSchema ensures the facilities collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	logger := observability.LoggerFromContext(ctx)

	if _, err := c.client.Collection(FacilitiesCollection).Retrieve(ctx); err == nil {
		logger.Debug().Str("collection", FacilitiesCollection).Msg("Typesense collection already exists")
		return nil
	}

	if _, err := c.client.Collections().Create(ctx, FacilitySchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	logger.Info().Str("collection", FacilitiesCollection).Msg("created Typesense collection")
	return nil
}
