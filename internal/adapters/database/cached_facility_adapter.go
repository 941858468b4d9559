package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
)

// CachedFacilityAdapter wraps a FacilityRepository with caching
type CachedFacilityAdapter struct {
	adapter repositories.FacilityRepository
	cache   providers.CacheProvider
}

// NewCachedFacilityAdapter creates a new cached facility adapter
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider) *CachedFacilityAdapter {
	return &CachedFacilityAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

var _ repositories.FacilityRepository = (*CachedFacilityAdapter)(nil)

// Cache TTLs (in seconds)
const (
	facilityByIDTTL   = 300 // 5 minutes for single facility
	facilitiesListTTL = 180 // 3 minutes for lists
	searchResultsTTL  = 120 // 2 minutes for search results

	cacheWriteTimeout = 2 * time.Second
)

// Cache key generators
func facilityCacheKey(id string) string {
	return fmt.Sprintf("facility:%s", id)
}

func facilitiesListCacheKey(filter repositories.FacilityFilter) string {
	active := "any"
	if filter.IsActive != nil {
		active = fmt.Sprintf("%t", *filter.IsActive)
	}
	return fmt.Sprintf("facilities:list:%s:%d:%d", active, filter.Limit, filter.Offset)
}

// facilitiesSearchCacheKey hashes the normalized parameters so equivalent
// searches share an entry.
func facilitiesSearchCacheKey(params repositories.SearchParams) string {
	params.Keywords = strings.ToLower(strings.TrimSpace(params.Keywords))
	params.City = strings.ToLower(strings.TrimSpace(params.City))
	params.State = strings.ToLower(strings.TrimSpace(params.State))
	params.ZipCode = strings.TrimSpace(params.ZipCode)

	data, _ := json.Marshal(params)
	sum := sha256.Sum256(data)
	return "facilities:search:" + hex.EncodeToString(sum[:16])
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	cacheKey := facilityCacheKey(id)

	var facility entities.Facility
	if a.fromCache(ctx, cacheKey, &facility) {
		return &facility, nil
	}

	f, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.storeAsync(ctx, cacheKey, f, facilityByIDTTL)
	return f, nil
}

// List retrieves a list of facilities with caching
func (a *CachedFacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	cacheKey := facilitiesListCacheKey(filter)

	var facilities []*entities.Facility
	if a.fromCache(ctx, cacheKey, &facilities) {
		return facilities, nil
	}

	facilities, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	a.storeAsync(ctx, cacheKey, facilities, facilitiesListTTL)
	return facilities, nil
}

// Search retrieves search results with caching
func (a *CachedFacilityAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	cacheKey := facilitiesSearchCacheKey(params)

	var facilities []*entities.Facility
	if a.fromCache(ctx, cacheKey, &facilities) {
		return facilities, nil
	}

	facilities, err := a.adapter.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	a.storeAsync(ctx, cacheKey, facilities, searchResultsTTL)
	return facilities, nil
}

// InvalidateAll drops every cached facility, list and search entry.
func (a *CachedFacilityAdapter) InvalidateAll(ctx context.Context) error {
	var errs []error
	for _, pattern := range []string{"facility:*", "facilities:list:*", "facilities:search:*"} {
		if err := a.cache.DeletePattern(ctx, pattern); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *CachedFacilityAdapter) fromCache(ctx context.Context, key string, dest interface{}) bool {
	cached, err := a.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(cached, dest); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}
	return true
}

// storeAsync updates the cache without blocking the response.
func (a *CachedFacilityAdapter) storeAsync(ctx context.Context, key string, value interface{}, ttlSeconds int) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := a.cache.Set(bgCtx, key, data, ttlSeconds); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to cache value")
		}
	}()
}
