package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	return m.Called(ctx, key, value, expirationSeconds).Error(0)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockCache) DeletePattern(ctx context.Context, pattern string) error {
	return m.Called(ctx, pattern).Error(0)
}

type mockFacilityRepo struct {
	mock.Mock
}

func (m *mockFacilityRepo) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *mockFacilityRepo) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *mockFacilityRepo) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func TestCachedFacilityAdapter_SearchHitSkipsStore(t *testing.T) {
	cache := new(mockCache)
	repo := new(mockFacilityRepo)
	adapter := NewCachedFacilityAdapter(repo, cache)

	params := repositories.SearchParams{CareLevel: "3.5", City: "Austin", Limit: 20}
	cached, err := json.Marshal([]*entities.Facility{{ID: "fac-1", Name: "Serenity House"}})
	require.NoError(t, err)
	cache.On("Get", mock.Anything, facilitiesSearchCacheKey(params)).Return(cached, nil)

	facilities, err := adapter.Search(context.Background(), params)

	require.NoError(t, err)
	require.Len(t, facilities, 1)
	assert.Equal(t, "fac-1", facilities[0].ID)
	repo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestCachedFacilityAdapter_SearchMissFallsThrough(t *testing.T) {
	cache := new(mockCache)
	repo := new(mockFacilityRepo)
	adapter := NewCachedFacilityAdapter(repo, cache)

	params := repositories.SearchParams{CareLevel: "3.5", Limit: 20}
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, providers.ErrCacheMiss)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, searchResultsTTL).Return(nil).Maybe()
	repo.On("Search", mock.Anything, params).Return([]*entities.Facility{{ID: "fac-2"}}, nil)

	facilities, err := adapter.Search(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, "fac-2", facilities[0].ID)
	repo.AssertExpectations(t)
}

func TestCachedFacilityAdapter_RepositoryErrorPropagates(t *testing.T) {
	cache := new(mockCache)
	repo := new(mockFacilityRepo)
	adapter := NewCachedFacilityAdapter(repo, cache)

	cache.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	repo.On("GetByID", mock.Anything, "fac-9").Return(nil, errors.New("db down"))

	_, err := adapter.GetByID(context.Background(), "fac-9")

	assert.EqualError(t, err, "db down")
}

func TestFacilitiesSearchCacheKey_NormalizesText(t *testing.T) {
	a := facilitiesSearchCacheKey(repositories.SearchParams{City: " Austin ", Keywords: "Detox"})
	b := facilitiesSearchCacheKey(repositories.SearchParams{City: "austin", Keywords: "detox"})
	c := facilitiesSearchCacheKey(repositories.SearchParams{City: "austin", Keywords: "detox", VerifiedOnly: true})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCachedFacilityAdapter_InvalidateAll(t *testing.T) {
	cache := new(mockCache)
	adapter := NewCachedFacilityAdapter(new(mockFacilityRepo), cache)

	cache.On("DeletePattern", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, adapter.InvalidateAll(context.Background()))
	cache.AssertNumberOfCalls(t, "DeletePattern", 3)
}
