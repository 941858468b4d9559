package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/providers"
	apperrors "github.com/soberbookings/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockPrimarySource struct {
	mock.Mock
}

func (m *MockPrimarySource) Search(ctx context.Context, query *entities.Query, opts providers.PrimaryOptions) ([]entities.Candidate, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Candidate), args.Error(1)
}

type MockSupplementalSource struct {
	mock.Mock
}

func (m *MockSupplementalSource) Search(ctx context.Context, query *entities.Query, opts providers.SupplementalOptions) ([]entities.Candidate, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Candidate), args.Error(1)
}

type MockDiscoveryPublisher struct {
	mock.Mock
}

func (m *MockDiscoveryPublisher) Publish(ctx context.Context, channel string, event *entities.FacilityEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

type MockSearchAnalyticsRepo struct {
	mock.Mock
}

func (m *MockSearchAnalyticsRepo) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSearchAnalyticsRepo) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SearchEvent), args.Error(1)
}

// Helpers

var defaultPrimaryOpts = providers.PrimaryOptions{Limit: entities.DefaultLimit}

func namedPrimaries(names ...string) []entities.Candidate {
	out := make([]entities.Candidate, len(names))
	for i, n := range names {
		c := primaryCandidate(n)
		c.Name = n
		c.VerificationTier = entities.VerificationTierBasic
		out[i] = c
	}
	return out
}

func namedSupplementals(names ...string) []entities.Candidate {
	out := make([]entities.Candidate, len(names))
	for i, n := range names {
		c := supplementalCandidate(n)
		c.Name = n
		out[i] = c
	}
	return out
}

func resultIDs(rs []entities.RankedCandidate) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID()
	}
	return ids
}

// Tests

func TestSearch_EnoughPrimaryNeverCallsSupplemental(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, defaultPrimaryOpts).
		Return(namedPrimaries("Alder House", "Birch Recovery", "Cedar Point", "Dogwood Center", "Elm Street Clinic"), nil)

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{})

	require.NoError(t, err)
	assert.Len(t, results, 5)
	supplemental.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	primary.AssertExpectations(t)
}

func TestSearch_ThinPrimaryAddsSupplemental(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, defaultPrimaryOpts).
		Return(namedPrimaries("Alder House", "Birch Recovery"), nil)
	supplemental.On("Search", mock.Anything, mock.Anything, providers.SupplementalOptions{MaxResults: 10}).
		Return(namedSupplementals("Harbor Light Services", "Mountain View Detox"), nil)

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"primary:Alder House", "primary:Birch Recovery",
		"supplemental:Harbor Light Services", "supplemental:Mountain View Detox",
	}, resultIDs(results))
	supplemental.AssertExpectations(t)
}

func TestSearch_SkipSupplemental(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, defaultPrimaryOpts).Return([]entities.Candidate{}, nil)

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{SkipSupplemental: true})

	require.NoError(t, err)
	assert.Empty(t, results)
	supplemental.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_SupplementalFailureDegradesToPrimary(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, defaultPrimaryOpts).
		Return(namedPrimaries("Alder House", "Birch Recovery"), nil)
	supplemental.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("places: 503 service unavailable"))

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"primary:Alder House", "primary:Birch Recovery"}, resultIDs(results))
}

func TestSearch_SupplementalTimeoutDegradesToPrimary(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, defaultPrimaryOpts).
		Return(namedPrimaries("Alder House"), nil)
	supplemental.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	cfg := DefaultSearchConfig()
	cfg.SupplementalTimeout = 20 * time.Millisecond
	svc := NewHybridSearchService(primary, supplemental, cfg)

	start := time.Now()
	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"primary:Alder House"}, resultIDs(results))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSearch_PrimaryFailureIsFatal(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{})

	require.Error(t, err)
	assert.Nil(t, results)
	assert.Equal(t, apperrors.ErrorTypeExternal, apperrors.TypeOf(err))
	supplemental.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_CancelledDuringSupplementalKeepsPrimary(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(namedPrimaries("Alder House", "Birch Recovery"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	supplemental.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(ctx, entities.NewQuery("3.5"), SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.IsPrimary())
	}
	assert.ElementsMatch(t, []string{"primary:Alder House", "primary:Birch Recovery"}, resultIDs(results))
	supplemental.AssertExpectations(t)
}

func TestSearch_CancelledBeforePrimaryReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := new(MockPrimarySource)
	primary.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	svc := NewHybridSearchService(primary, new(MockSupplementalSource), DefaultSearchConfig())

	_, err := svc.Search(ctx, entities.NewQuery("3.5"), SearchOptions{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_PhoneDuplicateKeepsPrimaryOnly(t *testing.T) {
	p := primaryCandidate("sunrise")
	p.Name = "Sunrise Recovery Center"
	p.Contact.Phone = "(555) 123-4567"
	s := supplementalCandidate("ChIJ-sunrise")
	s.Name = "Sunrise Recovery"
	s.Contact.Phone = "555-123-4567"

	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]entities.Candidate{p}, nil)
	supplemental.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]entities.Candidate{s}, nil)

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "primary:sunrise", results[0].ID())
	assert.Equal(t, entities.ProvenancePrimary, results[0].Provenance())
}

func TestSearch_OptionsOverrideConfig(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	primary.On("Search", mock.Anything, mock.Anything, providers.PrimaryOptions{Limit: 5, Offset: 10, VerifiedOnly: true}).
		Return(namedPrimaries("Alder House", "Birch Recovery", "Cedar Point"), nil)
	supplemental.On("Search", mock.Anything, mock.Anything, providers.SupplementalOptions{MaxResults: 2}).
		Return(namedSupplementals("Harbor Light Services", "Mountain View Detox", "Oak Grove"), nil)

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{
		Limit:                  5,
		Offset:                 10,
		VerifiedOnly:           true,
		SupplementalThreshold:  4,
		MaxSupplementalResults: 2,
	})

	require.NoError(t, err)
	assert.Len(t, results, 5, "supplemental results are capped at the requested maximum")
	primary.AssertExpectations(t)
	supplemental.AssertExpectations(t)
}

func TestSearch_InvalidInput(t *testing.T) {
	primary := new(MockPrimarySource)
	svc := NewHybridSearchService(primary, nil, DefaultSearchConfig())

	_, err := svc.Search(context.Background(), nil, SearchOptions{})
	assert.True(t, apperrors.IsValidation(err))

	q := entities.NewQuery("9.9")
	_, err = svc.Search(context.Background(), q, SearchOptions{})
	assert.True(t, apperrors.IsValidation(err))

	bad := entities.DefaultWeights()
	bad.Location = -1
	_, err = svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{Weights: &bad})
	assert.True(t, apperrors.IsValidation(err))

	primary.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_NilSupplementalSource(t *testing.T) {
	primary := new(MockPrimarySource)
	primary.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(namedPrimaries("Alder House"), nil)

	svc := NewHybridSearchService(primary, nil, DefaultSearchConfig())

	results, err := svc.Search(context.Background(), entities.NewQuery(""), SearchOptions{})

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_DoesNotMutateCallerQuery(t *testing.T) {
	primary := new(MockPrimarySource)
	primary.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]entities.Candidate{}, nil)
	svc := NewHybridSearchService(primary, nil, DefaultSearchConfig())

	q := &entities.Query{CareLevel: "3.5"}
	_, err := svc.Search(context.Background(), q, SearchOptions{Limit: 7})

	require.NoError(t, err)
	assert.Equal(t, 0.0, q.RadiusMiles)
	assert.Equal(t, 0, q.Limit)
}

func TestMatchByAssessment_MissingLevelFailsBeforeAnySource(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig())

	_, err := svc.MatchByAssessment(context.Background(), &entities.Assessment{Substances: []string{"alcohol"}}, SearchOptions{})

	assert.True(t, apperrors.IsValidation(err))
	primary.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	supplemental.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatchByAssessment_UsesClinicalWeights(t *testing.T) {
	match := primaryCandidate("match")
	match.Treatment.CareLevels = []string{"3.5"}

	primary := new(MockPrimarySource)
	primary.On("Search", mock.Anything, mock.MatchedBy(func(q *entities.Query) bool {
		return q.CareLevel == "3.5" && len(q.Specialties) == 1 && q.Specialties[0] == SpecialtyAlcohol
	}), mock.Anything).Return([]entities.Candidate{match}, nil)

	svc := NewHybridSearchService(primary, nil, DefaultSearchConfig())

	results, err := svc.MatchByAssessment(context.Background(), &entities.Assessment{
		RecommendedLevel: "Level 3.5",
		Substances:       []string{"alcohol"},
	}, SearchOptions{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, entities.ClinicalWeights().CareLevel, results[0].Breakdown[FactorCareLevel], 1e-12)
	primary.AssertExpectations(t)
}

func TestSearch_PublishesDiscoveredAndTracksAnalytics(t *testing.T) {
	primary := new(MockPrimarySource)
	supplemental := new(MockSupplementalSource)
	publisher := new(MockDiscoveryPublisher)
	analyticsRepo := new(MockSearchAnalyticsRepo)

	primary.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(namedPrimaries("Alder House"), nil)
	supplemental.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(namedSupplementals("Alder House", "Harbor Light Services"), nil)
	publisher.On("Publish", mock.Anything, providers.EventChannelFacilityDiscovered, mock.MatchedBy(func(e *entities.FacilityEvent) bool {
		return e.Candidate.ID() == "supplemental:Harbor Light Services" && e.EventType == entities.FacilityEventTypeDiscovered
	})).Return(nil).Once()
	analyticsRepo.On("LogEvent", mock.Anything, mock.MatchedBy(func(e *entities.SearchEvent) bool {
		return e.PrimaryCount == 1 && e.SupplementalCount == 2 && e.DuplicatesDropped == 1 &&
			e.ResultCount == 2 && e.SupplementalUsed && !e.SupplementalFailed
	})).Return(nil).Once()

	svc := NewHybridSearchService(primary, supplemental, DefaultSearchConfig(),
		WithDiscoveryPublisher(publisher),
		WithSearchAnalytics(NewSearchAnalyticsService(analyticsRepo)),
	)

	results, err := svc.Search(context.Background(), entities.NewQuery("3.5"), SearchOptions{})
	svc.Wait()

	require.NoError(t, err)
	assert.Len(t, results, 2)
	publisher.AssertExpectations(t)
	analyticsRepo.AssertExpectations(t)
}
