package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
	apperrors "github.com/soberbookings/backend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const discoveryPublishTimeout = 5 * time.Second

// SearchConfig is fixed at construction.
type SearchConfig struct {
	// SupplementalThreshold is the primary result count below which the
	// supplemental source is consulted.
	SupplementalThreshold  int
	MaxSupplementalResults int
	SupplementalTimeout    time.Duration
	DefaultRadiusMiles     float64
	VerifiedOnly           bool
	Weights                entities.WeightConfig
	Dedup                  DedupConfig
}

// DefaultSearchConfig returns the stock orchestration settings.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		SupplementalThreshold:  5,
		MaxSupplementalResults: 10,
		SupplementalTimeout:    8 * time.Second,
		DefaultRadiusMiles:     entities.DefaultRadiusMiles,
		Weights:                entities.DefaultWeights(),
		Dedup:                  DefaultDedupConfig(),
	}
}

// SearchOptions adjusts a single search. Zero values fall back to the
// service configuration, so the supplemental source is used by default.
type SearchOptions struct {
	Limit                  int
	Offset                 int
	VerifiedOnly           bool
	SkipSupplemental       bool
	SupplementalThreshold  int
	MaxSupplementalResults int
	Weights                *entities.WeightConfig
}

// HybridSearchOption configures optional collaborators.
type HybridSearchOption func(*HybridSearchService)

// WithSearchAnalytics records every search through svc.
func WithSearchAnalytics(svc *SearchAnalyticsService) HybridSearchOption {
	return func(s *HybridSearchService) { s.analytics = svc }
}

// WithDiscoveryPublisher forwards supplemental candidates that survive
// deduplication to the curation backlog.
func WithDiscoveryPublisher(p providers.DiscoveryPublisher) HybridSearchOption {
	return func(s *HybridSearchService) { s.publisher = p }
}

// HybridSearchService merges curated and supplemental results into one
// ranked list.
type HybridSearchService struct {
	primary      providers.PrimarySource
	supplemental providers.SupplementalSource
	normalizer   *QueryNormalizer
	dedup        *Deduplicator
	ranker       *SearchRankingService
	cfg          SearchConfig

	analytics *SearchAnalyticsService
	publisher providers.DiscoveryPublisher
	metrics   *observability.SearchMetrics
	wg        sync.WaitGroup
}

// NewHybridSearchService wires the orchestrator. supplemental may be nil,
// in which case only the curated store is searched.
func NewHybridSearchService(
	primary providers.PrimarySource,
	supplemental providers.SupplementalSource,
	cfg SearchConfig,
	opts ...HybridSearchOption,
) *HybridSearchService {
	defaults := DefaultSearchConfig()
	if cfg.SupplementalThreshold <= 0 {
		cfg.SupplementalThreshold = defaults.SupplementalThreshold
	}
	if cfg.MaxSupplementalResults <= 0 {
		cfg.MaxSupplementalResults = defaults.MaxSupplementalResults
	}
	if cfg.SupplementalTimeout <= 0 {
		cfg.SupplementalTimeout = defaults.SupplementalTimeout
	}
	if cfg.DefaultRadiusMiles <= 0 {
		cfg.DefaultRadiusMiles = defaults.DefaultRadiusMiles
	}
	if cfg.Weights == (entities.WeightConfig{}) {
		cfg.Weights = defaults.Weights
	}

	s := &HybridSearchService{
		primary:      primary,
		supplemental: supplemental,
		normalizer:   NewQueryNormalizer(cfg.DefaultRadiusMiles),
		dedup:        NewDeduplicator(cfg.Dedup),
		ranker:       NewSearchRankingService(),
		cfg:          cfg,
		metrics:      observability.GetSearchMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the hybrid search for query and returns every candidate
// ranked by relevance. A primary failure is returned as an external error;
// a supplemental failure only degrades the result.
func (s *HybridSearchService) Search(ctx context.Context, query *entities.Query, opts SearchOptions) ([]entities.RankedCandidate, error) {
	return s.search(ctx, query, opts, false)
}

// MatchByAssessment normalizes the assessment and searches with clinical
// weights unless opts carries its own.
func (s *HybridSearchService) MatchByAssessment(ctx context.Context, assessment *entities.Assessment, opts SearchOptions) ([]entities.RankedCandidate, error) {
	query, err := s.normalizer.Normalize(assessment)
	if err != nil {
		return nil, err
	}
	if opts.Weights == nil {
		w := entities.ClinicalWeights()
		opts.Weights = &w
	}
	return s.search(ctx, query, opts, true)
}

// Wait blocks until background discovery publishes and analytics writes
// have finished.
func (s *HybridSearchService) Wait() {
	s.wg.Wait()
	s.analytics.Wait()
}

func (s *HybridSearchService) search(ctx context.Context, query *entities.Query, opts SearchOptions, assessment bool) ([]entities.RankedCandidate, error) {
	ctx, span := observability.StartSpan(ctx, "HybridSearch.Search")
	defer span.End()

	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	q, err := s.prepareQuery(query, opts)
	if err != nil {
		return nil, err
	}
	weights := s.cfg.Weights
	if opts.Weights != nil {
		if err := opts.Weights.Validate(); err != nil {
			return nil, err
		}
		weights = *opts.Weights
	}

	observability.SetSpanAttributes(span,
		attribute.String("search.care_level", q.CareLevel),
		attribute.Bool("search.assessment", assessment),
	)

	primary, err := s.primary.Search(ctx, q, providers.PrimaryOptions{
		Limit:        q.Limit,
		Offset:       q.Offset,
		VerifiedOnly: opts.VerifiedOnly || s.cfg.VerifiedOnly,
	})
	if err != nil {
		observability.RecordError(span, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewExternalError("primary source failed", err)
	}

	event := &entities.SearchEvent{
		ID:               uuid.New().String(),
		CareLevel:        q.CareLevel,
		Keywords:         q.Keywords,
		AssessmentDriven: assessment,
		PrimaryCount:     len(primary),
	}
	if c := q.Location.Coordinates; c != nil {
		lat, lon := c.Latitude, c.Longitude
		event.UserLatitude, event.UserLongitude = &lat, &lon
	}

	var supplemental []entities.Candidate
	if s.shouldSupplement(len(primary), opts) {
		event.SupplementalUsed = true
		supplemental, err = s.searchSupplemental(ctx, q, opts)
		if err != nil {
			event.SupplementalFailed = true
			logger.Warn().Err(err).
				Str("search_id", event.ID).
				Int("primary_count", len(primary)).
				Msg("supplemental search failed, returning curated results only")
		}
	}

	kept := s.dedup.Dedupe(ctx, primary, supplemental)
	dropped := len(supplemental) - len(kept)
	s.metrics.DuplicatesDropped(ctx, dropped)

	pool := make([]entities.Candidate, 0, len(primary)+len(kept))
	pool = append(pool, primary...)
	pool = append(pool, kept...)

	ranked := s.ranker.Rank(pool, q, weights)
	s.metrics.Results(ctx, len(ranked), assessment)

	event.SupplementalCount = len(supplemental)
	event.DuplicatesDropped = dropped
	event.ResultCount = len(ranked)
	event.LatencyMs = int(time.Since(start).Milliseconds())

	observability.SetSpanAttributes(span,
		attribute.Int("search.primary_count", len(primary)),
		attribute.Int("search.supplemental_count", len(supplemental)),
		attribute.Int("search.duplicates_dropped", dropped),
		attribute.Int("search.result_count", len(ranked)),
	)
	logger.Debug().
		Str("search_id", event.ID).
		Int("primary_count", len(primary)).
		Int("supplemental_count", len(supplemental)).
		Int("duplicates_dropped", dropped).
		Int("result_count", len(ranked)).
		Msg("hybrid search complete")

	s.analytics.TrackSearch(ctx, event)
	s.publishDiscoveries(ctx, event.ID, kept)

	return ranked, nil
}

// prepareQuery returns a defaulted copy of query so the caller's value is
// left untouched.
func (s *HybridSearchService) prepareQuery(query *entities.Query, opts SearchOptions) (*entities.Query, error) {
	if query == nil {
		return nil, apperrors.NewValidationError("query is required")
	}
	q := *query
	if q.RadiusMiles == 0 {
		q.RadiusMiles = s.cfg.DefaultRadiusMiles
	}
	if opts.Limit > 0 {
		q.Limit = opts.Limit
	}
	if q.Limit == 0 {
		q.Limit = entities.DefaultLimit
	}
	if opts.Offset > 0 {
		q.Offset = opts.Offset
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *HybridSearchService) shouldSupplement(primaryCount int, opts SearchOptions) bool {
	if s.supplemental == nil || opts.SkipSupplemental {
		return false
	}
	threshold := s.cfg.SupplementalThreshold
	if opts.SupplementalThreshold > 0 {
		threshold = opts.SupplementalThreshold
	}
	return primaryCount < threshold
}

func (s *HybridSearchService) searchSupplemental(ctx context.Context, q *entities.Query, opts SearchOptions) ([]entities.Candidate, error) {
	ctx, span := observability.StartSpan(ctx, "HybridSearch.Supplemental")
	defer span.End()

	s.metrics.SupplementalInvoked(ctx)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SupplementalTimeout)
	defer cancel()

	maxResults := s.cfg.MaxSupplementalResults
	if opts.MaxSupplementalResults > 0 {
		maxResults = opts.MaxSupplementalResults
	}

	results, err := s.supplemental.Search(ctx, q, providers.SupplementalOptions{MaxResults: maxResults})
	if err != nil {
		observability.RecordError(span, err)
		reason := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
			reason = "cancelled"
		}
		s.metrics.SupplementalFailed(ctx, reason)
		return nil, err
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// publishDiscoveries sends surviving supplemental candidates to the
// discovery channel without holding up the response.
func (s *HybridSearchService) publishDiscoveries(ctx context.Context, searchID string, discovered []entities.Candidate) {
	if s.publisher == nil || len(discovered) == 0 {
		return
	}

	logger := observability.LoggerFromContext(ctx)
	events := make([]*entities.FacilityEvent, len(discovered))
	for i, c := range discovered {
		events[i] = entities.NewDiscoveredEvent(searchID, c)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.Background(), discoveryPublishTimeout)
		defer cancel()

		for _, event := range events {
			if err := s.publisher.Publish(pubCtx, providers.EventChannelFacilityDiscovered, event); err != nil {
				logger.Warn().Err(err).
					Str("search_id", searchID).
					Str("candidate_id", event.Candidate.ID()).
					Msg("failed to publish discovered facility")
			}
		}
	}()
}
