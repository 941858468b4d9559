package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
)

const analyticsWriteTimeout = 5 * time.Second

type SearchAnalyticsService struct {
	repo repositories.SearchAnalyticsRepository
	wg   sync.WaitGroup
}

func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo}
}

// TrackSearch stores the event in the background so the request is never
// held up by the analytics write.
func (s *SearchAnalyticsService) TrackSearch(ctx context.Context, event *entities.SearchEvent) {
	if s == nil || s.repo == nil || event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	logger := observability.LoggerFromContext(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// The request context is usually cancelled by the time this runs.
		bgCtx, cancel := context.WithTimeout(context.Background(), analyticsWriteTimeout)
		defer cancel()

		if err := s.repo.LogEvent(bgCtx, event); err != nil {
			logger.Warn().Err(err).Str("search_id", event.ID).Msg("failed to log search event")
		}
	}()
}

// Wait blocks until pending analytics writes finish.
func (s *SearchAnalyticsService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *SearchAnalyticsService) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetZeroResultQueries(ctx, limit)
}
