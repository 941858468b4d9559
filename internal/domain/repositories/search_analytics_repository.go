package repositories

import (
	"context"

	"github.com/soberbookings/backend/internal/domain/entities"
)

// SearchAnalyticsRepository stores one row per hybrid search.
type SearchAnalyticsRepository interface {
	LogEvent(ctx context.Context, event *entities.SearchEvent) error
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}
