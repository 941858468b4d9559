package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/soberbookings/backend/pkg/errors"
)

const searchAnalyticsTable = "search_analytics"

var searchEventColumns = []interface{}{
	"id", "care_level", "keywords", "assessment_driven",
	"primary_count", "supplemental_count", "duplicates_dropped", "result_count",
	"supplemental_used", "supplemental_failed", "latency_ms",
	"user_latitude", "user_longitude", "created_at",
}

type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func (a *SearchAnalyticsAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":                  event.ID,
		"care_level":          sql.NullString{String: event.CareLevel, Valid: event.CareLevel != ""},
		"keywords":            sql.NullString{String: event.Keywords, Valid: event.Keywords != ""},
		"assessment_driven":   event.AssessmentDriven,
		"primary_count":       event.PrimaryCount,
		"supplemental_count":  event.SupplementalCount,
		"duplicates_dropped":  event.DuplicatesDropped,
		"result_count":        event.ResultCount,
		"supplemental_used":   event.SupplementalUsed,
		"supplemental_failed": event.SupplementalFailed,
		"latency_ms":          event.LatencyMs,
		"user_latitude":       nullFloat(event.UserLatitude),
		"user_longitude":      nullFloat(event.UserLongitude),
		"created_at":          event.CreatedAt,
	}

	query, args, err := a.db.Insert(searchAnalyticsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}

	return nil
}

func (a *SearchAnalyticsAdapter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.From(searchAnalyticsTable).
		Select(searchEventColumns...).
		Where(goqu.C("result_count").Eq(0)).
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result queries", err)
	}
	defer rows.Close()

	events := []*entities.SearchEvent{}
	for rows.Next() {
		e := &entities.SearchEvent{}
		var careLevel, keywords sql.NullString
		var lat, lon sql.NullFloat64
		err := rows.Scan(
			&e.ID,
			&careLevel,
			&keywords,
			&e.AssessmentDriven,
			&e.PrimaryCount,
			&e.SupplementalCount,
			&e.DuplicatesDropped,
			&e.ResultCount,
			&e.SupplementalUsed,
			&e.SupplementalFailed,
			&e.LatencyMs,
			&lat,
			&lon,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan search event", err)
		}
		e.CareLevel = careLevel.String
		e.Keywords = keywords.String
		if lat.Valid && lon.Valid {
			e.UserLatitude, e.UserLongitude = &lat.Float64, &lon.Float64
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result queries", err)
	}

	return events, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
