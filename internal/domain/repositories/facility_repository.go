package repositories

import (
	"context"

	"github.com/soberbookings/backend/internal/domain/entities"
)

// FacilityRepository defines read access to the curated facility store
type FacilityRepository interface {
	// GetByID retrieves a facility by ID
	GetByID(ctx context.Context, id string) (*entities.Facility, error)

	// List retrieves facilities with filters
	List(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// Search searches facilities by care level, location and keywords
	Search(ctx context.Context, params SearchParams) ([]*entities.Facility, error)
}

// FacilitySearchRepository defines the interface for facility search operations (e.g. Typesense)
type FacilitySearchRepository interface {
	// Search searches facilities
	Search(ctx context.Context, params SearchParams) ([]*entities.Facility, error)

	// Index indexes a facility
	Index(ctx context.Context, facility *entities.Facility) error

	// Delete removes a facility from index
	Delete(ctx context.Context, id string) error
}

// FacilityFilter defines filters for listing facilities
type FacilityFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

// SearchParams defines parameters for facility search.
//
// An empty CareLevel does not filter by level. When Center is nil the
// search falls back to City/State/ZipCode matching.
type SearchParams struct {
	Keywords     string
	CareLevel    string
	Center       *entities.Coordinates
	RadiusMiles  float64
	City         string
	State        string
	ZipCode      string
	VerifiedOnly bool
	Limit        int
	Offset       int
}
