package providers

import (
	"context"

	"github.com/soberbookings/backend/internal/domain/entities"
)

// PrimaryOptions controls a curated-store lookup.
type PrimaryOptions struct {
	Limit        int
	Offset       int
	VerifiedOnly bool
}

// PrimarySource returns curated candidates for a query. Implementations tag
// every candidate with primary provenance and populate verification tier
// and status.
type PrimarySource interface {
	Search(ctx context.Context, query *entities.Query, opts PrimaryOptions) ([]entities.Candidate, error)
}

// SupplementalOptions controls an open-web lookup.
type SupplementalOptions struct {
	MaxResults int
}

// SupplementalSource returns loosely structured candidates for a query.
// Implementations tag every candidate with supplemental provenance and may
// leave demographic, financial and verification fields at their defaults.
type SupplementalSource interface {
	Search(ctx context.Context, query *entities.Query, opts SupplementalOptions) ([]entities.Candidate, error)
}
