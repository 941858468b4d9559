package sources

import (
	"context"
	"strings"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
)

// CuratedSource serves primary candidates from the verified facility store.
// The search index is queried first; the database answers when the index
// is not configured or fails.
type CuratedSource struct {
	index repositories.FacilitySearchRepository
	repo  repositories.FacilityRepository
}

var _ providers.PrimarySource = (*CuratedSource)(nil)

// NewCuratedSource creates a primary source. Either argument may be nil, not both.
func NewCuratedSource(index repositories.FacilitySearchRepository, repo repositories.FacilityRepository) *CuratedSource {
	return &CuratedSource{index: index, repo: repo}
}

// Search returns curated candidates matching query.
func (s *CuratedSource) Search(ctx context.Context, query *entities.Query, opts providers.PrimaryOptions) ([]entities.Candidate, error) {
	params := searchParamsFromQuery(query, opts)

	facilities, err := s.searchFacilities(ctx, params)
	if err != nil {
		return nil, err
	}

	candidates := make([]entities.Candidate, 0, len(facilities))
	for _, f := range facilities {
		if f == nil {
			continue
		}
		candidates = append(candidates, CandidateFromFacility(f))
	}
	return candidates, nil
}

func (s *CuratedSource) searchFacilities(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	if s.index == nil {
		return s.repo.Search(ctx, params)
	}

	facilities, err := s.index.Search(ctx, params)
	if err == nil || s.repo == nil || ctx.Err() != nil {
		return facilities, err
	}

	observability.LoggerFromContext(ctx).Warn().Err(err).Msg("search index failed, falling back to database")
	return s.repo.Search(ctx, params)
}

func searchParamsFromQuery(q *entities.Query, opts providers.PrimaryOptions) repositories.SearchParams {
	params := repositories.SearchParams{
		Keywords:     strings.TrimSpace(q.Keywords),
		CareLevel:    q.CareLevel,
		RadiusMiles:  q.RadiusMiles,
		City:         q.Location.City,
		State:        q.Location.State,
		ZipCode:      q.Location.ZipCode,
		VerifiedOnly: opts.VerifiedOnly,
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	}
	if q.Location.Coordinates != nil {
		center := *q.Location.Coordinates
		params.Center = &center
	}
	if params.Limit <= 0 {
		params.Limit = q.Limit
	}
	return params
}

// CandidateFromFacility converts a curated record to a primary candidate.
func CandidateFromFacility(f *entities.Facility) entities.Candidate {
	c := entities.NewCandidate(entities.ProvenancePrimary, f.ID)
	c.Name = f.Name
	c.Address = f.Address
	if f.Coordinates != nil {
		coords := *f.Coordinates
		c.Coordinates = &coords
	}
	c.Contact = f.Contact
	c.Treatment = f.Treatment
	c.Demographics = f.Demographics
	c.Financial = f.Financial
	c.VerificationTier = f.VerificationTier
	c.VerificationStatus = f.VerificationStatus
	if c.VerificationTier == "" {
		c.VerificationTier = entities.VerificationTierNone
	}
	if c.VerificationStatus == "" {
		c.VerificationStatus = entities.VerificationStatusUnverified
	}
	return c
}
