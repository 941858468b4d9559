package sources

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/providers"
	"github.com/soberbookings/backend/internal/infrastructure/clients/places"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
	"github.com/soberbookings/backend/pkg/geo"
)

const (
	// maxPlacesResults is the largest page the text search API returns.
	maxPlacesResults = 20

	defaultSearchPhrase = "addiction treatment center"
	closedPermanently   = "CLOSED_PERMANENTLY"
)

// PlacesAPI is the subset of the Places client used by PlacesSource.
type PlacesAPI interface {
	TextSearch(ctx context.Context, req places.TextSearchRequest) (*places.TextSearchResponse, error)
	Details(ctx context.Context, placeID string) (*places.Place, error)
}

// PlacesSourceConfig bounds the per-candidate detail lookups.
type PlacesSourceConfig struct {
	EnrichmentConcurrency int
	EnrichmentTimeout     time.Duration
}

// DefaultPlacesSourceConfig returns the default enrichment bounds.
func DefaultPlacesSourceConfig() PlacesSourceConfig {
	return PlacesSourceConfig{
		EnrichmentConcurrency: 4,
		EnrichmentTimeout:     3 * time.Second,
	}
}

// PlacesSource serves supplemental candidates from Google Places.
type PlacesSource struct {
	api PlacesAPI
	cfg PlacesSourceConfig
}

var _ providers.SupplementalSource = (*PlacesSource)(nil)

// NewPlacesSource creates a supplemental source over the Places API.
func NewPlacesSource(api PlacesAPI, cfg PlacesSourceConfig) *PlacesSource {
	def := DefaultPlacesSourceConfig()
	if cfg.EnrichmentConcurrency <= 0 {
		cfg.EnrichmentConcurrency = def.EnrichmentConcurrency
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = def.EnrichmentTimeout
	}
	return &PlacesSource{api: api, cfg: cfg}
}

// Search runs a text search for query and returns up to opts.MaxResults
// supplemental candidates, enriching those missing contact details.
func (s *PlacesSource) Search(ctx context.Context, query *entities.Query, opts providers.SupplementalOptions) ([]entities.Candidate, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 || maxResults > maxPlacesResults {
		maxResults = maxPlacesResults
	}

	req := places.TextSearchRequest{
		TextQuery:      textQuery(query),
		MaxResultCount: maxResults,
	}
	if c := query.Location.Coordinates; c != nil {
		req.LocationBias = places.CircleBias(c.Latitude, c.Longitude, query.RadiusMiles)
	}

	resp, err := s.api.TextSearch(ctx, req)
	if err != nil {
		return nil, err
	}

	candidates := make([]entities.Candidate, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.ID == "" || p.BusinessStatus == closedPermanently {
			continue
		}
		if !withinRadius(query, p) {
			continue
		}
		candidates = append(candidates, candidateFromPlace(p))
		if len(candidates) == maxResults {
			break
		}
	}

	s.enrich(ctx, candidates)
	return candidates, nil
}

// enrich fills missing phone and website from place details. Lookups run
// concurrently and a failed lookup leaves its candidate unchanged.
func (s *PlacesSource) enrich(ctx context.Context, candidates []entities.Candidate) {
	logger := observability.LoggerFromContext(ctx)

	var g errgroup.Group
	g.SetLimit(s.cfg.EnrichmentConcurrency)

	for i := range candidates {
		c := &candidates[i]
		if c.Contact.Phone != "" && c.Contact.Website != "" {
			continue
		}
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.EnrichmentTimeout)
			defer cancel()

			place, err := s.api.Details(callCtx, c.SourceID())
			if err != nil {
				logger.Debug().Err(err).Str("candidate_id", c.ID()).Msg("place details lookup failed")
				return nil
			}
			if c.Contact.Phone == "" {
				c.Contact.Phone = place.NationalPhoneNumber
			}
			if c.Contact.Website == "" {
				c.Contact.Website = place.WebsiteURI
			}
			return nil
		})
	}
	_ = g.Wait()
}

func textQuery(q *entities.Query) string {
	phrase := strings.TrimSpace(q.Keywords)
	if phrase == "" && len(q.Specialties) > 0 {
		phrase = q.Specialties[0] + " treatment"
	}
	if phrase == "" {
		phrase = defaultSearchPhrase
	}

	var where []string
	for _, part := range []string{q.Location.City, q.Location.State, q.Location.ZipCode} {
		if part = strings.TrimSpace(part); part != "" {
			where = append(where, part)
		}
	}
	if len(where) == 0 {
		return phrase
	}
	return phrase + " in " + strings.Join(where, ", ")
}

func withinRadius(q *entities.Query, p places.Place) bool {
	center := q.Location.Coordinates
	if center == nil || p.Location == nil || q.RadiusMiles <= 0 {
		return true
	}
	d := geo.DistanceMiles(
		geo.Point{Latitude: center.Latitude, Longitude: center.Longitude},
		geo.Point{Latitude: p.Location.Latitude, Longitude: p.Location.Longitude},
	)
	return d <= q.RadiusMiles
}

func candidateFromPlace(p places.Place) entities.Candidate {
	c := entities.NewCandidate(entities.ProvenanceSupplemental, p.ID)
	c.Name = strings.TrimSpace(p.DisplayName.Text)
	c.Address = entities.Address{
		Street:  p.Street(),
		City:    p.Component("locality", "postal_town", "administrative_area_level_2"),
		State:   p.Component("administrative_area_level_1"),
		ZipCode: p.Component("postal_code"),
		Country: p.Component("country"),
	}
	if p.Location != nil {
		c.Coordinates = &entities.Coordinates{Latitude: p.Location.Latitude, Longitude: p.Location.Longitude}
	}
	c.Contact = entities.ContactInfo{
		Phone:   p.NationalPhoneNumber,
		Website: p.WebsiteURI,
	}
	return c
}
