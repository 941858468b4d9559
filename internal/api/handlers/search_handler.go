package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/soberbookings/backend/internal/application/services"
	"github.com/soberbookings/backend/internal/domain/entities"
	apperrors "github.com/soberbookings/backend/pkg/errors"
)

const (
	maxPageSize       = 100
	maxAssessmentBody = 1 << 20
	zeroResultsLimit  = 50
)

// HybridSearcher runs hybrid searches.
type HybridSearcher interface {
	Search(ctx context.Context, query *entities.Query, opts services.SearchOptions) ([]entities.RankedCandidate, error)
	MatchByAssessment(ctx context.Context, assessment *entities.Assessment, opts services.SearchOptions) ([]entities.RankedCandidate, error)
}

// ZeroResultReporter lists searches that returned nothing.
type ZeroResultReporter interface {
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}

// SearchHandler handles facility search and assessment matching requests
type SearchHandler struct {
	search    HybridSearcher
	analytics ZeroResultReporter
}

// NewSearchHandler creates a new search handler. analytics may be nil.
func NewSearchHandler(search HybridSearcher, analytics ZeroResultReporter) *SearchHandler {
	return &SearchHandler{
		search:    search,
		analytics: analytics,
	}
}

type searchResponse struct {
	Results []entities.RankedCandidate `json:"results"`
	Count   int                        `json:"count"`
}

func newSearchResponse(results []entities.RankedCandidate) searchResponse {
	if results == nil {
		results = []entities.RankedCandidate{}
	}
	return searchResponse{Results: results, Count: len(results)}
}

// SearchFacilities handles GET /api/facilities/search
func (h *SearchHandler) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	query, err := queryFromRequest(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	opts, err := optionsFromRequest(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	results, err := h.search.Search(r.Context(), query, opts)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSearchResponse(results))
}

// MatchAssessment handles POST /api/match
func (h *SearchHandler) MatchAssessment(w http.ResponseWriter, r *http.Request) {
	var assessment entities.Assessment
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAssessmentBody))
	if err := decoder.Decode(&assessment); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid assessment body")
		return
	}

	opts, err := optionsFromRequest(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	results, err := h.search.MatchByAssessment(r.Context(), &assessment, opts)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSearchResponse(results))
}

// GetZeroResultQueries handles GET /api/search/zero-results
func (h *SearchHandler) GetZeroResultQueries(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		respondWithError(w, http.StatusNotFound, "search analytics disabled")
		return
	}

	limit, err := intParam(r, "limit", zeroResultsLimit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	events, err := h.analytics.GetZeroResultQueries(r.Context(), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if events == nil {
		events = []*entities.SearchEvent{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queries": events,
		"count":   len(events),
	})
}

func queryFromRequest(r *http.Request) (*entities.Query, error) {
	v := r.URL.Query()

	level := strings.TrimSpace(v.Get("care_level"))
	if level != "" {
		canonical, ok := entities.CanonicalCareLevel(level)
		if !ok {
			return nil, apperrors.NewValidationError("unrecognised care level " + level)
		}
		level = canonical
	}

	q := entities.NewQuery(level)
	q.Keywords = strings.TrimSpace(v.Get("q"))
	q.Specialties = listParam(v.Get("specialties"))
	q.InsuranceProvider = strings.TrimSpace(v.Get("insurance"))
	q.Demographics = entities.Demographics{
		AgeGroup:           entities.AgeGroup(strings.ToLower(strings.TrimSpace(v.Get("age_group")))),
		Gender:             entities.ParseGenderFocus(v.Get("gender")),
		SpecialPopulations: listParam(v.Get("populations")),
	}
	q.Location = entities.Location{
		City:    strings.TrimSpace(v.Get("city")),
		State:   strings.TrimSpace(v.Get("state")),
		ZipCode: strings.TrimSpace(v.Get("zip")),
	}

	lat, hasLat, err := floatParam(r, "lat")
	if err != nil {
		return nil, err
	}
	lon, hasLon, err := floatParam(r, "lon")
	if err != nil {
		return nil, err
	}
	if hasLat != hasLon {
		return nil, apperrors.NewValidationError("lat and lon must be provided together")
	}
	if hasLat {
		q.Location.Coordinates = &entities.Coordinates{Latitude: lat, Longitude: lon}
	}

	radius, hasRadius, err := floatParam(r, "radius")
	if err != nil {
		return nil, err
	}
	if hasRadius {
		q.RadiusMiles = radius
	}

	return q, nil
}

func optionsFromRequest(r *http.Request) (services.SearchOptions, error) {
	var opts services.SearchOptions

	limit, err := intParam(r, "limit", entities.DefaultLimit)
	if err != nil {
		return opts, err
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		return opts, err
	}
	verifiedOnly, err := boolParam(r, "verified_only", false)
	if err != nil {
		return opts, err
	}
	supplemental, err := boolParam(r, "supplemental", true)
	if err != nil {
		return opts, err
	}

	opts.Limit = limit
	opts.Offset = offset
	opts.VerifiedOnly = verifiedOnly
	opts.SkipSupplemental = !supplemental
	return opts, nil
}

func listParam(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func floatParam(r *http.Request, name string) (float64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, apperrors.NewValidationError("invalid " + name)
	}
	return f, true, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError("invalid " + name)
	}
	return n, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewValidationError("invalid " + name)
	}
	return b, nil
}
