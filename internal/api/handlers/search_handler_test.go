package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/soberbookings/backend/internal/api/handlers"
	"github.com/soberbookings/backend/internal/application/services"
	"github.com/soberbookings/backend/internal/domain/entities"
	apperrors "github.com/soberbookings/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHybridSearcher struct {
	mock.Mock
}

func (m *MockHybridSearcher) Search(ctx context.Context, query *entities.Query, opts services.SearchOptions) ([]entities.RankedCandidate, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RankedCandidate), args.Error(1)
}

func (m *MockHybridSearcher) MatchByAssessment(ctx context.Context, assessment *entities.Assessment, opts services.SearchOptions) ([]entities.RankedCandidate, error) {
	args := m.Called(ctx, assessment, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RankedCandidate), args.Error(1)
}

type MockZeroResultReporter struct {
	mock.Mock
}

func (m *MockZeroResultReporter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SearchEvent), args.Error(1)
}

func rankedResult(id string, score float64) entities.RankedCandidate {
	c := entities.NewCandidate(entities.ProvenancePrimary, id)
	c.Name = "Facility " + id
	return entities.RankedCandidate{Candidate: c, Score: score}
}

type decodedResponse struct {
	Results []struct {
		ID         string  `json:"id"`
		Provenance string  `json:"provenance"`
		Score      float64 `json:"score"`
	} `json:"results"`
	Count int    `json:"count"`
	Error string `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decodedResponse {
	t.Helper()
	var resp decodedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSearchHandler_SearchFacilities(t *testing.T) {
	searcher := new(MockHybridSearcher)
	handler := handlers.NewSearchHandler(searcher, nil)

	searcher.On("Search", mock.Anything, mock.MatchedBy(func(q *entities.Query) bool {
		return q.CareLevel == "3.5" &&
			q.Keywords == "detox" &&
			assert.ObjectsAreEqual([]string{"Opioid Addiction", "Detox"}, q.Specialties) &&
			q.Demographics.Gender == entities.GenderFemale &&
			q.Demographics.AgeGroup == entities.AgeGroupAdult &&
			q.InsuranceProvider == "Aetna" &&
			q.Location.Coordinates != nil && q.Location.Coordinates.Latitude == 34.05 &&
			q.RadiusMiles == 25
	}), services.SearchOptions{Limit: 10, Offset: 0, VerifiedOnly: true, SkipSupplemental: true}).
		Return([]entities.RankedCandidate{rankedResult("fac-1", 0.9)}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/facilities/search?care_level=Level+3.5&q=detox&specialties=Opioid+Addiction,+Detox"+
			"&gender=female&age_group=adult&insurance=Aetna&lat=34.05&lon=-118.24&radius=25"+
			"&limit=10&verified_only=true&supplemental=false", nil)
	rec := httptest.NewRecorder()

	handler.SearchFacilities(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "primary:fac-1", resp.Results[0].ID)
	assert.Equal(t, "primary", resp.Results[0].Provenance)
	assert.Equal(t, 0.9, resp.Results[0].Score)
	searcher.AssertExpectations(t)
}

func TestSearchHandler_SearchFacilitiesCapsPageSize(t *testing.T) {
	searcher := new(MockHybridSearcher)
	handler := handlers.NewSearchHandler(searcher, nil)

	searcher.On("Search", mock.Anything, mock.MatchedBy(func(q *entities.Query) bool {
		return q.CareLevel == "" && q.Location.City == "Austin" && q.RadiusMiles == entities.DefaultRadiusMiles
	}), services.SearchOptions{Limit: 100}).
		Return(nil, nil)

	rec := httptest.NewRecorder()
	handler.SearchFacilities(rec, httptest.NewRequest(http.MethodGet, "/api/facilities/search?limit=500&city=Austin", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode(t, rec).Count)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	searcher.AssertExpectations(t)
}

func TestSearchHandler_BadParameters(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"unknown care level", "/api/facilities/search?care_level=9.9"},
		{"malformed latitude", "/api/facilities/search?lat=north&lon=1"},
		{"latitude without longitude", "/api/facilities/search?lat=34.05"},
		{"negative limit", "/api/facilities/search?limit=-1"},
		{"malformed boolean", "/api/facilities/search?supplemental=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(MockHybridSearcher)
			handler := handlers.NewSearchHandler(searcher, nil)

			rec := httptest.NewRecorder()
			handler.SearchFacilities(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSearchHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", apperrors.NewValidationError("radius must be greater than zero"), http.StatusBadRequest, "radius must be greater than zero"},
		{"primary source down", apperrors.NewExternalError("primary source failed", errors.New("dial tcp")), http.StatusBadGateway, "primary source failed"},
		{"internal details hidden", apperrors.NewInternalError("query failed", errors.New("pq: secret")), http.StatusInternalServerError, "internal server error"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "search timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(MockHybridSearcher)
			handler := handlers.NewSearchHandler(searcher, nil)
			searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := httptest.NewRecorder()
			handler.SearchFacilities(rec, httptest.NewRequest(http.MethodGet, "/api/facilities/search", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode(t, rec).Error)
		})
	}
}

func TestSearchHandler_MatchAssessment(t *testing.T) {
	searcher := new(MockHybridSearcher)
	handler := handlers.NewSearchHandler(searcher, nil)

	searcher.On("MatchByAssessment", mock.Anything, mock.MatchedBy(func(a *entities.Assessment) bool {
		return a.RecommendedLevel == "3.7" &&
			a.Dimensions != nil && a.Dimensions.Withdrawal == 3 &&
			a.Patient.Age != nil && *a.Patient.Age == 34 &&
			a.Location.State == "OH"
	}), services.SearchOptions{Limit: 5}).
		Return([]entities.RankedCandidate{rankedResult("a", 0.8), rankedResult("b", 0.6)}, nil)

	body := `{
		"recommendedLevel": "3.7",
		"dimensions": {"withdrawal": 3},
		"substances": ["alcohol"],
		"patient": {"age": 34, "gender": "male"},
		"location": {"state": "OH"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/match?limit=5", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.MatchAssessment(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "primary:a", resp.Results[0].ID)
	searcher.AssertExpectations(t)
}

func TestSearchHandler_MatchAssessmentInvalidBody(t *testing.T) {
	searcher := new(MockHybridSearcher)
	handler := handlers.NewSearchHandler(searcher, nil)

	rec := httptest.NewRecorder()
	handler.MatchAssessment(rec, httptest.NewRequest(http.MethodPost, "/api/match", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	searcher.AssertNotCalled(t, "MatchByAssessment", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchHandler_MatchAssessmentMissingLevel(t *testing.T) {
	searcher := new(MockHybridSearcher)
	handler := handlers.NewSearchHandler(searcher, nil)
	searcher.On("MatchByAssessment", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.NewValidationError("recommended level is required"))

	rec := httptest.NewRecorder()
	handler.MatchAssessment(rec, httptest.NewRequest(http.MethodPost, "/api/match", strings.NewReader(`{"patient": {}}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "recommended level is required", decode(t, rec).Error)
}

func TestSearchHandler_ZeroResultQueries(t *testing.T) {
	reporter := new(MockZeroResultReporter)
	handler := handlers.NewSearchHandler(new(MockHybridSearcher), reporter)

	reporter.On("GetZeroResultQueries", mock.Anything, 10).
		Return([]*entities.SearchEvent{{ID: "evt-1", CareLevel: "4"}}, nil)

	rec := httptest.NewRecorder()
	handler.GetZeroResultQueries(rec, httptest.NewRequest(http.MethodGet, "/api/search/zero-results?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Queries []entities.SearchEvent `json:"queries"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "evt-1", resp.Queries[0].ID)
}

func TestSearchHandler_ZeroResultQueriesDisabled(t *testing.T) {
	handler := handlers.NewSearchHandler(new(MockHybridSearcher), nil)

	rec := httptest.NewRecorder()
	handler.GetZeroResultQueries(rec, httptest.NewRequest(http.MethodGet, "/api/search/zero-results", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
