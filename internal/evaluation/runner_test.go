package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/soberbookings/backend/internal/application/services"
	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMatcher struct {
	mock.Mock
}

func (m *mockMatcher) MatchByAssessment(ctx context.Context, assessment *entities.Assessment, opts services.SearchOptions) ([]entities.RankedCandidate, error) {
	args := m.Called(ctx, assessment, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RankedCandidate), args.Error(1)
}

func ranked(ids ...string) []entities.RankedCandidate {
	out := make([]entities.RankedCandidate, len(ids))
	for i, id := range ids {
		p := entities.ProvenancePrimary
		if id == "places-1" {
			p = entities.ProvenanceSupplemental
		}
		out[i] = entities.RankedCandidate{Candidate: entities.NewCandidate(p, id)}
	}
	return out
}

func goldenCase(id, level string, difficulty Difficulty, expected ...string) GoldenCase {
	gc := GoldenCase{ID: id, ExpectedIDs: expected, Difficulty: difficulty}
	gc.Assessment.RecommendedLevel = level
	return gc
}

func forLevel(level string) interface{} {
	return mock.MatchedBy(func(a *entities.Assessment) bool { return a.RecommendedLevel == level })
}

func TestRunner_Run(t *testing.T) {
	matcher := new(mockMatcher)
	opts := services.SearchOptions{Limit: 10, SkipSupplemental: true}
	matcher.On("MatchByAssessment", mock.Anything, forLevel("3.5"), opts).
		Return(ranked("fac-1", "fac-3", "fac-2"), nil)
	matcher.On("MatchByAssessment", mock.Anything, forLevel("2.1"), opts).
		Return(ranked("fac-8", "fac-7"), nil)

	runner := NewRunner(matcher, 0, false)
	summary, err := runner.Run(context.Background(), []GoldenCase{
		goldenCase("residential", "3.5", DifficultyEasy, "fac-1", "fac-2"),
		goldenCase("iop", "2.1", DifficultyHard, "fac-7", "fac-9"),
	})

	require.NoError(t, err)
	assert.Equal(t, DefaultK, summary.K)
	assert.Equal(t, 2, summary.TotalCases)
	assert.Equal(t, 2, summary.CasesWithHits)
	assert.Zero(t, summary.FailedCases)
	require.Len(t, summary.Results, 2)

	first := summary.Results[0]
	assert.Equal(t, "3.5", first.CareLevel)
	assert.InDelta(t, 1.0, first.RecallAtK, floatTolerance)
	assert.InDelta(t, 1.0, first.MRRAtK, floatTolerance)
	assert.Equal(t, []string{"primary:fac-1", "primary:fac-3", "primary:fac-2"}, first.RetrievedIDs)

	second := summary.Results[1]
	assert.InDelta(t, 0.5, second.RecallAtK, floatTolerance)
	assert.InDelta(t, 0.5, second.MRRAtK, floatTolerance)

	assert.InDelta(t, 0.75, summary.AvgRecallAtK, floatTolerance)
	assert.InDelta(t, 0.75, summary.AvgMRRAtK, floatTolerance)
	require.Contains(t, summary.ByCareLevel, "2.1")
	assert.Equal(t, 1, summary.ByCareLevel["2.1"].Count)
	assert.InDelta(t, 0.5, summary.ByDifficulty[DifficultyHard].AvgRecallAtK, floatTolerance)
	matcher.AssertExpectations(t)
}

func TestRunner_RecordsFailedCases(t *testing.T) {
	matcher := new(mockMatcher)
	matcher.On("MatchByAssessment", mock.Anything, forLevel("3.5"), mock.Anything).
		Return(nil, errors.New("primary source unavailable"))
	matcher.On("MatchByAssessment", mock.Anything, forLevel("Level 1"), mock.Anything).
		Return(ranked("fac-4"), nil)

	summary, err := NewRunner(matcher, 5, false).Run(context.Background(), []GoldenCase{
		goldenCase("broken", "3.5", DifficultyMedium, "fac-1"),
		goldenCase("outpatient", "Level 1", DifficultyEasy, "fac-4"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedCases)
	assert.Equal(t, 1, summary.CasesWithHits)
	assert.Equal(t, "primary source unavailable", summary.Results[0].Error)
	assert.Equal(t, "1", summary.Results[1].CareLevel)
	assert.InDelta(t, 0.5, summary.AvgRecallAtK, floatTolerance)
}

func TestRunner_SupplementalResultsNeverMatch(t *testing.T) {
	matcher := new(mockMatcher)
	matcher.On("MatchByAssessment", mock.Anything, mock.Anything, services.SearchOptions{Limit: 3}).
		Return(ranked("places-1", "fac-1"), nil)

	summary, err := NewRunner(matcher, 3, true).Run(context.Background(), []GoldenCase{
		goldenCase("mixed", "3.5", DifficultyMedium, "fac-1", "places-1"),
	})

	require.NoError(t, err)
	res := summary.Results[0]
	assert.Equal(t, 1, res.SupplementalCount)
	assert.InDelta(t, 0.5, res.RecallAtK, floatTolerance)
	assert.InDelta(t, 0.5, res.MRRAtK, floatTolerance)
	matcher.AssertExpectations(t)
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matcher := new(mockMatcher)
	_, err := NewRunner(matcher, 10, false).Run(ctx, []GoldenCase{goldenCase("c1", "3.5", DifficultyEasy, "fac-1")})

	assert.ErrorIs(t, err, context.Canceled)
	matcher.AssertNotCalled(t, "MatchByAssessment", mock.Anything, mock.Anything, mock.Anything)
}
