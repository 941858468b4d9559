package evaluation

import (
	"context"
	"time"

	"github.com/soberbookings/backend/internal/application/services"
	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
)

// DefaultK is the cutoff used when a Runner is built with k <= 0.
const DefaultK = 10

// AssessmentMatcher is the part of the hybrid search service under evaluation.
type AssessmentMatcher interface {
	MatchByAssessment(ctx context.Context, assessment *entities.Assessment, opts services.SearchOptions) ([]entities.RankedCandidate, error)
}

// Runner runs evaluation across a set of golden cases.
type Runner struct {
	matcher          AssessmentMatcher
	k                int
	withSupplemental bool
}

// NewRunner creates a runner scoring the top k results. Supplemental
// results are excluded unless withSupplemental is set, since expected ids
// always refer to curated facilities.
func NewRunner(matcher AssessmentMatcher, k int, withSupplemental bool) *Runner {
	if k <= 0 {
		k = DefaultK
	}
	return &Runner{matcher: matcher, k: k, withSupplemental: withSupplemental}
}

// Run evaluates every case in order. A failing case is recorded in the
// summary rather than aborting the run; only a cancelled context stops it.
func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*EvalSummary, error) {
	logger := observability.LoggerFromContext(ctx)
	summary := &EvalSummary{
		K:            r.k,
		TotalCases:   len(cases),
		ByCareLevel:  make(map[string]*GroupSummary),
		ByDifficulty: make(map[Difficulty]*GroupSummary),
		Results:      make([]EvalResult, 0, len(cases)),
	}

	for _, gc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := r.evaluate(ctx, gc)
		if result.Error != "" {
			logger.Warn().Str("case_id", gc.ID).Str("error", result.Error).Msg("golden case failed")
		}
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) evaluate(ctx context.Context, gc GoldenCase) EvalResult {
	level, _ := entities.CanonicalCareLevel(gc.Assessment.RecommendedLevel)
	result := EvalResult{
		CaseID:     gc.ID,
		CareLevel:  level,
		Difficulty: gc.Difficulty,
	}

	assessment := gc.Assessment
	start := time.Now()
	ranked, err := r.matcher.MatchByAssessment(ctx, &assessment, services.SearchOptions{
		Limit:            r.k,
		SkipSupplemental: !r.withSupplemental,
	})
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	expected := make([]string, len(gc.ExpectedIDs))
	for i, id := range gc.ExpectedIDs {
		expected[i] = entities.QualifiedID(entities.ProvenancePrimary, id)
	}

	result.ResultCount = len(ranked)
	result.RetrievedIDs = make([]string, len(ranked))
	for i, rc := range ranked {
		result.RetrievedIDs[i] = rc.Candidate.ID()
		if !rc.Candidate.IsPrimary() {
			result.SupplementalCount++
		}
	}

	result.RecallAtK = RecallAtK(expected, result.RetrievedIDs, r.k)
	result.MRRAtK = MRRAtK(expected, result.RetrievedIDs, r.k)
	result.NDCGAtK = NDCGAtK(expected, result.RetrievedIDs, r.k)
	return result
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAtK += res.RecallAtK
	s.AvgMRRAtK += res.MRRAtK
	s.AvgNDCGAtK += res.NDCGAtK
	s.AvgLatency += res.Latency
	if res.Error != "" {
		s.FailedCases++
	}
	if res.ResultCount > 0 {
		s.CasesWithHits++
	}

	if _, ok := s.ByCareLevel[res.CareLevel]; !ok {
		s.ByCareLevel[res.CareLevel] = &GroupSummary{}
	}
	addToGroup(s.ByCareLevel[res.CareLevel], res)

	if _, ok := s.ByDifficulty[res.Difficulty]; !ok {
		s.ByDifficulty[res.Difficulty] = &GroupSummary{}
	}
	addToGroup(s.ByDifficulty[res.Difficulty], res)
}

func addToGroup(g *GroupSummary, res EvalResult) {
	g.Count++
	g.AvgRecallAtK += res.RecallAtK
	g.AvgMRRAtK += res.MRRAtK
	g.AvgNDCGAtK += res.NDCGAtK
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalCases > 0 {
		n := float64(s.TotalCases)
		s.AvgRecallAtK /= n
		s.AvgMRRAtK /= n
		s.AvgNDCGAtK /= n
		s.AvgLatency /= time.Duration(s.TotalCases)
	}

	for _, g := range s.ByCareLevel {
		finalizeGroup(g)
	}
	for _, g := range s.ByDifficulty {
		finalizeGroup(g)
	}
}

func finalizeGroup(g *GroupSummary) {
	if g.Count == 0 {
		return
	}
	n := float64(g.Count)
	g.AvgRecallAtK /= n
	g.AvgMRRAtK /= n
	g.AvgNDCGAtK /= n
}
