package evaluation

import (
	"time"

	"github.com/soberbookings/backend/internal/domain/entities"
)

// Difficulty grades how hard a golden case is to match.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"   // exact level and city match in the curated set
	DifficultyMedium Difficulty = "medium" // needs specialty or population overlap to rank well
	DifficultyHard   Difficulty = "hard"   // sparse area or strict demographic constraints
)

// IsValid reports whether d is one of the defined grades.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// GoldenCase is a labeled assessment with the curated facilities a
// clinician expects to see in the top results.
type GoldenCase struct {
	ID          string              `json:"id"`
	Description string              `json:"description,omitempty"`
	Assessment  entities.Assessment `json:"assessment"`
	ExpectedIDs []string            `json:"expected_facility_ids"`
	Difficulty  Difficulty          `json:"difficulty"`
}

// EvalResult holds the outcome for a single case.
type EvalResult struct {
	CaseID            string        `json:"case_id"`
	CareLevel         string        `json:"care_level"`
	Difficulty        Difficulty    `json:"difficulty"`
	RecallAtK         float64       `json:"recall_at_k"`
	MRRAtK            float64       `json:"mrr_at_k"`
	NDCGAtK           float64       `json:"ndcg_at_k"`
	ResultCount       int           `json:"result_count"`
	SupplementalCount int           `json:"supplemental_count"`
	RetrievedIDs      []string      `json:"retrieved_ids"`
	Latency           time.Duration `json:"latency"`
	Error             string        `json:"error,omitempty"`
}

// EvalSummary aggregates metrics across all cases. Failed cases count
// toward TotalCases with zero scores.
type EvalSummary struct {
	K             int                          `json:"k"`
	TotalCases    int                          `json:"total_cases"`
	FailedCases   int                          `json:"failed_cases"`
	CasesWithHits int                          `json:"cases_with_hits"`
	AvgRecallAtK  float64                      `json:"avg_recall_at_k"`
	AvgMRRAtK     float64                      `json:"avg_mrr_at_k"`
	AvgNDCGAtK    float64                      `json:"avg_ndcg_at_k"`
	AvgLatency    time.Duration                `json:"avg_latency"`
	ByCareLevel   map[string]*GroupSummary     `json:"by_care_level"`
	ByDifficulty  map[Difficulty]*GroupSummary `json:"by_difficulty"`
	Results       []EvalResult                 `json:"results"`
}

// GroupSummary holds metrics for one slice of the golden set.
type GroupSummary struct {
	Count        int     `json:"count"`
	AvgRecallAtK float64 `json:"avg_recall_at_k"`
	AvgMRRAtK    float64 `json:"avg_mrr_at_k"`
	AvgNDCGAtK   float64 `json:"avg_ndcg_at_k"`
}
