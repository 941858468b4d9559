package entities

import (
	"time"
)

// SearchEvent records one hybrid search for analytics.
type SearchEvent struct {
	ID                 string    `json:"id" db:"id"`
	CareLevel          string    `json:"care_level" db:"care_level"`
	Keywords           string    `json:"keywords" db:"keywords"`
	AssessmentDriven   bool      `json:"assessment_driven" db:"assessment_driven"`
	PrimaryCount       int       `json:"primary_count" db:"primary_count"`
	SupplementalCount  int       `json:"supplemental_count" db:"supplemental_count"`
	DuplicatesDropped  int       `json:"duplicates_dropped" db:"duplicates_dropped"`
	ResultCount        int       `json:"result_count" db:"result_count"`
	SupplementalUsed   bool      `json:"supplemental_used" db:"supplemental_used"`
	SupplementalFailed bool      `json:"supplemental_failed" db:"supplemental_failed"`
	LatencyMs          int       `json:"latency_ms" db:"latency_ms"`
	UserLatitude       *float64  `json:"user_latitude,omitempty" db:"user_latitude"`
	UserLongitude      *float64  `json:"user_longitude,omitempty" db:"user_longitude"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
