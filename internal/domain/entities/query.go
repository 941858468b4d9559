package entities

import (
	"strings"

	apperrors "github.com/soberbookings/backend/pkg/errors"
)

const (
	// DefaultRadiusMiles is the search radius used when none is given.
	DefaultRadiusMiles = 50.0

	// DefaultLimit is the page size used when none is given.
	DefaultLimit = 20
)

// AgeGroup is a coarse patient age bracket.
type AgeGroup string

const (
	AgeGroupAny        AgeGroup = ""
	AgeGroupAdolescent AgeGroup = "adolescent"
	AgeGroupYoungAdult AgeGroup = "young_adult"
	AgeGroupAdult      AgeGroup = "adult"
	AgeGroupSenior     AgeGroup = "senior"
)

// AgeGroupForAge buckets a patient age in years.
func AgeGroupForAge(age int) AgeGroup {
	switch {
	case age < 18:
		return AgeGroupAdolescent
	case age <= 25:
		return AgeGroupYoungAdult
	case age < 65:
		return AgeGroupAdult
	default:
		return AgeGroupSenior
	}
}

// GenderFocus is the gender a facility serves or a patient seeks care as.
type GenderFocus string

const (
	GenderUnspecified GenderFocus = ""
	GenderMale        GenderFocus = "male"
	GenderFemale      GenderFocus = "female"
	GenderAll         GenderFocus = "all"
)

// ParseGenderFocus maps free text onto a GenderFocus.
func ParseGenderFocus(s string) GenderFocus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "man", "men":
		return GenderMale
	case "female", "f", "woman", "women":
		return GenderFemale
	case "all", "any", "co-ed", "coed", "mixed":
		return GenderAll
	default:
		return GenderUnspecified
	}
}

// Demographics is the patient-fit part of a Query.
type Demographics struct {
	AgeGroup           AgeGroup    `json:"age_group,omitempty"`
	Gender             GenderFocus `json:"gender,omitempty"`
	SpecialPopulations []string    `json:"special_populations"`
}

// Location anchors a Query geographically. Coordinates are optional.
type Location struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	City        string       `json:"city,omitempty"`
	State       string       `json:"state,omitempty"`
	ZipCode     string       `json:"zip_code,omitempty"`
}

// HasCoordinates reports whether the location carries a geocoordinate.
func (l Location) HasCoordinates() bool {
	return l.Coordinates != nil
}

// IsZero reports whether no part of the location is set.
func (l Location) IsZero() bool {
	return l.Coordinates == nil && l.City == "" && l.State == "" && l.ZipCode == ""
}

// Query is the canonical search intent consumed by both sources.
type Query struct {
	Keywords          string       `json:"keywords,omitempty"`
	CareLevel         string       `json:"care_level"`
	Specialties       []string     `json:"specialties"`
	Demographics      Demographics `json:"demographics"`
	InsuranceProvider string       `json:"insurance_provider,omitempty"`
	Location          Location     `json:"location"`
	RadiusMiles       float64      `json:"radius_miles"`
	Limit             int          `json:"limit"`
	Offset            int          `json:"offset"`
}

// NewQuery returns a Query for careLevel with default radius and page size.
func NewQuery(careLevel string) *Query {
	return &Query{
		CareLevel:   careLevel,
		Specialties: []string{},
		Demographics: Demographics{
			SpecialPopulations: []string{},
		},
		RadiusMiles: DefaultRadiusMiles,
		Limit:       DefaultLimit,
	}
}

// Validate enforces the Query invariants.
func (q *Query) Validate() error {
	if q == nil {
		return apperrors.NewValidationError("query is required")
	}
	if q.RadiusMiles <= 0 {
		return apperrors.NewValidationError("radius must be greater than zero")
	}
	if q.Limit <= 0 {
		return apperrors.NewValidationError("limit must be greater than zero")
	}
	if q.Offset < 0 {
		return apperrors.NewValidationError("offset must not be negative")
	}
	if q.CareLevel != "" && !IsValidCareLevel(q.CareLevel) {
		return apperrors.NewValidationError("unrecognised care level " + q.CareLevel)
	}
	if c := q.Location.Coordinates; c != nil {
		if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
			return apperrors.NewValidationError("coordinates out of range")
		}
	}
	return nil
}
