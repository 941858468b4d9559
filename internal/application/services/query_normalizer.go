package services

import (
	"strings"

	"github.com/soberbookings/backend/internal/domain/entities"
	apperrors "github.com/soberbookings/backend/pkg/errors"
)

// Specialty tags derived from an assessment.
const (
	SpecialtyAlcohol           = "Alcohol Addiction"
	SpecialtyOpioid            = "Opioid Addiction"
	SpecialtyMethamphetamine   = "Methamphetamine Addiction"
	SpecialtyCocaine           = "Cocaine Addiction"
	SpecialtyBenzodiazepine    = "Benzodiazepine Addiction"
	SpecialtyMarijuana         = "Marijuana Addiction"
	SpecialtyDetox             = "Detox"
	SpecialtyMedicalCare       = "Medical Care"
	SpecialtyDualDiagnosis     = "Dual Diagnosis"
	SpecialtyRelapsePrevention = "Relapse Prevention"
	SpecialtyFamilyProgram     = "Family Program"
)

// substanceSpecialties is matched by prefix against the lower-cased
// substance, in order.
var substanceSpecialties = []struct {
	prefixes  []string
	specialty string
}{
	{[]string{"alcohol"}, SpecialtyAlcohol},
	{[]string{"opioid", "opiate", "heroin", "fentanyl", "oxycodone"}, SpecialtyOpioid},
	{[]string{"meth", "amphetamine"}, SpecialtyMethamphetamine},
	{[]string{"cocaine", "crack"}, SpecialtyCocaine},
	{[]string{"benzo"}, SpecialtyBenzodiazepine},
	{[]string{"cannabis", "marijuana"}, SpecialtyMarijuana},
}

// QueryNormalizer turns a clinical assessment into a search Query.
type QueryNormalizer struct {
	defaultRadiusMiles float64
	defaultLimit       int
}

func NewQueryNormalizer(defaultRadiusMiles float64) *QueryNormalizer {
	if defaultRadiusMiles <= 0 {
		defaultRadiusMiles = entities.DefaultRadiusMiles
	}
	return &QueryNormalizer{
		defaultRadiusMiles: defaultRadiusMiles,
		defaultLimit:       entities.DefaultLimit,
	}
}

// Normalize maps an assessment to a Query. Every optional field has a
// default; only a missing or unrecognised recommended level is an error.
func (n *QueryNormalizer) Normalize(a *entities.Assessment) (*entities.Query, error) {
	if a == nil {
		return nil, apperrors.NewValidationError("assessment is required")
	}
	if strings.TrimSpace(a.RecommendedLevel) == "" {
		return nil, apperrors.NewValidationError("assessment has no recommended level of care")
	}
	level, ok := entities.CanonicalCareLevel(a.RecommendedLevel)
	if !ok {
		return nil, apperrors.NewValidationError("unrecognised recommended level of care: " + a.RecommendedLevel)
	}

	q := entities.NewQuery(level)
	q.Limit = n.defaultLimit
	q.RadiusMiles = n.defaultRadiusMiles
	if a.RadiusMiles != nil && *a.RadiusMiles > 0 {
		q.RadiusMiles = *a.RadiusMiles
	}

	q.Keywords = strings.TrimSpace(a.Keywords)
	q.InsuranceProvider = strings.TrimSpace(a.InsuranceProvider)
	q.Location = a.Location
	q.Specialties = specialtiesFor(a)

	if a.Patient.Age != nil {
		q.Demographics.AgeGroup = entities.AgeGroupForAge(*a.Patient.Age)
	}
	switch g := entities.ParseGenderFocus(a.Patient.Gender); g {
	case entities.GenderMale, entities.GenderFemale:
		q.Demographics.Gender = g
	}
	q.Demographics.SpecialPopulations = appendUnique(q.Demographics.SpecialPopulations, a.Patient.SpecialPopulations...)

	return q, nil
}

// specialtiesFor combines explicit needs, substance tags and dimension tags
// in that order, without repeats.
func specialtiesFor(a *entities.Assessment) []string {
	out := appendUnique([]string{}, a.SpecialtyNeeds...)

	for _, substance := range a.Substances {
		s := strings.ToLower(strings.TrimSpace(substance))
		for _, m := range substanceSpecialties {
			if hasAnyPrefix(s, m.prefixes) {
				out = appendUnique(out, m.specialty)
				break
			}
		}
	}

	if d := a.Dimensions; d != nil {
		if d.Withdrawal >= 3 {
			out = appendUnique(out, SpecialtyDetox)
		}
		if d.Biomedical >= 3 {
			out = appendUnique(out, SpecialtyMedicalCare)
		}
		if d.EmotionalBehavioral >= 2 {
			out = appendUnique(out, SpecialtyDualDiagnosis)
		}
		if d.RelapsePotential >= 3 {
			out = appendUnique(out, SpecialtyRelapsePrevention)
		}
		if d.RecoveryEnvironment >= 3 {
			out = appendUnique(out, SpecialtyFamilyProgram)
		}
	}

	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// appendUnique appends the trimmed, non-blank values not already present,
// comparing case-insensitively.
func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if strings.EqualFold(existing, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
