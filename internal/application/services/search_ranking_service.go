package services

import (
	"math"
	"sort"
	"strings"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/pkg/geo"
)

// Score breakdown keys, one per ranking factor.
const (
	FactorCareLevel    = "care_level"
	FactorSpecialty    = "specialty"
	FactorDemographics = "demographics"
	FactorInsurance    = "insurance"
	FactorLocation     = "location"
	FactorVerification = "verification"
	FactorSource       = "source"
)

var verificationTierScores = map[entities.VerificationTier]float64{
	entities.VerificationTierPremium:  1.0,
	entities.VerificationTierEnhanced: 0.8,
	entities.VerificationTierBasic:    0.6,
}

const (
	unverifiedTierScore     = 0.1
	primarySourceScore      = 1.0
	supplementalSourceScore = 0.3
)

// SearchRankingService scores candidates against a query. It holds no
// mutable state and is safe for concurrent use.
type SearchRankingService struct{}

func NewSearchRankingService() *SearchRankingService {
	return &SearchRankingService{}
}

// Rank scores every candidate and returns them sorted by descending score.
// Equal scores keep their input order.
func (s *SearchRankingService) Rank(candidates []entities.Candidate, query *entities.Query, weights entities.WeightConfig) []entities.RankedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]entities.RankedCandidate, len(candidates))
	for i, c := range candidates {
		score, breakdown := s.Score(c, query, weights)
		ranked[i] = entities.RankedCandidate{
			Candidate: c,
			Score:     score,
			Breakdown: breakdown,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// Score returns the weighted relevance of c to query along with the
// weighted contribution of each factor. A factor the candidate or query has
// no data for contributes 0.
func (s *SearchRankingService) Score(c entities.Candidate, query *entities.Query, weights entities.WeightConfig) (float64, map[string]float64) {
	if query == nil {
		query = &entities.Query{}
	}

	breakdown := map[string]float64{
		FactorCareLevel:    careLevelMatch(c, query) * weights.CareLevel,
		FactorSpecialty:    specialtyMatch(c, query) * weights.Specialty,
		FactorDemographics: demographicsMatch(c, query) * weights.Demographics,
		FactorInsurance:    insuranceMatch(c, query) * weights.Insurance,
		FactorLocation:     locationProximity(c, query) * weights.Location,
		FactorVerification: verificationScore(c) * weights.Verification,
		FactorSource:       sourcePreference(c) * weights.Source,
	}

	// Fixed summation order keeps the float result reproducible.
	total := breakdown[FactorCareLevel] +
		breakdown[FactorSpecialty] +
		breakdown[FactorDemographics] +
		breakdown[FactorInsurance] +
		breakdown[FactorLocation] +
		breakdown[FactorVerification] +
		breakdown[FactorSource]

	return total, breakdown
}

func careLevelMatch(c entities.Candidate, q *entities.Query) float64 {
	if q.CareLevel == "" {
		return 0
	}
	for _, level := range c.Treatment.CareLevels {
		if strings.TrimSpace(level) == q.CareLevel {
			return 1
		}
	}
	return 0
}

func specialtyMatch(c entities.Candidate, q *entities.Query) float64 {
	return tagMatchRatio(q.Specialties, c.Treatment.Specialties)
}

// demographicsMatch adds the gender fit and the special population ratio,
// capped at 1.
func demographicsMatch(c entities.Candidate, q *entities.Query) float64 {
	score := 0.0

	focus := c.Demographics.GenderFocus
	if focus == entities.GenderAll || (focus != entities.GenderUnspecified && focus == q.Demographics.Gender) {
		score += 1
	}

	score += tagMatchRatio(q.Demographics.SpecialPopulations, c.Demographics.SpecialPopulations)

	return math.Min(score, 1)
}

func insuranceMatch(c entities.Candidate, q *entities.Query) float64 {
	provider := strings.ToLower(strings.TrimSpace(q.InsuranceProvider))
	if provider == "" {
		return 0
	}
	for _, accepted := range c.Financial.AcceptedInsurance {
		if strings.Contains(strings.ToLower(accepted), provider) {
			return 1
		}
	}
	return 0
}

// locationProximity decays linearly from 1 at the query point to 0 at the
// query radius.
func locationProximity(c entities.Candidate, q *entities.Query) float64 {
	if c.Coordinates == nil || q.Location.Coordinates == nil || q.RadiusMiles <= 0 {
		return 0
	}

	dist := geo.DistanceMiles(
		geo.Point{Latitude: q.Location.Coordinates.Latitude, Longitude: q.Location.Coordinates.Longitude},
		geo.Point{Latitude: c.Coordinates.Latitude, Longitude: c.Coordinates.Longitude},
	)

	return math.Max(0, 1-dist/q.RadiusMiles)
}

func verificationScore(c entities.Candidate) float64 {
	if score, ok := verificationTierScores[c.VerificationTier]; ok {
		return score
	}
	return unverifiedTierScore
}

func sourcePreference(c entities.Candidate) float64 {
	switch c.Provenance() {
	case entities.ProvenancePrimary:
		return primarySourceScore
	case entities.ProvenanceSupplemental:
		return supplementalSourceScore
	default:
		return 0
	}
}

// tagMatchRatio is the fraction of wanted tags found, case-insensitively as
// a substring, among have. Blank wanted tags are ignored; no wanted tags
// yields 0.
func tagMatchRatio(wanted, have []string) float64 {
	total, found := 0, 0
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		total++
		for _, h := range have {
			if strings.Contains(strings.ToLower(h), w) {
				found++
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(found) / float64(total)
}
