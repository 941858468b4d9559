package entities

import apperrors "github.com/soberbookings/backend/pkg/errors"

// WeightConfig weights each ranking factor. It is supplied per search and
// never persisted.
type WeightConfig struct {
	CareLevel    float64 `json:"care_level"`
	Specialty    float64 `json:"specialty"`
	Demographics float64 `json:"demographics"`
	Insurance    float64 `json:"insurance"`
	Location     float64 `json:"location"`
	Verification float64 `json:"verification"`
	Source       float64 `json:"source"`
}

// DefaultWeights is used for generic searches.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		CareLevel:    0.25,
		Specialty:    0.20,
		Demographics: 0.10,
		Insurance:    0.15,
		Location:     0.15,
		Verification: 0.10,
		Source:       0.05,
	}
}

// ClinicalWeights favours clinical fit (care level, demographics) over
// keyword and location fit. Used for assessment-driven matching.
func ClinicalWeights() WeightConfig {
	return WeightConfig{
		CareLevel:    0.40,
		Specialty:    0.20,
		Demographics: 0.20,
		Insurance:    0.10,
		Location:     0.10,
		Verification: 0.10,
		Source:       0.05,
	}
}

// Validate rejects negative weights.
func (w WeightConfig) Validate() error {
	for name, v := range map[string]float64{
		"care_level":   w.CareLevel,
		"specialty":    w.Specialty,
		"demographics": w.Demographics,
		"insurance":    w.Insurance,
		"location":     w.Location,
		"verification": w.Verification,
		"source":       w.Source,
	} {
		if v < 0 {
			return apperrors.NewValidationError("weight " + name + " must not be negative")
		}
	}
	return nil
}
