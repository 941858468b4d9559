package entities

import (
	"strconv"
	"strings"
)

// ASAM levels of care, from early intervention to medically managed inpatient.
const (
	CareLevelEarlyIntervention   = "0.5"
	CareLevelOutpatient          = "1"
	CareLevelIntensiveOutpatient = "2.1"
	CareLevelPartialHospital     = "2.5"
	CareLevelLowIntensityRes     = "3.1"
	CareLevelPopulationSpecific  = "3.3"
	CareLevelHighIntensityRes    = "3.5"
	CareLevelMedicallyMonitored  = "3.7"
	CareLevelMedicallyManaged    = "4"
)

var careLevels = []string{
	CareLevelEarlyIntervention,
	CareLevelOutpatient,
	CareLevelIntensiveOutpatient,
	CareLevelPartialHospital,
	CareLevelLowIntensityRes,
	CareLevelPopulationSpecific,
	CareLevelHighIntensityRes,
	CareLevelMedicallyMonitored,
	CareLevelMedicallyManaged,
}

// CareLevels returns every recognised level code in ascending intensity.
func CareLevels() []string {
	out := make([]string, len(careLevels))
	copy(out, careLevels)
	return out
}

// IsValidCareLevel reports whether code is an exact canonical level code.
func IsValidCareLevel(code string) bool {
	for _, l := range careLevels {
		if l == code {
			return true
		}
	}
	return false
}

// CanonicalCareLevel maps loose spellings such as "Level 3.5", "3.50" or
// "1.0" onto a canonical code. ok is false when the input does not name a
// recognised level.
func CanonicalCareLevel(raw string) (code string, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "asam")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "level")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if IsValidCareLevel(s) {
		return s, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	formatted := strconv.FormatFloat(f, 'f', -1, 64)
	if IsValidCareLevel(formatted) {
		return formatted, true
	}
	return "", false
}
