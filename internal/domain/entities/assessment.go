package entities

// ASAMDimensions holds the severity rating (0 none to 4 severe) for each of
// the six ASAM assessment dimensions.
type ASAMDimensions struct {
	Withdrawal          int `json:"withdrawal"`
	Biomedical          int `json:"biomedical"`
	EmotionalBehavioral int `json:"emotional_behavioral"`
	ReadinessToChange   int `json:"readiness_to_change"`
	RelapsePotential    int `json:"relapse_potential"`
	RecoveryEnvironment int `json:"recovery_environment"`
}

// PatientProfile is the demographic part of an assessment.
type PatientProfile struct {
	Age                *int     `json:"age,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	SpecialPopulations []string `json:"special_populations,omitempty"`
}

// Assessment is the outcome of a clinical intake conversation. Only the
// recommended level is mandatory.
type Assessment struct {
	RecommendedLevel  string          `json:"recommendedLevel"`
	Dimensions        *ASAMDimensions `json:"dimensions,omitempty"`
	Substances        []string        `json:"substances,omitempty"`
	SpecialtyNeeds    []string        `json:"specialtyNeeds,omitempty"`
	Patient           PatientProfile  `json:"patient"`
	InsuranceProvider string          `json:"insuranceProvider,omitempty"`
	Location          Location        `json:"location"`
	RadiusMiles       *float64        `json:"radiusMiles,omitempty"`
	Keywords          string          `json:"keywords,omitempty"`
}
