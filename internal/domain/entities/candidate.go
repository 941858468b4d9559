package entities

import (
	"encoding/json"
	"strings"
)

// Provenance marks which source produced a Candidate.
type Provenance string

const (
	ProvenancePrimary      Provenance = "primary"
	ProvenanceSupplemental Provenance = "supplemental"
)

// QualifiedID prefixes a source-local id with its provenance so IDs from
// different sources never collide.
func QualifiedID(p Provenance, sourceID string) string {
	return string(p) + ":" + sourceID
}

// Candidate is a facility as returned by either source, before ranking.
//
// The identifier and provenance are fixed by NewCandidate and only readable
// afterwards; every other attribute may be absent and is left at its zero
// value in that case.
type Candidate struct {
	id         string
	provenance Provenance

	Name               string
	Address            Address
	Coordinates        *Coordinates
	Contact            ContactInfo
	Treatment          TreatmentProfile
	Demographics       DemographicProfile
	Financial          FinancialProfile
	VerificationTier   VerificationTier
	VerificationStatus VerificationStatus
}

// NewCandidate creates a Candidate from a source-local id. Verification
// fields start at none/unverified.
func NewCandidate(p Provenance, sourceID string) Candidate {
	return Candidate{
		id:                 QualifiedID(p, sourceID),
		provenance:         p,
		VerificationTier:   VerificationTierNone,
		VerificationStatus: VerificationStatusUnverified,
	}
}

// ID returns the source-qualified identifier.
func (c Candidate) ID() string { return c.id }

// Provenance returns the source the candidate came from.
func (c Candidate) Provenance() Provenance { return c.provenance }

// SourceID returns the identifier without its provenance prefix.
func (c Candidate) SourceID() string {
	return strings.TrimPrefix(c.id, string(c.provenance)+":")
}

// IsPrimary reports whether the candidate came from the curated store.
func (c Candidate) IsPrimary() bool { return c.provenance == ProvenancePrimary }

type candidateJSON struct {
	ID                 string             `json:"id"`
	Provenance         Provenance         `json:"provenance"`
	Name               string             `json:"name"`
	Address            Address            `json:"address"`
	Coordinates        *Coordinates       `json:"coordinates,omitempty"`
	Contact            ContactInfo        `json:"contact"`
	Treatment          TreatmentProfile   `json:"treatment"`
	Demographics       DemographicProfile `json:"demographics"`
	Financial          FinancialProfile   `json:"financial"`
	VerificationTier   VerificationTier   `json:"verification_tier"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

func (c Candidate) toJSON() candidateJSON {
	return candidateJSON{
		ID:                 c.id,
		Provenance:         c.provenance,
		Name:               c.Name,
		Address:            c.Address,
		Coordinates:        c.Coordinates,
		Contact:            c.Contact,
		Treatment:          c.Treatment,
		Demographics:       c.Demographics,
		Financial:          c.Financial,
		VerificationTier:   c.VerificationTier,
		VerificationStatus: c.VerificationStatus,
	}
}

// MarshalJSON exposes the identifier and provenance to the API layer.
func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.toJSON())
}

// UnmarshalJSON restores a candidate, including its identifier and provenance.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var raw candidateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Candidate{
		id:                 raw.ID,
		provenance:         raw.Provenance,
		Name:               raw.Name,
		Address:            raw.Address,
		Coordinates:        raw.Coordinates,
		Contact:            raw.Contact,
		Treatment:          raw.Treatment,
		Demographics:       raw.Demographics,
		Financial:          raw.Financial,
		VerificationTier:   raw.VerificationTier,
		VerificationStatus: raw.VerificationStatus,
	}
	return nil
}

// RankedCandidate is a Candidate with its relevance score. The score only
// orders a single response and is not comparable across weight configs.
type RankedCandidate struct {
	Candidate
	Score     float64
	Breakdown map[string]float64
}

// MarshalJSON flattens the candidate alongside the score fields; the
// promoted Candidate.MarshalJSON would omit them.
func (r RankedCandidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		candidateJSON
		Score     float64            `json:"score"`
		Breakdown map[string]float64 `json:"score_breakdown,omitempty"`
	}{
		candidateJSON: r.Candidate.toJSON(),
		Score:         r.Score,
		Breakdown:     r.Breakdown,
	})
}
