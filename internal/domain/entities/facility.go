package entities

import (
	"strings"
	"time"
)

// Facility is a curated treatment facility record as held by the verified store.
type Facility struct {
	ID                 string             `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	Address            Address            `json:"address" db:"-"`
	Coordinates        *Coordinates       `json:"coordinates,omitempty" db:"-"`
	Contact            ContactInfo        `json:"contact" db:"-"`
	Description        string             `json:"description,omitempty" db:"description"`
	Treatment          TreatmentProfile   `json:"treatment" db:"-"`
	Demographics       DemographicProfile `json:"demographics" db:"-"`
	Financial          FinancialProfile   `json:"financial" db:"-"`
	VerificationTier   VerificationTier   `json:"verification_tier" db:"verification_tier"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	IsActive           bool               `json:"is_active" db:"is_active"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// Address represents a postal address
type Address struct {
	Street  string `json:"street,omitempty" db:"street"`
	City    string `json:"city,omitempty" db:"city"`
	State   string `json:"state,omitempty" db:"state"`
	ZipCode string `json:"zip_code,omitempty" db:"zip_code"`
	Country string `json:"country,omitempty" db:"country"`
}

// Format joins the non-empty street, city and state parts with ", ".
func (a Address) Format() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, a.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ContactInfo holds facility contact channels; any may be empty.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// TreatmentProfile describes the care a facility provides.
type TreatmentProfile struct {
	CareLevels  []string `json:"care_levels"`
	Specialties []string `json:"specialties"`
	Services    []string `json:"services"`
}

// DemographicProfile describes who a facility serves.
type DemographicProfile struct {
	AgeGroups          []AgeGroup  `json:"age_groups"`
	GenderFocus        GenderFocus `json:"gender_focus,omitempty"`
	SpecialPopulations []string    `json:"special_populations"`
}

// FinancialProfile describes how care can be paid for.
type FinancialProfile struct {
	AcceptedInsurance []string `json:"accepted_insurance"`
	PrivatePay        bool     `json:"private_pay"`
	SlidingScale      bool     `json:"sliding_scale"`
}

// VerificationTier is the trust ranking assigned by the review workflow.
type VerificationTier string

const (
	VerificationTierNone     VerificationTier = "none"
	VerificationTierBasic    VerificationTier = "basic"
	VerificationTierEnhanced VerificationTier = "enhanced"
	VerificationTierPremium  VerificationTier = "premium"
)

// VerificationStatus is where a record sits in the review workflow.
type VerificationStatus string

const (
	VerificationStatusUnverified VerificationStatus = "unverified"
	VerificationStatusPending    VerificationStatus = "pending"
	VerificationStatusVerified   VerificationStatus = "verified"
	VerificationStatusRejected   VerificationStatus = "rejected"
)

// ParseVerificationTier maps free text to a tier, defaulting to none.
func ParseVerificationTier(s string) VerificationTier {
	switch VerificationTier(strings.ToLower(strings.TrimSpace(s))) {
	case VerificationTierBasic:
		return VerificationTierBasic
	case VerificationTierEnhanced:
		return VerificationTierEnhanced
	case VerificationTierPremium:
		return VerificationTierPremium
	default:
		return VerificationTierNone
	}
}

// ParseVerificationStatus maps free text to a status, defaulting to unverified.
func ParseVerificationStatus(s string) VerificationStatus {
	switch VerificationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case VerificationStatusPending:
		return VerificationStatusPending
	case VerificationStatusVerified:
		return VerificationStatusVerified
	case VerificationStatusRejected:
		return VerificationStatusRejected
	default:
		return VerificationStatusUnverified
	}
}
