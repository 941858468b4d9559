package search

import (
	"testing"
	"time"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFacilityTags(t *testing.T) {
	facility := &entities.Facility{
		Name: " Serenity House ",
		Address: entities.Address{
			City:  "Austin",
			State: "TX",
		},
		Treatment: entities.TreatmentProfile{
			Specialties: []string{"Alcohol Addiction", "Dual Diagnosis"},
		},
		Financial: entities.FinancialProfile{
			AcceptedInsurance: []string{"Aetna", "aetna", "Cigna"},
		},
	}

	tags := buildFacilityTags(facility)

	assert.ElementsMatch(t, []string{
		"serenity house",
		"austin",
		"tx",
		"alcohol addiction",
		"dual diagnosis",
		"aetna",
		"cigna",
	}, tags)
}

func TestBuildFacilityTagsNil(t *testing.T) {
	assert.Nil(t, buildFacilityTags(nil))
}

func TestBuildFilter_GeoRadiusIgnoresCareLevel(t *testing.T) {
	filter := buildFilter(repositories.SearchParams{
		CareLevel:    "3.5",
		Center:       &entities.Coordinates{Latitude: 34.05, Longitude: -118.24},
		RadiusMiles:  25,
		City:         "Ignored",
		VerifiedOnly: true,
	})

	assert.Equal(t,
		"is_active:=true && verification_status:=verified && location:(34.050000, -118.240000, 25 mi)",
		filter)
}

func TestBuildFilter_CityStateFallback(t *testing.T) {
	filter := buildFilter(repositories.SearchParams{City: "Los Angeles", State: "CA"})

	assert.Equal(t, "is_active:=true && city:=`Los Angeles` && state:=`CA`", filter)
}

func TestBuildSearchParams_Paging(t *testing.T) {
	sp := buildSearchParams(repositories.SearchParams{Limit: 10, Offset: 20})

	require.NotNil(t, sp.Page)
	assert.Equal(t, 3, *sp.Page)
	assert.Equal(t, 10, *sp.PerPage)
	assert.Equal(t, "*", *sp.Q)
	assert.Nil(t, sp.SortBy)

	sp = buildSearchParams(repositories.SearchParams{
		Keywords: "detox",
		Center:   &entities.Coordinates{Latitude: 1, Longitude: 2},
	})
	assert.Equal(t, "detox", *sp.Q)
	assert.Equal(t, entities.DefaultLimit, *sp.PerPage)
	require.NotNil(t, sp.SortBy)
	assert.Equal(t, "location(1.000000, 2.000000):asc", *sp.SortBy)
}

func TestFacilityDocument_RoundTrip(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &entities.Facility{
		ID:          "fac-1",
		Name:        "Serenity House",
		Address:     entities.Address{Street: "1 Main St", City: "Austin", State: "TX", ZipCode: "78701"},
		Coordinates: &entities.Coordinates{Latitude: 30.27, Longitude: -97.74},
		Contact:     entities.ContactInfo{Phone: "5125550100", Website: "https://serenity.example"},
		Treatment: entities.TreatmentProfile{
			CareLevels:  []string{"3.5"},
			Specialties: []string{"Detox"},
		},
		Demographics: entities.DemographicProfile{
			AgeGroups:   []entities.AgeGroup{entities.AgeGroupAdult},
			GenderFocus: entities.GenderFemale,
		},
		Financial:          entities.FinancialProfile{AcceptedInsurance: []string{"Aetna"}, SlidingScale: true},
		VerificationTier:   entities.VerificationTierPremium,
		VerificationStatus: entities.VerificationStatusVerified,
		IsActive:           true,
		UpdatedAt:          updated,
	}

	doc := facilityDocument(f)

	// Typesense hands arrays back as []interface{} and numbers as float64.
	decoded := map[string]interface{}{}
	for k, v := range doc {
		switch tv := v.(type) {
		case []string:
			arr := make([]interface{}, len(tv))
			for i, s := range tv {
				arr[i] = s
			}
			decoded[k] = arr
		case []float64:
			decoded[k] = []interface{}{tv[0], tv[1]}
		case int64:
			decoded[k] = float64(tv)
		default:
			decoded[k] = v
		}
	}

	got := facilityFromDocument(decoded)

	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Address.Street, got.Address.Street)
	assert.Equal(t, f.Coordinates, got.Coordinates)
	assert.Equal(t, f.Contact, got.Contact)
	assert.Equal(t, f.Treatment.CareLevels, got.Treatment.CareLevels)
	assert.Equal(t, f.Demographics.AgeGroups, got.Demographics.AgeGroups)
	assert.Equal(t, entities.GenderFemale, got.Demographics.GenderFocus)
	assert.True(t, got.Financial.SlidingScale)
	assert.Equal(t, entities.VerificationTierPremium, got.VerificationTier)
	assert.Equal(t, entities.VerificationStatusVerified, got.VerificationStatus)
	assert.Equal(t, updated, got.UpdatedAt)
}

func TestBuildSearchParams_CareLevelSortsFirst(t *testing.T) {
	sp := buildSearchParams(repositories.SearchParams{
		CareLevel: "3.7",
		Center:    &entities.Coordinates{Latitude: 1, Longitude: 2},
	})
	require.NotNil(t, sp.SortBy)
	assert.Equal(t, "_eval(care_levels:=[`3.7`]):desc,location(1.000000, 2.000000):asc", *sp.SortBy)
	assert.NotContains(t, *sp.FilterBy, "care_levels")

	sp = buildSearchParams(repositories.SearchParams{CareLevel: "1"})
	require.NotNil(t, sp.SortBy)
	assert.Equal(t, "_eval(care_levels:=[`1`]):desc", *sp.SortBy)
}
