package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/repositories"
	tsclient "github.com/soberbookings/backend/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const (
	collectionName = tsclient.FacilitiesCollection
	queryByFields  = "name,tags,specialties,services,city"
	maxPerPage     = 250
)

// TypesenseAdapter implements facility search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements FacilitySearchRepository
var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts a facility document
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.Facility) error {
	if facility == nil {
		return fmt.Errorf("facility is required")
	}
	_, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, facilityDocument(facility))
	if err != nil {
		return fmt.Errorf("failed to index facility %s: %w", facility.ID, err)
	}
	return nil
}

// Delete removes a facility from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(collectionName).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete facility from index: %w", err)
	}
	return nil
}

// Search returns active facilities matching params, nearest first when a
// center is given.
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, buildSearchParams(params))
	if err != nil {
		return nil, fmt.Errorf("failed to search facilities: %w", err)
	}

	facilities := []*entities.Facility{}
	if result.Hits == nil {
		return facilities, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		facilities = append(facilities, facilityFromDocument(*hit.Document))
	}

	return facilities, nil
}

func buildSearchParams(params repositories.SearchParams) *api.SearchCollectionParams {
	limit := params.Limit
	if limit <= 0 {
		limit = entities.DefaultLimit
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}

	q := strings.TrimSpace(params.Keywords)
	if q == "" {
		q = "*"
	}

	sp := &api.SearchCollectionParams{
		Q:        pointer.String(q),
		QueryBy:  pointer.String(queryByFields),
		FilterBy: pointer.String(buildFilter(params)),
		Page:     pointer.Int(params.Offset/limit + 1),
		PerPage:  pointer.Int(limit),
	}

	// Facilities offering the requested level come first; other levels stay
	// in the result for the ranking stage.
	var sortBy []string
	if params.CareLevel != "" {
		sortBy = append(sortBy, fmt.Sprintf("_eval(care_levels:=[%s]):desc", quoteFilterValue(params.CareLevel)))
	}
	if c := params.Center; c != nil {
		sortBy = append(sortBy, fmt.Sprintf("location(%f, %f):asc", c.Latitude, c.Longitude))
	}
	if len(sortBy) > 0 {
		sp.SortBy = pointer.String(strings.Join(sortBy, ","))
	}

	return sp
}

func buildFilter(params repositories.SearchParams) string {
	filters := []string{"is_active:=true"}

	if params.VerifiedOnly {
		filters = append(filters, "verification_status:="+string(entities.VerificationStatusVerified))
	}

	if c := params.Center; c != nil && params.RadiusMiles > 0 {
		filters = append(filters, fmt.Sprintf("location:(%f, %f, %g mi)", c.Latitude, c.Longitude, params.RadiusMiles))
	} else {
		if params.City != "" {
			filters = append(filters, "city:="+quoteFilterValue(params.City))
		}
		if params.State != "" {
			filters = append(filters, "state:="+quoteFilterValue(params.State))
		}
		if params.ZipCode != "" {
			filters = append(filters, "zip_code:="+quoteFilterValue(params.ZipCode))
		}
	}

	return strings.Join(filters, " && ")
}

// quoteFilterValue wraps v in backticks so dots, commas and spaces are
// matched literally.
func quoteFilterValue(v string) string {
	return "`" + strings.ReplaceAll(v, "`", "") + "`"
}

func facilityDocument(f *entities.Facility) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                  f.ID,
		"name":                f.Name,
		"description":         f.Description,
		"street":              f.Address.Street,
		"city":                f.Address.City,
		"state":               f.Address.State,
		"zip_code":            f.Address.ZipCode,
		"phone":               f.Contact.Phone,
		"email":               f.Contact.Email,
		"website":             f.Contact.Website,
		"care_levels":         nonNil(f.Treatment.CareLevels),
		"specialties":         nonNil(f.Treatment.Specialties),
		"services":            nonNil(f.Treatment.Services),
		"age_groups":          ageGroupStrings(f.Demographics.AgeGroups),
		"gender_focus":        string(f.Demographics.GenderFocus),
		"special_populations": nonNil(f.Demographics.SpecialPopulations),
		"accepted_insurance":  nonNil(f.Financial.AcceptedInsurance),
		"private_pay":         f.Financial.PrivatePay,
		"sliding_scale":       f.Financial.SlidingScale,
		"verification_tier":   string(f.VerificationTier),
		"verification_status": string(f.VerificationStatus),
		"is_active":           f.IsActive,
		"tags":                buildFacilityTags(f),
		"updated_at":          f.UpdatedAt.Unix(),
	}
	if f.Coordinates != nil {
		doc["location"] = []float64{f.Coordinates.Latitude, f.Coordinates.Longitude}
	}
	return doc
}

func facilityFromDocument(doc map[string]interface{}) *entities.Facility {
	f := &entities.Facility{
		ID:          stringField(doc, "id"),
		Name:        stringField(doc, "name"),
		Description: stringField(doc, "description"),
		Address: entities.Address{
			Street:  stringField(doc, "street"),
			City:    stringField(doc, "city"),
			State:   stringField(doc, "state"),
			ZipCode: stringField(doc, "zip_code"),
		},
		Contact: entities.ContactInfo{
			Phone:   stringField(doc, "phone"),
			Email:   stringField(doc, "email"),
			Website: stringField(doc, "website"),
		},
		Treatment: entities.TreatmentProfile{
			CareLevels:  stringsField(doc, "care_levels"),
			Specialties: stringsField(doc, "specialties"),
			Services:    stringsField(doc, "services"),
		},
		Demographics: entities.DemographicProfile{
			GenderFocus:        entities.ParseGenderFocus(stringField(doc, "gender_focus")),
			SpecialPopulations: stringsField(doc, "special_populations"),
		},
		Financial: entities.FinancialProfile{
			AcceptedInsurance: stringsField(doc, "accepted_insurance"),
			PrivatePay:        boolField(doc, "private_pay"),
			SlidingScale:      boolField(doc, "sliding_scale"),
		},
		VerificationTier:   entities.ParseVerificationTier(stringField(doc, "verification_tier")),
		VerificationStatus: entities.ParseVerificationStatus(stringField(doc, "verification_status")),
		IsActive:           boolField(doc, "is_active"),
	}

	for _, g := range stringsField(doc, "age_groups") {
		f.Demographics.AgeGroups = append(f.Demographics.AgeGroups, entities.AgeGroup(g))
	}

	// Typesense returns the geopoint as [lat, lon].
	if loc, ok := doc["location"].([]interface{}); ok && len(loc) == 2 {
		lat, latOK := loc[0].(float64)
		lon, lonOK := loc[1].(float64)
		if latOK && lonOK {
			f.Coordinates = &entities.Coordinates{Latitude: lat, Longitude: lon}
		}
	}

	if ts, ok := doc["updated_at"].(float64); ok {
		f.UpdatedAt = time.Unix(int64(ts), 0).UTC()
	}

	return f
}

// buildFacilityTags collects lower-cased, de-duplicated search terms from
// the facility's name, location, specialties and insurance.
func buildFacilityTags(f *entities.Facility) []string {
	if f == nil {
		return nil
	}

	seen := map[string]struct{}{}
	tags := []string{}
	add := func(values ...string) {
		for _, v := range values {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			tags = append(tags, v)
		}
	}

	add(f.Name, f.Address.City, f.Address.State)
	add(f.Treatment.Specialties...)
	add(f.Demographics.SpecialPopulations...)
	add(f.Financial.AcceptedInsurance...)

	return tags
}

func stringField(doc map[string]interface{}, key string) string {
	v, _ := doc[key].(string)
	return v
}

func boolField(doc map[string]interface{}, key string) bool {
	v, _ := doc[key].(bool)
	return v
}

func stringsField(doc map[string]interface{}, key string) []string {
	raw, ok := doc[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func ageGroupStrings(groups []entities.AgeGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = string(g)
	}
	return out
}
