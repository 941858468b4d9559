package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/repositories"
	"github.com/soberbookings/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/soberbookings/backend/pkg/errors"
	"github.com/soberbookings/backend/pkg/geo"
)

const facilitiesTable = "facilities"

var facilityColumns = []interface{}{
	"id", "name", "description",
	"street", "city", "state", "zip_code", "country",
	"latitude", "longitude",
	"phone", "email", "website",
	"care_levels", "specialties", "services",
	"age_groups", "gender_focus", "special_populations",
	"accepted_insurance", "private_pay", "sliding_scale",
	"verification_tier", "verification_status",
	"is_active", "created_at", "updated_at",
}

// FacilityAdapter implements the FacilityRepository interface
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	query, args, err := a.db.From(facilitiesTable).
		Select(facilityColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}

	return facility, nil
}

// List retrieves facilities with filters, ordered by id
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	ds := a.db.From(facilitiesTable).Select(facilityColumns...).Order(goqu.C("id").Asc())

	if filter.IsActive != nil {
		ds = ds.Where(goqu.C("is_active").Eq(*filter.IsActive))
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, query, args, "failed to list facilities")
}

// Search returns active facilities matching params. With a center, rows
// are pre-filtered by bounding box, ordered by approximate distance and
// trimmed to the exact radius.
func (a *FacilityAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	query, args, err := a.searchQuery(params).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search query", err)
	}

	facilities, err := a.query(ctx, query, args, "failed to search facilities")
	if err != nil {
		return nil, err
	}

	if params.Center == nil || params.RadiusMiles <= 0 {
		return facilities, nil
	}

	center := geo.Point{Latitude: params.Center.Latitude, Longitude: params.Center.Longitude}
	within := facilities[:0]
	for _, f := range facilities {
		if f.Coordinates == nil {
			continue
		}
		d := geo.DistanceMiles(center, geo.Point{Latitude: f.Coordinates.Latitude, Longitude: f.Coordinates.Longitude})
		if d <= params.RadiusMiles {
			within = append(within, f)
		}
	}
	return within, nil
}

func (a *FacilityAdapter) searchQuery(params repositories.SearchParams) *goqu.SelectDataset {
	conds := []exp.Expression{goqu.C("is_active").IsTrue()}

	if params.VerifiedOnly {
		conds = append(conds, goqu.C("verification_status").Eq(string(entities.VerificationStatusVerified)))
	}
	if kw := strings.TrimSpace(params.Keywords); kw != "" {
		pattern := "%" + kw + "%"
		conds = append(conds, goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("description").ILike(pattern),
			goqu.L("array_to_string(specialties, ' ') ILIKE ?", pattern),
		))
	}

	ds := a.db.From(facilitiesTable).Select(facilityColumns...)

	// Care level orders rows instead of excluding them so ranking can still
	// weigh facilities at neighbouring levels.
	var order []exp.OrderedExpression
	if params.CareLevel != "" {
		order = append(order, goqu.L("(? = ANY(care_levels))", params.CareLevel).Desc())
	}

	if c := params.Center; c != nil && params.RadiusMiles > 0 {
		box := geo.BoundingBox(geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}, params.RadiusMiles)
		conds = append(conds,
			goqu.C("latitude").Between(goqu.Range(box.MinLat, box.MaxLat)),
			goqu.C("longitude").Between(goqu.Range(box.MinLon, box.MaxLon)),
		)
		// Equirectangular distance is enough to order rows inside the box.
		scale := math.Cos(c.Latitude * math.Pi / 180)
		order = append(order, goqu.L(
			"power(latitude - ?, 2) + power((longitude - ?) * ?, 2)",
			c.Latitude, c.Longitude, scale,
		).Asc())
	} else {
		if params.City != "" {
			conds = append(conds, goqu.C("city").ILike(params.City))
		}
		if params.State != "" {
			conds = append(conds, goqu.C("state").ILike(params.State))
		}
		if params.ZipCode != "" {
			conds = append(conds, goqu.C("zip_code").Eq(params.ZipCode))
		}
		order = append(order, goqu.C("name").Asc())
	}

	ds = ds.Where(conds...).Order(order...)

	limit := params.Limit
	if limit <= 0 {
		limit = entities.DefaultLimit
	}
	ds = ds.Limit(uint(limit))
	if params.Offset > 0 {
		ds = ds.Offset(uint(params.Offset))
	}

	return ds
}

func (a *FacilityAdapter) query(ctx context.Context, query string, args []interface{}, failMsg string) ([]*entities.Facility, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(failMsg, err)
	}
	defer rows.Close()

	facilities := []*entities.Facility{}
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(failMsg, err)
	}

	return facilities, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	f := &entities.Facility{}
	var (
		description, street, city, state, zip, country sql.NullString
		phone, email, website, genderFocus             sql.NullString
		tier, status                                   sql.NullString
		lat, lon                                       sql.NullFloat64
		ageGroups                                      []string
	)

	err := row.Scan(
		&f.ID, &f.Name, &description,
		&street, &city, &state, &zip, &country,
		&lat, &lon,
		&phone, &email, &website,
		pq.Array(&f.Treatment.CareLevels),
		pq.Array(&f.Treatment.Specialties),
		pq.Array(&f.Treatment.Services),
		pq.Array(&ageGroups),
		&genderFocus,
		pq.Array(&f.Demographics.SpecialPopulations),
		pq.Array(&f.Financial.AcceptedInsurance),
		&f.Financial.PrivatePay,
		&f.Financial.SlidingScale,
		&tier, &status,
		&f.IsActive, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Description = description.String
	f.Address = entities.Address{
		Street:  street.String,
		City:    city.String,
		State:   state.String,
		ZipCode: zip.String,
		Country: country.String,
	}
	if lat.Valid && lon.Valid {
		f.Coordinates = &entities.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	f.Contact = entities.ContactInfo{Phone: phone.String, Email: email.String, Website: website.String}
	for _, g := range ageGroups {
		f.Demographics.AgeGroups = append(f.Demographics.AgeGroups, entities.AgeGroup(g))
	}
	f.Demographics.GenderFocus = entities.ParseGenderFocus(genderFocus.String)
	f.VerificationTier = entities.ParseVerificationTier(tier.String)
	f.VerificationStatus = entities.ParseVerificationStatus(status.String)

	return f, nil
}
