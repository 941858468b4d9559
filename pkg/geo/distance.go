package geo

import "math"

const (
	earthRadiusKm    = 6371.0
	earthRadiusMiles = 3958.8
	kmPerMile        = 1.609344
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceMiles returns the great-circle distance between two points in miles.
func DistanceMiles(a, b Point) float64 {
	return earthRadiusMiles * centralAngle(a, b)
}

// DistanceKm returns the great-circle distance between two points in kilometers.
func DistanceKm(a, b Point) float64 {
	return earthRadiusKm * centralAngle(a, b)
}

// MilesToKm converts miles to kilometers.
func MilesToKm(miles float64) float64 {
	return miles * kmPerMile
}

// centralAngle is the haversine central angle in radians.
func centralAngle(a, b Point) float64 {
	dLat := degreesToRadians(b.Latitude - a.Latitude)
	dLon := degreesToRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(a.Latitude))*math.Cos(degreesToRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h marginally past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Box is an axis-aligned latitude/longitude rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns a box that contains every point within radiusMiles of
// center. It over-approximates the circle, so callers that need an exact
// radius still have to filter by distance.
func BoundingBox(center Point, radiusMiles float64) Box {
	latDelta := radiansToDegrees(radiusMiles / earthRadiusMiles)

	cosLat := math.Cos(degreesToRadians(center.Latitude))
	lonDelta := 180.0
	if cosLat > 1e-9 {
		lonDelta = math.Min(180, latDelta/cosLat)
	}

	return Box{
		MinLat: math.Max(-90, center.Latitude-latDelta),
		MaxLat: math.Min(90, center.Latitude+latDelta),
		MinLon: math.Max(-180, center.Longitude-lonDelta),
		MaxLon: math.Min(180, center.Longitude+lonDelta),
	}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
