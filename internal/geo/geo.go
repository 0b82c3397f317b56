package geo

import (
	"math"

	"github.com/example/service-matching/internal/models"
)

// EarthRadiusKm is the mean radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b models.Coord) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// WithinRadius reports whether b lies within radiusKm of a.
func WithinRadius(a, b models.Coord, radiusKm float64) bool {
	return HaversineKm(a, b) <= radiusKm
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
