package geo

import (
	"math"
	"testing"

	"github.com/example/service-matching/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := HaversineKm(models.Coord{}, models.Coord{})
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineNearby(t *testing.T) {
	// 0.03 degrees of longitude at the equator is ~3.3 km
	d := HaversineKm(models.Coord{Lat: 0, Lng: 0}, models.Coord{Lat: 0, Lng: 0.03})
	if math.Abs(d-3.34) > 0.1 {
		t.Fatalf("expected ~3.34 km, got %f", d)
	}
	if !WithinRadius(models.Coord{}, models.Coord{Lat: 0, Lng: 0.03}, 5) {
		t.Fatalf("3.3 km should be within 5 km")
	}
}

func TestHaversineFar(t *testing.T) {
	d := HaversineKm(models.Coord{Lat: 0, Lng: 0}, models.Coord{Lat: 0, Lng: 0.2})
	if math.Abs(d-22.2) > 0.5 {
		t.Fatalf("expected ~22 km, got %f", d)
	}
	if WithinRadius(models.Coord{}, models.Coord{Lat: 0, Lng: 0.2}, 5) {
		t.Fatalf("22 km should not be within 5 km")
	}
}
