package geo

import (
	"math"
	"testing"

	"github.com/ticketfire/backend/internal/models"
)

func f(v float64) *float64 { return &v }

func TestDistanceKm_KnownPair(t *testing.T) {
	// Astana <-> Almaty, roughly 960km apart.
	d := DistanceKm(51.1694, 71.4491, 43.2220, 76.8512)
	if d < 900 || d > 1050 {
		t.Fatalf("DistanceKm(astana,almaty) = %f, want ~960", d)
	}
}

func TestDistanceKm_SamePointIsZero(t *testing.T) {
	d := DistanceKm(51.0, 71.0, 51.0, 71.0)
	if math.Abs(d) > 1e-9 {
		t.Fatalf("DistanceKm(same point) = %f, want 0", d)
	}
}

func TestNearestOffice_SkipsMissingCoords(t *testing.T) {
	offices := []models.Office{
		{Name: "Astana", Latitude: f(51.1694), Longitude: f(71.4491)},
		{Name: "Almaty", Latitude: f(43.2220), Longitude: f(76.8512)},
		{Name: "NoCoords"},
	}
	idx := NewIndex(offices)

	got, ok := idx.NearestOffice(f(51.2), f(71.5))
	if !ok || got.Name != "Astana" {
		t.Fatalf("NearestOffice = %+v, %v, want Astana", got, ok)
	}
}

func TestNearestOffice_NoTicketCoords(t *testing.T) {
	idx := NewIndex([]models.Office{{Name: "Astana", Latitude: f(51.1694), Longitude: f(71.4491)}})
	_, ok := idx.NearestOffice(nil, nil)
	if ok {
		t.Fatal("NearestOffice should fail without ticket coords")
	}
}

func TestNearestOffice_NoOfficeHasCoords(t *testing.T) {
	idx := NewIndex([]models.Office{{Name: "Astana"}})
	_, ok := idx.NearestOffice(f(51.0), f(71.0))
	if ok {
		t.Fatal("NearestOffice should fail when no office has coordinates")
	}
}

func TestSortedOfficesByDistance(t *testing.T) {
	offices := []models.Office{
		{Name: "Astana", Latitude: f(51.1694), Longitude: f(71.4491)},
		{Name: "Almaty", Latitude: f(43.2220), Longitude: f(76.8512)},
		{Name: "Shymkent", Latitude: f(42.3417), Longitude: f(69.5901)},
		{Name: "NoCoords"},
	}
	idx := NewIndex(offices)
	base, _ := idx.Get("Astana")

	got := idx.SortedOfficesByDistance(base)
	if len(got) != 2 {
		t.Fatalf("SortedOfficesByDistance returned %d names, want 2 (excluding self and NoCoords)", len(got))
	}
	if got[0] != "Almaty" && got[0] != "Shymkent" {
		t.Fatalf("unexpected first neighbour %q", got[0])
	}
}
