// Package geo computes great-circle distances between tickets and
// offices and resolves nearest-office / distance-ordered routing.
package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/ticketfire/backend/internal/models"
)

// earthRadiusKm is the mean radius the routing tables were calibrated
// against, not orb's built-in constant; the two differ in the last
// decimal.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := orb.Point{lon1, lat1}
	p2 := orb.Point{lon2, lat2}

	phi1 := toRadians(p1.Lat())
	phi2 := toRadians(p2.Lat())
	dPhi := toRadians(p2.Lat() - p1.Lat())
	dLambda := toRadians(p2.Lon() - p1.Lon())

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Index is an in-memory lookup of offices by name, used by the
// assignment stage to resolve the nearest office and ordered fallbacks.
type Index struct {
	byName  map[string]models.Office
	names   []string // insertion order, for deterministic iteration
	located orb.MultiPoint
	locatedNames []string // parallel to located, office names with coords
}

// NewIndex builds an office index from a flat list, keyed case-sensitively
// on office name, which doubles as the office id.
func NewIndex(offices []models.Office) *Index {
	idx := &Index{byName: make(map[string]models.Office, len(offices))}
	for _, o := range offices {
		idx.byName[o.Name] = o
		idx.names = append(idx.names, o.Name)
		if o.HasCoords() {
			idx.located = append(idx.located, orb.Point{*o.Longitude, *o.Latitude})
			idx.locatedNames = append(idx.locatedNames, o.Name)
		}
	}
	return idx
}

// Get returns the office with the given name, if present.
func (idx *Index) Get(name string) (models.Office, bool) {
	o, ok := idx.byName[name]
	return o, ok
}

// NearestOffice returns the office minimising distance to (lat, lon),
// considering only offices with both coordinates set. Returns false if
// the ticket lacks coordinates or no office has coordinates.
func (idx *Index) NearestOffice(lat, lon *float64) (models.Office, bool) {
	if lat == nil || lon == nil || len(idx.locatedNames) == 0 {
		return models.Office{}, false
	}

	bestIdx := -1
	bestDist := math.Inf(1)
	for i, p := range idx.located {
		d := DistanceKm(*lat, *lon, p.Lat(), p.Lon())
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return models.Office{}, false
	}
	return idx.byName[idx.locatedNames[bestIdx]], true
}

// SortedOfficesByDistance returns the names of offices other than base,
// in ascending distance from it, skipping offices without coordinates
// on either side.
func (idx *Index) SortedOfficesByDistance(base models.Office) []string {
	if !base.HasCoords() {
		return nil
	}

	type ranked struct {
		name string
		dist float64
	}
	var candidates []ranked
	for i, name := range idx.locatedNames {
		if name == base.Name {
			continue
		}
		p := idx.located[i]
		candidates = append(candidates, ranked{
			name: name,
			dist: DistanceKm(*base.Latitude, *base.Longitude, p.Lat(), p.Lon()),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}
