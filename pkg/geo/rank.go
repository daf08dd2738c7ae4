package geo

import (
	"math"
	"sort"
)

// Entity is anything that can be placed on a distance ranking.
type Entity interface {
	EntityID() string
	// Position returns the entity's coordinate, if known.
	Position() (Coordinate, bool)
	// ServerDistance returns a distance already computed by the backend, if any.
	ServerDistance() (float64, bool)
}

// Ranked pairs an entity with its distance from the ranking origin.
// DistanceKm is nil when the distance is unknown.
type Ranked[T Entity] struct {
	Entity     T        `json:"entity"`
	DistanceKm *float64 `json:"distance_km"`
}

// Distance returns the ranked distance, +Inf when unknown.
func (r Ranked[T]) Distance() float64 {
	if r.DistanceKm == nil {
		return math.Inf(1)
	}
	return *r.DistanceKm
}

// Rank orders entities by ascending distance from origin.
//
// A server supplied distance wins over a locally computed one. Entities
// without either sort last. The sort is stable and no entity is dropped.
// origin may be nil when the caller's position is not yet known.
func Rank[T Entity](origin *Coordinate, entities []T) []Ranked[T] {
	ranked := make([]Ranked[T], len(entities))
	for i, e := range entities {
		ranked[i] = Ranked[T]{Entity: e, DistanceKm: distanceFor(origin, e)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance() < ranked[j].Distance()
	})
	return ranked
}

func distanceFor(origin *Coordinate, e Entity) *float64 {
	if d, ok := e.ServerDistance(); ok && d >= 0 && !math.IsNaN(d) {
		return &d
	}
	if origin == nil {
		return nil
	}
	pos, ok := e.Position()
	if !ok {
		return nil
	}
	d := DistanceKm(*origin, pos)
	return &d
}

// Within returns the ranked entities whose known distance is at most radiusKm.
// The input order is preserved.
func Within[T Entity](ranked []Ranked[T], radiusKm float64) []Ranked[T] {
	var out []Ranked[T]
	for _, r := range ranked {
		if r.DistanceKm != nil && *r.DistanceKm <= radiusKm {
			out = append(out, r)
		}
	}
	return out
}
