package geo

import (
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
)

const (
	pointTolerance = 1e-6
	minChildren    = 25
	maxChildren    = 50
	dimensions     = 2
)

// spatial adapts an entity to rtreego.Spatial.
type spatial[T Entity] struct {
	entity T
	pos    Coordinate
	rect   *rtreego.Rect
}

func (s *spatial[T]) Bounds() *rtreego.Rect {
	return s.rect
}

// Index is a thread-safe R-tree over entities with a known position.
// Entities without a coordinate are not indexed.
type Index[T Entity] struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	size int
}

// NewIndex builds an index over the given entities.
func NewIndex[T Entity](entities []T) *Index[T] {
	idx := &Index[T]{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
	for _, e := range entities {
		idx.insert(e)
	}
	return idx
}

// Insert adds an entity. It reports false when the entity has no usable position.
func (idx *Index[T]) Insert(e T) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.insert(e)
}

func (idx *Index[T]) insert(e T) bool {
	pos, ok := e.Position()
	if !ok || !pos.Valid() {
		return false
	}
	p := rtreego.Point{pos.Lat, pos.Lng}
	idx.tree.Insert(&spatial[T]{entity: e, pos: pos, rect: p.ToRect(pointTolerance)})
	idx.size++
	return true
}

// Len returns the number of indexed entities.
func (idx *Index[T]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.size
}

// InBounds returns the entities inside box.
func (idx *Index[T]) InBounds(box BoundingBox) []T {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bounds, err := rtreego.NewRect(
		rtreego.Point{box.SouthWest.Lat, box.SouthWest.Lng},
		[]float64{
			box.NorthEast.Lat - box.SouthWest.Lat + pointTolerance,
			box.NorthEast.Lng - box.SouthWest.Lng + pointTolerance,
		},
	)
	if err != nil {
		return nil
	}

	var out []T
	for _, res := range idx.tree.SearchIntersect(bounds) {
		s, ok := res.(*spatial[T])
		if !ok {
			continue
		}
		// The tree matches on padded rects; keep only strict hits.
		if box.Contains(s.pos) {
			out = append(out, s.entity)
		}
	}
	return out
}

// WithinRadius returns the entities within radiusKm of center, nearest first.
func (idx *Index[T]) WithinRadius(center Coordinate, radiusKm float64) []T {
	candidates := idx.InBounds(BoxAround(center, radiusKm))
	return sortByDistance(center, candidates, radiusKm)
}

// Nearest returns up to n entities closest to center by great-circle distance.
func (idx *Index[T]) Nearest(center Coordinate, n int) []T {
	if n <= 0 {
		return nil
	}
	idx.mu.RLock()
	// Planar neighbours in degree space only approximate great-circle order,
	// so over-fetch and re-sort.
	results := idx.tree.NearestNeighbors(n*2, rtreego.Point{center.Lat, center.Lng})
	idx.mu.RUnlock()

	var candidates []T
	for _, res := range results {
		if s, ok := res.(*spatial[T]); ok && s != nil {
			candidates = append(candidates, s.entity)
		}
	}
	out := sortByDistance(center, candidates, -1)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// sortByDistance orders entities by distance from center. A negative
// limit keeps every entity.
func sortByDistance[T Entity](center Coordinate, entities []T, limitKm float64) []T {
	type scored struct {
		entity T
		dist   float64
	}
	var list []scored
	for _, e := range entities {
		pos, _ := e.Position()
		d := DistanceKm(center, pos)
		if limitKm >= 0 && d > limitKm {
			continue
		}
		list = append(list, scored{entity: e, dist: d})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].dist < list[j].dist })

	out := make([]T, len(list))
	for i, s := range list {
		out[i] = s.entity
	}
	return out
}
