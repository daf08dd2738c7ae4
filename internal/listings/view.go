// Package listings keeps the nearby-items view ranked against the caller's
// position and indexed for map viewport queries.
package listings

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/models"
)

// DefaultLimit is the number of items fetched by Refresh when limit <= 0.
const DefaultLimit = 50

// Source returns the items near a point.
type Source interface {
	FindNearbyItems(ctx context.Context, origin geo.Coordinate, limit int) ([]models.Item, error)
}

// View is the ranked list of items around an origin. Changing either the
// origin or the items re-ranks the view.
type View struct {
	source Source
	logger *slog.Logger

	mu     sync.RWMutex
	origin *geo.Coordinate
	items  []models.Item
	ranked []geo.Ranked[models.Item]
	index  *geo.Index[models.Item]
}

// NewView creates an empty view.
func NewView(source Source, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		source: source,
		logger: logger,
		index:  geo.NewIndex[models.Item](nil),
	}
}

// SetOrigin moves the ranking origin. nil means the position is unknown.
func (v *View) SetOrigin(origin *geo.Coordinate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if origin != nil {
		o := *origin
		origin = &o
	}
	v.origin = origin
	v.rerank()
}

// SetItems replaces the candidate items.
func (v *View) SetItems(items []models.Item) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = slices.Clone(items)
	v.index = geo.NewIndex(v.items)
	v.rerank()
}

func (v *View) rerank() {
	v.ranked = geo.Rank(v.origin, v.items)
}

// Refresh fetches the items near origin and re-ranks from it.
func (v *View) Refresh(ctx context.Context, origin geo.Coordinate, limit int) error {
	if !origin.Valid() {
		return fmt.Errorf("invalid origin %s", origin)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	items, err := v.source.FindNearbyItems(ctx, origin, limit)
	if err != nil {
		return fmt.Errorf("find nearby items: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.origin = &origin
	v.items = items
	v.index = geo.NewIndex(items)
	v.rerank()
	v.logger.Debug("listings refreshed", "origin", origin.String(), "items", len(items), "indexed", v.index.Len())
	return nil
}

// Origin returns the ranking origin, if known.
func (v *View) Origin() (geo.Coordinate, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.origin == nil {
		return geo.Coordinate{}, false
	}
	return *v.origin, true
}

// Ranked returns the items nearest first. Items with no known distance
// come last.
func (v *View) Ranked() []geo.Ranked[models.Item] {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.ranked)
}

// Within returns the ranked items no farther than radiusKm.
func (v *View) Within(radiusKm float64) []geo.Ranked[models.Item] {
	return geo.Within(v.Ranked(), radiusKm)
}

// InBounds returns the positioned items inside a map viewport.
func (v *View) InBounds(box geo.BoundingBox) []models.Item {
	v.mu.RLock()
	index := v.index
	v.mu.RUnlock()
	return index.InBounds(box)
}

// Nearest returns up to n positioned items closest to center.
func (v *View) Nearest(center geo.Coordinate, n int) []models.Item {
	v.mu.RLock()
	index := v.index
	v.mu.RUnlock()
	return index.Nearest(center, n)
}
