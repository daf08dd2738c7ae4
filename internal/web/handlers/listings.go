package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jredh-dev/waypost/internal/listings"
	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/models"
)

const maxListingLimit = 200

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return listings.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxListingLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxListingLimit)
	}
	return n, nil
}

// NearbyListings returns listings ranked by distance from lat,lng, optionally
// cut off at radius_km.
// GET /api/listings/nearby
func (h *Handler) NearbyListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin, err := geo.ParseCoordinate(q.Get("lat") + "," + q.Get("lng"))
	if err != nil {
		jsonError(w, "lat and lng are required", http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	view := listings.NewView(h.backend, h.logger)
	if err := view.Refresh(r.Context(), origin, limit); err != nil {
		h.writeError(w, r, err, "Could not load listings.")
		return
	}

	ranked := view.Ranked()
	if raw := q.Get("radius_km"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			jsonError(w, "radius_km must be a positive number", http.StatusBadRequest)
			return
		}
		ranked = view.Within(radius)
	}
	if ranked == nil {
		ranked = []geo.Ranked[models.Item]{}
	}
	jsonOK(w, http.StatusOK, ranked)
}

// AreaListings returns the positioned listings inside a map viewport given
// as sw=lat,lng and ne=lat,lng.
// GET /api/listings/area
func (h *Handler) AreaListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sw, err := geo.ParseCoordinate(q.Get("sw"))
	if err != nil {
		jsonError(w, "sw must be lat,lng", http.StatusBadRequest)
		return
	}
	ne, err := geo.ParseCoordinate(q.Get("ne"))
	if err != nil {
		jsonError(w, "ne must be lat,lng", http.StatusBadRequest)
		return
	}
	if sw.Lat > ne.Lat || sw.Lng > ne.Lng {
		jsonError(w, "sw must lie south-west of ne", http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	center := geo.Coordinate{Lat: (sw.Lat + ne.Lat) / 2, Lng: (sw.Lng + ne.Lng) / 2}
	view := listings.NewView(h.backend, h.logger)
	if err := view.Refresh(r.Context(), center, limit); err != nil {
		h.writeError(w, r, err, "Could not load listings.")
		return
	}

	items := view.InBounds(geo.BoundingBox{SouthWest: sw, NorthEast: ne})
	if items == nil {
		items = []models.Item{}
	}
	jsonOK(w, http.StatusOK, items)
}
