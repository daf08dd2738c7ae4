package handlers

import (
	"net/http"

	"github.com/jredh-dev/waypost/internal/pickup"
)

// PickupSlots returns the time slots offered by a listing's owner.
// GET /api/pickups/slots?owner=
func (h *Handler) PickupSlots(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		jsonError(w, "owner is required", http.StatusBadRequest)
		return
	}
	jsonOK(w, http.StatusOK, map[string]any{
		"dates":      h.pickups.Dates(),
		"time_slots": h.pickups.Slots(r.Context(), owner),
	})
}

// SchedulePickup books a pickup of someone else's listing.
// POST /api/pickups
func (h *Handler) SchedulePickup(w http.ResponseWriter, r *http.Request) {
	var req pickup.Request
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tx, err := h.pickups.Schedule(r.Context(), mustSession(r), req)
	if err != nil {
		h.writeError(w, r, err, "Could not schedule the pickup.")
		return
	}
	jsonOK(w, http.StatusCreated, tx)
}
