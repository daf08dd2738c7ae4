package handlers

import (
	"net/http"
	"strings"

	"github.com/jredh-dev/waypost/pkg/models"
)

type touristReq struct {
	IDToken string `json:"id_token"`
	models.TouristRegistration
}

type retailerReq struct {
	IDToken string `json:"id_token"`
	models.RetailerRegistration
}

// RegisterTourist creates a tourist profile for a freshly created identity
// and signs it in.
// POST /api/register/tourist
func (h *Handler) RegisterTourist(w http.ResponseWriter, r *http.Request) {
	var req touristReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if missing := missingFields(map[string]string{
		"id_token": req.IDToken,
		"username": req.Username,
		"email":    req.Email,
	}, "id_token", "username", "email"); missing != nil {
		h.writeError(w, r, missing, "")
		return
	}
	if err := h.backend.RegisterTourist(r.Context(), req.IDToken, req.TouristRegistration); err != nil {
		h.writeError(w, r, err, "Could not create your account.")
		return
	}
	h.logger.Info("tourist registered", "email", req.Email)
	h.startSession(w, r, req.IDToken, http.StatusCreated)
}

// RegisterRetailer creates a retailer profile and signs it in.
// POST /api/register/retailer
func (h *Handler) RegisterRetailer(w http.ResponseWriter, r *http.Request) {
	var req retailerReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if missing := missingFields(map[string]string{
		"id_token": req.IDToken,
		"name":     req.Name,
		"email":    req.Email,
		"address":  req.Address,
	}, "id_token", "name", "email", "address"); missing != nil {
		h.writeError(w, r, missing, "")
		return
	}
	if err := h.backend.RegisterRetailer(r.Context(), req.IDToken, req.RetailerRegistration); err != nil {
		h.writeError(w, r, err, "Could not create your account.")
		return
	}
	h.logger.Info("retailer registered", "email", req.Email)
	h.startSession(w, r, req.IDToken, http.StatusCreated)
}

// missingFields returns a validation error naming the blank fields, in order.
func missingFields(values map[string]string, order ...string) error {
	var missing []string
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &models.ValidationError{Missing: missing}
}
