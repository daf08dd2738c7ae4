package handlers

import (
	"errors"
	"net/http"

	"github.com/jredh-dev/waypost/internal/backend"
	"github.com/jredh-dev/waypost/internal/confirm"
	"github.com/jredh-dev/waypost/internal/donation"
	"github.com/jredh-dev/waypost/internal/geocode"
	"github.com/jredh-dev/waypost/internal/pickup"
	"github.com/jredh-dev/waypost/internal/scanner"
	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/pkg/models"
	"github.com/jredh-dev/waypost/pkg/qr"
)

const rescanMessage = "Could not read that QR code. Please scan again."

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Partial bool     `json:"partial,omitempty"`
}

// writeError maps a domain error onto a status code and user-facing message.
// fallback is shown for errors that carry no message of their own.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		verr    *models.ValidationError
		partial *confirm.PartialSagaError
	)

	switch {
	case errors.As(err, &verr):
		jsonOK(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Missing: verr.Missing})
	case errors.As(err, &partial):
		msg := "The item was updated but the transaction could not be removed. It has been flagged for follow-up."
		if detail := backend.UserMessage(partial.Err, ""); detail != "" {
			msg += " " + detail
		}
		jsonOK(w, http.StatusBadGateway, errorResponse{Error: msg, Partial: true})
	case errors.Is(err, qr.ErrInvalidPayload):
		jsonError(w, rescanMessage, http.StatusBadRequest)
	case errors.Is(err, session.ErrNotSignedIn):
		jsonError(w, "Please sign in to continue.", http.StatusUnauthorized)
	case errors.Is(err, confirm.ErrNotBusiness), errors.Is(err, pickup.ErrOwnListing):
		jsonError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, confirm.ErrUnknownTransaction), errors.Is(err, confirm.ErrFailureNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, donation.ErrWrongState), errors.Is(err, confirm.ErrInProgress), errors.Is(err, scanner.ErrInUse):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, donation.ErrUnsupportedPhoto),
		errors.Is(err, donation.ErrUnknownBusiness),
		errors.Is(err, donation.ErrUnknownDate),
		errors.Is(err, donation.ErrUnknownTimeSlot),
		errors.Is(err, donation.ErrNoAddress),
		errors.Is(err, donation.ErrNoBusiness),
		errors.Is(err, geocode.ErrUnknownCandidate),
		errors.Is(err, confirm.ErrWrongType),
		errors.Is(err, confirm.ErrNoItem):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case backend.StatusCode(err) != 0:
		status := backend.StatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("backend failure", "method", r.Method, "path", r.URL.Path, "error", err)
			status = http.StatusBadGateway
		}
		jsonError(w, backend.UserMessage(err, fallback), status)
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, fallback, http.StatusInternalServerError)
	}
}
