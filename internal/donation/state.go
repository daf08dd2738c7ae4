package donation

import (
	"errors"
	"fmt"

	"github.com/jredh-dev/waypost/internal/geocode"
	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/models"
	"github.com/jredh-dev/waypost/pkg/schedule"
)

// State is a donation workflow state.
type State string

const (
	StateScanning   State = "scanning"
	StateResolving  State = "resolving"
	StateFormEntry  State = "form_entry"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateError      State = "error"
	StateAbandoned  State = "abandoned"
)

// Terminal reports whether no further transitions leave s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateAbandoned
}

const (
	// UnknownItemName is shown when no registry knows the scanned code.
	UnknownItemName = "Unknown Item"
	// SubmitFailedMessage is shown when the backend gives no detail.
	SubmitFailedMessage = "Failed to submit donation"
)

var (
	ErrWrongState       = errors.New("operation not allowed in current state")
	ErrUnsupportedPhoto = errors.New("photo must be a JPEG, PNG or WebP image")
	ErrUnknownBusiness  = errors.New("business is not among the nearby results")
	ErrUnknownDate      = errors.New("date is not available")
	ErrUnknownTimeSlot  = errors.New("time slot is not offered by the business")
	ErrNoAddress        = errors.New("select an address first")
	ErrNoBusiness       = errors.New("select a business first")
)

func wrongState(op string, s State) error {
	return fmt.Errorf("%s in %s: %w", op, s, ErrWrongState)
}

// Snapshot is a read-only view of a workflow for rendering.
type Snapshot struct {
	State       State                         `json:"state"`
	QRCodeID    string                        `json:"qr_code_id,omitempty"`
	ItemName    string                        `json:"item_name,omitempty"`
	StoreName   string                        `json:"store_name,omitempty"`
	Description string                        `json:"description"`
	PhotoName   string                        `json:"photo_name,omitempty"`
	Address     geocode.Snapshot              `json:"address"`
	Businesses  []geo.Ranked[models.Business] `json:"businesses"`
	BusinessID  string                        `json:"business_id,omitempty"`
	Dates       []schedule.Date               `json:"dates"`
	Date        string                        `json:"date,omitempty"`
	TimeSlots   []string                      `json:"time_slots"`
	TimeSlot    string                        `json:"time_slot,omitempty"`
	CreatedID   string                        `json:"created_id,omitempty"`
	Error       string                        `json:"error,omitempty"`
}
