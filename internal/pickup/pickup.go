// Package pickup schedules a pickup of a listed item at its owning business.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/pkg/models"
	"github.com/jredh-dev/waypost/pkg/schedule"
)

// ErrOwnListing is returned when a business tries to pick up its own listing.
var ErrOwnListing = errors.New("cannot schedule a pickup of your own listing")

// Backend is the subset of the backend client used for scheduling.
type Backend interface {
	GetAvailableTimeSlots(ctx context.Context, businessID string) ([]string, error)
	CreateTransaction(ctx context.Context, token, identifier string, tx models.NewTransaction) (*models.Transaction, error)
}

// Request describes a pickup to schedule.
type Request struct {
	QRCodeID        string `json:"qr_code_id"`
	ItemName        string `json:"item_name,omitempty"`
	OwnerIdentifier string `json:"owner_identifier"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	Notes           string `json:"notes,omitempty"`
}

// Scheduler creates pickup transactions.
type Scheduler struct {
	backend Backend
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a scheduler. Dates are offered in loc.
func New(b Backend, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{backend: b, loc: loc, now: time.Now, logger: logger}
}

// Slots returns the owner's published time slots, or the defaults when it
// has none or the lookup fails.
func (s *Scheduler) Slots(ctx context.Context, owner string) []string {
	slots, err := s.backend.GetAvailableTimeSlots(ctx, owner)
	if err != nil {
		s.logger.Debug("time slot lookup failed, using defaults", "owner", owner, "error", err)
	}
	return schedule.SlotsOrDefault(slots)
}

// Dates returns the bookable dates.
func (s *Scheduler) Dates() []schedule.Date {
	return schedule.AvailableDates(s.now(), s.loc)
}

// Schedule validates req and books the pickup with the owning business.
// The item's status is left alone; it changes when the business confirms.
func (s *Scheduler) Schedule(ctx context.Context, sess *session.Session, req Request) (*models.Transaction, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	token, err := sess.BearerToken()
	if err != nil {
		return nil, err
	}
	if sess.Owns(req.OwnerIdentifier) {
		return nil, ErrOwnListing
	}

	tx, err := s.backend.CreateTransaction(ctx, token, req.OwnerIdentifier, models.NewTransaction{
		TransactionType: models.TransactionPickup,
		Date:            req.Date,
		Time:            req.TimeSlot,
		QRCodeID:        req.QRCodeID,
		ItemID:          req.QRCodeID,
		ItemName:        req.ItemName,
		Name:            sess.Identity(),
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule pickup: %w", err)
	}
	s.logger.Info("pickup scheduled", "qr_code_id", req.QRCodeID, "owner", req.OwnerIdentifier, "date", req.Date)
	return tx, nil
}

func (s *Scheduler) validate(req Request) error {
	var missing []string
	if strings.TrimSpace(req.QRCodeID) == "" {
		missing = append(missing, "item")
	}
	if strings.TrimSpace(req.OwnerIdentifier) == "" {
		missing = append(missing, "owner")
	}
	if !schedule.IsAvailableDate(req.Date, s.now(), s.loc) {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(req.TimeSlot) == "" {
		missing = append(missing, "time slot")
	}
	if len(missing) > 0 {
		return &models.ValidationError{Missing: missing}
	}
	return nil
}
