// Package donation implements the scan-to-drop-off donation workflow.
//
// A Workflow moves through scanning, resolving, form entry and submitting.
// Network results are applied only while the workflow is still in the state
// that issued them; anything arriving after Close or a superseding edit is
// dropped.
package donation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jredh-dev/waypost/internal/backend"
	"github.com/jredh-dev/waypost/internal/geocode"
	"github.com/jredh-dev/waypost/internal/scanner"
	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/models"
	"github.com/jredh-dev/waypost/pkg/qr"
	"github.com/jredh-dev/waypost/pkg/schedule"
)

// DefaultBusinessLimit caps the nearby business lookup.
const DefaultBusinessLimit = 10

// Backend is the subset of the backend client the workflow calls.
type Backend interface {
	GetRetailItemByQR(ctx context.Context, qrCodeID string) (*models.RetailItem, error)
	GetStoreProfile(ctx context.Context, storeID string) (*models.StoreProfile, error)
	GetItemByQR(ctx context.Context, qrCodeID string) (*models.Item, error)
	FindNearbyBusinesses(ctx context.Context, address string, limit int) ([]models.Business, error)
	GetAvailableTimeSlots(ctx context.Context, businessID string) ([]string, error)
	CreateDonationItem(ctx context.Context, token string, d models.DonationItem) (*backend.CreatedItem, error)
}

// Deps are the collaborators shared by every workflow.
type Deps struct {
	Backend       Backend
	Geocoder      geocode.Geocoder
	Scanner       *scanner.Slot
	Logger        *slog.Logger
	Location      *time.Location
	Now           func() time.Time
	BusinessLimit int
	Resolver      []geocode.ResolverOption
}

// Workflow is one donation in progress.
type Workflow struct {
	backend  Backend
	resolver *geocode.Resolver
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
	limit    int
	session  *session.Session

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	scan        *scanner.Handle
	qrCodeID    string
	itemName    string
	storeName   string
	description string
	photo       *models.Photo
	address     *geocode.Candidate
	businesses  []geo.Ranked[models.Business]
	business    *models.Business
	date        string
	slots       []string
	slot        string
	createdID   string
	errMsg      string
	// Bumped when the address or business changes so stale lookups are dropped.
	addrGen     uint64
	businessGen uint64
}

// New starts a workflow in the scanning state holding the scanner.
// It fails with scanner.ErrInUse when another workflow holds it.
func New(ctx context.Context, deps Deps, sess *session.Session) (*Workflow, error) {
	if deps.Backend == nil {
		return nil, errors.New("donation: backend required")
	}
	slot := deps.Scanner
	if slot == nil {
		slot = scanner.NewSlot(nil)
	}

	w := &Workflow{
		backend: deps.Backend,
		logger:  deps.Logger,
		loc:     deps.Location,
		now:     deps.Now,
		limit:   deps.BusinessLimit,
		session: sess,
		state:   StateScanning,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.loc == nil {
		w.loc = time.Local
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.limit <= 0 {
		w.limit = DefaultBusinessLimit
	}

	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	handle, err := slot.Acquire(w.ctx)
	if err != nil {
		w.cancel()
		return nil, err
	}
	w.scan = handle

	geocoder := deps.Geocoder
	if geocoder == nil {
		geocoder = geocode.GeocoderFunc(func(context.Context, string) ([]geocode.Candidate, error) { return nil, nil })
	}
	w.resolver = geocode.NewResolver(geocoder, append([]geocode.ResolverOption{geocode.WithLogger(w.logger)}, deps.Resolver...)...)
	return w, nil
}

// callContext returns a context cancelled by either ctx or Close.
func (w *Workflow) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// HandleScan feeds a decoded QR payload into the workflow. An undecodable
// payload leaves the workflow scanning and returns qr.ErrInvalidPayload so
// the caller can prompt for a rescan.
func (w *Workflow) HandleScan(ctx context.Context, raw string) error {
	id, source, err := qr.ExtractWithSource(raw)

	w.mu.Lock()
	if w.state != StateScanning {
		s := w.state
		w.mu.Unlock()
		return wrongState("scan", s)
	}
	if err != nil {
		w.mu.Unlock()
		w.logger.Debug("qr extraction failed", "error", err)
		return err
	}
	w.qrCodeID = id
	w.state = StateResolving
	handle := w.scan
	w.scan = nil
	w.mu.Unlock()

	if handle != nil {
		if err := handle.Release(); err != nil {
			w.logger.Warn("release scanner", "error", err)
		}
	}
	w.logger.Debug("qr extracted", "qr_code_id", id, "source", source)

	callCtx, done := w.callContext(ctx)
	itemName, storeName := w.resolveName(callCtx, id)
	done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateResolving {
		// Closed while resolving.
		return nil
	}
	w.itemName = itemName
	w.storeName = storeName
	w.state = StateFormEntry
	return nil
}

// resolveName looks the code up in the retail registry, then the general
// item registry. Lookup failures degrade to UnknownItemName.
func (w *Workflow) resolveName(ctx context.Context, id string) (itemName, storeName string) {
	retail, err := w.backend.GetRetailItemByQR(ctx, id)
	switch {
	case err == nil && retail != nil && retail.Item.Name != "":
		itemName = retail.Item.Name
		if retail.StoreID != "" {
			if profile, err := w.backend.GetStoreProfile(ctx, retail.StoreID); err == nil && profile != nil {
				storeName = profile.Label()
			} else if err != nil {
				w.logger.Debug("store profile lookup failed", "store_id", retail.StoreID, "error", err)
			}
		}
		return itemName, storeName
	case err != nil && !errors.Is(err, backend.ErrNotFound):
		w.logger.Debug("retail lookup failed", "qr_code_id", id, "error", err)
	}

	item, err := w.backend.GetItemByQR(ctx, id)
	if err == nil && item != nil && item.Name != "" {
		return item.Name, ""
	}
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		w.logger.Debug("item lookup failed", "qr_code_id", id, "error", err)
	}
	return UnknownItemName, ""
}

// lockForm locks w and checks it is in form entry. On success the caller
// must unlock.
func (w *Workflow) lockForm(op string) error {
	w.mu.Lock()
	if w.state != StateFormEntry {
		s := w.state
		w.mu.Unlock()
		return wrongState(op, s)
	}
	return nil
}

// SetDescription records the item description.
func (w *Workflow) SetDescription(text string) error {
	if err := w.lockForm("set description"); err != nil {
		return err
	}
	defer w.mu.Unlock()
	w.description = text
	return nil
}

var photoTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

// SetPhoto attaches the item photo. Only JPEG, PNG and WebP are accepted.
func (w *Workflow) SetPhoto(p models.Photo) error {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(p.ContentType, ";")[0]))
	if !slices.Contains(photoTypes, contentType) || len(p.Data) == 0 {
		return ErrUnsupportedPhoto
	}
	if err := w.lockForm("set photo"); err != nil {
		return err
	}
	defer w.mu.Unlock()
	p.ContentType = contentType
	w.photo = &p
	return nil
}

// SetAddressText forwards a free-text edit to the address resolver and
// clears everything that depended on the previous address.
func (w *Workflow) SetAddressText(text string) error {
	if err := w.lockForm("set address"); err != nil {
		return err
	}
	w.clearAddressLocked()
	w.mu.Unlock()

	w.resolver.SetText(text)
	return nil
}

func (w *Workflow) clearAddressLocked() {
	w.address = nil
	w.businesses = nil
	w.addrGen++
	w.clearBusinessLocked()
}

func (w *Workflow) clearBusinessLocked() {
	w.business = nil
	w.slots = nil
	w.slot = ""
	w.businessGen++
}

// SelectAddress pins the suggestion with rawID and loads the businesses
// near it, ranked from the candidate's coordinate.
func (w *Workflow) SelectAddress(ctx context.Context, rawID string) error {
	if err := w.lockForm("select address"); err != nil {
		return err
	}
	w.mu.Unlock()

	candidate, err := w.resolver.SelectID(rawID)
	if err != nil {
		return err
	}

	if err := w.lockForm("select address"); err != nil {
		return err
	}
	w.clearAddressLocked()
	gen := w.addrGen
	w.mu.Unlock()

	callCtx, done := w.callContext(ctx)
	businesses, err := w.backend.FindNearbyBusinesses(callCtx, candidate.DisplayName, w.limit)
	done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateFormEntry || gen != w.addrGen {
		return nil
	}
	w.address = &candidate
	if err != nil {
		w.logger.Warn("nearby businesses lookup failed", "address", candidate.DisplayName, "error", err)
		return fmt.Errorf("find nearby businesses: %w", err)
	}
	origin := candidate.Coordinate
	w.businesses = geo.Rank(&origin, businesses)
	return nil
}

// SelectBusiness chooses a drop-off business from the ranked results and
// fetches its time slots.
func (w *Workflow) SelectBusiness(ctx context.Context, id string) error {
	if err := w.lockForm("select business"); err != nil {
		return err
	}
	if w.address == nil {
		w.mu.Unlock()
		return ErrNoAddress
	}
	idx := slices.IndexFunc(w.businesses, func(r geo.Ranked[models.Business]) bool {
		return r.Entity.ID == id
	})
	if idx < 0 {
		w.mu.Unlock()
		return ErrUnknownBusiness
	}
	w.clearBusinessLocked()
	b := w.businesses[idx].Entity
	w.business = &b
	gen := w.businessGen
	w.mu.Unlock()

	callCtx, done := w.callContext(ctx)
	slots, err := w.backend.GetAvailableTimeSlots(callCtx, b.ID)
	done()
	if err != nil {
		w.logger.Debug("time slot lookup failed, using defaults", "business_id", b.ID, "error", err)
		slots = nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateFormEntry || gen != w.businessGen {
		return nil
	}
	w.slots = schedule.SlotsOrDefault(slots)
	return nil
}

// SetDate chooses one of the upcoming drop-off dates.
func (w *Workflow) SetDate(value string) error {
	if !schedule.IsAvailableDate(value, w.now(), w.loc) {
		return ErrUnknownDate
	}
	if err := w.lockForm("set date"); err != nil {
		return err
	}
	defer w.mu.Unlock()
	w.date = value
	return nil
}

// SetTimeSlot chooses one of the selected business's time slots.
func (w *Workflow) SetTimeSlot(slot string) error {
	if err := w.lockForm("set time slot"); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if w.business == nil {
		return ErrNoBusiness
	}
	if !slices.Contains(w.slots, slot) {
		return ErrUnknownTimeSlot
	}
	w.slot = slot
	return nil
}

// Validate reports the missing required fields, or nil when the form is
// complete.
func (w *Workflow) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateLocked()
}

func (w *Workflow) validateLocked() error {
	var missing []string
	if strings.TrimSpace(w.description) == "" {
		missing = append(missing, "description")
	}
	if w.photo == nil {
		missing = append(missing, "photo")
	}
	if w.address == nil {
		missing = append(missing, "address")
	}
	if w.business == nil {
		missing = append(missing, "business")
	}
	if w.date == "" {
		missing = append(missing, "date")
	}
	if w.slot == "" {
		missing = append(missing, "time slot")
	}
	if len(missing) > 0 {
		return &models.ValidationError{Missing: missing}
	}
	return nil
}

// Submit sends the donation. Validation and the sign-in check run before
// any network call. A backend failure moves the workflow to the error
// state with the server detail, or SubmitFailedMessage. The backend
// creates the business's Dropoff transaction along with the item.
func (w *Workflow) Submit(ctx context.Context) error {
	if err := w.lockForm("submit"); err != nil {
		return err
	}
	if err := w.validateLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	token, err := w.session.BearerToken()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	item := models.DonationItem{
		Name:          w.itemName,
		Description:   w.description,
		OwnerEmail:    w.business.ContactEmail(),
		Photo:         *w.photo,
		QRCodeID:      w.qrCodeID,
		DonorIdentity: w.session.Identity(),
		Date:          w.date,
		Time:          w.slot,
	}
	w.state = StateSubmitting
	w.errMsg = ""
	w.mu.Unlock()

	callCtx, done := w.callContext(ctx)
	created, err := w.backend.CreateDonationItem(callCtx, token, item)
	done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateSubmitting {
		return nil
	}
	if err != nil {
		w.state = StateError
		w.errMsg = backend.UserMessage(err, SubmitFailedMessage)
		w.logger.Warn("donation submit failed", "qr_code_id", item.QRCodeID, "error", err)
		return fmt.Errorf("submit donation: %w", err)
	}
	w.state = StateSuccess
	if created != nil {
		w.createdID = created.ID
	}
	w.logger.Info("donation submitted", "qr_code_id", item.QRCodeID, "business", item.OwnerEmail)
	return nil
}

// Acknowledge dismisses a submit error and returns to the form with its
// data intact.
func (w *Workflow) Acknowledge() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateError {
		return wrongState("acknowledge", w.state)
	}
	w.state = StateFormEntry
	w.errMsg = ""
	return nil
}

// Abandon ends the workflow at the user's request.
func (w *Workflow) Abandon() error {
	w.mu.Lock()
	if w.state != StateScanning && w.state != StateFormEntry {
		s := w.state
		w.mu.Unlock()
		return wrongState("abandon", s)
	}
	w.state = StateAbandoned
	w.mu.Unlock()

	w.shutdown()
	return nil
}

// Close tears the workflow down when its view goes away. In-flight calls
// are cancelled and a workflow that had not finished ends abandoned.
func (w *Workflow) Close() {
	w.mu.Lock()
	if !w.state.Terminal() {
		w.state = StateAbandoned
	}
	w.mu.Unlock()

	w.shutdown()
}

func (w *Workflow) shutdown() {
	w.cancel()
	w.resolver.Close()

	w.mu.Lock()
	handle := w.scan
	w.scan = nil
	w.mu.Unlock()
	if handle != nil {
		handle.Release()
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot returns a copy of the workflow for rendering.
func (w *Workflow) Snapshot() Snapshot {
	address := w.resolver.Snapshot()

	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		State:       w.state,
		QRCodeID:    w.qrCodeID,
		ItemName:    w.itemName,
		StoreName:   w.storeName,
		Description: w.description,
		Address:     address,
		Businesses:  slices.Clone(w.businesses),
		Date:        w.date,
		TimeSlots:   slices.Clone(w.slots),
		TimeSlot:    w.slot,
		CreatedID:   w.createdID,
		Error:       w.errMsg,
	}
	if w.state == StateFormEntry || w.state == StateError {
		s.Dates = schedule.AvailableDates(w.now(), w.loc)
	}
	if w.photo != nil {
		s.PhotoName = w.photo.Filename
	}
	if w.business != nil {
		s.BusinessID = w.business.ID
	}
	return s
}
