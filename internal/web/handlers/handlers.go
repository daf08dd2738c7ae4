package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/waypost/internal/actions"
	"github.com/jredh-dev/waypost/internal/confirm"
	"github.com/jredh-dev/waypost/internal/donation"
	"github.com/jredh-dev/waypost/internal/geocode"
	"github.com/jredh-dev/waypost/internal/listings"
	"github.com/jredh-dev/waypost/internal/pickup"
	"github.com/jredh-dev/waypost/internal/scanner"
	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/internal/token"
	"github.com/jredh-dev/waypost/pkg/models"
	"github.com/jredh-dev/waypost/pkg/schedule"
	"go.opentelemetry.io/otel/metric"
)

const sessionCookie = "session"

// Backend is everything the HTTP surface needs from the Waypost backend.
type Backend interface {
	donation.Backend
	confirm.Backend
	pickup.Backend
	listings.Source
	GetPoints(ctx context.Context, token, uid string) (*models.Points, error)
	RedeemReward(ctx context.Context, token, uid, rewardID string) (*models.Redemption, error)
	RegisterTourist(ctx context.Context, token string, reg models.TouristRegistration) error
	RegisterRetailer(ctx context.Context, token string, reg models.RetailerRegistration) error
}

// Deps are the handler's collaborators.
type Deps struct {
	Sessions *session.Service
	Tokens   *token.Service
	Backend  Backend
	Geocoder geocode.Geocoder
	Ledger   confirm.Ledger
	Logger   *slog.Logger
	Meter    metric.Meter
	Location *time.Location

	CookieMaxAge  int  // seconds
	SecureCookies bool // set in production
	Resolver      []geocode.ResolverOption
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions *session.Service
	tokens   *token.Service
	backend  Backend
	geocoder geocode.Geocoder
	ledger   confirm.Ledger
	logger   *slog.Logger
	meter    metric.Meter
	loc      *time.Location
	now      func() time.Time

	cookieMaxAge  int
	secureCookies bool
	resolverOpts  []geocode.ResolverOption

	actions *actions.Registry
	pickups *pickup.Scheduler

	// Per-session view state, keyed by session id.
	mu        sync.Mutex
	workflows map[string]*donation.Workflow
	scanners  map[string]*scanner.Slot
	boards    map[string]*confirm.Board
}

// New creates a handler.
func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	ledger := deps.Ledger
	if ledger == nil {
		ledger = confirm.NewMemoryLedger()
	}
	maxAge := deps.CookieMaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}
	return &Handler{
		sessions:      deps.Sessions,
		tokens:        deps.Tokens,
		backend:       deps.Backend,
		geocoder:      deps.Geocoder,
		ledger:        ledger,
		logger:        logger,
		meter:         deps.Meter,
		loc:           loc,
		now:           time.Now,
		cookieMaxAge:  maxAge,
		secureCookies: deps.SecureCookies,
		resolverOpts:  deps.Resolver,
		actions:       actions.New(),
		pickups:       pickup.New(deps.Backend, loc, logger),
		workflows:     make(map[string]*donation.Workflow),
		scanners:      make(map[string]*scanner.Slot),
		boards:        make(map[string]*confirm.Board),
	}
}

// Mount registers every route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/auth/session", h.SignIn)
	r.Post("/auth/logout", h.Logout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/actions", h.SearchActions)
		r.Get("/dates", h.Dates)
		r.Get("/listings/nearby", h.NearbyListings)
		r.Get("/listings/area", h.AreaListings)
		r.Get("/rewards", h.Rewards)
		r.Post("/register/tourist", h.RegisterTourist)
		r.Post("/register/retailer", h.RegisterRetailer)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/donations", h.StartDonation)
			r.Get("/donations", h.GetDonation)
			r.Delete("/donations", h.EndDonation)
			r.Post("/donations/scan", h.ScanDonation)
			r.Put("/donations/form", h.UpdateDonationForm)
			r.Post("/donations/photo", h.UploadDonationPhoto)
			r.Put("/donations/address", h.SetDonationAddress)
			r.Post("/donations/address/select", h.SelectDonationAddress)
			r.Post("/donations/business", h.SelectDonationBusiness)
			r.Post("/donations/submit", h.SubmitDonation)
			r.Post("/donations/ack", h.AcknowledgeDonation)

			r.Get("/pickups/slots", h.PickupSlots)
			r.Post("/pickups", h.SchedulePickup)

			r.Get("/business/board", h.BusinessBoard)
			r.Post("/business/transactions/{id}/confirm", h.ConfirmTransaction)
			r.Get("/business/reconciliation", h.ListSagaFailures)
			r.Post("/business/reconciliation/{id}/resolve", h.ResolveSagaFailure)

			r.Get("/points", h.Points)
			r.Post("/points/redeem", h.RedeemReward)
		})
	})
}

// Close ends every open workflow.
func (h *Handler) Close() {
	h.mu.Lock()
	workflows := h.workflows
	h.workflows = make(map[string]*donation.Workflow)
	h.boards = make(map[string]*confirm.Board)
	h.mu.Unlock()

	for _, w := range workflows {
		w.Close()
	}
}

// --- Auth ---

type signInReq struct {
	IDToken string `json:"id_token"`
}

// SignIn exchanges a Firebase ID token for the session cookie.
// POST /auth/session
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInReq
	if err := decodeJSON(r, &req); err != nil || req.IDToken == "" {
		jsonError(w, "id_token is required", http.StatusBadRequest)
		return
	}

	h.startSession(w, r, req.IDToken, http.StatusOK)
}

// startSession signs in with idToken and sets the session cookie.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, idToken string, status int) {
	sess, err := h.sessions.SignIn(r.Context(), idToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidIDToken) {
			h.logger.Info("sign-in rejected", "error", err)
			jsonError(w, "Invalid or expired sign-in. Please try again.", http.StatusUnauthorized)
			return
		}
		h.logger.Error("sign-in failed", "error", err)
		jsonError(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	maxAge := time.Duration(h.cookieMaxAge) * time.Second
	if until := sess.ExpiresAt.Sub(h.now()); until > 0 && until < maxAge {
		maxAge = until
	}
	cookie, err := h.tokens.GenerateToken(sess, maxAge)
	if err != nil {
		h.logger.Error("sign session token", "error", err)
		jsonError(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, cookie, int(maxAge.Seconds()))

	jsonOK(w, status, sess)
}

// Logout clears the session cookie and deletes the server-side session.
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := h.currentSession(r); sess != nil {
		h.dropViews(sess.ID)
		if err := h.sessions.SignOut(r.Context(), sess.ID); err != nil {
			h.logger.Warn("sign out", "session_id", sess.ID, "error", err)
		}
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dropViews(sessionID string) {
	h.mu.Lock()
	wf := h.workflows[sessionID]
	delete(h.workflows, sessionID)
	delete(h.scanners, sessionID)
	delete(h.boards, sessionID)
	h.mu.Unlock()

	if wf != nil {
		wf.Close()
	}
}

// Sweep drops view state held for sessions that have expired or been
// removed from the store. It returns the number of sessions dropped.
func (h *Handler) Sweep(ctx context.Context) int {
	h.mu.Lock()
	ids := make(map[string]struct{}, len(h.workflows)+len(h.boards))
	for id := range h.workflows {
		ids[id] = struct{}{}
	}
	for id := range h.scanners {
		ids[id] = struct{}{}
	}
	for id := range h.boards {
		ids[id] = struct{}{}
	}
	h.mu.Unlock()

	dropped := 0
	for id := range ids {
		sess, err := h.sessions.Lookup(ctx, id)
		if err != nil {
			h.logger.Warn("sweep session lookup failed", "session_id", id, "error", err)
			continue
		}
		if sess == nil {
			h.dropViews(id)
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Info("swept expired sessions", "count", dropped)
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (h *Handler) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// --- Public ---

// SearchActions returns actions matching the query parameter "q".
// Results are filtered by sign-in state and role.
// GET /api/actions
func (h *Handler) SearchActions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	ctx := actions.SearchContext{}
	if sess := h.currentSession(r); sess != nil {
		ctx.LoggedIn = true
		ctx.Role = sess.Role
	}

	results := h.actions.Search(query, ctx)
	if results == nil {
		results = []actions.Action{}
	}
	jsonOK(w, http.StatusOK, results)
}

// Dates returns the bookable drop-off and pickup dates.
// GET /api/dates
func (h *Handler) Dates(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, schedule.AvailableDates(h.now(), h.loc))
}

// --- helpers ---

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func jsonOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonOK(w, status, errorResponse{Error: msg})
}
