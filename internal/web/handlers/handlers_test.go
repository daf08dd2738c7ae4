package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/waypost/internal/actions"
	"github.com/jredh-dev/waypost/internal/backend"
	"github.com/jredh-dev/waypost/internal/confirm"
	"github.com/jredh-dev/waypost/internal/donation"
	"github.com/jredh-dev/waypost/internal/geocode"
	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/internal/token"
	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/models"
)

const testQR = "0f8fad5b-d9cb-469f-a165-70867728950e"

type fakeBackend struct {
	mu sync.Mutex

	transactions []models.Transaction
	listFailures int
	deleteErr    error
	redeemErr    error
	points       int
	items        []models.Item

	created   []models.DonationItem
	scheduled []models.NewTransaction
	statuses  []string
}

func (f *fakeBackend) GetRetailItemByQR(context.Context, string) (*models.RetailItem, error) {
	return nil, &backend.APIError{StatusCode: http.StatusNotFound}
}

func (f *fakeBackend) GetStoreProfile(context.Context, string) (*models.StoreProfile, error) {
	return nil, &backend.APIError{StatusCode: http.StatusNotFound}
}

func (f *fakeBackend) GetItemByQR(context.Context, string) (*models.Item, error) {
	return &models.Item{QRCodeID: testQR, Name: "Rain Jacket"}, nil
}

func (f *fakeBackend) FindNearbyBusinesses(context.Context, string, int) ([]models.Business, error) {
	return []models.Business{
		{ID: "far", Name: "Far Shop", Lat: ptr(45.50), Lng: ptr(-73.57)},
		{ID: "near", Name: "Near Shop", Email: "near@example.com", Lat: ptr(43.66), Lng: ptr(-79.39)},
	}, nil
}

func (f *fakeBackend) GetAvailableTimeSlots(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeBackend) CreateDonationItem(_ context.Context, _ string, d models.DonationItem) (*backend.CreatedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	return &backend.CreatedItem{ID: "item-1", QRCodeID: d.QRCodeID}, nil
}

func (f *fakeBackend) ListTransactions(context.Context, string, string) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listFailures > 0 {
		f.listFailures--
		return nil, errors.New("connection reset")
	}
	return append([]models.Transaction(nil), f.transactions...), nil
}

func (f *fakeBackend) ListItems(context.Context, string, models.ItemStatus) ([]models.Item, error) {
	return nil, nil
}

func (f *fakeBackend) SetItemStatus(_ context.Context, _, qr string, status models.ItemStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, qr+"="+string(status))
	return nil
}

func (f *fakeBackend) DeleteTransaction(context.Context, string, string, string) error {
	return f.deleteErr
}

func (f *fakeBackend) CreateTransaction(_ context.Context, _, _ string, tx models.NewTransaction) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, tx)
	return &models.Transaction{ID: "tx-new", TransactionType: tx.TransactionType, Date: tx.Date, Time: tx.Time, QRCodeID: tx.QRCodeID}, nil
}

func (f *fakeBackend) FindNearbyItems(context.Context, geo.Coordinate, int) ([]models.Item, error) {
	return f.items, nil
}

func (f *fakeBackend) GetPoints(_ context.Context, _, uid string) (*models.Points, error) {
	return &models.Points{UID: uid, Points: f.points}, nil
}

func (f *fakeBackend) RedeemReward(context.Context, string, string, string) (*models.Redemption, error) {
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	return &models.Redemption{Message: "Enjoy!", Points: f.points - 500}, nil
}

func (f *fakeBackend) RegisterTourist(context.Context, string, models.TouristRegistration) error {
	return nil
}

func (f *fakeBackend) RegisterRetailer(context.Context, string, models.RetailerRegistration) error {
	return nil
}

func (f *fakeBackend) GetProfile(_ context.Context, idToken string) (*models.Profile, error) {
	if idToken == "biz-token" {
		return &models.Profile{Role: models.RoleBusiness}, nil
	}
	return &models.Profile{Role: models.RoleTourist}, nil
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*session.VerifiedUser, error) {
	switch idToken {
	case "walker-token":
		return &session.VerifiedUser{UID: "u-walker", Email: "walker@example.com", DisplayName: "Walker", ExpiresAt: time.Now().Add(time.Hour)}, nil
	case "brief-token":
		return &session.VerifiedUser{UID: "u-brief", Email: "brief@example.com", DisplayName: "Brief", ExpiresAt: time.Now().Add(2 * time.Second)}, nil
	case "biz-token":
		return &session.VerifiedUser{UID: "biz-1", Email: "shop@example.com", DisplayName: "Shop", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return nil, errors.New("bad token")
}

func ptr(v float64) *float64 { return &v }

func testRouter(t *testing.T, fb *fakeBackend) (chi.Router, *Handler) {
	t.Helper()
	geocoder := geocode.GeocoderFunc(func(context.Context, string) ([]geocode.Candidate, error) {
		return []geocode.Candidate{{
			DisplayName: "100 Queen St W, Toronto",
			Coordinate:  geo.Coordinate{Lat: 43.6529, Lng: -79.3849},
			RawID:       "osm-1",
		}}, nil
	})
	h := New(Deps{
		Sessions: session.New(session.NewMemoryStore(), fakeVerifier{}, fb, time.Hour, nil),
		Tokens:   token.New("test-signing-key", "waypost-test", nil),
		Backend:  fb,
		Geocoder: geocoder,
		Ledger:   confirm.NewMemoryLedger(),
		Location: time.UTC,
		Resolver: []geocode.ResolverOption{geocode.WithDebounce(time.Millisecond)},
	})
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	h.Mount(r)
	return r, h
}

type client struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func signIn(t *testing.T, router http.Handler, idToken string) *client {
	t.Helper()
	c := &client{t: t, router: router}
	w := c.do("POST", "/auth/session", map[string]string{"id_token": idToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, ck := range w.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	require.NotNil(t, c.cookie, "session cookie not set")
	assert.True(t, c.cookie.HttpOnly)
	return c
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestSignIn(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})

	c := signIn(t, router, "walker-token")
	assert.NotEmpty(t, c.cookie.Value)

	anon := &client{t: t, router: router}
	w := anon.do("POST", "/auth/session", map[string]string{"id_token": "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = anon.do("POST", "/auth/session", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})
	anon := &client{t: t, router: router}

	for _, path := range []string{"/api/donations", "/api/points", "/api/business/board"} {
		w := anon.do("GET", path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	anon.cookie = &http.Cookie{Name: sessionCookie, Value: "not-a-jwt"}
	w := anon.do("GET", "/api/points", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})
	c := signIn(t, router, "walker-token")

	w := c.do("POST", "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The old cookie no longer maps to a session.
	w = c.do("GET", "/api/points", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSweep_DropsExpiredSessions(t *testing.T) {
	router, h := testRouter(t, &fakeBackend{})
	brief := signIn(t, router, "brief-token")
	walker := signIn(t, router, "walker-token")

	require.Equal(t, http.StatusCreated, brief.do("POST", "/api/donations", nil).Code)
	require.Equal(t, http.StatusCreated, walker.do("POST", "/api/donations", nil).Code)

	assert.Zero(t, h.Sweep(context.Background()))
	require.Eventually(t, func() bool {
		return h.Sweep(context.Background()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	h.mu.Lock()
	assert.Len(t, h.workflows, 1)
	assert.Len(t, h.scanners, 1)
	h.mu.Unlock()
	assert.Equal(t, http.StatusOK, walker.do("GET", "/api/donations", nil).Code)
}

func TestSearchActions_FollowsSession(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})

	ids := func(c *client) []string {
		w := c.do("GET", "/api/actions", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var out []string
		for _, a := range decode[[]actions.Action](t, w) {
			out = append(out, a.ID)
		}
		return out
	}

	anon := ids(&client{t: t, router: router})
	assert.Contains(t, anon, "nav-login")
	assert.NotContains(t, anon, "nav-donate")

	walker := ids(signIn(t, router, "walker-token"))
	assert.Contains(t, walker, "nav-donate")
	assert.Contains(t, walker, "nav-points")
	assert.NotContains(t, walker, "nav-business-dashboard")

	biz := ids(signIn(t, router, "biz-token"))
	assert.Contains(t, biz, "nav-business-dashboard")
}

func TestDonation_NoneOpen(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})
	c := signIn(t, router, "walker-token")

	w := c.do("GET", "/api/donations", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDonation_ScanAndValidate(t *testing.T) {
	fb := &fakeBackend{}
	router, _ := testRouter(t, fb)
	c := signIn(t, router, "walker-token")

	w := c.do("POST", "/api/donations", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, donation.StateScanning, decode[donation.Snapshot](t, w).State)

	w = c.do("POST", "/api/donations/scan", map[string]string{"payload": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, rescanMessage, decode[errorResponse](t, w).Error)

	w = c.do("POST", "/api/donations/scan", map[string]string{"payload": `{"qr_code_id":"` + testQR + `"}`})
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[donation.Snapshot](t, w)
	assert.Equal(t, donation.StateFormEntry, snap.State)
	assert.Equal(t, "Rain Jacket", snap.ItemName)
	assert.NotEmpty(t, snap.Dates)

	w = c.do("POST", "/api/donations/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, []string{"description", "photo", "address", "business", "date", "time slot"}, resp.Missing)
	assert.Empty(t, fb.created)

	// Scanning again is out of order.
	w = c.do("POST", "/api/donations/scan", map[string]string{"payload": testQR})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func uploadPhoto(t *testing.T, c *client) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="photo"; filename="jacket.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/donations/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

func TestDonation_HappyPath(t *testing.T) {
	fb := &fakeBackend{}
	router, _ := testRouter(t, fb)
	c := signIn(t, router, "walker-token")

	require.Equal(t, http.StatusCreated, c.do("POST", "/api/donations", nil).Code)
	w := c.do("POST", "/api/donations/scan", map[string]string{"payload": testQR})
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[donation.Snapshot](t, w)

	w = uploadPhoto(t, c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "jacket.jpg", decode[donation.Snapshot](t, w).PhotoName)

	w = c.do("PUT", "/api/donations/address", map[string]string{"text": "100 Queen"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		w := c.do("GET", "/api/donations", nil)
		return len(decode[donation.Snapshot](t, w).Address.Suggestions) == 1
	}, time.Second, 5*time.Millisecond)

	w = c.do("POST", "/api/donations/address/select", map[string]string{"id": "osm-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decode[donation.Snapshot](t, w)
	require.Len(t, snap.Businesses, 2)
	assert.Equal(t, "near", snap.Businesses[0].Entity.ID)

	w = c.do("POST", "/api/donations/business", map[string]string{"id": "near"})
	require.Equal(t, http.StatusOK, w.Code)
	snap = decode[donation.Snapshot](t, w)
	require.NotEmpty(t, snap.TimeSlots)

	w = c.do("PUT", "/api/donations/form", map[string]string{
		"description": "Barely worn",
		"date":        snap.Dates[0].Value,
		"time_slot":   snap.TimeSlots[0],
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do("POST", "/api/donations/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decode[donation.Snapshot](t, w)
	assert.Equal(t, donation.StateSuccess, snap.State)
	assert.Equal(t, "item-1", snap.CreatedID)

	require.Len(t, fb.created, 1)
	assert.Equal(t, "near@example.com", fb.created[0].OwnerEmail)
	assert.Equal(t, testQR, fb.created[0].QRCodeID)
	assert.Equal(t, "Rain Jacket", fb.created[0].Name)

	w = c.do("DELETE", "/api/donations", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = c.do("GET", "/api/donations", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDonation_UnsupportedPhoto(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})
	c := signIn(t, router, "walker-token")
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/donations", nil).Code)
	require.Equal(t, http.StatusOK, c.do("POST", "/api/donations/scan", map[string]string{"payload": testQR}).Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("just text"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/donations/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := c.send(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirm_PartialFailureIsReconciled(t *testing.T) {
	fb := &fakeBackend{
		transactions: []models.Transaction{
			{ID: "tx-1", TransactionType: models.TransactionDropoff, QRCodeID: testQR},
		},
		deleteErr: &backend.APIError{StatusCode: http.StatusServiceUnavailable, Detail: "transaction store unavailable"},
	}
	router, _ := testRouter(t, fb)
	c := signIn(t, router, "biz-token")

	w := c.do("GET", "/api/business/board", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[confirm.Snapshot](t, w).Transactions, 1)

	w = c.do("POST", "/api/business/transactions/tx-1/confirm", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode[errorResponse](t, w)
	assert.True(t, resp.Partial)
	assert.Contains(t, resp.Error, "flagged for follow-up")
	assert.True(t, strings.HasSuffix(resp.Error, " transaction store unavailable"), resp.Error)
	assert.Equal(t, []string{testQR + "=available"}, fb.statuses)

	w = c.do("GET", "/api/business/reconciliation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	failures := decode[[]models.SagaFailure](t, w)
	require.Len(t, failures, 1)
	assert.Equal(t, "tx-1", failures[0].TransactionID)
	assert.Equal(t, "biz-1", failures[0].Identifier)

	w = c.do("POST", "/api/business/reconciliation/"+failures[0].ID+"/resolve", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = c.do("GET", "/api/business/reconciliation", nil)
	assert.Empty(t, decode[[]models.SagaFailure](t, w))

	w = c.do("POST", "/api/business/reconciliation/missing/resolve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirm_Success(t *testing.T) {
	fb := &fakeBackend{
		transactions: []models.Transaction{
			{ID: "tx-2", TransactionType: models.TransactionPickup, ItemID: "item-9"},
		},
	}
	router, _ := testRouter(t, fb)
	c := signIn(t, router, "biz-token")

	w := c.do("POST", "/api/business/transactions/tx-2/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[confirm.Snapshot](t, w)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, []string{"item-9=unavailable"}, fb.statuses)

	w = c.do("POST", "/api/business/transactions/unknown/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirm_RetryAfterFailedFirstLoad(t *testing.T) {
	fb := &fakeBackend{
		transactions: []models.Transaction{
			{ID: "tx-3", TransactionType: models.TransactionPickup, ItemID: "item-4"},
		},
		listFailures: 1,
	}
	router, h := testRouter(t, fb)
	c := signIn(t, router, "biz-token")

	w := c.do("POST", "/api/business/transactions/tx-3/confirm", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	h.mu.Lock()
	assert.Empty(t, h.boards)
	h.mu.Unlock()

	w = c.do("POST", "/api/business/transactions/tx-3/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"item-4=unavailable"}, fb.statuses)
}

func TestBusinessRoutesRequireBusiness(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})
	c := signIn(t, router, "walker-token")

	assert.Equal(t, http.StatusForbidden, c.do("GET", "/api/business/board", nil).Code)
	assert.Equal(t, http.StatusForbidden, c.do("GET", "/api/business/reconciliation", nil).Code)
}

func TestSchedulePickup(t *testing.T) {
	fb := &fakeBackend{}
	router, _ := testRouter(t, fb)
	c := signIn(t, router, "walker-token")

	w := c.do("GET", "/api/pickups/slots?owner=shop@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var slots struct {
		Dates     []struct{ Value string } `json:"dates"`
		TimeSlots []string                 `json:"time_slots"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&slots))
	require.NotEmpty(t, slots.Dates)
	require.NotEmpty(t, slots.TimeSlots)

	req := map[string]string{
		"qr_code_id":       testQR,
		"item_name":        "Rain Jacket",
		"owner_identifier": "shop@example.com",
		"date":             slots.Dates[0].Value,
		"time_slot":        slots.TimeSlots[0],
	}
	w = c.do("POST", "/api/pickups", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, fb.scheduled, 1)
	assert.Equal(t, models.TransactionPickup, fb.scheduled[0].TransactionType)

	req["owner_identifier"] = "Walker@Example.com"
	w = c.do("POST", "/api/pickups", req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	delete(req, "date")
	w = c.do("POST", "/api/pickups", req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPoints(t *testing.T) {
	fb := &fakeBackend{points: 250}
	router, _ := testRouter(t, fb)
	c := signIn(t, router, "walker-token")

	w := c.do("GET", "/api/points", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[pointsResponse](t, w)
	assert.Equal(t, 250, resp.Points)
	assert.Equal(t, 50, resp.Tier.Percent)
	assert.Equal(t, 250, resp.Tier.Remaining)
	assert.Len(t, resp.Rewards, len(models.Rewards))
}

func TestRedeemReward(t *testing.T) {
	fb := &fakeBackend{points: 600}
	router, _ := testRouter(t, fb)
	c := signIn(t, router, "walker-token")

	w := c.do("POST", "/api/points/redeem", map[string]string{"reward_id": "national-park-entry"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, decode[models.Redemption](t, w).Points)

	w = c.do("POST", "/api/points/redeem", map[string]string{"reward_id": "moon-trip"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	fb.redeemErr = &backend.APIError{StatusCode: http.StatusConflict, Detail: "Not enough points"}
	w = c.do("POST", "/api/points/redeem", map[string]string{"reward_id": "local-eco-tour"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Not enough points", decode[errorResponse](t, w).Error)
}

func TestNearbyListings(t *testing.T) {
	fb := &fakeBackend{items: []models.Item{
		{ID: "finch", Name: "Lamp", Lat: ptr(43.7806), Lng: ptr(-79.4150)},
		{ID: "union", Name: "Chair", Lat: ptr(43.6453), Lng: ptr(-79.3806)},
		{ID: "nowhere", Name: "Mystery"},
	}}
	router, _ := testRouter(t, fb)
	anon := &client{t: t, router: router}

	w := anon.do("GET", "/api/listings/nearby?lat=43.6453&lng=-79.3806", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ranked := decode[[]geo.Ranked[models.Item]](t, w)
	require.Len(t, ranked, 3)
	assert.Equal(t, "union", ranked[0].Entity.ID)
	assert.Equal(t, "nowhere", ranked[2].Entity.ID)
	assert.Nil(t, ranked[2].DistanceKm)

	w = anon.do("GET", "/api/listings/nearby?lat=43.6453&lng=-79.3806&radius_km=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]geo.Ranked[models.Item]](t, w), 1)

	for _, q := range []string{"lat=95&lng=0", "lat=43", "lat=43&lng=-79&limit=0", "lat=43&lng=-79&radius_km=-1"} {
		w = anon.do("GET", "/api/listings/nearby?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestAreaListings(t *testing.T) {
	fb := &fakeBackend{items: []models.Item{
		{ID: "finch", Lat: ptr(43.7806), Lng: ptr(-79.4150)},
		{ID: "union", Lat: ptr(43.6453), Lng: ptr(-79.3806)},
	}}
	router, _ := testRouter(t, fb)
	anon := &client{t: t, router: router}

	w := anon.do("GET", "/api/listings/area?sw=43.60,-79.45&ne=43.70,-79.30", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]models.Item](t, w)
	require.Len(t, items, 1)
	assert.Equal(t, "union", items[0].ID)

	w = anon.do("GET", "/api/listings/area?sw=43.70,-79.30&ne=43.60,-79.45", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterTourist(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})
	anon := &client{t: t, router: router}

	w := anon.do("POST", "/api/register/tourist", map[string]string{"id_token": "walker-token", "email": "walker@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"username"}, decode[errorResponse](t, w).Missing)

	w = anon.do("POST", "/api/register/tourist", map[string]string{
		"id_token": "walker-token",
		"username": "walker",
		"email":    "walker@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, strings.Contains(w.Header().Get("Set-Cookie"), sessionCookie+"="))
}

func TestDates(t *testing.T) {
	router, _ := testRouter(t, &fakeBackend{})
	w := (&client{t: t, router: router}).do("GET", "/api/dates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]map[string]string](t, w))
}
