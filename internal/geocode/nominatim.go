package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jredh-dev/waypost/pkg/geo"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim is a Geocoder backed by the Nominatim search API.
type Nominatim struct {
	baseURL   string
	userAgent string
	limit     int
	http      *http.Client
	limiter   *rate.Limiter
	tracer    trace.Tracer
}

// NominatimOption configures a Nominatim client.
type NominatimOption func(*Nominatim)

// WithRate caps outgoing requests per second. The public instance allows one.
func WithRate(perSecond float64) NominatimOption {
	return func(n *Nominatim) {
		n.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLimit sets the maximum number of candidates requested.
func WithLimit(limit int) NominatimOption {
	return func(n *Nominatim) {
		if limit > 0 {
			n.limit = limit
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) NominatimOption {
	return func(n *Nominatim) { n.http = hc }
}

// NewNominatim creates a client. userAgent identifies the application as
// the Nominatim usage policy requires.
func NewNominatim(baseURL, userAgent string, opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limit:     5,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		tracer:    otel.Tracer("waypost/geocode"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type nominatimPlace struct {
	PlaceID     json.Number `json:"place_id"`
	DisplayName string      `json:"display_name"`
	Lat         string      `json:"lat"`
	Lon         string      `json:"lon"`
}

// Search queries Nominatim. Places with unparseable coordinates are skipped.
func (n *Nominatim) Search(ctx context.Context, query string) ([]Candidate, error) {
	ctx, span := n.tracer.Start(ctx, "geocode.search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("query.length", len(query))),
	)
	defer span.End()

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(n.limit))
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(places))
	for _, p := range places {
		lat, errLat := strconv.ParseFloat(p.Lat, 64)
		lng, errLng := strconv.ParseFloat(p.Lon, 64)
		c := geo.Coordinate{Lat: lat, Lng: lng}
		if errLat != nil || errLng != nil || !c.Valid() {
			continue
		}
		candidates = append(candidates, Candidate{
			DisplayName: p.DisplayName,
			Coordinate:  c,
			RawID:       p.PlaceID.String(),
		})
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}
