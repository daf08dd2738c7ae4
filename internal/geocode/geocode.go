// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"

	"github.com/jredh-dev/waypost/pkg/geo"
)

// Candidate is one geocoding match.
type Candidate struct {
	DisplayName string         `json:"display_name"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	RawID       string         `json:"raw_id"`
}

// Geocoder searches for address candidates.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// GeocoderFunc adapts a function to Geocoder.
type GeocoderFunc func(ctx context.Context, query string) ([]Candidate, error)

func (f GeocoderFunc) Search(ctx context.Context, query string) ([]Candidate, error) {
	return f(ctx, query)
}
