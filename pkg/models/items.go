package models

import (
	"time"

	"github.com/jredh-dev/waypost/pkg/geo"
)

// ItemStatus represents the availability state of a listing.
type ItemStatus string

const (
	ItemStatusAvailable   ItemStatus = "available"
	ItemStatusUnavailable ItemStatus = "unavailable"
	ItemStatusReserved    ItemStatus = "reserved"
	ItemStatusUnknown     ItemStatus = "unknown"
)

// Item is a listing tracked by QR code.
type Item struct {
	ID           string     `json:"id"`
	QRCodeID     string     `json:"qr_code_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	ImageURL     string     `json:"image_url,omitempty"`
	Lat          *float64   `json:"lat,omitempty"`
	Lng          *float64   `json:"lng,omitempty"`
	OwnerName    string     `json:"owner_name,omitempty"`
	OwnerEmail   string     `json:"owner_email,omitempty"`
	OwnerAddress string     `json:"owner_address,omitempty"`
	Status       ItemStatus `json:"status"`
	DistanceKm   *float64   `json:"distance_km,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// Ref returns the identifier used for status updates: the QR code id when
// present, otherwise the item id.
func (i Item) Ref() string {
	if i.QRCodeID != "" {
		return i.QRCodeID
	}
	return i.ID
}

// NormalizedStatus maps unrecognised status strings to ItemStatusUnknown.
func (i Item) NormalizedStatus() ItemStatus {
	switch i.Status {
	case ItemStatusAvailable, ItemStatusUnavailable, ItemStatusReserved:
		return i.Status
	default:
		return ItemStatusUnknown
	}
}

func (i Item) EntityID() string { return i.Ref() }

func (i Item) Position() (geo.Coordinate, bool) {
	return position(i.Lat, i.Lng)
}

func (i Item) ServerDistance() (float64, bool) {
	if i.DistanceKm == nil {
		return 0, false
	}
	return *i.DistanceKm, true
}

// RetailItem is a retailer registry hit for a QR code.
type RetailItem struct {
	Item    Item   `json:"item"`
	StoreID string `json:"store_id"`
}

// StoreProfile is the public profile of a retailer's store.
type StoreProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
}

// Label returns the friendliest available store name.
func (s StoreProfile) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Business is a drop-off or pickup location.
type Business struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Email      string   `json:"email,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// ContactEmail returns the business email, falling back to its id which the
// backend keys some businesses by.
func (b Business) ContactEmail() string {
	if b.Email != "" {
		return b.Email
	}
	return b.ID
}

func (b Business) EntityID() string { return b.ID }

func (b Business) Position() (geo.Coordinate, bool) {
	return position(b.Lat, b.Lng)
}

func (b Business) ServerDistance() (float64, bool) {
	if b.DistanceKm == nil {
		return 0, false
	}
	return *b.DistanceKm, true
}

func position(lat, lng *float64) (geo.Coordinate, bool) {
	if lat == nil || lng == nil {
		return geo.Coordinate{}, false
	}
	c := geo.Coordinate{Lat: *lat, Lng: *lng}
	return c, c.Valid()
}
