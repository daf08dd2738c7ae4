package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/models"
)

// --- Item operations ---

// FindNearbyItems returns listings near origin, closest first when the
// backend supplies distances.
func (c *Client) FindNearbyItems(ctx context.Context, origin geo.Coordinate, limit int) ([]models.Item, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(origin.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(origin.Lng, 'f', -1, 64))
	q.Set("limit", strconv.Itoa(limit))

	var items []models.Item
	err := c.do(ctx, request{op: "find_nearby_items", method: http.MethodGet, path: "/items/nearby", query: q}, &items)
	return items, err
}

// GetItemByQR looks up an item in the general registry.
func (c *Client) GetItemByQR(ctx context.Context, qrCodeID string) (*models.Item, error) {
	var item models.Item
	err := c.do(ctx, request{
		op:     "get_item",
		method: http.MethodGet,
		path:   "/items/" + url.PathEscape(qrCodeID),
	}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetRetailItemByQR looks up an item in the retailer registry.
func (c *Client) GetRetailItemByQR(ctx context.Context, qrCodeID string) (*models.RetailItem, error) {
	var item models.RetailItem
	err := c.do(ctx, request{
		op:     "get_retail_item",
		method: http.MethodGet,
		path:   "/retailers/items/" + url.PathEscape(qrCodeID),
	}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetStoreProfile returns a retailer's public store profile.
func (c *Client) GetStoreProfile(ctx context.Context, storeID string) (*models.StoreProfile, error) {
	var profile models.StoreProfile
	err := c.do(ctx, request{
		op:     "get_store_profile",
		method: http.MethodGet,
		path:   "/retailers/" + url.PathEscape(storeID) + "/profile",
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListItems returns the listings owned by owner, optionally filtered by status.
func (c *Client) ListItems(ctx context.Context, owner string, status models.ItemStatus) ([]models.Item, error) {
	q := url.Values{}
	q.Set("owner_email", owner)
	if status != "" {
		q.Set("status", string(status))
	}

	var items []models.Item
	err := c.do(ctx, request{op: "list_items", method: http.MethodGet, path: "/items", query: q}, &items)
	return items, err
}

// SetItemStatus updates an item's availability. Repeating it is harmless.
func (c *Client) SetItemStatus(ctx context.Context, token, qrCodeID string, status models.ItemStatus) error {
	return c.do(ctx, request{
		op:     "set_item_status",
		method: http.MethodPut,
		path:   "/items/" + url.PathEscape(qrCodeID) + "/status",
		token:  token,
		body:   map[string]string{"status": string(status)},
	}, nil)
}

// CreatedItem is the backend response to a donation.
type CreatedItem struct {
	ID       string `json:"id"`
	QRCodeID string `json:"qr_code_id"`
	Message  string `json:"message,omitempty"`
}

// CreateDonationItem creates the donated item, owned by the chosen business,
// in a single multipart request carrying the photo.
func (c *Client) CreateDonationItem(ctx context.Context, token string, d models.DonationItem) (*CreatedItem, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	body, err := donationForm(d)
	if err != nil {
		return nil, err
	}

	var created CreatedItem
	err = c.do(ctx, request{
		op:     "create_donation_item",
		method: http.MethodPost,
		path:   "/items/donations",
		token:  token,
		body:   body,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

type multipartBody struct {
	reader      *bytes.Reader
	contentType string
}

func donationForm(d models.DonationItem) (*multipartBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"name", d.Name},
		{"description", d.Description},
		{"owner_email", d.OwnerEmail},
		{"qr_code_id", d.QRCodeID},
		{"donor", d.DonorIdentity},
		{"date", d.Date},
		{"time", d.Time},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, d.Photo.Filename))
	h.Set("Content-Type", d.Photo.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(d.Photo.Data); err != nil {
		return nil, fmt.Errorf("write photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	return &multipartBody{reader: bytes.NewReader(buf.Bytes()), contentType: w.FormDataContentType()}, nil
}
