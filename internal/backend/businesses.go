package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jredh-dev/waypost/pkg/models"
)

// --- Business operations ---

// FindNearbyBusinesses returns businesses near a free-text address.
func (c *Client) FindNearbyBusinesses(ctx context.Context, address string, limit int) ([]models.Business, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("limit", strconv.Itoa(limit))

	var businesses []models.Business
	err := c.do(ctx, request{op: "find_nearby_businesses", method: http.MethodGet, path: "/businesses/nearby", query: q}, &businesses)
	return businesses, err
}

// GetAvailableTimeSlots returns the booking slots published by a business.
func (c *Client) GetAvailableTimeSlots(ctx context.Context, businessID string) ([]string, error) {
	var slots []string
	err := c.do(ctx, request{
		op:     "get_time_slots",
		method: http.MethodGet,
		path:   "/businesses/" + url.PathEscape(businessID) + "/time_slots",
	}, &slots)
	return slots, err
}

// --- Transaction operations ---

// CreateTransaction schedules a pickup or drop-off at the business
// identified by identifier (uid or email).
func (c *Client) CreateTransaction(ctx context.Context, token, identifier string, tx models.NewTransaction) (*models.Transaction, error) {
	var created models.Transaction
	err := c.do(ctx, request{
		op:     "create_transaction",
		method: http.MethodPost,
		path:   transactionsPath(identifier),
		token:  token,
		body:   tx,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListTransactions returns the pending transactions of a business.
func (c *Client) ListTransactions(ctx context.Context, token, identifier string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := c.do(ctx, request{
		op:     "list_transactions",
		method: http.MethodGet,
		path:   transactionsPath(identifier),
		token:  token,
		auth:   true,
	}, &txs)
	return txs, err
}

// DeleteTransaction removes a transaction once it has been confirmed.
func (c *Client) DeleteTransaction(ctx context.Context, token, identifier, transactionID string) error {
	return c.do(ctx, request{
		op:     "delete_transaction",
		method: http.MethodDelete,
		path:   transactionsPath(identifier) + "/" + url.PathEscape(transactionID),
		token:  token,
	}, nil)
}

func transactionsPath(identifier string) string {
	return "/businesses/" + url.PathEscape(identifier) + "/transactions"
}
