package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jredh-dev/waypost/pkg/models"
)

// --- Account operations ---

// GetProfile returns the caller's role. The backend prefers
// business over retailer over tourist when several profiles exist.
func (c *Client) GetProfile(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	var profile models.Profile
	err := c.do(ctx, request{op: "get_profile", method: http.MethodGet, path: "/login/profile", token: token, auth: true}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// RegisterTourist creates a tourist account.
func (c *Client) RegisterTourist(ctx context.Context, token string, reg models.TouristRegistration) error {
	return c.do(ctx, request{op: "register_tourist", method: http.MethodPost, path: "/tourists/register", token: token, body: reg}, nil)
}

// RegisterRetailer creates a retailer account.
func (c *Client) RegisterRetailer(ctx context.Context, token string, reg models.RetailerRegistration) error {
	return c.do(ctx, request{op: "register_retailer", method: http.MethodPost, path: "/retailers/register", token: token, body: reg}, nil)
}

// GetPoints returns a user's points balance.
func (c *Client) GetPoints(ctx context.Context, token, uid string) (*models.Points, error) {
	var points models.Points
	err := c.do(ctx, request{
		op:     "get_points",
		method: http.MethodGet,
		path:   "/users/" + url.PathEscape(uid) + "/points",
		token:  token,
		auth:   true,
	}, &points)
	if err != nil {
		return nil, err
	}
	return &points, nil
}

// RedeemReward spends points on a reward.
func (c *Client) RedeemReward(ctx context.Context, token, uid, rewardID string) (*models.Redemption, error) {
	var out models.Redemption
	err := c.do(ctx, request{
		op:     "redeem_reward",
		method: http.MethodPost,
		path:   "/users/" + url.PathEscape(uid) + "/redeem",
		token:  token,
		body:   map[string]string{"rewardId": rewardID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
