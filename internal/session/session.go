// Package session holds the signed-in user's context. A Session is created
// on sign-in, injected into every workflow, and cleared on sign-out.
package session

import (
	"context"
	"time"

	"github.com/jredh-dev/waypost/pkg/identity"
	"github.com/jredh-dev/waypost/pkg/models"
)

// Session is one signed-in browser.
type Session struct {
	ID          string      `json:"id" firestore:"id"`
	UID         string      `json:"uid" firestore:"uid"`
	Email       string      `json:"email" firestore:"email"`
	DisplayName string      `json:"display_name" firestore:"display_name"`
	Role        models.Role `json:"role" firestore:"role"`
	IDToken     string      `json:"-" firestore:"id_token"`
	CreatedAt   time.Time   `json:"created_at" firestore:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at" firestore:"expires_at"`
}

// BearerToken returns the identity token for mutating backend calls.
// A nil, tokenless or expired session yields ErrNotSignedIn.
func (s *Session) BearerToken() (string, error) {
	if s == nil || s.IDToken == "" {
		return "", ErrNotSignedIn
	}
	if s.Expired(time.Now()) {
		return "", ErrNotSignedIn
	}
	return s.IDToken, nil
}

// Expired reports whether the session has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Identity is the donor name shown to businesses.
func (s *Session) Identity() string {
	if s == nil {
		return ""
	}
	return identity.DisplayName(s.DisplayName, s.Email)
}

// IsBusiness reports whether the user manages a business location.
func (s *Session) IsBusiness() bool {
	return s != nil && s.Role == models.RoleBusiness
}

// BusinessIdentifier is the key the backend files this user's business
// transactions under.
func (s *Session) BusinessIdentifier() string {
	if s == nil {
		return ""
	}
	if s.UID != "" {
		return s.UID
	}
	return s.Email
}

// Store persists sessions. Get returns (nil, nil) for unknown ids.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// VerifiedUser is the result of verifying an identity provider token.
type VerifiedUser struct {
	UID         string
	Email       string
	DisplayName string
	ExpiresAt   time.Time
}

// Verifier checks identity provider ID tokens.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*VerifiedUser, error)
}

// ProfileSource resolves the account role for a verified token.
type ProfileSource interface {
	GetProfile(ctx context.Context, token string) (*models.Profile, error)
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// Owns reports whether email belongs to this user.
func (s *Session) Owns(email string) bool {
	return s != nil && identity.SameEmail(s.Email, email)
}
