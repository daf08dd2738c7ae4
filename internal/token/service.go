// Package token signs the session cookie and verifies Firebase ID tokens.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"

	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/pkg/models"
)

// ErrNoAuthClient is returned when ID tokens are verified without Firebase.
var ErrNoAuthClient = errors.New("firebase auth client not configured")

// idTokenVerifier is the subset of *auth.Client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Service handles cookie token generation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	authClient idTokenVerifier
}

// Claims are carried by the session cookie.
type Claims struct {
	SessionID string      `json:"sid"`
	UserID    string      `json:"uid"`
	Email     string      `json:"email,omitempty"`
	Role      models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// New creates a token service. authClient may be nil when only cookie
// tokens are needed.
func New(signingKey string, issuer string, authClient *auth.Client) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
	if authClient != nil {
		s.authClient = authClient
	}
	return s
}

// GenerateSigningKey generates a secure random signing key
func GenerateSigningKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateToken creates the cookie token for a session.
func (s *Service) GenerateToken(sess *session.Session, expiresIn time.Duration) (string, error) {
	if sess == nil || sess.ID == "" {
		return "", errors.New("session id required")
	}
	now := time.Now()
	claims := Claims{
		SessionID: sess.ID,
		UserID:    sess.UID,
		Email:     sess.Email,
		Role:      sess.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   sess.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.SessionID == "" {
			return nil, fmt.Errorf("token missing session id")
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// VerifyIDToken checks a Firebase ID token and returns the user it names.
// It satisfies session.Verifier.
func (s *Service) VerifyIDToken(ctx context.Context, idToken string) (*session.VerifiedUser, error) {
	if s.authClient == nil {
		return nil, ErrNoAuthClient
	}
	tok, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("invalid Firebase token: %w", err)
	}
	return verifiedUser(tok), nil
}

func verifiedUser(tok *auth.Token) *session.VerifiedUser {
	u := &session.VerifiedUser{UID: tok.UID}
	if tok.Expires > 0 {
		u.ExpiresAt = time.Unix(tok.Expires, 0)
	}
	if email, ok := tok.Claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		u.DisplayName = name
	}
	return u
}
