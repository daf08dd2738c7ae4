package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/waypost/pkg/models"
)

// Service manages the sign-in lifecycle.
type Service struct {
	store    Store
	verifier Verifier
	profiles ProfileSource
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a session service. profiles may be nil, in which case every
// user is treated as a tourist.
func New(store Store, verifier Verifier, profiles ProfileSource, maxAge time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		verifier: verifier,
		profiles: profiles,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

// SignIn verifies an identity provider token and opens a session.
// The session never outlives the token it carries.
func (s *Service) SignIn(ctx context.Context, idToken string) (*Session, error) {
	if idToken == "" {
		return nil, ErrInvalidIDToken
	}
	user, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	now := s.now()
	expires := now.Add(s.maxAge)
	if !user.ExpiresAt.IsZero() && user.ExpiresAt.Before(expires) {
		expires = user.ExpiresAt
	}

	sess := &Session{
		ID:          uuid.New().String(),
		UID:         user.UID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        s.resolveRole(ctx, idToken, user.UID),
		IDToken:     idToken,
		CreatedAt:   now,
		ExpiresAt:   expires,
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("signed in", "uid", sess.UID, "role", sess.Role)
	return sess, nil
}

// resolveRole asks the backend for the account role. Lookup failures fall
// back to tourist so sign-in still succeeds.
func (s *Service) resolveRole(ctx context.Context, idToken, uid string) models.Role {
	if s.profiles == nil {
		return models.RoleTourist
	}
	profile, err := s.profiles.GetProfile(ctx, idToken)
	if err != nil || profile == nil || profile.Role == "" {
		if err != nil {
			s.logger.Warn("profile lookup failed", "uid", uid, "error", err)
		}
		return models.RoleTourist
	}
	return profile.Role
}

// Lookup returns the live session with the given id.
// Returns (nil, nil) if the session does not exist or has expired.
func (s *Service) Lookup(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(s.now()) {
		// Expired session, clean it up.
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("delete expired session", "session_id", id, "error", err)
		}
		return nil, nil
	}
	return sess, nil
}

// SignOut clears a session. Unknown ids are not an error.
func (s *Service) SignOut(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
