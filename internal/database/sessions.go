package database

import (
	"context"
	"fmt"

	"github.com/jredh-dev/waypost/internal/session"
)

// SessionStore implements session.Store on the sessions collection.
type SessionStore struct {
	db *DB
}

// Sessions returns the session store.
func (db *DB) Sessions() *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.db.client.Collection(sessionsCollection).Doc(sess.ID).Set(ctx, sess)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns (nil, nil) if no session has the id.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	snap, err := s.db.client.Collection(sessionsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess session.Session
	if err := snap.DataTo(&sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	// Deleting a missing document succeeds.
	if _, err := s.db.client.Collection(sessionsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ session.Store = (*SessionStore)(nil)
