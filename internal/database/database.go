// Package database persists sessions and saga reconciliation records in
// Cloud Firestore.
package database

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	sessionsCollection     = "sessions"
	sagaFailuresCollection = "saga_failures"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a Firestore client.
type DB struct {
	client *firestore.Client
}

// New opens a Firestore client for the given project. An empty databaseID
// selects the default database. FIRESTORE_EMULATOR_HOST is honoured by the
// client library.
func New(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*DB, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return &DB{client: client}, nil
}

// Close closes the Firestore client.
func (db *DB) Close() error {
	return db.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
