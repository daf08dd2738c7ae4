package database

import (
	"context"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/jredh-dev/waypost/pkg/models"
)

// Ledger records confirmations left half-applied for manual reconciliation.
type Ledger struct {
	db  *DB
	now func() time.Time
}

// Ledger returns the reconciliation ledger.
func (db *DB) Ledger() *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Record stores f, assigning an id and timestamp when absent.
func (l *Ledger) Record(ctx context.Context, f *models.SagaFailure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = l.now().UTC()
	}
	if _, err := l.db.client.Collection(sagaFailuresCollection).Doc(f.ID).Set(ctx, f); err != nil {
		return fmt.Errorf("record saga failure: %w", err)
	}
	return nil
}

// List returns recorded failures, newest first.
func (l *Ledger) List(ctx context.Context, unresolvedOnly bool) ([]models.SagaFailure, error) {
	q := l.db.client.Collection(sagaFailuresCollection).Query
	if unresolvedOnly {
		q = q.Where("resolved", "==", false)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []models.SagaFailure
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list saga failures: %w", err)
		}
		var f models.SagaFailure
		if err := snap.DataTo(&f); err != nil {
			return nil, fmt.Errorf("decode saga failure %s: %w", snap.Ref.ID, err)
		}
		out = append(out, f)
	}
	sortNewestFirst(out)
	return out, nil
}

// Resolve marks a failure as reconciled.
func (l *Ledger) Resolve(ctx context.Context, id string) error {
	ref := l.db.client.Collection(sagaFailuresCollection).Doc(id)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "resolved", Value: true},
		{Path: "resolved_at", Value: l.now().UTC()},
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("resolve saga failure: %w", err)
	}
	return nil
}

func sortNewestFirst(fs []models.SagaFailure) {
	slices.SortStableFunc(fs, func(a, b models.SagaFailure) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
