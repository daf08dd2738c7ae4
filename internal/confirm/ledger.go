package confirm

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/waypost/pkg/models"
)

// Ledger records confirmations that were left half-applied.
type Ledger interface {
	Record(ctx context.Context, f *models.SagaFailure) error
	List(ctx context.Context, unresolvedOnly bool) ([]models.SagaFailure, error)
	Resolve(ctx context.Context, id string) error
}

// MemoryLedger is a Ledger kept in process memory.
type MemoryLedger struct {
	mu       sync.Mutex
	failures []models.SagaFailure
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (m *MemoryLedger) Record(_ context.Context, f *models.SagaFailure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, *f)
	return nil
}

// List returns failures newest first.
func (m *MemoryLedger) List(_ context.Context, unresolvedOnly bool) ([]models.SagaFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SagaFailure
	for _, f := range m.failures {
		if unresolvedOnly && f.Resolved {
			continue
		}
		out = append(out, f)
	}
	slices.Reverse(out)
	return out, nil
}

func (m *MemoryLedger) Resolve(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.failures {
		if m.failures[i].ID == id {
			now := time.Now().UTC()
			m.failures[i].Resolved = true
			m.failures[i].ResolvedAt = &now
			return nil
		}
	}
	return ErrFailureNotFound
}
