// Package confirm lets a business confirm scheduled pickups and drop-offs.
//
// Confirming is a two-step saga against the backend: the item's status is
// set first, then the transaction is deleted. If the delete fails the item
// keeps its new status, the failure is recorded for reconciliation, and the
// transaction stays on the board so the confirmation can be retried.
package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/pkg/models"
)

// NoticeTTL is how long a confirmation notice stays visible.
const NoticeTTL = 3 * time.Second

const meterName = "github.com/jredh-dev/waypost/internal/confirm"

// Backend is the subset of the backend client used by the board.
type Backend interface {
	ListTransactions(ctx context.Context, token, identifier string) ([]models.Transaction, error)
	ListItems(ctx context.Context, owner string, status models.ItemStatus) ([]models.Item, error)
	SetItemStatus(ctx context.Context, token, qrCodeID string, status models.ItemStatus) error
	DeleteTransaction(ctx context.Context, token, identifier, transactionID string) error
}

// Deps are the board's collaborators. Ledger and Meter are optional.
type Deps struct {
	Backend Backend
	Ledger  Ledger
	Logger  *slog.Logger
	Meter   metric.Meter
	Now     func() time.Time
}

// Notice is a transient message shown after a confirmation.
type Notice struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Snapshot is the board as rendered.
type Snapshot struct {
	Transactions []models.Transaction `json:"transactions"`
	Listings     []models.Item        `json:"listings"`
	Notice       *Notice              `json:"notice,omitempty"`
}

// Board is one business's view of its pending transactions and listings.
type Board struct {
	backend  Backend
	ledger   Ledger
	logger   *slog.Logger
	failures metric.Int64Counter
	now      func() time.Time
	session  *session.Session

	mu           sync.Mutex
	transactions []models.Transaction
	listings     []models.Item
	notice       *Notice
	inFlight     map[string]bool
}

// NewBoard creates a board for a signed-in business.
func NewBoard(deps Deps, sess *session.Session) (*Board, error) {
	if !sess.IsBusiness() {
		return nil, ErrNotBusiness
	}
	b := &Board{
		backend:  deps.Backend,
		ledger:   deps.Ledger,
		logger:   deps.Logger,
		now:      deps.Now,
		session:  sess,
		inFlight: make(map[string]bool),
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	counter, err := meter.Int64Counter("waypost.confirm.partial_failures",
		metric.WithDescription("Confirmations whose item status was updated but whose transaction was not deleted"),
		metric.WithUnit("{confirmation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create partial failure counter: %w", err)
	}
	b.failures = counter
	return b, nil
}

// Load fetches the pending transactions and the available listings.
func (b *Board) Load(ctx context.Context) error {
	token, err := b.session.BearerToken()
	if err != nil {
		return err
	}
	txs, err := b.backend.ListTransactions(ctx, token, b.session.BusinessIdentifier())
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	items, err := b.backend.ListItems(ctx, b.session.Email, models.ItemStatusAvailable)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.transactions = txs
	b.listings = items
	return nil
}

// ConfirmDropoff confirms a drop-off: the item becomes available.
func (b *Board) ConfirmDropoff(ctx context.Context, txID string) error {
	return b.confirmType(ctx, txID, models.TransactionDropoff)
}

// ConfirmPickup confirms a pickup: the item becomes unavailable.
func (b *Board) ConfirmPickup(ctx context.Context, txID string) error {
	return b.confirmType(ctx, txID, models.TransactionPickup)
}

// Confirm confirms txID according to its own type.
func (b *Board) Confirm(ctx context.Context, txID string) error {
	tx, err := b.lookup(txID)
	if err != nil {
		return err
	}
	return b.confirmType(ctx, txID, tx.TransactionType)
}

func (b *Board) lookup(txID string) (models.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.transactions, func(t models.Transaction) bool { return t.ID == txID })
	if i < 0 {
		return models.Transaction{}, ErrUnknownTransaction
	}
	return b.transactions[i], nil
}

func (b *Board) confirmType(ctx context.Context, txID string, want models.TransactionType) error {
	tx, err := b.lookup(txID)
	if err != nil {
		return err
	}
	if tx.TransactionType != want {
		return fmt.Errorf("confirm %s as %s: %w", tx.TransactionType, want, ErrWrongType)
	}
	status, ok := tx.TransactionType.ConfirmedStatus()
	if !ok {
		return fmt.Errorf("confirm %q: %w", tx.TransactionType, ErrWrongType)
	}
	ref := tx.ItemRef()
	if ref == "" {
		return ErrNoItem
	}
	token, err := b.session.BearerToken()
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.inFlight[txID] {
		b.mu.Unlock()
		return ErrInProgress
	}
	b.inFlight[txID] = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.inFlight, txID)
		b.mu.Unlock()
	}()

	if err := b.backend.SetItemStatus(ctx, token, ref, status); err != nil {
		return fmt.Errorf("set item status: %w", err)
	}

	identifier := b.session.BusinessIdentifier()
	if err := b.backend.DeleteTransaction(ctx, token, identifier, tx.ID); err != nil {
		return b.partialFailure(ctx, tx, ref, status, err)
	}

	b.mu.Lock()
	b.transactions = slices.DeleteFunc(b.transactions, func(t models.Transaction) bool { return t.ID == tx.ID })
	b.notice = &Notice{
		Message:   confirmedMessage(tx.TransactionType),
		ExpiresAt: b.now().Add(NoticeTTL),
	}
	b.mu.Unlock()

	b.logger.Info("transaction confirmed", "transaction_id", tx.ID, "type", tx.TransactionType, "item", ref)
	b.refreshListings(ctx)
	return nil
}

func (b *Board) partialFailure(ctx context.Context, tx models.Transaction, ref string, status models.ItemStatus, err error) error {
	b.logger.Error("confirmation partially applied",
		"transaction_id", tx.ID,
		"item", ref,
		"step", "delete_transaction",
		"error", err,
	)
	b.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transaction_type", string(tx.TransactionType)),
	))
	if b.ledger != nil {
		rec := &models.SagaFailure{
			TransactionID:   tx.ID,
			TransactionType: tx.TransactionType,
			Identifier:      b.session.BusinessIdentifier(),
			ItemRef:         ref,
			ItemStatus:      status,
			Error:           err.Error(),
			CreatedAt:       b.now().UTC(),
		}
		// Record even if the request was cancelled.
		if lerr := b.ledger.Record(context.WithoutCancel(ctx), rec); lerr != nil {
			b.logger.Error("record saga failure", "transaction_id", tx.ID, "error", lerr)
		}
	}
	return &PartialSagaError{TransactionID: tx.ID, ItemRef: ref, Status: status, Err: err}
}

func (b *Board) refreshListings(ctx context.Context) {
	items, err := b.backend.ListItems(ctx, b.session.Email, models.ItemStatusAvailable)
	if err != nil {
		b.logger.Warn("refresh listings", "error", err)
		return
	}
	b.mu.Lock()
	b.listings = items
	b.mu.Unlock()
}

func confirmedMessage(t models.TransactionType) string {
	if t == models.TransactionPickup {
		return "Pickup confirmed. The item is no longer listed."
	}
	return "Drop-off confirmed. The item is now available."
}

// Notice returns the current notice while it has not expired.
func (b *Board) Notice() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notice == nil || !b.now().Before(b.notice.ExpiresAt) {
		b.notice = nil
		return Notice{}, false
	}
	return *b.notice, true
}

// Snapshot returns a copy of the board.
func (b *Board) Snapshot() Snapshot {
	notice, ok := b.Notice()

	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Transactions: slices.Clone(b.transactions),
		Listings:     slices.Clone(b.listings),
	}
	if ok {
		s.Notice = &notice
	}
	return s
}
