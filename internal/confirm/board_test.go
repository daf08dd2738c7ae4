package confirm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/pkg/models"
)

type fakeBackend struct {
	mu sync.Mutex

	transactions []models.Transaction
	items        []models.Item
	statusErr    error
	deleteErr    error
	listErr      error

	calls []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) ListTransactions(_ context.Context, _, identifier string) ([]models.Transaction, error) {
	f.record("list_transactions:" + identifier)
	return append([]models.Transaction(nil), f.transactions...), f.listErr
}

func (f *fakeBackend) ListItems(_ context.Context, owner string, status models.ItemStatus) ([]models.Item, error) {
	f.record("list_items:" + owner + ":" + string(status))
	return f.items, nil
}

func (f *fakeBackend) SetItemStatus(_ context.Context, _, qr string, status models.ItemStatus) error {
	f.record("set_status:" + qr + ":" + string(status))
	return f.statusErr
}

func (f *fakeBackend) DeleteTransaction(_ context.Context, _, identifier, txID string) error {
	f.record("delete:" + identifier + ":" + txID)
	return f.deleteErr
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func business() *session.Session {
	return &session.Session{ID: "s", UID: "biz-1", Email: "near@cafe.ca", Role: models.RoleBusiness, IDToken: "tok"}
}

func pending() []models.Transaction {
	return []models.Transaction{
		{ID: "tx-drop", TransactionType: models.TransactionDropoff, QRCodeID: "qr-a", Date: "2026-10-16", Time: "9:00 AM - 10:00 AM"},
		{ID: "tx-pick", TransactionType: models.TransactionPickup, ItemID: "qr-b", Date: "2026-10-16", Time: "1:00 PM - 2:00 PM"},
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func newBoard(t *testing.T, fb *fakeBackend, ledger Ledger) (*Board, *sdkmetric.ManualReader, *clock) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	clk := &clock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}

	b, err := NewBoard(Deps{
		Backend: fb,
		Ledger:  ledger,
		Meter:   provider.Meter("test"),
		Now:     clk.now,
	}, business())
	require.NoError(t, err)
	require.NoError(t, b.Load(context.Background()))
	fb.reset()
	return b, reader, clk
}

func partialFailures(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "waypost.confirm.partial_failures" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestNewBoard_RequiresBusiness(t *testing.T) {
	_, err := NewBoard(Deps{Backend: &fakeBackend{}}, &session.Session{Role: models.RoleTourist})
	assert.ErrorIs(t, err, ErrNotBusiness)
	_, err = NewBoard(Deps{Backend: &fakeBackend{}}, nil)
	assert.ErrorIs(t, err, ErrNotBusiness)
}

func TestLoad(t *testing.T) {
	fb := &fakeBackend{transactions: pending(), items: []models.Item{{ID: "i1", Name: "Jacket"}}}
	b, _, _ := newBoard(t, fb, nil)

	snap := b.Snapshot()
	assert.Len(t, snap.Transactions, 2)
	assert.Len(t, snap.Listings, 1)
	assert.Nil(t, snap.Notice)
}

func TestLoad_Error(t *testing.T) {
	fb := &fakeBackend{listErr: errors.New("backend down")}
	b, err := NewBoard(Deps{Backend: fb}, business())
	require.NoError(t, err)
	assert.Error(t, b.Load(context.Background()))
}

func TestConfirmDropoff_Success(t *testing.T) {
	fb := &fakeBackend{transactions: pending()}
	b, reader, clk := newBoard(t, fb, nil)

	require.NoError(t, b.ConfirmDropoff(context.Background(), "tx-drop"))

	assert.Equal(t, []string{
		"set_status:qr-a:available",
		"delete:biz-1:tx-drop",
		"list_items:near@cafe.ca:available",
	}, fb.callLog())

	snap := b.Snapshot()
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, "tx-pick", snap.Transactions[0].ID)
	require.NotNil(t, snap.Notice)
	assert.Contains(t, snap.Notice.Message, "Drop-off confirmed")
	assert.Zero(t, partialFailures(t, reader))

	clk.add(NoticeTTL - time.Millisecond)
	_, ok := b.Notice()
	assert.True(t, ok)
	clk.add(time.Millisecond)
	_, ok = b.Notice()
	assert.False(t, ok, "notice expires after three seconds")
}

func TestConfirmPickup_UsesItemID(t *testing.T) {
	fb := &fakeBackend{transactions: pending()}
	b, _, _ := newBoard(t, fb, nil)

	require.NoError(t, b.ConfirmPickup(context.Background(), "tx-pick"))
	assert.Equal(t, "set_status:qr-b:unavailable", fb.callLog()[0])
}

func TestConfirm_DispatchesOnType(t *testing.T) {
	fb := &fakeBackend{transactions: pending()}
	b, _, _ := newBoard(t, fb, nil)

	require.NoError(t, b.Confirm(context.Background(), "tx-pick"))
	require.NoError(t, b.Confirm(context.Background(), "tx-drop"))
	assert.Empty(t, b.Snapshot().Transactions)
}

func TestConfirm_WrongTypeRejected(t *testing.T) {
	fb := &fakeBackend{transactions: pending()}
	b, _, _ := newBoard(t, fb, nil)

	assert.ErrorIs(t, b.ConfirmPickup(context.Background(), "tx-drop"), ErrWrongType)
	assert.ErrorIs(t, b.ConfirmDropoff(context.Background(), "tx-pick"), ErrWrongType)
	assert.ErrorIs(t, b.Confirm(context.Background(), "tx-missing"), ErrUnknownTransaction)
	assert.Empty(t, fb.callLog())
}

func TestConfirm_StatusFailureSkipsDelete(t *testing.T) {
	fb := &fakeBackend{transactions: pending(), statusErr: errors.New("500 Internal Server Error")}
	ledger := NewMemoryLedger()
	b, reader, _ := newBoard(t, fb, ledger)

	err := b.ConfirmDropoff(context.Background(), "tx-drop")
	require.ErrorIs(t, err, fb.statusErr)

	var partial *PartialSagaError
	assert.False(t, errors.As(err, &partial))
	assert.Equal(t, []string{"set_status:qr-a:available"}, fb.callLog())
	assert.Len(t, b.Snapshot().Transactions, 2, "list unchanged")
	assert.Zero(t, partialFailures(t, reader))

	failures, _ := ledger.List(context.Background(), false)
	assert.Empty(t, failures)
}

func TestConfirm_DeleteFailureIsPartial(t *testing.T) {
	fb := &fakeBackend{transactions: pending(), deleteErr: errors.New("503 Service Unavailable")}
	ledger := NewMemoryLedger()
	b, reader, _ := newBoard(t, fb, ledger)
	ctx := context.Background()

	err := b.ConfirmDropoff(ctx, "tx-drop")
	var partial *PartialSagaError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "tx-drop", partial.TransactionID)
	assert.Equal(t, "qr-a", partial.ItemRef)
	assert.Equal(t, models.ItemStatusAvailable, partial.Status)
	assert.ErrorIs(t, err, fb.deleteErr)

	snap := b.Snapshot()
	assert.Len(t, snap.Transactions, 2, "transaction stays so the confirmation can be retried")
	assert.Nil(t, snap.Notice)
	assert.Equal(t, int64(1), partialFailures(t, reader))

	failures, err := ledger.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "tx-drop", failures[0].TransactionID)
	assert.Equal(t, "biz-1", failures[0].Identifier)
	assert.Equal(t, models.ItemStatusAvailable, failures[0].ItemStatus)

	// Retry once the backend recovers; setting the status again is harmless.
	fb.mu.Lock()
	fb.deleteErr = nil
	fb.calls = nil
	fb.mu.Unlock()
	require.NoError(t, b.ConfirmDropoff(ctx, "tx-drop"))
	assert.Equal(t, "set_status:qr-a:available", fb.callLog()[0])
	assert.Len(t, b.Snapshot().Transactions, 1)

	require.NoError(t, ledger.Resolve(ctx, failures[0].ID))
	open, _ := ledger.List(ctx, true)
	assert.Empty(t, open)
}

func TestConfirm_NoItemReference(t *testing.T) {
	fb := &fakeBackend{transactions: []models.Transaction{{ID: "tx-bare", TransactionType: models.TransactionDropoff}}}
	b, _, _ := newBoard(t, fb, nil)
	assert.ErrorIs(t, b.Confirm(context.Background(), "tx-bare"), ErrNoItem)
}

func TestMemoryLedger(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	first := &models.SagaFailure{TransactionID: "tx-1"}
	second := &models.SagaFailure{TransactionID: "tx-2"}
	require.NoError(t, ledger.Record(ctx, first))
	require.NoError(t, ledger.Record(ctx, second))
	assert.NotEmpty(t, first.ID)

	all, err := ledger.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "tx-2", all[0].TransactionID, "newest first")

	require.NoError(t, ledger.Resolve(ctx, first.ID))
	open, _ := ledger.List(ctx, true)
	require.Len(t, open, 1)
	assert.Equal(t, "tx-2", open[0].TransactionID)

	assert.ErrorIs(t, ledger.Resolve(ctx, "nope"), ErrFailureNotFound)
}
