package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/waypost/internal/confirm"
	"github.com/jredh-dev/waypost/pkg/models"
)

// board returns the session's confirmation board. A board is cached only
// after its first load succeeds.
func (h *Handler) board(r *http.Request, reload bool) (*confirm.Board, error) {
	sess := mustSession(r)

	h.mu.Lock()
	b, ok := h.boards[sess.ID]
	h.mu.Unlock()
	if ok {
		if reload {
			if err := b.Load(r.Context()); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	b, err := confirm.NewBoard(confirm.Deps{
		Backend: h.backend,
		Ledger:  h.ledger,
		Logger:  h.logger.With("session_id", sess.ID),
		Meter:   h.meter,
		Now:     h.now,
	}, sess)
	if err != nil {
		return nil, err
	}
	if err := b.Load(r.Context()); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.boards[sess.ID]; ok {
		return cur, nil
	}
	h.boards[sess.ID] = b
	return b, nil
}

// BusinessBoard returns pending transactions and available listings.
// GET /api/business/board
func (h *Handler) BusinessBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.board(r, true)
	if err != nil {
		h.writeError(w, r, err, "Could not load transactions.")
		return
	}
	jsonOK(w, http.StatusOK, b.Snapshot())
}

// ConfirmTransaction confirms a pending drop-off or pickup.
// POST /api/business/transactions/{id}/confirm
func (h *Handler) ConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.board(r, false)
	if err != nil {
		h.writeError(w, r, err, "Could not load transactions.")
		return
	}
	if err := b.Confirm(r.Context(), id); err != nil {
		h.writeError(w, r, err, "Could not confirm the transaction.")
		return
	}
	jsonOK(w, http.StatusOK, b.Snapshot())
}

// ownFailures returns the ledger entries filed under the caller's business.
func (h *Handler) ownFailures(r *http.Request, unresolvedOnly bool) ([]models.SagaFailure, error) {
	sess := mustSession(r)
	if !sess.IsBusiness() {
		return nil, confirm.ErrNotBusiness
	}
	all, err := h.ledger.List(r.Context(), unresolvedOnly)
	if err != nil {
		return nil, err
	}
	own := make([]models.SagaFailure, 0, len(all))
	for _, f := range all {
		if f.Identifier == sess.BusinessIdentifier() {
			own = append(own, f)
		}
	}
	return own, nil
}

// ListSagaFailures lists confirmations that need manual reconciliation.
// Pass ?all=true to include resolved entries.
// GET /api/business/reconciliation
func (h *Handler) ListSagaFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := h.ownFailures(r, r.URL.Query().Get("all") != "true")
	if err != nil {
		h.writeError(w, r, err, "Could not load reconciliation entries.")
		return
	}
	jsonOK(w, http.StatusOK, failures)
}

// ResolveSagaFailure marks a reconciliation entry as handled.
// POST /api/business/reconciliation/{id}/resolve
func (h *Handler) ResolveSagaFailure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	failures, err := h.ownFailures(r, true)
	if err != nil {
		h.writeError(w, r, err, "Could not load reconciliation entries.")
		return
	}
	found := false
	for _, f := range failures {
		if f.ID == id {
			found = true
			break
		}
	}
	if !found {
		jsonError(w, confirm.ErrFailureNotFound.Error(), http.StatusNotFound)
		return
	}
	if err := h.ledger.Resolve(r.Context(), id); err != nil {
		h.writeError(w, r, err, "Could not resolve the entry.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
