package confirm

import (
	"errors"
	"fmt"

	"github.com/jredh-dev/waypost/pkg/models"
)

var (
	ErrNotBusiness        = errors.New("confirmations require a business account")
	ErrUnknownTransaction = errors.New("transaction not found on board")
	ErrWrongType          = errors.New("transaction has a different type")
	ErrNoItem             = errors.New("transaction does not reference an item")
	ErrInProgress         = errors.New("transaction confirmation already in progress")
	ErrFailureNotFound    = errors.New("saga failure not found")
)

// PartialSagaError reports a confirmation whose item status update landed
// but whose transaction delete failed. Retrying the confirmation is safe.
type PartialSagaError struct {
	TransactionID string
	ItemRef       string
	Status        models.ItemStatus
	Err           error
}

func (e *PartialSagaError) Error() string {
	return fmt.Sprintf("item %s marked %s but transaction %s was not removed: %v", e.ItemRef, e.Status, e.TransactionID, e.Err)
}

func (e *PartialSagaError) Unwrap() error { return e.Err }
