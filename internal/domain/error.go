package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context for query")

	// Payment state machine errors
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrAmountMismatch        = errors.New("payment amount does not match the prepared amount")
	ErrNotCancelable         = errors.New("payment is not in a cancelable state")
	ErrCancelAmountExceeded  = errors.New("cancel amount exceeds the remaining balance")
	ErrUnknownProviderStatus = errors.New("unknown provider payment status")
	ErrNotOwner              = errors.New("payment belongs to another user")
)
