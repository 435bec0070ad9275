package sip

import "github.com/sipclient/txlayer/internal/errorutil"

// Error represents a sentinel SIP transaction-layer error.
// See [errorutil.Error].
type Error = errorutil.Error

// Common errors.
const (
	ErrInvalidArgument Error = errorutil.ErrInvalidArgument
)

// Transaction errors.
const (
	ErrTransactionNotFound   Error = "transaction not found"
	ErrTransactionExists     Error = "transaction already exists"
	ErrTransactionTimedOut   Error = "transaction timed out"
	ErrTransactionTerminated Error = "transaction terminated"
	ErrTransactionNotMatched Error = "response does not match transaction"
	ErrRuntimeClosed         Error = "transaction runtime closed"
	ErrMethodNotAllowed      Error = "request method not allowed"
)

// NewInvalidArgumentError creates a new error with [ErrInvalidArgument] or
// wraps the provided error with [ErrInvalidArgument].
func NewInvalidArgumentError(args ...any) error {
	return errorutil.NewInvalidArgumentError(args...) //errtrace:skip
}
