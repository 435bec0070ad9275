package sip

import "context"

// Handler type aliases.
type (
	ErrorHandler = func(ctx context.Context, err error)

	ClientTransactionHandler = func(ctx context.Context, tx ClientTransaction)
)
