package sip

import (
	"context"
	"log/slog"

	"braces.dev/errtrace"

	"github.com/sipclient/txlayer/internal/log"
	"github.com/sipclient/txlayer/internal/types"
	"github.com/sipclient/txlayer/message"
)

// DispatcherOptions are the options for a [Dispatcher].
type DispatcherOptions struct {
	// Factory creates the concrete client transaction for a request. If
	// nil, [DefaultClientTransactionFactory] is used.
	Factory ClientTransactionFactory
	// Store tracks started transactions so inbound responses can be routed
	// to them. If nil, a [NewMemoryClientTransactionStore] is used.
	Store ClientTransactionStore
	// TransactionOptions are passed through to every created transaction.
	TransactionOptions *ClientTransactionOptions
	// Log is the logger. If nil, [log.Default] is used.
	Log *slog.Logger
}

func (o *DispatcherOptions) factory() ClientTransactionFactory {
	if o == nil || o.Factory == nil {
		return DefaultClientTransactionFactory()
	}
	return o.Factory
}

func (o *DispatcherOptions) store() ClientTransactionStore {
	if o == nil || o.Store == nil {
		return NewMemoryClientTransactionStore()
	}
	return o.Store
}

func (o *DispatcherOptions) txOpts() *ClientTransactionOptions {
	if o == nil {
		return nil
	}
	return o.TransactionOptions
}

func (o *DispatcherOptions) log() *slog.Logger {
	if o == nil || o.Log == nil {
		return log.Default()
	}
	return o.Log
}

// Dispatcher starts client transactions for outbound requests and keeps a
// registry of the ones still running so inbound responses can be routed
// back to them.
type Dispatcher struct {
	factory ClientTransactionFactory
	store   ClientTransactionStore
	txOpts  *ClientTransactionOptions
	log     *slog.Logger

	onNewTx types.CallbackManager[ClientTransactionHandler]
}

// NewDispatcher creates a new [Dispatcher].
// Options are optional, if nil, default values are used (see
// [DispatcherOptions]).
func NewDispatcher(opts *DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		factory: opts.factory(),
		store:   opts.store(),
		txOpts:  opts.txOpts(),
		log:     opts.log(),
	}
}

// Start creates and starts the right kind of client transaction for req,
// tracking it in the dispatcher's registry until it terminates. ACK
// requests are rejected: they never start a transaction of their own and
// ride inside the INVITE transaction that built them instead.
func (d *Dispatcher) Start(
	ctx context.Context,
	req *message.Request,
	tp ClientTransport,
	core ClientTransactionCore,
	opts *ClientTransactionOptions,
) (ClientTransaction, error) {
	if req != nil && req.Method().Equal(message.MethodAck) {
		return nil, errtrace.Wrap(NewInvalidArgumentError(ErrMethodNotAllowed))
	}
	if opts == nil {
		opts = d.txOpts
	}

	tx, err := d.factory.NewClientTransaction(ctx, req, tp, core, opts)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	key := tx.Key()
	if err := d.store.Store(ctx, key, tx); err != nil {
		tx.Terminate(ctx) //nolint:errcheck
		return nil, errtrace.Wrap(err)
	}
	tx.OnStateChanged(func(ctx context.Context, _, to TransactionState) {
		if to != TransactionStateTerminated {
			return
		}
		if err := d.store.Delete(ctx, key); err != nil {
			d.log.LogAttrs(ctx, slog.LevelWarn, "failed to remove terminated transaction from registry",
				slog.Any("transaction", tx),
				slog.Any("error", err),
			)
		}
	})

	for fn := range d.onNewTx.All() {
		fn(ctx, tx)
	}

	return tx, nil
}

// Dispatch routes an inbound response to the transaction it matches,
// silently discarding responses that match nothing, per RFC 3261 §17.1.3.
func (d *Dispatcher) Dispatch(ctx context.Context, res *message.Response) error {
	var key ClientTransactionKey
	key.fillFromResponse(res)
	if !key.IsValid() {
		return errtrace.Wrap(NewInvalidArgumentError("response missing branch or CSeq method"))
	}

	tx, err := d.store.Load(ctx, key)
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelDebug, "discarding response matched to no transaction",
			slog.Any("response", res),
			slog.Any("error", err),
		)
		return nil //nolint:nilerr
	}

	return errtrace.Wrap(tx.RecvResponse(ctx, res))
}

// OnNewClientTransaction registers fn to be called whenever Start creates a
// new client transaction.
func (d *Dispatcher) OnNewClientTransaction(fn ClientTransactionHandler) (unbind func()) {
	return d.onNewTx.Add(fn)
}
