package sip

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"braces.dev/errtrace"
	"github.com/qmuntal/stateless"

	"github.com/sipclient/txlayer/internal/log"
	"github.com/sipclient/txlayer/internal/types"
	"github.com/sipclient/txlayer/message"
)

// ClientTransactionFactory creates the right kind of client transaction for
// a request.
type ClientTransactionFactory interface {
	NewClientTransaction(
		ctx context.Context,
		req *message.Request,
		tp ClientTransport,
		core ClientTransactionCore,
		opts *ClientTransactionOptions,
	) (ClientTransaction, error)
}

// StdClientTransactionFactory is the default [ClientTransactionFactory]: it
// routes INVITE requests to [NewInviteClientTransaction] and everything
// else to [NewNonInviteClientTransaction].
type StdClientTransactionFactory struct{}

var defClnTxFactory = &StdClientTransactionFactory{}

// DefaultClientTransactionFactory returns the package-wide default factory.
func DefaultClientTransactionFactory() *StdClientTransactionFactory { return defClnTxFactory }

func (*StdClientTransactionFactory) NewClientTransaction(
	ctx context.Context,
	req *message.Request,
	tp ClientTransport,
	core ClientTransactionCore,
	opts *ClientTransactionOptions,
) (ClientTransaction, error) {
	if req.Method().Equal(message.MethodInvite) {
		return errtrace.Wrap2(NewInviteClientTransaction(ctx, req, tp, core, opts))
	}
	return errtrace.Wrap2(NewNonInviteClientTransaction(ctx, req, tp, core, opts))
}

const clnTransactCtxKey types.ContextKey = "client_transaction"

// ClientTransactionFromContext returns the client transaction stored in ctx
// by [NewInviteClientTransaction] or [NewNonInviteClientTransaction].
func ClientTransactionFromContext(ctx context.Context) (ClientTransaction, bool) {
	tx, ok := ctx.Value(clnTransactCtxKey).(ClientTransaction)
	return tx, ok
}

// ClientTransactionOptions are the options for creating a client
// transaction.
type ClientTransactionOptions struct {
	// Key is the transaction key to use. If it is not valid (for example
	// zero), it is filled from the request's topmost Via branch and method.
	Key ClientTransactionKey
	// Timings is the timing configuration to use. If zero, the package
	// defaults apply.
	Timings TimingConfig
	// SendOptions are the options used to send the request and its
	// retransmissions.
	SendOptions *SendRequestOptions
	// Log is the logger to use. If nil, [log.Default] is used.
	Log *slog.Logger
}

func (o *ClientTransactionOptions) key() ClientTransactionKey {
	if o == nil {
		return ClientTransactionKey{}
	}
	return o.Key
}

func (o *ClientTransactionOptions) timings() TimingConfig {
	if o == nil {
		return defTimingCfg
	}
	return o.Timings
}

func (o *ClientTransactionOptions) sendOpts() *SendRequestOptions {
	if o == nil {
		return nil
	}
	return o.SendOptions
}

func (o *ClientTransactionOptions) log() *slog.Logger {
	if o == nil || o.Log == nil {
		return log.Default()
	}
	return o.Log
}

// clientTransact is the state and behavior shared by
// [InviteClientTransaction] and [NonInviteClientTransaction]: the FSM
// plumbing, the transport hookup, and delivery of responses to the core.
type clientTransact struct {
	ctx    context.Context
	cancel context.CancelFunc

	typ  TransactionType
	impl clientTransactImpl
	log  *slog.Logger
	fsm  *stateless.StateMachine

	key      ClientTransactionKey
	tp       ClientTransport
	core     ClientTransactionCore
	timings  TimingConfig
	req      *message.Request
	sendOpts *SendRequestOptions
	lastRes  atomic.Pointer[message.Response]
	abnormal atomic.Bool

	onStateChanged types.CallbackManager[TransactionStateHandler]
}

// clientTransactImpl is implemented by the concrete INVITE/non-INVITE
// transaction types so clientTransact can log and address back into the
// public type for action callbacks.
type clientTransactImpl interface {
	ClientTransaction
}

func newClientTransact(
	ctx context.Context,
	typ TransactionType,
	impl clientTransactImpl,
	req *message.Request,
	tp ClientTransport,
	core ClientTransactionCore,
	opts *ClientTransactionOptions,
) (*clientTransact, error) {
	if err := req.Validate(); err != nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError(err))
	}
	if tp == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid transport"))
	}
	if core == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid core"))
	}

	key := opts.key()
	if !key.IsValid() {
		key.FillFromMessage(req)
	}

	txCtx, cancel := context.WithCancel(ctx)
	tx := &clientTransact{
		typ:      typ,
		impl:     impl,
		log:      opts.log(),
		key:      key,
		tp:       tp,
		core:     core,
		req:      req,
		sendOpts: opts.sendOpts(),
		timings:  opts.timings(),
		cancel:   cancel,
	}
	tx.ctx = context.WithValue(txCtx, clnTransactCtxKey, impl)
	return tx, nil
}

func (tx *clientTransact) initFSM(start TransactionState) error {
	// Queued firing mode lets a completed/accepted entry action fire its own
	// terminate trigger for the reliable-transport immediate-terminate case
	// (RFC 3261 §17.1.1.2/§17.1.2.2) without re-entering FireCtx mid-transition.
	tx.fsm = stateless.NewStateMachineWithMode(start, stateless.FiringQueued)
	tx.fsm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		from, _ := t.Source.(TransactionState)
		to, _ := t.Destination.(TransactionState)
		if from == to {
			return
		}
		for fn := range tx.onStateChanged.All() {
			fn(ctx, from, to)
		}
	})

	respType := reflect.TypeOf((*message.Response)(nil))
	tx.fsm.SetTriggerParameters(txEvtRecv1xx, respType)
	tx.fsm.SetTriggerParameters(txEvtRecv2xx, respType)
	tx.fsm.SetTriggerParameters(txEvtRecv300699, respType)

	return nil
}

// LogValue implements [slog.LogValuer].
func (tx *clientTransact) LogValue() slog.Value {
	if tx == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.Any("key", tx.key),
		slog.Any("type", tx.typ),
		slog.Any("state", tx.State()),
	)
}

// Key returns the transaction key.
func (tx *clientTransact) Key() ClientTransactionKey { return tx.key }

// Type reports which state machine the transaction runs.
func (tx *clientTransact) Type() TransactionType { return tx.typ }

// State returns the current FSM state.
func (tx *clientTransact) State() TransactionState {
	return tx.fsm.MustState().(TransactionState) //nolint:forcetypeassert
}

// Context returns the transaction's context.
func (tx *clientTransact) Context() context.Context { return tx.ctx }

// Request returns the request that created the transaction.
func (tx *clientTransact) Request() *message.Request { return tx.req }

// LastResponse returns the last response delivered to the core.
func (tx *clientTransact) LastResponse() *message.Response { return tx.lastRes.Load() }

// MatchResponse implements the matching rules of RFC 3261 §17.1.3.
func (tx *clientTransact) MatchResponse(res *message.Response) error {
	if err := res.Validate(); err != nil {
		return errtrace.Wrap(NewInvalidArgumentError(err))
	}

	var resKey ClientTransactionKey
	resKey.fillFromResponse(res)
	if !tx.key.Equal(resKey) {
		return errtrace.Wrap(ErrTransactionNotMatched)
	}
	return nil
}

// RecvResponse classifies res and fires the matching FSM trigger.
func (tx *clientTransact) RecvResponse(ctx context.Context, res *message.Response) error {
	if err := tx.MatchResponse(res); err != nil {
		return errtrace.Wrap(err)
	}

	switch {
	case res.IsProvisional():
		return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtRecv1xx, res))
	case res.IsSuccessful():
		return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtRecv2xx, res))
	default:
		return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtRecv300699, res))
	}
}

func (tx *clientTransact) sendReq(ctx context.Context, req *message.Request) error {
	if err := tx.tp.SendRequest(ctx, req, tx.sendOpts); err != nil {
		wrapped := errtrace.Wrap(err)
		if fireErr := tx.fsm.FireCtx(ctx, txEvtTranspErr, wrapped); fireErr != nil {
			panic(fmt.Errorf("fire %q in state %q: %w", txEvtTranspErr, tx.State(), fireErr))
		}
		return wrapped
	}
	return nil
}

func (tx *clientTransact) actSendReq(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "send request", slog.Any("transaction", tx.impl))
	tx.sendReq(ctx, tx.req) //nolint:errcheck
	return nil
}

func (tx *clientTransact) actPass1xx(ctx context.Context, args ...any) error {
	res := args[0].(*message.Response) //nolint:forcetypeassert
	tx.lastRes.Store(res)

	tx.log.LogAttrs(ctx, slog.LevelDebug, "pass provisional response", slog.Any("transaction", tx.impl))
	tx.core.OnProvisionalResponse(ctx, res)
	return nil
}

func (tx *clientTransact) actPassFinal(ctx context.Context, args ...any) error {
	res := args[0].(*message.Response) //nolint:forcetypeassert
	tx.lastRes.Store(res)

	tx.log.LogAttrs(ctx, slog.LevelDebug, "pass final response", slog.Any("transaction", tx.impl))
	tx.core.OnResponse(ctx, res)
	return nil
}

func (tx *clientTransact) actProceeding(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction proceeding", slog.Any("transaction", tx.impl))
	return nil
}

func (tx *clientTransact) actCompleted(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction completed", slog.Any("transaction", tx.impl))
	return nil
}

func (tx *clientTransact) actTimedOut(ctx context.Context, _ ...any) error {
	tx.abnormal.Store(true)
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction timed out", slog.Any("transaction", tx.impl))
	tx.core.OnTimeout(ctx)
	return nil
}

func (tx *clientTransact) actTranspErr(ctx context.Context, args ...any) error {
	tx.abnormal.Store(true)
	err, _ := args[0].(error)
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transport error", slog.Any("transaction", tx.impl), slog.Any("error", err))
	tx.core.OnTransportError(ctx, err)
	return nil
}

func (tx *clientTransact) actTerminated(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction terminated", slog.Any("transaction", tx.impl))
	tx.core.OnTerminated(ctx, !tx.abnormal.Load())
	tx.cancel()
	return nil
}

func (tx *clientTransact) actNoop(context.Context, ...any) error { return nil }

// OnStateChanged registers fn to be called on every state transition.
func (tx *clientTransact) OnStateChanged(fn TransactionStateHandler) (cancel func()) {
	return tx.onStateChanged.Add(fn)
}

// Terminate forces the transaction into the terminated state.
func (tx *clientTransact) Terminate(ctx context.Context) error {
	if tx.State() == TransactionStateTerminated {
		return nil
	}
	return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtTerminate))
}
