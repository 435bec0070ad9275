package sip

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"braces.dev/errtrace"

	"github.com/sipclient/txlayer/internal/log"
	"github.com/sipclient/txlayer/message"
)

const defRuntimeEventBuf = 16

// RuntimeOptions are the options for a [TransactionRuntime].
type RuntimeOptions struct {
	// Dispatcher starts and tracks client transactions. If nil, a
	// [NewDispatcher] with default options is used.
	Dispatcher *Dispatcher
	// EventBufferSize is the size of each transaction's inbound event
	// queue. If 0, 16 is used.
	EventBufferSize int
	// Log is the logger. If nil, [log.Default] is used.
	Log *slog.Logger
}

func (o *RuntimeOptions) dispatcher() *Dispatcher {
	if o == nil || o.Dispatcher == nil {
		return NewDispatcher(nil)
	}
	return o.Dispatcher
}

func (o *RuntimeOptions) eventBufSize() int {
	if o == nil || o.EventBufferSize <= 0 {
		return defRuntimeEventBuf
	}
	return o.EventBufferSize
}

func (o *RuntimeOptions) log() *slog.Logger {
	if o == nil || o.Log == nil {
		return log.Default()
	}
	return o.Log
}

// TransactionRuntime owns the pump that turns synchronous calls from the
// transport/registry goroutine into non-blocking enqueues onto a per
// transaction event queue, giving each transaction a single goroutine that
// delivers its inbound responses (timer callbacks still fire the machine from
// their own goroutines). qmuntal/stateless already
// serializes FireCtx against one machine; the pump exists so that a slow or
// reentrant core callback triggered by one transaction can never stall
// delivery of events to another.
type TransactionRuntime struct {
	disp    *Dispatcher
	bufSize int
	log     *slog.Logger

	mu    sync.Mutex
	pumps map[ClientTransactionKey]*transactPump

	closing   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewTransactionRuntime creates a new [TransactionRuntime].
// Options are optional, if nil, default values are used (see
// [RuntimeOptions]).
func NewTransactionRuntime(opts *RuntimeOptions) *TransactionRuntime {
	return &TransactionRuntime{
		disp:    opts.dispatcher(),
		bufSize: opts.eventBufSize(),
		log:     opts.log(),
		pumps:   make(map[ClientTransactionKey]*transactPump),
	}
}

type runtimeEventKind int

const (
	runtimeEventResponse runtimeEventKind = iota
	runtimeEventTerminate
)

type runtimeEvent struct {
	kind runtimeEventKind
	res  *message.Response
}

// transactPump is the single goroutine that delivers queued events to one
// transaction's state machine, in order. It is stopped via stop rather than
// by closing events, since enqueue may race a concurrent stop and closing a
// channel out from under a concurrent non-blocking send would panic.
type transactPump struct {
	tx     ClientTransaction
	events chan runtimeEvent
	stop   chan struct{}

	stopOnce sync.Once
}

func newTransactPump(tx ClientTransaction, bufSize int, log *slog.Logger) *transactPump {
	p := &transactPump{
		tx:     tx,
		events: make(chan runtimeEvent, bufSize),
		stop:   make(chan struct{}),
	}
	go p.run(log)
	return p
}

func (p *transactPump) run(log *slog.Logger) {
	for {
		select {
		case evt := <-p.events:
			ctx := p.tx.Context()
			if p.tx.State() == TransactionStateTerminated {
				continue
			}

			var err error
			switch evt.kind {
			case runtimeEventResponse:
				err = p.tx.RecvResponse(ctx, evt.res)
			case runtimeEventTerminate:
				err = p.tx.Terminate(ctx)
			}
			if err != nil {
				log.LogAttrs(ctx, slog.LevelDebug, "runtime pump event delivery failed",
					slog.Any("transaction", p.tx),
					slog.Any("error", err),
				)
			}
		case <-p.stop:
			return
		}
	}
}

// enqueue offers evt to the pump without blocking the caller. If the
// transaction's queue is full, the event is dropped and logged rather than
// stalling the caller.
func (p *transactPump) enqueue(ctx context.Context, log *slog.Logger, evt runtimeEvent) {
	select {
	case p.events <- evt:
	case <-p.stop:
	default:
		log.LogAttrs(ctx, slog.LevelWarn, "runtime pump queue full, dropping event",
			slog.Any("transaction", p.tx),
		)
	}
}

// halt stops the pump's goroutine. Safe to call more than once.
func (p *transactPump) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Start creates and starts a client transaction for req through the
// runtime's dispatcher, then gives it its own event pump.
func (rt *TransactionRuntime) Start(
	ctx context.Context,
	req *message.Request,
	tp ClientTransport,
	core ClientTransactionCore,
	opts *ClientTransactionOptions,
) (ClientTransaction, error) {
	if rt.closing.Load() {
		return nil, errtrace.Wrap(ErrRuntimeClosed)
	}

	tx, err := rt.disp.Start(ctx, req, tp, core, opts)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	pump := newTransactPump(tx, rt.bufSize, rt.log)

	rt.mu.Lock()
	rt.pumps[tx.Key()] = pump
	rt.mu.Unlock()

	tx.OnStateChanged(func(_ context.Context, _, to TransactionState) {
		if to != TransactionStateTerminated {
			return
		}
		rt.mu.Lock()
		delete(rt.pumps, tx.Key())
		rt.mu.Unlock()
		pump.halt()
	})

	return tx, nil
}

// Dispatch routes an inbound response to the pump of the transaction it
// matches, enqueueing it for serial, non-blocking delivery. Responses
// matching no live transaction, or arriving after [TransactionRuntime.Close],
// are discarded silently, per RFC 3261 §17.1.3.
func (rt *TransactionRuntime) Dispatch(ctx context.Context, res *message.Response) {
	if rt.closing.Load() {
		return
	}

	var key ClientTransactionKey
	key.fillFromResponse(res)

	rt.mu.Lock()
	pump, ok := rt.pumps[key]
	rt.mu.Unlock()
	if !ok {
		rt.log.LogAttrs(ctx, slog.LevelDebug, "discarding response matched to no live transaction",
			slog.Any("response", res),
		)
		return
	}

	pump.enqueue(ctx, rt.log, runtimeEvent{kind: runtimeEventResponse, res: res})
}

// Close terminates every transaction the runtime is tracking and stops
// their pumps. It is safe to call multiple times.
func (rt *TransactionRuntime) Close(ctx context.Context) error {
	rt.closing.Store(true)

	rt.closeOnce.Do(func() {
		rt.mu.Lock()
		pumps := make([]*transactPump, 0, len(rt.pumps))
		for _, p := range rt.pumps {
			pumps = append(pumps, p)
		}
		rt.mu.Unlock()

		for _, p := range pumps {
			p.enqueue(ctx, rt.log, runtimeEvent{kind: runtimeEventTerminate})
		}

		rt.closed.Store(true)
	})
	return nil
}
