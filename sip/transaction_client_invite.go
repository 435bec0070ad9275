package sip

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"braces.dev/errtrace"

	"github.com/sipclient/txlayer/internal/timer"
	"github.com/sipclient/txlayer/message"
)

// InviteClientTransaction is the RFC 3261 §17.1.1 client transaction state
// machine for INVITE requests: calling, proceeding, completed, accepted,
// terminated.
type InviteClientTransaction struct {
	*clientTransact

	tmrA atomic.Pointer[timer.Timer]
	tmrB atomic.Pointer[timer.Timer]
	tmrD atomic.Pointer[timer.Timer]
	tmrM atomic.Pointer[timer.Timer]

	ack atomic.Pointer[message.Request]
}

// NewInviteClientTransaction creates and starts an INVITE client
// transaction for req, sending it immediately over tp.
func NewInviteClientTransaction(
	ctx context.Context,
	req *message.Request,
	tp ClientTransport,
	core ClientTransactionCore,
	opts *ClientTransactionOptions,
) (*InviteClientTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError(err))
	}
	if !req.Method().Equal(message.MethodInvite) {
		return nil, errtrace.Wrap(NewInvalidArgumentError(ErrMethodNotAllowed))
	}

	tx := new(InviteClientTransaction)
	clnTx, err := newClientTransact(ctx, TransactionTypeClientInvite, tx, req, tp, core, opts)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	tx.clientTransact = clnTx

	if err := tx.initFSM(TransactionStateCalling); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if err := tx.actCalling(tx.ctx); err != nil {
		return nil, errtrace.Wrap(err)
	}
	return tx, nil
}

const (
	txEvtTimerA = "timer_a"
	txEvtTimerB = "timer_b"
	txEvtTimerD = "timer_d"
	txEvtTimerM = "timer_m"
)

func (tx *InviteClientTransaction) initFSM(start TransactionState) error {
	if err := tx.clientTransact.initFSM(start); err != nil {
		return errtrace.Wrap(err)
	}

	tx.fsm.Configure(TransactionStateCalling).
		InternalTransition(txEvtTimerA, tx.actSendReq).
		Permit(txEvtRecv1xx, TransactionStateProceeding).
		Permit(txEvtRecv2xx, TransactionStateAccepted).
		Permit(txEvtRecv300699, TransactionStateCompleted).
		Permit(txEvtTimerB, TransactionStateTerminated).
		Permit(txEvtTranspErr, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateProceeding).
		OnEntry(tx.actProceeding).
		OnEntryFrom(txEvtRecv1xx, tx.actPass1xx).
		InternalTransition(txEvtRecv1xx, tx.actPass1xx).
		Permit(txEvtRecv2xx, TransactionStateAccepted).
		Permit(txEvtRecv300699, TransactionStateCompleted).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateCompleted).
		OnEntry(tx.actCompleted).
		OnEntryFrom(txEvtRecv300699, tx.actPassFinalSendAck).
		InternalTransition(txEvtRecv300699, tx.actSendAck).
		Permit(txEvtTimerD, TransactionStateTerminated).
		Permit(txEvtTranspErr, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateAccepted).
		OnEntry(tx.actAccepted).
		OnEntryFrom(txEvtRecv2xx, tx.actPassFinal).
		InternalTransition(txEvtRecv2xx, tx.actPassFinal).
		Permit(txEvtTimerM, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateTerminated).
		OnEntryFrom(txEvtTimerB, tx.actTimedOut).
		OnEntryFrom(txEvtTranspErr, tx.actTranspErr).
		OnEntry(tx.actTerminated)

	return nil
}

func (tx *InviteClientTransaction) actPassFinalSendAck(ctx context.Context, args ...any) error {
	tx.actPassFinal(ctx, args...) //nolint:errcheck
	tx.actSendAck(ctx, args...)   //nolint:errcheck
	return nil
}

func (tx *InviteClientTransaction) actSendAck(ctx context.Context, _ ...any) error {
	ack := tx.ack.Load()
	if ack == nil {
		ack = BuildACK(tx.req, tx.LastResponse())
		tx.ack.Store(ack)
	}

	tx.log.LogAttrs(ctx, slog.LevelDebug, "send request", slog.Any("transaction", tx.impl))
	tx.sendReq(ctx, ack) //nolint:errcheck
	return nil
}

func (tx *InviteClientTransaction) actCalling(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction calling", slog.Any("transaction", tx.impl))

	if err := tx.sendReq(ctx, tx.req); err != nil {
		return errtrace.Wrap(err)
	}

	if !tx.tp.Reliable() {
		tmrA := timer.AfterFunc(tx.timings.TimeA(), tx.onTimerA)
		tx.tmrA.Store(tmrA)
		tx.log.LogAttrs(ctx, slog.LevelDebug, "timer A started", slog.Any("transaction", tx.impl))
	}

	tmrB := timer.AfterFunc(tx.timings.TimeB(), tx.onTimerB)
	tx.tmrB.Store(tmrB)
	tx.log.LogAttrs(ctx, slog.LevelDebug, "timer B started", slog.Any("transaction", tx.impl))

	return nil
}

func (tx *InviteClientTransaction) onTimerA() {
	if tx.State() != TransactionStateCalling {
		tx.tmrA.Store(nil)
		return
	}

	if err := tx.fsm.FireCtx(tx.ctx, txEvtTimerA); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerA, tx.State(), err))
	}

	if tmr := tx.tmrA.Load(); tmr != nil {
		tmr.Reset(2 * tmr.Duration())
	}
}

func (tx *InviteClientTransaction) onTimerB() {
	tx.tmrB.Store(nil)

	if tx.State() != TransactionStateCalling {
		return
	}

	if err := tx.fsm.FireCtx(tx.ctx, txEvtTimerB); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerB, tx.State(), err))
	}
}

func (tx *InviteClientTransaction) actProceeding(ctx context.Context, args ...any) error {
	tx.clientTransact.actProceeding(ctx, args...) //nolint:errcheck
	tx.stopTimersAB(ctx)
	return nil
}

func (tx *InviteClientTransaction) actCompleted(ctx context.Context, args ...any) error {
	tx.clientTransact.actCompleted(ctx, args...) //nolint:errcheck
	tx.stopTimersAB(ctx)

	if tx.tp.Reliable() {
		return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtTerminate))
	}

	tmrD := timer.AfterFunc(tx.timings.TimeD(), tx.onTimerD)
	tx.tmrD.Store(tmrD)
	tx.log.LogAttrs(ctx, slog.LevelDebug, "timer D started", slog.Any("transaction", tx.impl))

	return nil
}

func (tx *InviteClientTransaction) onTimerD() {
	tx.tmrD.Store(nil)

	if tx.State() != TransactionStateCompleted {
		return
	}

	if err := tx.fsm.FireCtx(tx.ctx, txEvtTimerD); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerD, tx.State(), err))
	}
}

func (tx *InviteClientTransaction) actAccepted(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction accepted", slog.Any("transaction", tx.impl))
	tx.stopTimersAB(ctx)

	if tx.tp.Reliable() {
		return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtTerminate))
	}

	tmrM := timer.AfterFunc(tx.timings.TimeM(), tx.onTimerM)
	tx.tmrM.Store(tmrM)
	tx.log.LogAttrs(ctx, slog.LevelDebug, "timer M started", slog.Any("transaction", tx.impl))

	return nil
}

func (tx *InviteClientTransaction) onTimerM() {
	tx.tmrM.Store(nil)

	if tx.State() != TransactionStateAccepted {
		return
	}

	if err := tx.fsm.FireCtx(tx.ctx, txEvtTimerM); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerM, tx.State(), err))
	}
}

func (tx *InviteClientTransaction) actTerminated(ctx context.Context, args ...any) error {
	tx.clientTransact.actTerminated(ctx, args...) //nolint:errcheck

	tx.stopTimersAB(ctx)
	if tmr := tx.tmrD.Swap(nil); tmr != nil {
		tmr.Stop()
	}
	if tmr := tx.tmrM.Swap(nil); tmr != nil {
		tmr.Stop()
	}

	return nil
}

func (tx *InviteClientTransaction) stopTimersAB(ctx context.Context) {
	if tmr := tx.tmrA.Swap(nil); tmr != nil && tmr.Stop() {
		tx.log.LogAttrs(ctx, slog.LevelDebug, "timer A stopped", slog.Any("transaction", tx.impl))
	}
	if tmr := tx.tmrB.Swap(nil); tmr != nil && tmr.Stop() {
		tx.log.LogAttrs(ctx, slog.LevelDebug, "timer B stopped", slog.Any("transaction", tx.impl))
	}
}
