package sip

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"braces.dev/errtrace"

	"github.com/sipclient/txlayer/internal/timer"
	"github.com/sipclient/txlayer/message"
)

// NonInviteClientTransaction is the RFC 3261 §17.1.2 client transaction
// state machine for every request except INVITE and ACK: trying,
// proceeding, completed, terminated.
type NonInviteClientTransaction struct {
	*clientTransact

	tmrE atomic.Pointer[timer.Timer]
	tmrF atomic.Pointer[timer.Timer]
	tmrK atomic.Pointer[timer.Timer]
}

// NewNonInviteClientTransaction creates and starts a non-INVITE client
// transaction for req, sending it immediately over tp.
func NewNonInviteClientTransaction(
	ctx context.Context,
	req *message.Request,
	tp ClientTransport,
	core ClientTransactionCore,
	opts *ClientTransactionOptions,
) (*NonInviteClientTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError(err))
	}
	if mtd := req.Method(); mtd.Equal(message.MethodInvite) || mtd.Equal(message.MethodAck) {
		return nil, errtrace.Wrap(NewInvalidArgumentError(ErrMethodNotAllowed))
	}

	tx := new(NonInviteClientTransaction)
	clnTx, err := newClientTransact(ctx, TransactionTypeClientNonInvite, tx, req, tp, core, opts)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	tx.clientTransact = clnTx

	if err := tx.initFSM(TransactionStateTrying); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if err := tx.actTrying(tx.ctx); err != nil {
		return nil, errtrace.Wrap(err)
	}
	return tx, nil
}

const (
	txEvtTimerE = "timer_e"
	txEvtTimerF = "timer_f"
	txEvtTimerK = "timer_k"
)

func (tx *NonInviteClientTransaction) initFSM(start TransactionState) error {
	if err := tx.clientTransact.initFSM(start); err != nil {
		return errtrace.Wrap(err)
	}

	tx.fsm.Configure(TransactionStateTrying).
		InternalTransition(txEvtTimerE, tx.actSendReq).
		Permit(txEvtRecv1xx, TransactionStateProceeding).
		Permit(txEvtRecv2xx, TransactionStateCompleted).
		Permit(txEvtRecv300699, TransactionStateCompleted).
		Permit(txEvtTimerF, TransactionStateTerminated).
		Permit(txEvtTranspErr, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateProceeding).
		OnEntry(tx.actProceeding).
		OnEntryFrom(txEvtRecv1xx, tx.actPass1xx).
		InternalTransition(txEvtTimerE, tx.actSendReq).
		InternalTransition(txEvtRecv1xx, tx.actPass1xx).
		Permit(txEvtRecv2xx, TransactionStateCompleted).
		Permit(txEvtRecv300699, TransactionStateCompleted).
		Permit(txEvtTimerF, TransactionStateTerminated).
		Permit(txEvtTranspErr, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateCompleted).
		OnEntry(tx.actCompleted).
		OnEntryFrom(txEvtRecv2xx, tx.actPassFinal).
		OnEntryFrom(txEvtRecv300699, tx.actPassFinal).
		Permit(txEvtTimerK, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateTerminated).
		OnEntryFrom(txEvtTimerF, tx.actTimedOut).
		OnEntryFrom(txEvtTranspErr, tx.actTranspErr).
		OnEntry(tx.actTerminated).
		InternalTransition(txEvtTerminate, tx.actNoop)

	return nil
}

func (tx *NonInviteClientTransaction) actTrying(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction trying", slog.Any("transaction", tx.impl))

	if err := tx.sendReq(ctx, tx.req); err != nil {
		return errtrace.Wrap(err)
	}

	if !tx.tp.Reliable() {
		tmrE := timer.AfterFunc(tx.timings.TimeE(), tx.timerEHdlr(ctx))
		tx.tmrE.Store(tmrE)
		tx.log.LogAttrs(ctx, slog.LevelDebug, "timer E started", slog.Any("transaction", tx.impl))
	}

	tmrF := timer.AfterFunc(tx.timings.TimeF(), tx.timerFHdlr(ctx))
	tx.tmrF.Store(tmrF)
	tx.log.LogAttrs(ctx, slog.LevelDebug, "timer F started", slog.Any("transaction", tx.impl))

	return nil
}

func (tx *NonInviteClientTransaction) timerEHdlr(ctx context.Context) func() {
	return func() {
		if tx.State() != TransactionStateTrying && tx.State() != TransactionStateProceeding {
			tx.tmrE.Store(nil)
			return
		}

		if err := tx.fsm.FireCtx(ctx, txEvtTimerE); err != nil {
			panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerE, tx.State(), err))
		}

		if tmr := tx.tmrE.Load(); tmr != nil {
			var dur time.Duration
			if tx.State() == TransactionStateTrying {
				dur = min(2*tmr.Duration(), tx.timings.T2())
			} else {
				dur = tx.timings.T2()
			}
			tmr.Reset(dur)
		}
	}
}

func (tx *NonInviteClientTransaction) timerFHdlr(ctx context.Context) func() {
	return func() {
		tx.tmrF.Store(nil)

		if tx.State() != TransactionStateTrying && tx.State() != TransactionStateProceeding {
			return
		}

		if err := tx.fsm.FireCtx(ctx, txEvtTimerF); err != nil {
			panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerF, tx.State(), err))
		}
	}
}

func (tx *NonInviteClientTransaction) actCompleted(ctx context.Context, args ...any) error {
	tx.clientTransact.actCompleted(ctx, args...) //nolint:errcheck
	tx.stopTimersEF(ctx)

	if tx.tp.Reliable() {
		return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtTerminate))
	}

	tmrK := timer.AfterFunc(tx.timings.TimeK(), tx.timerKHdlr(ctx))
	tx.tmrK.Store(tmrK)
	tx.log.LogAttrs(ctx, slog.LevelDebug, "timer K started", slog.Any("transaction", tx.impl))

	return nil
}

func (tx *NonInviteClientTransaction) timerKHdlr(ctx context.Context) func() {
	return func() {
		tx.tmrK.Store(nil)

		if tx.State() != TransactionStateCompleted {
			return
		}

		if err := tx.fsm.FireCtx(ctx, txEvtTimerK); err != nil {
			panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerK, tx.State(), err))
		}
	}
}

func (tx *NonInviteClientTransaction) actTerminated(ctx context.Context, args ...any) error {
	tx.clientTransact.actTerminated(ctx, args...) //nolint:errcheck

	tx.stopTimersEF(ctx)
	if tmr := tx.tmrK.Swap(nil); tmr != nil {
		tmr.Stop()
	}

	return nil
}

func (tx *NonInviteClientTransaction) stopTimersEF(ctx context.Context) {
	if tmr := tx.tmrE.Swap(nil); tmr != nil && tmr.Stop() {
		tx.log.LogAttrs(ctx, slog.LevelDebug, "timer E stopped", slog.Any("transaction", tx.impl))
	}
	if tmr := tx.tmrF.Swap(nil); tmr != nil && tmr.Stop() {
		tx.log.LogAttrs(ctx, slog.LevelDebug, "timer F stopped", slog.Any("transaction", tx.impl))
	}
}
