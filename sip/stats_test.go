package sip_test

import (
	"context"
	"testing"

	"github.com/sipclient/txlayer/sip"
)

type stubClientTransaction struct {
	sip.ClientTransaction
	typ           sip.TransactionType
	stateHandlers []sip.TransactionStateHandler
}

func (tx *stubClientTransaction) Type() sip.TransactionType { return tx.typ }

func (tx *stubClientTransaction) OnStateChanged(fn sip.TransactionStateHandler) (cancel func()) {
	tx.stateHandlers = append(tx.stateHandlers, fn)
	return func() {}
}

func (tx *stubClientTransaction) fireTerminated(ctx context.Context) {
	for _, fn := range tx.stateHandlers {
		fn(ctx, sip.TransactionStateCompleted, sip.TransactionStateTerminated)
	}
}

func TestStatsRecorder_ReportTransactionStats(t *testing.T) {
	t.Parallel()

	rcdr := &sip.StatsRecorder{}

	invTx := &stubClientTransaction{typ: sip.TransactionTypeClientInvite}
	ninvTx := &stubClientTransaction{typ: sip.TransactionTypeClientNonInvite}

	rcdr.HandleNewClientTransaction(t.Context(), invTx)
	rcdr.HandleNewClientTransaction(t.Context(), ninvTx)

	report := rcdr.Report()
	if report.InviteClientTransactions != 1 {
		t.Fatalf("InviteClientTransactions = %d, want 1", report.InviteClientTransactions)
	}
	if report.NonInviteClientTransactions != 1 {
		t.Fatalf("NonInviteClientTransactions = %d, want 1", report.NonInviteClientTransactions)
	}
	if report.InviteClientTransactionsTotal != 1 {
		t.Fatalf("InviteClientTransactionsTotal = %d, want 1", report.InviteClientTransactionsTotal)
	}
	if report.NonInviteClientTransactionsTotal != 1 {
		t.Fatalf("NonInviteClientTransactionsTotal = %d, want 1", report.NonInviteClientTransactionsTotal)
	}

	invTx.fireTerminated(t.Context())
	ninvTx.fireTerminated(t.Context())

	final := rcdr.Report()
	if final.InviteClientTransactions != 0 {
		t.Fatalf("InviteClientTransactions after terminate = %d, want 0", final.InviteClientTransactions)
	}
	if final.NonInviteClientTransactions != 0 {
		t.Fatalf("NonInviteClientTransactions after terminate = %d, want 0", final.NonInviteClientTransactions)
	}
	if final.InviteClientTransactionsTotal != 1 {
		t.Fatalf("InviteClientTransactionsTotal after terminate = %d, want 1", final.InviteClientTransactionsTotal)
	}
	if final.NonInviteClientTransactionsTotal != 1 {
		t.Fatalf("NonInviteClientTransactionsTotal after terminate = %d, want 1", final.NonInviteClientTransactionsTotal)
	}
}

func TestStatsRecorder_IgnoresNonTerminatedTransitions(t *testing.T) {
	t.Parallel()

	rcdr := &sip.StatsRecorder{}
	tx := &stubClientTransaction{typ: sip.TransactionTypeClientInvite}
	rcdr.HandleNewClientTransaction(t.Context(), tx)

	for _, fn := range tx.stateHandlers {
		fn(t.Context(), sip.TransactionStateCalling, sip.TransactionStateProceeding)
	}

	report := rcdr.Report()
	if report.InviteClientTransactions != 1 {
		t.Fatalf("InviteClientTransactions = %d, want 1", report.InviteClientTransactions)
	}
}
