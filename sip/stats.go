package sip

import (
	"context"
	"sync/atomic"
)

// TransactionStats is a snapshot of the active and lifetime client
// transaction counts, broken down by transaction type.
type TransactionStats struct {
	// InviteClientTransactions is the number of active INVITE client transactions.
	InviteClientTransactions int64
	// NonInviteClientTransactions is the number of active non-INVITE client transactions.
	NonInviteClientTransactions int64
	// InviteClientTransactionsTotal is the total number of created INVITE client transactions.
	InviteClientTransactionsTotal uint64
	// NonInviteClientTransactionsTotal is the total number of created non-INVITE client transactions.
	NonInviteClientTransactionsTotal uint64
}

// StatsRecorder tracks client transaction counts by hooking each
// transaction's state changes. It is safe for concurrent use.
type StatsRecorder struct {
	invTxs, ninvTxs           atomic.Int64
	invTxsTotal, ninvTxsTotal atomic.Uint64
}

// Report returns the current transaction statistics.
func (rcdr *StatsRecorder) Report() TransactionStats {
	return TransactionStats{
		InviteClientTransactions:         rcdr.invTxs.Load(),
		NonInviteClientTransactions:      rcdr.ninvTxs.Load(),
		InviteClientTransactionsTotal:    rcdr.invTxsTotal.Load(),
		NonInviteClientTransactionsTotal: rcdr.ninvTxsTotal.Load(),
	}
}

// HandleNewClientTransaction registers tx with the recorder, incrementing
// the active and total counts for its type and arranging for the active
// count to be decremented once tx terminates. Wire this as the Dispatcher's
// new-transaction hook.
func (rcdr *StatsRecorder) HandleNewClientTransaction(_ context.Context, tx ClientTransaction) {
	switch tx.Type() {
	case TransactionTypeClientInvite:
		rcdr.invTxs.Add(1)
		rcdr.invTxsTotal.Add(1)
	case TransactionTypeClientNonInvite:
		rcdr.ninvTxs.Add(1)
		rcdr.ninvTxsTotal.Add(1)
	}

	tx.OnStateChanged(func(_ context.Context, _, to TransactionState) {
		if to != TransactionStateTerminated {
			return
		}

		switch tx.Type() {
		case TransactionTypeClientInvite:
			rcdr.invTxs.Add(-1)
		case TransactionTypeClientNonInvite:
			rcdr.ninvTxs.Add(-1)
		}
	})
}
