package sip

import (
	"context"
	"log/slog"

	"github.com/sipclient/txlayer/message"
)

// TransactionState is a state of one of the RFC 3261 §17.1 client
// transaction state machines.
type TransactionState string

const (
	TransactionStateCalling    TransactionState = "calling"
	TransactionStateTrying     TransactionState = "trying"
	TransactionStateProceeding TransactionState = "proceeding"
	TransactionStateCompleted  TransactionState = "completed"
	TransactionStateAccepted   TransactionState = "accepted"
	TransactionStateTerminated TransactionState = "terminated"
)

// TransactionType identifies which of the two client transaction state
// machines a transaction runs.
type TransactionType string

const (
	TransactionTypeClientInvite    TransactionType = "client_invite"
	TransactionTypeClientNonInvite TransactionType = "client_non_invite"
)

// TransactionStateHandler is called whenever a transaction transitions from
// one state to a different one. Internal transitions that leave the state
// unchanged (retransmissions, absorbed responses) are not reported.
type TransactionStateHandler = func(ctx context.Context, from, to TransactionState)

// internal FSM trigger names shared by both client transaction types.
const (
	txEvtRecv1xx    = "recv_1xx"
	txEvtRecv2xx    = "recv_2xx"
	txEvtRecv300699 = "recv_300-699"
	txEvtTranspErr  = "transport_error"
	txEvtTerminate  = "terminate"
)

// ClientTransaction is a running RFC 3261 §17.1 client transaction, either
// an [InviteClientTransaction] or a [NonInviteClientTransaction].
type ClientTransaction interface {
	slog.LogValuer

	// Key returns the transaction's identity: the branch of its request
	// plus its method.
	Key() ClientTransactionKey
	// Type reports which state machine the transaction runs.
	Type() TransactionType
	// State returns the transaction's current state.
	State() TransactionState
	// Context returns the transaction's context. It is canceled once the
	// transaction terminates.
	Context() context.Context
	// Request returns the request that created the transaction.
	Request() *message.Request
	// LastResponse returns the last response the transaction has
	// delivered to its core, or nil if none has arrived yet.
	LastResponse() *message.Response
	// MatchResponse reports whether res belongs to this transaction, per
	// the matching rules of RFC 3261 §17.1.3.
	MatchResponse(res *message.Response) error
	// RecvResponse delivers an inbound response matched to this
	// transaction into its state machine.
	RecvResponse(ctx context.Context, res *message.Response) error
	// OnStateChanged registers fn to be called on every state transition.
	// The returned function cancels the registration.
	OnStateChanged(fn TransactionStateHandler) (cancel func())
	// Terminate forces the transaction directly into the terminated
	// state. It is a no-op if the transaction has already terminated.
	Terminate(ctx context.Context) error
}
