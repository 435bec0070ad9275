package sip

import (
	"context"

	"github.com/sipclient/txlayer/message"
)

// ClientTransactionCore is the application-facing side of a client
// transaction: the collaborator that gets told about responses, timeouts,
// and transport errors as they happen. Implementations typically forward
// these into dialog or user-agent logic; the transaction itself only knows
// how to drive the state machine.
type ClientTransactionCore interface {
	// OnProvisionalResponse is called for every 1xx response received in the
	// calling/trying or proceeding state.
	OnProvisionalResponse(ctx context.Context, res *message.Response)
	// OnResponse is called for the final response that ends the calling,
	// trying or proceeding state (and, for INVITE transactions, every 2xx
	// retransmission delivered while accepted). A retransmitted 300-699
	// response received while an INVITE transaction is completed only
	// re-sends the ACK and is not passed here.
	OnResponse(ctx context.Context, res *message.Response)
	// OnTransportError is called when the transport failed to send a
	// request or retransmission. The transaction terminates immediately
	// afterward.
	OnTransportError(ctx context.Context, err error)
	// OnTimeout is called when the transaction gives up waiting for a
	// final response (Timer B or Timer F expired). The transaction
	// terminates immediately afterward.
	OnTimeout(ctx context.Context)
	// OnTerminated is called exactly once, when the transaction reaches
	// the terminated state. normal reports whether termination followed
	// the normal completion path rather than a timeout or transport
	// error.
	OnTerminated(ctx context.Context, normal bool)
}
