package sip

import (
	"context"
	"time"

	"github.com/sipclient/txlayer/message"
)

// msgSendTimeout is the default timeout applied to a send when
// SendRequestOptions carries no explicit one.
const msgSendTimeout = time.Minute

// ClientTransport is the collaborator a client transaction uses to put
// requests on the wire. Resolution of the next-hop address and the actual
// framing/serialization of the message are its concern, not the
// transaction's.
type ClientTransport interface {
	// SendRequest sends req, blocking until it has been handed off to the
	// network or opts' timeout elapses.
	SendRequest(ctx context.Context, req *message.Request, opts *SendRequestOptions) error
	// Reliable reports whether the transport guarantees delivery, eliding
	// RFC 3261 §17.1's retransmission timers (A/E) and the unreliable-only
	// wait timers (D/K) when true.
	Reliable() bool
}

// SendRequestOptions are options for sending a request.
type SendRequestOptions struct {
	// Timeout is the timeout for the send operation. If zero, a default of
	// one minute is used.
	Timeout time.Duration
}

func (o *SendRequestOptions) timeout() time.Duration {
	if o == nil || o.Timeout == 0 {
		return msgSendTimeout
	}
	return o.Timeout
}

func cloneSendReqOpts(opts *SendRequestOptions) *SendRequestOptions {
	if opts == nil {
		return nil
	}
	clone := *opts
	return &clone
}

// IsReliableTransport reports whether tp guarantees delivery.
func IsReliableTransport(tp ClientTransport) bool {
	return tp != nil && tp.Reliable()
}
