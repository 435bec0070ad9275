// Package sip implements the client-side transaction layer of RFC 3261
// §17.1: the INVITE and non-INVITE client transaction state machines, their
// retransmission and timeout timers, a dispatcher that creates the right
// kind of transaction for a request, and a runtime that owns a registry of
// live transactions and pumps inbound events into them one at a time.
//
// Message framing, wire transport, and server transactions are out of
// scope; this package talks to them only through the ClientTransport and
// ClientTransactionCore interfaces.
package sip
