// Package message provides the minimal SIP request/response data model
// consumed by the transaction layer: the handful of header values RFC 3261
// §17.1 actually inspects (Via, From, To, Call-ID, CSeq, Max-Forwards,
// Route), with no grammar parsing or wire (de)serialization. Producing and
// parsing the wire form of a message is the job of a separate codec, out of
// scope here.
package message
