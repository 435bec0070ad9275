package sip

import "github.com/sipclient/txlayer/message"

// BuildACK builds the ACK for a non-2xx final response to req, per RFC 3261
// §17.1.1.3: same top Via hop, Call-ID, CSeq number, From, To and Route as
// the original INVITE, with the To tag set to the one res carries (the tag
// the remote added), and CSeq method rewritten to ACK.
//
// ACKs for 2xx responses are not built here: they establish a dialog and
// are the responsibility of the core, not the transaction layer.
func BuildACK(req *message.Request, res *message.Response) *message.Request {
	cseq := req.CSeq()
	cseq.Method = message.MethodAck

	var via message.Via
	if top, ok := req.Via().Top(); ok {
		via = message.Via{top}
	}

	ack := message.NewRequest(message.MethodAck, req.RequestURI(), via, req.From(), req.To(), req.CallID(), cseq)
	if tag, ok := res.To().Tag(); ok {
		ack.SetTo(req.To().WithTag(tag))
	}
	ack.SetMaxForwards(message.DefaultMaxForwards)
	ack.SetRoute(req.Route())
	return ack
}
