package message

import "braces.dev/errtrace"

// Response is an inbound or outbound SIP response. Once constructed it is
// treated as immutable by the transaction layer.
type Response struct {
	status ResponseStatus
	reason string
	via    Via
	from   Address
	to     Address
	callID CallID
	cseq   CSeq
	body   []byte
}

// NewResponse builds a Response with the mandatory header fields set.
func NewResponse(status ResponseStatus, reason string, via Via, from, to Address, callID CallID, cseq CSeq) *Response {
	return &Response{
		status: status,
		reason: reason,
		via:    via,
		from:   from,
		to:     to,
		callID: callID,
		cseq:   cseq,
	}
}

// Status returns the response status code.
func (r *Response) Status() ResponseStatus {
	if r == nil {
		return 0
	}
	return r.status
}

// Reason returns the response reason phrase.
func (r *Response) Reason() string {
	if r == nil {
		return ""
	}
	return r.reason
}

// Via returns the Via header field.
func (r *Response) Via() Via {
	if r == nil {
		return nil
	}
	return r.via
}

// From returns the From header field.
func (r *Response) From() Address {
	if r == nil {
		return Address{}
	}
	return r.from
}

// To returns the To header field.
func (r *Response) To() Address {
	if r == nil {
		return Address{}
	}
	return r.to
}

// CallID returns the Call-ID header field.
func (r *Response) CallID() CallID {
	if r == nil {
		return ""
	}
	return r.callID
}

// CSeq returns the CSeq header field.
func (r *Response) CSeq() CSeq {
	if r == nil {
		return CSeq{}
	}
	return r.cseq
}

// Body returns the message body.
func (r *Response) Body() []byte {
	if r == nil {
		return nil
	}
	return r.body
}

// SetBody sets the message body.
func (r *Response) SetBody(body []byte) { r.body = body }

// IsProvisional reports whether the status is 1xx.
func (r *Response) IsProvisional() bool { return r.Status().IsProvisional() }

// IsSuccessful reports whether the status is 2xx.
func (r *Response) IsSuccessful() bool { return r.Status().IsSuccessful() }

// IsFinal reports whether the status is in the 200-699 range.
func (r *Response) IsFinal() bool { return r.Status().IsFinal() }

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}

	clone := *r
	clone.via = r.via.Clone()
	clone.from = r.from.Clone()
	clone.to = r.to.Clone()
	if r.body != nil {
		clone.body = append([]byte(nil), r.body...)
	}
	return &clone
}

// Validate checks that the mandatory header fields a client transaction
// relies on are present.
func (r *Response) Validate() error {
	if r == nil {
		return errtrace.Wrap(ErrInvalidMessage)
	}
	if !r.status.IsValid() || r.callID == "" || r.cseq.Method == "" {
		return errtrace.Wrap(ErrInvalidMessage)
	}
	if _, ok := r.via.Top(); !ok {
		return errtrace.Wrap(ErrInvalidMessage)
	}
	return nil
}

// IsValid reports whether Validate would succeed.
func (r *Response) IsValid() bool { return r.Validate() == nil }
