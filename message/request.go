package message

import (
	"braces.dev/errtrace"

	"github.com/sipclient/txlayer/internal/errorutil"
)

// ErrInvalidMessage is returned by Validate when a message is missing one of
// the mandatory header fields a client transaction relies on.
const ErrInvalidMessage errorutil.Error = "invalid message"

// Request is an outbound or inbound SIP request. Once constructed it is
// treated as immutable by the transaction layer; use Clone to derive a
// modified copy.
type Request struct {
	method      RequestMethod
	requestURI  string
	via         Via
	from        Address
	to          Address
	callID      CallID
	cseq        CSeq
	maxForwards MaxForwards
	route       []Route
	body        []byte
}

// NewRequest builds a Request with the mandatory header fields set.
func NewRequest(method RequestMethod, requestURI string, via Via, from, to Address, callID CallID, cseq CSeq) *Request {
	return &Request{
		method:      method,
		requestURI:  requestURI,
		via:         via,
		from:        from,
		to:          to,
		callID:      callID,
		cseq:        cseq,
		maxForwards: DefaultMaxForwards,
	}
}

// Method returns the request method.
func (r *Request) Method() RequestMethod {
	if r == nil {
		return ""
	}
	return r.method
}

// RequestURI returns the Request-URI.
func (r *Request) RequestURI() string {
	if r == nil {
		return ""
	}
	return r.requestURI
}

// Via returns the Via header field.
func (r *Request) Via() Via {
	if r == nil {
		return nil
	}
	return r.via
}

// From returns the From header field.
func (r *Request) From() Address {
	if r == nil {
		return Address{}
	}
	return r.from
}

// To returns the To header field.
func (r *Request) To() Address {
	if r == nil {
		return Address{}
	}
	return r.to
}

// CallID returns the Call-ID header field.
func (r *Request) CallID() CallID {
	if r == nil {
		return ""
	}
	return r.callID
}

// CSeq returns the CSeq header field.
func (r *Request) CSeq() CSeq {
	if r == nil {
		return CSeq{}
	}
	return r.cseq
}

// MaxForwards returns the Max-Forwards header field.
func (r *Request) MaxForwards() MaxForwards {
	if r == nil {
		return 0
	}
	return r.maxForwards
}

// SetMaxForwards sets the Max-Forwards header field.
func (r *Request) SetMaxForwards(v MaxForwards) { r.maxForwards = v }

// Route returns the Route header field entries, if any.
func (r *Request) Route() []Route {
	if r == nil {
		return nil
	}
	return r.route
}

// SetRoute sets the Route header field entries.
func (r *Request) SetRoute(route []Route) { r.route = route }

// SetTo sets the To header field, used by the ACK builder to copy the tag
// from the response that ends the INVITE transaction.
func (r *Request) SetTo(to Address) { r.to = to }

// Body returns the message body.
func (r *Request) Body() []byte {
	if r == nil {
		return nil
	}
	return r.body
}

// SetBody sets the message body.
func (r *Request) SetBody(body []byte) { r.body = body }

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}

	clone := *r
	clone.via = r.via.Clone()
	clone.from = r.from.Clone()
	clone.to = r.to.Clone()
	if r.route != nil {
		clone.route = make([]Route, len(r.route))
		for i, rt := range r.route {
			clone.route[i] = Route{Address: rt.Address.Clone()}
		}
	}
	if r.body != nil {
		clone.body = append([]byte(nil), r.body...)
	}
	return &clone
}

// Validate checks that the mandatory header fields a client transaction
// relies on are present.
func (r *Request) Validate() error {
	if r == nil {
		return errtrace.Wrap(ErrInvalidMessage)
	}
	if r.method == "" || r.requestURI == "" || r.callID == "" || r.cseq.Method == "" {
		return errtrace.Wrap(ErrInvalidMessage)
	}
	if _, ok := r.via.Top(); !ok {
		return errtrace.Wrap(ErrInvalidMessage)
	}
	return nil
}

// IsValid reports whether Validate would succeed.
func (r *Request) IsValid() bool { return r.Validate() == nil }
