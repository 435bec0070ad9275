package sip

import (
	"fmt"

	"braces.dev/errtrace"

	"github.com/sipclient/txlayer/internal/util"
	"github.com/sipclient/txlayer/message"
)

// ClientTransactionKey identifies a client transaction per RFC 3261
// §17.1.3: the branch parameter of the topmost Via header together with
// the request method (CANCEL shares its branch with the request it
// cancels but is a distinct transaction, hence the method is part of the
// key).
type ClientTransactionKey struct {
	Branch string
	Method message.RequestMethod
}

// GetClientTransactionKey computes the key a response or the original
// request would match against.
func GetClientTransactionKey(req *message.Request) ClientTransactionKey {
	var key ClientTransactionKey
	key.FillFromMessage(req)
	return key
}

// FillFromMessage populates k from req's topmost Via branch and method.
func (k *ClientTransactionKey) FillFromMessage(req *message.Request) {
	k.Method = req.Method()
	k.Branch = ""
	if top, ok := req.Via().Top(); ok {
		k.Branch, _ = top.Branch()
	}
}

// fillFromResponse populates k from res's topmost Via branch and CSeq
// method, the fields RFC 3261 §17.1.3 matches a response against.
func (k *ClientTransactionKey) fillFromResponse(res *message.Response) {
	k.Method = res.CSeq().Method
	k.Branch = ""
	if top, ok := res.Via().Top(); ok {
		k.Branch, _ = top.Branch()
	}
}

// IsZero reports whether k has neither a branch nor a method set.
func (k ClientTransactionKey) IsZero() bool {
	return k.Branch == "" && k.Method == ""
}

// IsValid reports whether k could identify a real transaction.
func (k ClientTransactionKey) IsValid() bool {
	return k.Branch != "" && k.Method.IsValid()
}

// Equal reports whether k and other identify the same transaction.
func (k ClientTransactionKey) Equal(other ClientTransactionKey) bool {
	return k.Branch == other.Branch && k.Method.Equal(other.Method)
}

func (k ClientTransactionKey) String() string {
	return fmt.Sprintf("%s;branch=%s", k.Method, k.Branch)
}

func (k ClientTransactionKey) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		_, _ = fmt.Fprint(f, k.String())
	default:
		_, _ = fmt.Fprintf(f, "%%!%c(sip.ClientTransactionKey=%s)", verb, k.String())
	}
}

// MarshalBinary encodes k as a varint-length-prefixed method followed by a
// varint-length-prefixed branch.
func (k ClientTransactionKey) MarshalBinary() ([]byte, error) {
	size := util.SizePrefixedString(string(k.Method)) + util.SizePrefixedString(k.Branch)
	buf := make([]byte, 0, size)
	buf = util.AppendPrefixedString(buf, string(k.Method))
	buf = util.AppendPrefixedString(buf, k.Branch)
	return buf, nil
}

// UnmarshalBinary decodes k from the format written by MarshalBinary.
func (k *ClientTransactionKey) UnmarshalBinary(data []byte) error {
	method, rest, err := util.ConsumePrefixedString(data)
	if err != nil {
		return errtrace.Wrap(fmt.Errorf("decoding method: %w", err))
	}
	branch, rest, err := util.ConsumePrefixedString(rest)
	if err != nil {
		return errtrace.Wrap(fmt.Errorf("decoding branch: %w", err))
	}
	if len(rest) != 0 {
		return errtrace.Wrap(fmt.Errorf("%d trailing bytes after key", len(rest)))
	}

	k.Method = message.RequestMethod(method)
	k.Branch = branch
	return nil
}
