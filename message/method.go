package message

import "github.com/sipclient/txlayer/internal/types"

// RequestMethod identifies a SIP request method.
type RequestMethod = types.RequestMethod

// Well-known request methods, re-exported from internal/types for callers
// that only need the message package.
const (
	MethodInvite    = types.RequestMethodInvite
	MethodAck       = types.RequestMethodAck
	MethodBye       = types.RequestMethodBye
	MethodCancel    = types.RequestMethodCancel
	MethodInfo      = types.RequestMethodInfo
	MethodMessage   = types.RequestMethodMessage
	MethodNotify    = types.RequestMethodNotify
	MethodOptions   = types.RequestMethodOptions
	MethodPrack     = types.RequestMethodPrack
	MethodPublish   = types.RequestMethodPublish
	MethodRefer     = types.RequestMethodRefer
	MethodRegister  = types.RequestMethodRegister
	MethodSubscribe = types.RequestMethodSubscribe
	MethodUpdate    = types.RequestMethodUpdate
)
