package message

import "github.com/sipclient/txlayer/internal/types"

// ResponseStatus is a SIP response status code.
type ResponseStatus = types.ResponseStatus

// Well-known response statuses relevant to client transaction processing.
const (
	StatusTrying               = types.ResponseStatusTrying
	StatusRinging              = types.ResponseStatusRinging
	StatusSessionProgress      = types.ResponseStatusSessionProgress
	StatusOK                   = types.ResponseStatusOK
	StatusRequestTimeout       = types.ResponseStatusRequestTimeout
	StatusServerInternalError  = types.ResponseStatusServerInternalError
	StatusRequestTerminated    = types.ResponseStatusRequestTerminated
)
