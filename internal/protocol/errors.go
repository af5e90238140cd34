package protocol

import "errors"

var (
	ErrTransportUnavailable = errors.New("protocol: transport unavailable")
	ErrMalformedFrame       = errors.New("protocol: malformed frame")
	ErrTooShort             = errors.New("protocol: frame not longer than header")
	ErrUnknownMessageType   = errors.New("protocol: unknown message type")
	ErrOutOfBoundsFragment  = errors.New("protocol: fragment outside image bounds")
	ErrPayloadTooLarge      = errors.New("protocol: payload too large")
)
