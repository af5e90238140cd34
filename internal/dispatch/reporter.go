package dispatch

import (
	"errors"

	"github.com/danmuck/grassroots/internal/protocol"
)

type IdentityKind string

const (
	IdentityCamera IdentityKind = "camera"
	IdentitySensor IdentityKind = "sensor"
)

// Diagnostic describes a message or frame that was dropped.
type Diagnostic struct {
	Reason string
	Header protocol.Header
	Err    error
}

// Reporter receives side effects visible to collaborators.
type Reporter interface {
	// IdentityObserved is called once per identity, in discovery order.
	IdentityObserved(kind IdentityKind, id string, autoSelected bool)
	// Notice is called for every type 3 text, readings included.
	Notice(h protocol.Header, text string)
	Diagnostic(d Diagnostic)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) IdentityObserved(IdentityKind, string, bool) {}
func (NopReporter) Notice(protocol.Header, string)              {}
func (NopReporter) Diagnostic(Diagnostic)                       {}

// Diagnostic reasons, also used as metric labels.
const (
	ReasonMalformed    = "malformed"
	ReasonUnknownType  = "unknown_type"
	ReasonOutOfBounds  = "out_of_bounds"
	ReasonNonNumeric   = "non_numeric"
	ReasonLogFailed    = "log_failed"
	ReasonFragmentFail = "fragment_failed"
)

// ReasonFor maps a pipeline error to its diagnostic reason.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownMessageType):
		return ReasonUnknownType
	case errors.Is(err, protocol.ErrOutOfBoundsFragment):
		return ReasonOutOfBounds
	case errors.Is(err, protocol.ErrMalformedFrame):
		return ReasonMalformed
	default:
		return ReasonFragmentFail
	}
}
