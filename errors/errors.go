package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse     Phase = "parse"     // response preamble parsing
	PhaseInit      Phase = "init"      // one-time native library initialization
	PhaseConfigure Phase = "configure" // per-call native handle configuration
	PhasePerform   Phase = "perform"   // native transfer
	PhaseFetch     Phase = "fetch"     // script-engine fetch await
	PhaseDecode    Phase = "decode"    // response body decoding
	PhaseDispatch  Phase = "dispatch"  // request admission and pool dispatch
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedStatusLine Kind = "malformed_status_line"
	KindMalformedHeaderLine Kind = "malformed_header_line"
	KindTransport           Kind = "transport"
	KindRejected            Kind = "rejected"
	KindUnsupported         Kind = "unsupported"
	KindClosed              Kind = "closed"
)

// Error is the structured error type used throughout the facade
type Error struct {
	Value  any    // offending input, if any (e.g. the raw preamble line)
	Cause  error  // underlying error, if any
	Phase  Phase  // where it happened
	Kind   Kind   // what category of failure
	Code   int    // native library code, when the transport reported one
	Detail string // human-readable detail
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Value != nil {
		fmt.Fprintf(&b, " in %q", e.Value)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Convenience constructors for the facade's error vocabulary

// MalformedStatusLine reports a status line that did not split into
// protocol, status code, and reason phrase.
func MalformedStatusLine(line string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindMalformedStatusLine,
		Detail: "status line is not protocol/code/reason",
		Value:  line,
	}
}

// MalformedHeaderLine reports a header line that did not split into a
// name and a value on the first ": " occurrence.
func MalformedHeaderLine(line string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindMalformedHeaderLine,
		Detail: "header line is not name/value",
		Value:  line,
	}
}

// Native reports a non-success code from the wrapped native library,
// carrying the library's own diagnostic string.
func Native(phase Phase, code int, diag string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTransport,
		Code:   code,
		Detail: diag,
	}
}

// Transport reports a wrapped transport failure with an underlying cause.
func Transport(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTransport,
		Detail: "transport failure",
		Cause:  cause,
	}
}

// FetchRejected reports a rejected fetch promise, preserving the
// rejection as the cause.
func FetchRejected(cause error) *Error {
	return &Error{
		Phase:  PhaseFetch,
		Kind:   KindRejected,
		Detail: "fetch promise rejected",
		Cause:  cause,
	}
}

// BodyDecode reports a rejected body-read promise, preserving the
// rejection as the cause.
func BodyDecode(cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindRejected,
		Detail: "response body read rejected",
		Cause:  cause,
	}
}

// Unsupported reports a backend that cannot run in this environment.
func Unsupported(what string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Closed reports an operation attempted on a closed backend.
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}
