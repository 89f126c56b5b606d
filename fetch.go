package fetch

import "context"

// Method is the closed set of HTTP methods the facade accepts.
type Method uint8

const (
	MethodGet Method = iota
	MethodPost
	MethodPut
	MethodDelete
)

// String returns the wire form of the method.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// AllowsBody reports whether a request body is carried for this method.
// GET and DELETE requests never carry a body; backends drop one silently.
func (m Method) AllowsBody() bool {
	return m == MethodPost || m == MethodPut
}

// Headers maps a header name (case kept as received) to a single value.
// When a source reports multiple values for one name, the last value wins.
// Iteration order is not significant to consumers.
type Headers map[string]string

// Clone returns an independent copy. A nil receiver clones to an empty,
// non-nil map so callers can treat the result as always writable.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// StatusNoResponse is the sentinel status for "no response obtained". It is
// a value-level outcome, not an error: backends that can legitimately yield
// no native result return NoResponse() instead of failing.
const StatusNoResponse = -1

// Request is an immutable value object describing one HTTP request.
// Construct it with NewRequest and do not mutate it afterwards; backends
// treat every field as read-only.
type Request struct {
	URL     string
	Headers Headers
	Body    []byte
}

// NewRequest builds a Request, deep-copying headers and body so later
// mutation of the caller's values cannot leak into an issued request.
func NewRequest(url string, headers Headers, body []byte) Request {
	var b []byte
	if len(body) > 0 {
		b = make([]byte, len(body))
		copy(b, body)
	}
	return Request{URL: url, Headers: headers.Clone(), Body: b}
}

// Response is an immutable value object describing one HTTP response.
type Response struct {
	Status  int
	Headers Headers
	Body    []byte
}

// NewResponse builds a Response, deep-copying headers and body.
func NewResponse(status int, headers Headers, body []byte) Response {
	var b []byte
	if len(body) > 0 {
		b = make([]byte, len(body))
		copy(b, body)
	}
	return Response{Status: status, Headers: headers.Clone(), Body: b}
}

// NoResponse returns the sentinel response substituted when a native
// transport yields no result object: status -1, empty headers, empty body.
func NoResponse() Response {
	return Response{Status: StatusNoResponse, Headers: Headers{}, Body: []byte{}}
}

// Backend is one concrete transport implementation behind the facade.
//
// Request issues one HTTP exchange and blocks (or, on cooperative
// schedulers, suspends) until the wrapped transport completes. The returned
// response is independent of any backend state; concurrent calls do not
// interfere. Cancelling ctx aborts the in-flight native call where the
// transport supports it.
//
// Close releases the backend's concurrency context and aborts calls still
// in flight. Behavior of a second Close is unspecified.
type Backend interface {
	Request(ctx context.Context, method Method, req Request) (Response, error)
	Close() error
}
