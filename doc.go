// Package fetch provides a small cross-platform HTTP client facade: one
// common request/response model served by interchangeable transport
// backends. Each backend marshals the generic request into whatever its
// underlying transport wants and marshals the native result back; all
// substantive HTTP behavior (TLS, connection reuse, redirects, timeouts)
// belongs to the wrapped transport, not to this layer.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	fetch/           Root package with the data model and Backend interface
//	├── preamble/    Raw status-line + header-block parser
//	├── errors/      Structured error types for debugging
//	├── resource/    Opaque handle table for native callback state
//	├── nethttp/     Backend over the standard library net/http stack
//	├── fetchjs/     Backend over the JavaScript fetch API (GOOS=js)
//	├── nativecurl/  Backend over libcurl via a foreign-function bridge
//	└── fasthttpx/   Backend over valyala/fasthttp
//
// # Quick Start
//
// Build a request and send it through a backend:
//
//	be := nethttp.New()
//	defer be.Close()
//
//	req := fetch.NewRequest("https://example.com/items",
//	    fetch.Headers{"Accept": "application/json"}, nil)
//
//	resp, err := be.Request(ctx, fetch.MethodGet, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Status, len(resp.Body))
//
// # Semantics shared by all backends
//
// Requests and responses are plain value objects: constructed once, copied
// on construction, never mutated afterwards. Headers are a single-valued
// map; when a transport reports multiple values for one name the last value
// wins. Bodies are fully buffered; no streaming is exposed. No backend
// retries, redirects, or times out on its own.
//
// # Thread Safety
//
// Backends are safe for concurrent use. Concurrent calls on one backend
// share no mutable state and return independent responses. Close aborts
// whatever a backend still has in flight; calling Request after Close
// fails with a closed error.
package fetch
