package fasthttpx

import (
	"context"
	"sync/atomic"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
)

// Backend wraps a fasthttp.Client. Per-call request and response objects
// are acquired from fasthttp's pools and released on every exit path.
type Backend struct {
	client *fasthttp.Client
	closed atomic.Bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithClient substitutes the fasthttp.Client used for exchanges.
func WithClient(c *fasthttp.Client) Option {
	return func(b *Backend) { b.client = c }
}

// New creates a Backend over a default fasthttp.Client.
func New(opts ...Option) *Backend {
	b := &Backend{client: &fasthttp.Client{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Request performs one blocking exchange. A ctx deadline is honored via
// the client's deadline form; cancellation is checked at admission
// (fasthttp has no mid-flight cancellation hook).
func (b *Backend) Request(ctx context.Context, method fetch.Method, req fetch.Request) (fetch.Response, error) {
	if b.closed.Load() {
		return fetch.Response{}, errors.Closed("fasthttpx backend")
	}
	if err := ctx.Err(); err != nil {
		return fetch.Response{}, errors.Transport(errors.PhaseDispatch, err)
	}

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.Header.DisableNormalizing()
	fresp.Header.DisableNormalizing()

	freq.Header.SetMethod(method.String())
	freq.SetRequestURI(req.URL)
	for k, v := range req.Headers {
		freq.Header.Set(k, v)
	}
	if method.AllowsBody() && len(req.Body) > 0 {
		freq.SetBody(req.Body)
	}

	fetch.Logger().Debug("fasthttpx dispatch",
		zap.String("method", method.String()),
		zap.String("url", req.URL))

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = b.client.DoDeadline(freq, fresp, deadline)
	} else {
		err = b.client.Do(freq, fresp)
	}
	if err != nil {
		return fetch.Response{}, errors.Transport(errors.PhasePerform, err)
	}

	// Response headers arrive via the native header-iteration capability;
	// flatten into the single-valued map, last value wins.
	h := fetch.Headers{}
	fresp.Header.VisitAll(func(key, value []byte) {
		h[string(key)] = string(value)
	})

	// fresp.Body() is only valid until release; copy out.
	body := append([]byte(nil), fresp.Body()...)

	return fetch.Response{Status: fresp.StatusCode(), Headers: h, Body: body}, nil
}

// Close marks the backend closed and drops idle connections.
func (b *Backend) Close() error {
	b.closed.Store(true)
	b.client.CloseIdleConnections()
	return nil
}
