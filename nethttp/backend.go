package nethttp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
)

// DefaultWorkers is the size of the dispatch pool when no option overrides it.
const DefaultWorkers = 8

// Doer executes one HTTP exchange. *http.Client satisfies it; tests and
// callers may inject any implementation.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Backend wraps the standard library HTTP stack. Calls are admitted
// through a fixed-size worker pool; each Request blocks its caller until
// the underlying exchange completes or is cancelled.
type Backend struct {
	doer   Doer
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Backend.
type Option func(*Backend)

// WithClient substitutes the *http.Client used for exchanges.
func WithClient(c *http.Client) Option {
	return func(b *Backend) { b.doer = c }
}

// WithDoer substitutes the exchange implementation entirely.
func WithDoer(d Doer) Option {
	return func(b *Backend) { b.doer = d }
}

// WithWorkers sets the dispatch pool size. Values below one fall back to
// DefaultWorkers.
func WithWorkers(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.sem = make(chan struct{}, n)
		}
	}
}

// New creates a Backend over http.DefaultClient-equivalent settings.
func New(opts ...Option) *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		doer:   &http.Client{},
		sem:    make(chan struct{}, DefaultWorkers),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type outcome struct {
	resp fetch.Response
	err  error
}

// Request dispatches one exchange through the pool and waits for it.
//
// The native call runs with a context derived from both ctx and the
// backend's own context, so cancelling ctx aborts this call and Close
// aborts every call still in flight. When the underlying transport yields
// no response object at all, Request returns the no-response sentinel
// rather than an error.
func (b *Backend) Request(ctx context.Context, method fetch.Method, req fetch.Request) (fetch.Response, error) {
	select {
	case <-b.ctx.Done():
		return fetch.Response{}, errors.Closed("nethttp backend")
	default:
	}

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return fetch.Response{}, errors.Transport(errors.PhaseDispatch, ctx.Err())
	case <-b.ctx.Done():
		return fetch.Response{}, errors.Closed("nethttp backend")
	}

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.ctx, cancel)

	b.wg.Add(1)
	result := make(chan outcome, 1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.sem }()
		defer stop()
		defer cancel()
		result <- b.exchange(callCtx, method, req)
	}()

	out := <-result
	return out.resp, out.err
}

func (b *Backend) exchange(ctx context.Context, method fetch.Method, req fetch.Request) outcome {
	var body io.Reader
	if method.AllowsBody() && len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, method.String(), req.URL, body)
	if err != nil {
		return outcome{err: errors.Transport(errors.PhaseDispatch, err)}
	}
	for k, v := range req.Headers {
		hreq.Header[k] = []string{v}
	}

	fetch.Logger().Debug("nethttp dispatch",
		zap.String("method", method.String()),
		zap.String("url", req.URL))

	hresp, err := b.doer.Do(hreq)
	if err != nil {
		return outcome{err: errors.Transport(errors.PhasePerform, err)}
	}
	if hresp == nil {
		// The async pipeline yielded no result object. Soft failure:
		// the caller gets the sentinel, never an error.
		return outcome{resp: fetch.NoResponse()}
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return outcome{err: errors.Transport(errors.PhaseDecode, err)}
	}

	// Flatten the multi-valued native header structure into the
	// single-valued map: one entry per value, last value wins.
	h := fetch.Headers{}
	for name, values := range hresp.Header {
		for _, v := range values {
			h[name] = v
		}
	}

	fetch.Logger().Debug("nethttp complete",
		zap.Int("status", hresp.StatusCode),
		zap.Int("body_bytes", len(data)))

	return outcome{resp: fetch.Response{Status: hresp.StatusCode, Headers: h, Body: data}}
}

// Close cancels the backend's context, aborting any requests still
// awaiting results, and waits for pool goroutines to drain.
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}
