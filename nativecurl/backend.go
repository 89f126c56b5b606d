package nativecurl

import (
	"bytes"
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
	"github.com/crosswire/fetch/preamble"
	"github.com/crosswire/fetch/resource"
)

// libcurl is the slice of the native library the backend drives. The real
// implementation binds the C symbols through the foreign-function bridge;
// tests substitute an instrumented fake that exercises the same handle
// table and callback state.
type libcurl interface {
	easyInit() uintptr
	easyCleanup(h uintptr)
	strerror(code int) string

	setURL(h uintptr, url string) int
	setMethod(h uintptr, method fetch.Method, bodyLen int) int
	setHeaders(h uintptr, lines []string) int
	bindCallbacks(h uintptr, reqBody, respHeaders, respBody resource.Handle) int

	perform(h uintptr) int
	responseCode(h uintptr) int

	// releaseHandleState frees per-handle native allocations made during
	// configuration (the header slist). Callback state removal is the
	// backend's job.
	releaseHandleState(h uintptr)
}

// requestBody is the callback state block feeding the upload callback.
type requestBody struct {
	data []byte
	off  int
}

// read copies up to len(dst) unread bytes into dst and advances.
func (rb *requestBody) read(dst []byte) int {
	n := copy(dst, rb.data[rb.off:])
	rb.off += n
	return n
}

// accumulator is the callback state block collecting response header or
// body chunks, one write per native callback invocation.
type accumulator struct {
	buf bytes.Buffer
}

func (a *accumulator) write(p []byte) { a.buf.Write(p) }

// Backend bridges to a C-level synchronous transport handle per call.
// Library loading and curl_global_init run lazily, at most once per
// process; a failed initialization is fatal and reported by every call.
type Backend struct {
	lib     libcurl
	table   *resource.Table
	initErr error
	closed  atomic.Bool
}

// Option configures a Backend.
type Option func(*config)

type config struct {
	libraryPath string
}

// WithLibrary overrides the shared library name passed to the loader
// (e.g. "/usr/lib/libcurl.so.4").
func WithLibrary(path string) Option {
	return func(c *config) { c.libraryPath = path }
}

// New creates a Backend over the process-wide libcurl binding. The
// returned backend is usable even when initialization failed; every call
// then reports the initialization error.
func New(opts ...Option) *Backend {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	lib, table, err := loadLibcurl(cfg.libraryPath)
	return &Backend{lib: lib, table: table, initErr: err}
}

// newWithLib wires an explicit verb implementation and table. Tests use
// this to drive the call path without the native library.
func newWithLib(lib libcurl, table *resource.Table) *Backend {
	return &Backend{lib: lib, table: table}
}

// Request performs one blocking transfer on a fresh native handle.
//
// Every exit path releases the per-call handle, the header slist, and the
// three callback state blocks; a non-OK code at any configure or perform
// step fails immediately with the library's diagnostic.
func (b *Backend) Request(ctx context.Context, method fetch.Method, req fetch.Request) (fetch.Response, error) {
	if b.initErr != nil {
		return fetch.Response{}, b.initErr
	}
	if b.closed.Load() {
		return fetch.Response{}, errors.Closed("nativecurl backend")
	}
	if err := ctx.Err(); err != nil {
		return fetch.Response{}, errors.Transport(errors.PhaseDispatch, err)
	}

	h := b.lib.easyInit()
	if h == 0 {
		return fetch.Response{}, errors.Native(errors.PhaseConfigure, -1, "curl_easy_init returned no handle")
	}

	body := &requestBody{}
	if method.AllowsBody() {
		body.data = req.Body
	}
	headerAcc := &accumulator{}
	bodyAcc := &accumulator{}

	bodyHandle := b.table.Insert(body)
	headerHandle := b.table.Insert(headerAcc)
	respHandle := b.table.Insert(bodyAcc)

	defer func() {
		b.table.Remove(bodyHandle)
		b.table.Remove(headerHandle)
		b.table.Remove(respHandle)
		b.lib.releaseHandleState(h)
		b.lib.easyCleanup(h)
	}()

	if rc := b.lib.setURL(h, req.URL); rc != curlOK {
		return fetch.Response{}, errors.Native(errors.PhaseConfigure, rc, b.lib.strerror(rc))
	}
	if rc := b.lib.setMethod(h, method, len(body.data)); rc != curlOK {
		return fetch.Response{}, errors.Native(errors.PhaseConfigure, rc, b.lib.strerror(rc))
	}
	if len(req.Headers) > 0 {
		lines := make([]string, 0, len(req.Headers))
		for k, v := range req.Headers {
			lines = append(lines, k+": "+v)
		}
		if rc := b.lib.setHeaders(h, lines); rc != curlOK {
			return fetch.Response{}, errors.Native(errors.PhaseConfigure, rc, b.lib.strerror(rc))
		}
	}
	if rc := b.lib.bindCallbacks(h, bodyHandle, headerHandle, respHandle); rc != curlOK {
		return fetch.Response{}, errors.Native(errors.PhaseConfigure, rc, b.lib.strerror(rc))
	}

	fetch.Logger().Debug("nativecurl perform",
		zap.String("method", method.String()),
		zap.String("url", req.URL))

	if rc := b.lib.perform(h); rc != curlOK {
		return fetch.Response{}, errors.Native(errors.PhasePerform, rc, b.lib.strerror(rc))
	}

	pre, err := preamble.Parse(headerAcc.buf.String())
	if err != nil {
		return fetch.Response{}, err
	}
	headers := pre.Headers
	delete(headers, preamble.StatusKey) // status is first-class on Response

	status := b.lib.responseCode(h)

	fetch.Logger().Debug("nativecurl complete",
		zap.Int("status", status),
		zap.Int("body_bytes", bodyAcc.buf.Len()))

	return fetch.Response{
		Status:  status,
		Headers: headers,
		Body:    append([]byte(nil), bodyAcc.buf.Bytes()...),
	}, nil
}

// Close marks the backend closed. The library's process-wide state has no
// teardown contract at this layer; per-call state is already gone by the
// time any call returns.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

// curlOK is CURLE_OK: the library's success code.
const curlOK = 0
