//go:build js && wasm

package fetchjs

import (
	"context"
	"syscall/js"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
)

// Backend wraps the host JavaScript fetch API. Calls suspend twice —
// awaiting the fetch promise, then the body-read promise — and both
// suspensions honor the caller's context via AbortController.
type Backend struct {
	closed bool
}

// New creates a Backend. The host environment is probed per call, not
// here, because the fetch source can differ between calls in embedders
// that mutate globals.
func New() *Backend { return &Backend{} }

// isNode reports whether the host is a Node-style runtime, detected via
// the process.versions.node global.
func isNode(global js.Value) bool {
	p := global.Get("process")
	if p.Type() != js.TypeObject {
		return false
	}
	v := p.Get("versions")
	return v.Type() == js.TypeObject && !v.Get("node").IsUndefined()
}

// fetchFunc locates the fetch implementation for the current host: the
// global in browsers and modern Node, a required node-fetch module on
// older Node.
func fetchFunc(global js.Value) (js.Value, error) {
	if f := global.Get("fetch"); f.Type() == js.TypeFunction {
		return f, nil
	}
	if isNode(global) {
		if f, ok := requireNodeFetch(global); ok {
			return f, nil
		}
	}
	return js.Value{}, errors.Unsupported("host environment provides no fetch implementation")
}

func requireNodeFetch(global js.Value) (f js.Value, ok bool) {
	req := global.Get("require")
	if req.Type() != js.TypeFunction {
		return js.Value{}, false
	}
	defer func() {
		// require throws when the module is absent.
		if recover() != nil {
			ok = false
		}
	}()
	mod := req.Invoke("node-fetch")
	if mod.Type() == js.TypeFunction {
		return mod, true
	}
	if d := mod.Get("default"); d.Type() == js.TypeFunction {
		return d, true
	}
	return js.Value{}, false
}

// jsError carries a promise rejection value as a Go error.
type jsError struct {
	value js.Value
}

func (e jsError) Error() string {
	if e.value.Type() == js.TypeObject {
		if m := e.value.Get("message"); m.Type() == js.TypeString {
			return m.String()
		}
	}
	return js.Global().Get("String").Invoke(e.value).String()
}

// await suspends until the promise settles or ctx is cancelled. On
// cancellation abort is invoked (rejecting the promise host-side) and the
// settled rejection is discarded in favor of ctx.Err().
func await(ctx context.Context, promise js.Value, abort func()) (js.Value, error) {
	done := make(chan struct{})
	var settled js.Value
	var rejected bool

	var onResolve, onReject js.Func
	release := func() {
		onResolve.Release()
		onReject.Release()
	}
	onResolve = js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) > 0 {
			settled = args[0]
		}
		release()
		close(done)
		return nil
	})
	onReject = js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) > 0 {
			settled = args[0]
		}
		rejected = true
		release()
		close(done)
		return nil
	})
	promise.Call("then", onResolve, onReject)

	select {
	case <-done:
	case <-ctx.Done():
		if abort != nil {
			abort()
		}
		<-done
		return js.Value{}, ctx.Err()
	}
	if rejected {
		return js.Value{}, jsError{settled}
	}
	return settled, nil
}

// Request performs one fetch exchange on the cooperative scheduler.
func (b *Backend) Request(ctx context.Context, method fetch.Method, req fetch.Request) (fetch.Response, error) {
	if b.closed {
		return fetch.Response{}, errors.Closed("fetchjs backend")
	}
	global := js.Global()

	f, err := fetchFunc(global)
	if err != nil {
		return fetch.Response{}, err
	}

	opts := global.Get("Object").New()
	opts.Set("method", method.String())

	hdrs := global.Get("Object").New()
	for k, v := range req.Headers {
		hdrs.Set(k, v)
	}
	opts.Set("headers", hdrs)

	if method.AllowsBody() && len(req.Body) > 0 {
		u8 := global.Get("Uint8Array").New(len(req.Body))
		js.CopyBytesToJS(u8, req.Body)
		opts.Set("body", u8)
	}

	var abort func()
	if ac := global.Get("AbortController"); ac.Type() == js.TypeFunction {
		controller := ac.New()
		opts.Set("signal", controller.Get("signal"))
		abort = func() { controller.Call("abort") }
	}

	respVal, err := await(ctx, f.Invoke(req.URL, opts), abort)
	if err != nil {
		if ctx.Err() != nil {
			return fetch.Response{}, errors.Transport(errors.PhaseFetch, err)
		}
		return fetch.Response{}, errors.FetchRejected(err)
	}

	h := fetch.Headers{}
	visit := js.FuncOf(func(this js.Value, args []js.Value) any {
		// Headers.forEach passes (value, key).
		if len(args) >= 2 {
			h[args[1].String()] = args[0].String()
		}
		return nil
	})
	respVal.Get("headers").Call("forEach", visit)
	visit.Release()

	bufVal, err := await(ctx, respVal.Call("arrayBuffer"), abort)
	if err != nil {
		if ctx.Err() != nil {
			return fetch.Response{}, errors.Transport(errors.PhaseDecode, err)
		}
		return fetch.Response{}, errors.BodyDecode(err)
	}

	u8 := global.Get("Uint8Array").New(bufVal)
	body := make([]byte, u8.Get("byteLength").Int())
	js.CopyBytesToGo(body, u8)

	return fetch.Response{
		Status:  respVal.Get("status").Int(),
		Headers: h,
		Body:    body,
	}, nil
}

// Close marks the backend closed; the cooperative scheduler itself
// belongs to the host.
func (b *Backend) Close() error {
	b.closed = true
	return nil
}
