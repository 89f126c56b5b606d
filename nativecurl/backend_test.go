package nativecurl

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
	"github.com/crosswire/fetch/resource"
)

// releaseCounter verifies that every callback-state allocation is
// released exactly once, whatever exit path the call takes.
type releaseCounter struct {
	mu      sync.Mutex
	created int
	dropped int
}

func (c *releaseCounter) OnResourceEvent(e resource.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Type {
	case resource.EventCreated:
		c.created++
	case resource.EventDropped:
		c.dropped++
	}
}

func (c *releaseCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created, c.dropped
}

// fakeCurl is an instrumented stand-in for the native library. Its
// perform step drives the same callback state blocks through the handle
// table that the real trampolines would.
type fakeCurl struct {
	table *resource.Table

	// scripted behavior
	urlCode     int
	methodCode  int
	headersCode int
	bindCode    int
	performCode int
	preamble    string
	bodyChunks  []string
	status      int

	// recorded calls, guarded for the concurrency tests
	mu          sync.Mutex
	inits       int
	cleanups    int
	slistsFreed int
	gotURL      string
	gotMethod   fetch.Method
	gotBodyLen  int
	gotHeaders  []string
	drainedBody []byte
	bound       map[uintptr][3]resource.Handle
	slists      map[uintptr]bool
}

func (f *fakeCurl) easyInit() uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return uintptr(f.inits)
}

func (f *fakeCurl) easyCleanup(uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
}

func (f *fakeCurl) strerror(code int) string { return fmt.Sprintf("fake diagnostic %d", code) }

func (f *fakeCurl) setURL(_ uintptr, url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotURL = url
	return f.urlCode
}

func (f *fakeCurl) setMethod(_ uintptr, m fetch.Method, bodyLen int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotMethod = m
	f.gotBodyLen = bodyLen
	return f.methodCode
}

func (f *fakeCurl) setHeaders(h uintptr, lines []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotHeaders = lines
	if f.slists == nil {
		f.slists = make(map[uintptr]bool)
	}
	f.slists[h] = true
	return f.headersCode
}

func (f *fakeCurl) bindCallbacks(h uintptr, reqBody, respHeaders, respBody resource.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == nil {
		f.bound = make(map[uintptr][3]resource.Handle)
	}
	f.bound[h] = [3]resource.Handle{reqBody, respHeaders, respBody}
	return f.bindCode
}

func (f *fakeCurl) perform(h uintptr) int {
	if f.performCode != 0 {
		return f.performCode
	}

	f.mu.Lock()
	handles := f.bound[h]
	f.mu.Unlock()

	// Drain the request body the way the native read callback would:
	// one bounded chunk per invocation until exhausted.
	if v, ok := f.table.Get(handles[0]); ok {
		rb := v.(*requestBody)
		buf := make([]byte, 7)
		var drained []byte
		for {
			n := rb.read(buf)
			if n == 0 {
				break
			}
			drained = append(drained, buf[:n]...)
		}
		f.mu.Lock()
		f.drainedBody = append(f.drainedBody, drained...)
		f.mu.Unlock()
	}

	if v, ok := f.table.Get(handles[1]); ok {
		v.(*accumulator).write([]byte(f.preamble))
	}
	if v, ok := f.table.Get(handles[2]); ok {
		for _, chunk := range f.bodyChunks {
			v.(*accumulator).write([]byte(chunk))
		}
	}
	return 0
}

func (f *fakeCurl) responseCode(uintptr) int { return f.status }

func (f *fakeCurl) releaseHandleState(h uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slists[h] {
		f.slistsFreed++
		delete(f.slists, h)
	}
}

func newFakeBackend(fake *fakeCurl) (*Backend, *releaseCounter) {
	table := resource.NewTable()
	fake.table = table
	rc := &releaseCounter{}
	table.Subscribe(rc)
	return newWithLib(fake, table), rc
}

func assertReleased(t *testing.T, b *Backend, rc *releaseCounter, fake *fakeCurl) {
	t.Helper()
	created, dropped := rc.counts()
	if created != dropped {
		t.Errorf("callback state leak: created %d, dropped %d", created, dropped)
	}
	if created == 0 {
		t.Error("no callback state was ever allocated")
	}
	if b.table.Len() != 0 {
		t.Errorf("table still holds %d entries", b.table.Len())
	}
	if fake.inits != fake.cleanups {
		t.Errorf("easy handle leak: init %d, cleanup %d", fake.inits, fake.cleanups)
	}
}

func TestRequestSuccess(t *testing.T) {
	fake := &fakeCurl{
		preamble: "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nX-Trace: t1\r\n\r\n",
		bodyChunks: []string{
			`{"ok":`,
			`true}`,
		},
		status: 200,
	}
	b, rc := newFakeBackend(fake)

	req := fetch.NewRequest("https://api.example.com/v1/ok", fetch.Headers{"Accept": "application/json"}, nil)
	resp, err := b.Request(context.Background(), fetch.MethodGet, req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if resp.Status != 200 {
		t.Errorf("status = %d, want 200", resp.Status)
	}
	if resp.Headers["Content-Type"] != "application/json" || resp.Headers["X-Trace"] != "t1" {
		t.Errorf("headers = %v", resp.Headers)
	}
	if _, ok := resp.Headers[":status"]; ok {
		t.Error("synthetic :status key leaked into response headers")
	}
	if !bytes.Equal(resp.Body, []byte(`{"ok":true}`)) {
		t.Errorf("body = %q", resp.Body)
	}
	if fake.gotURL != "https://api.example.com/v1/ok" {
		t.Errorf("url = %q", fake.gotURL)
	}
	if len(fake.gotHeaders) != 1 || fake.gotHeaders[0] != "Accept: application/json" {
		t.Errorf("header lines = %v", fake.gotHeaders)
	}

	assertReleased(t, b, rc, fake)
}

func TestRequestUploadsBodyThroughReadCallback(t *testing.T) {
	fake := &fakeCurl{
		preamble: "HTTP/1.1 204 No Content\r\n\r\n",
		status:   204,
	}
	b, rc := newFakeBackend(fake)

	payload := []byte("a body long enough to need several read callback rounds")
	req := fetch.NewRequest("https://api.example.com/v1/items", nil, payload)
	if _, err := b.Request(context.Background(), fetch.MethodPut, req); err != nil {
		t.Fatalf("request: %v", err)
	}

	if fake.gotMethod != fetch.MethodPut {
		t.Errorf("method = %v", fake.gotMethod)
	}
	if fake.gotBodyLen != len(payload) {
		t.Errorf("announced body length = %d, want %d", fake.gotBodyLen, len(payload))
	}
	if !bytes.Equal(fake.drainedBody, payload) {
		t.Errorf("native side read %q, want %q", fake.drainedBody, payload)
	}

	assertReleased(t, b, rc, fake)
}

func TestBodyIgnoredForGet(t *testing.T) {
	fake := &fakeCurl{preamble: "HTTP/1.1 200 OK\r\n\r\n", status: 200}
	b, rc := newFakeBackend(fake)

	req := fetch.NewRequest("https://api.example.com", nil, []byte("should not travel"))
	if _, err := b.Request(context.Background(), fetch.MethodGet, req); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(fake.drainedBody) != 0 {
		t.Errorf("GET uploaded a body: %q", fake.drainedBody)
	}

	assertReleased(t, b, rc, fake)
}

func TestConfigureFailureReleasesEverything(t *testing.T) {
	fake := &fakeCurl{urlCode: 3} // CURLE_URL_MALFORMAT
	b, rc := newFakeBackend(fake)

	_, err := b.Request(context.Background(), fetch.MethodGet, fetch.Request{URL: "::bad::"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfigure, Kind: errors.KindTransport}) {
		t.Errorf("error %v is not a configure/transport error", err)
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e.Code != 3 || e.Detail != "fake diagnostic 3" {
			t.Errorf("code/detail = %d/%q", e.Code, e.Detail)
		}
	}

	assertReleased(t, b, rc, fake)
}

func TestPerformFailureReleasesSlist(t *testing.T) {
	fake := &fakeCurl{performCode: 28} // CURLE_OPERATION_TIMEDOUT
	b, rc := newFakeBackend(fake)

	req := fetch.NewRequest("https://api.example.com", fetch.Headers{"A": "1", "B": "2"}, nil)
	_, err := b.Request(context.Background(), fetch.MethodGet, req)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhasePerform, Kind: errors.KindTransport}) {
		t.Fatalf("error %v is not a perform/transport error", err)
	}
	if fake.slistsFreed != 1 {
		t.Errorf("slists freed = %d, want 1", fake.slistsFreed)
	}

	assertReleased(t, b, rc, fake)
}

func TestMalformedPreambleReleasesEverything(t *testing.T) {
	fake := &fakeCurl{preamble: "BADLINE\r\n", status: 200}
	b, rc := newFakeBackend(fake)

	_, err := b.Request(context.Background(), fetch.MethodGet, fetch.Request{URL: "https://x"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindMalformedStatusLine}) {
		t.Fatalf("error %v is not a malformed status line", err)
	}

	assertReleased(t, b, rc, fake)
}

func TestInitErrorIsFatalAndSticky(t *testing.T) {
	initErr := errors.Native(errors.PhaseInit, 4, "fake init failure")
	b := &Backend{initErr: initErr}

	for i := 0; i < 2; i++ {
		_, err := b.Request(context.Background(), fetch.MethodGet, fetch.Request{URL: "https://x"})
		if !stderrors.Is(err, initErr) {
			t.Fatalf("call %d: err = %v, want sticky init error", i, err)
		}
	}
}

func TestClosedBackendRejects(t *testing.T) {
	fake := &fakeCurl{preamble: "HTTP/1.1 200 OK\r\n\r\n", status: 200}
	b, _ := newFakeBackend(fake)

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := b.Request(context.Background(), fetch.MethodGet, fetch.Request{URL: "https://x"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDispatch, Kind: errors.KindClosed}) {
		t.Errorf("error %v is not a closed error", err)
	}
	if fake.inits != 0 {
		t.Error("closed backend still acquired a native handle")
	}
}

func TestConcurrentCallsShareNothing(t *testing.T) {
	// Two calls on one backend: independent state blocks, independent
	// outcomes, full release on both paths even though one fails.
	okFake := &fakeCurl{preamble: "HTTP/1.1 200 OK\r\nX: ok\r\n\r\n", bodyChunks: []string{"fine"}, status: 200}
	b, rc := newFakeBackend(okFake)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := b.Request(context.Background(), fetch.MethodGet, fetch.Request{URL: "https://x"})
			results[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Errorf("call %d: %v", i, err)
		}
	}
	created, dropped := rc.counts()
	if created != 12 || dropped != 12 {
		t.Errorf("created/dropped = %d/%d, want 12/12", created, dropped)
	}
}
