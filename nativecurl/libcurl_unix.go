//go:build linux || darwin

package nativecurl

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
	"github.com/crosswire/fetch/resource"
)

// Option and info codes from curl/curl.h. Long options are the bare
// value, object-pointer options are 10000+n, function-pointer options
// are 20000+n.
const (
	curloptInFileSize     = 14
	curloptUpload         = 46
	curloptPost           = 47
	curloptPostFieldSize  = 60
	curloptHTTPGet        = 80
	curloptNoSignal       = 99
	curloptWriteData      = 10001
	curloptURL            = 10002
	curloptReadData       = 10009
	curloptHTTPHeader     = 10023
	curloptHeaderData     = 10029
	curloptCustomRequest  = 10036
	curloptWriteFunction  = 20011
	curloptReadFunction   = 20012
	curloptHeaderFunction = 20079

	curlinfoResponseCode = 0x200000 + 2

	curlGlobalAll = 3

	// Returned from the read callback to abort the transfer.
	curlReadfuncAbort = 0x10000000
)

var (
	curlGlobalInit   func(flags int) int
	curlEasyInit     func() uintptr
	curlEasyCleanup  func(h uintptr)
	curlEasyPerform  func(h uintptr) int
	curlEasyStrerror func(code int) string
	curlSetoptLong   func(h uintptr, opt int, value uintptr) int
	curlSetoptString func(h uintptr, opt int, value string) int
	curlGetinfoLong  func(h uintptr, info int, out *int64) int
	curlSlistAppend  func(list uintptr, value string) uintptr
	curlSlistFreeAll func(list uintptr)

	// Process-wide callback trampolines; created once because the
	// foreign-function bridge caps the number of live callbacks.
	writeTrampoline  uintptr
	headerTrampoline uintptr
	readTrampoline   uintptr

	// Callback state for every in-flight transfer in the process,
	// resolved by the trampolines from the opaque userdata handle.
	globalTable = resource.NewTable()

	loadOnce  sync.Once
	loadedLib libcurl
	loadedErr error
)

// loadLibcurl loads the shared library, registers symbols and callback
// trampolines, and runs curl_global_init, all at most once per process.
// The first caller's path override wins.
func loadLibcurl(path string) (libcurl, *resource.Table, error) {
	loadOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				loadedErr = errors.Native(errors.PhaseInit, -1, fmt.Sprintf("libcurl binding failed: %v", r))
			}
		}()

		names := []string{"libcurl.so.4", "libcurl.so"}
		if runtime.GOOS == "darwin" {
			names = []string{"/usr/lib/libcurl.4.dylib", "libcurl.4.dylib", "libcurl.dylib"}
		}
		if path != "" {
			names = []string{path}
		}

		var lib uintptr
		var err error
		for _, name := range names {
			lib, err = purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
			if err == nil {
				break
			}
		}
		if lib == 0 {
			loadedErr = &errors.Error{
				Phase:  errors.PhaseInit,
				Kind:   errors.KindTransport,
				Detail: "cannot load libcurl",
				Cause:  err,
			}
			return
		}

		purego.RegisterLibFunc(&curlGlobalInit, lib, "curl_global_init")
		purego.RegisterLibFunc(&curlEasyInit, lib, "curl_easy_init")
		purego.RegisterLibFunc(&curlEasyCleanup, lib, "curl_easy_cleanup")
		purego.RegisterLibFunc(&curlEasyPerform, lib, "curl_easy_perform")
		purego.RegisterLibFunc(&curlEasyStrerror, lib, "curl_easy_strerror")
		purego.RegisterLibFunc(&curlSetoptLong, lib, "curl_easy_setopt")
		purego.RegisterLibFunc(&curlSetoptString, lib, "curl_easy_setopt")
		purego.RegisterLibFunc(&curlGetinfoLong, lib, "curl_easy_getinfo")
		purego.RegisterLibFunc(&curlSlistAppend, lib, "curl_slist_append")
		purego.RegisterLibFunc(&curlSlistFreeAll, lib, "curl_slist_free_all")

		writeTrampoline = purego.NewCallback(writeCB)
		headerTrampoline = purego.NewCallback(headerCB)
		readTrampoline = purego.NewCallback(readCB)

		if rc := curlGlobalInit(curlGlobalAll); rc != curlOK {
			loadedErr = errors.Native(errors.PhaseInit, rc, curlEasyStrerror(rc))
			return
		}

		loadedLib = &realLibcurl{slists: make(map[uintptr]uintptr)}
	})
	return loadedLib, globalTable, loadedErr
}

// writeCB matches size_t(char*, size_t, size_t, void*). userdata is the
// opaque handle of the body accumulator.
func writeCB(ptr, size, nmemb, userdata uintptr) uintptr {
	n := size * nmemb
	v, ok := globalTable.Get(resource.Handle(userdata))
	if !ok {
		return 0 // unknown handle, abort the transfer
	}
	if n > 0 {
		v.(*accumulator).write(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
	}
	return n
}

func headerCB(ptr, size, nmemb, userdata uintptr) uintptr {
	return writeCB(ptr, size, nmemb, userdata)
}

// readCB matches the upload callback; it drains the request body cursor
// one chunk at a time.
func readCB(ptr, size, nmemb, userdata uintptr) uintptr {
	v, ok := globalTable.Get(resource.Handle(userdata))
	if !ok {
		return curlReadfuncAbort
	}
	capacity := size * nmemb
	if capacity == 0 {
		return 0
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), capacity)
	return uintptr(v.(*requestBody).read(dst))
}

// realLibcurl drives the registered symbols. It tracks the header slist
// attached to each easy handle so releaseHandleState can free it.
type realLibcurl struct {
	mu     sync.Mutex
	slists map[uintptr]uintptr
}

func (c *realLibcurl) easyInit() uintptr {
	h := curlEasyInit()
	if h != 0 {
		// Signal handlers and multi-threaded use do not mix.
		curlSetoptLong(h, curloptNoSignal, 1)
	}
	return h
}

func (c *realLibcurl) easyCleanup(h uintptr) { curlEasyCleanup(h) }

func (c *realLibcurl) strerror(code int) string {
	if code < 0 {
		return "no diagnostic available"
	}
	return curlEasyStrerror(code)
}

func (c *realLibcurl) setURL(h uintptr, url string) int {
	return curlSetoptString(h, curloptURL, url)
}

func (c *realLibcurl) setMethod(h uintptr, method fetch.Method, bodyLen int) int {
	switch method {
	case fetch.MethodGet:
		return curlSetoptLong(h, curloptHTTPGet, 1)
	case fetch.MethodDelete:
		return curlSetoptString(h, curloptCustomRequest, "DELETE")
	case fetch.MethodPost:
		if rc := curlSetoptLong(h, curloptPost, 1); rc != curlOK {
			return rc
		}
		return curlSetoptLong(h, curloptPostFieldSize, uintptr(bodyLen))
	case fetch.MethodPut:
		if rc := curlSetoptLong(h, curloptUpload, 1); rc != curlOK {
			return rc
		}
		return curlSetoptLong(h, curloptInFileSize, uintptr(bodyLen))
	}
	return curlOK
}

func (c *realLibcurl) setHeaders(h uintptr, lines []string) int {
	var list uintptr
	for _, line := range lines {
		list = curlSlistAppend(list, line)
	}
	rc := curlSetoptLong(h, curloptHTTPHeader, list)

	c.mu.Lock()
	c.slists[h] = list
	c.mu.Unlock()
	return rc
}

func (c *realLibcurl) bindCallbacks(h uintptr, reqBody, respHeaders, respBody resource.Handle) int {
	steps := [][2]uintptr{
		{curloptHeaderFunction, headerTrampoline},
		{curloptHeaderData, uintptr(respHeaders)},
		{curloptWriteFunction, writeTrampoline},
		{curloptWriteData, uintptr(respBody)},
		{curloptReadFunction, readTrampoline},
		{curloptReadData, uintptr(reqBody)},
	}
	for _, s := range steps {
		if rc := curlSetoptLong(h, int(s[0]), s[1]); rc != curlOK {
			return rc
		}
	}
	return curlOK
}

func (c *realLibcurl) perform(h uintptr) int { return curlEasyPerform(h) }

func (c *realLibcurl) responseCode(h uintptr) int {
	var out int64
	if rc := curlGetinfoLong(h, curlinfoResponseCode, &out); rc != curlOK {
		return 0
	}
	return int(out)
}

func (c *realLibcurl) releaseHandleState(h uintptr) {
	c.mu.Lock()
	list, ok := c.slists[h]
	if ok {
		delete(c.slists, h)
	}
	c.mu.Unlock()
	if ok && list != 0 {
		curlSlistFreeAll(list)
	}
}
