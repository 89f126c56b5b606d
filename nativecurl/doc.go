// Package nativecurl bridges the fetch facade to libcurl through a
// foreign-function binding (no cgo; the library is dlopen'd at first
// use).
//
// The library is initialized lazily, at most once per process; a failed
// load or a non-zero curl_global_init code is a fatal configuration error
// reported by every subsequent call. Each call acquires a fresh easy
// handle, configures it, performs the blocking transfer, and releases the
// handle plus its three callback state blocks on every exit path.
//
// Native callbacks never see Go pointers: the userdata registered with
// libcurl is an opaque handle into a resource table, resolved back to the
// state block inside each callback. Response headers arrive as raw
// preamble lines and are parsed with the preamble package; the status
// code is read from CURLINFO_RESPONSE_CODE.
//
// On platforms without dlopen support the constructor yields a backend
// whose calls fail with an unsupported error.
package nativecurl
