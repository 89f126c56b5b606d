// Package nethttp adapts the standard library HTTP stack to the fetch
// facade. Method mapping is exact, request headers are copied verbatim,
// and a body is attached only for POST and PUT. Redirects, TLS, pooling
// and timeouts are whatever the wrapped *http.Client does.
package nethttp
