// Package preamble parses a raw HTTP response preamble — the status line
// plus header lines received ahead of the body — into the facade's header
// map. It is used by backends whose transport delivers headers as raw
// text (the libcurl bridge); transports that hand back structured headers
// never go through it.
package preamble
