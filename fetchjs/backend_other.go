//go:build !js || !wasm

package fetchjs

import (
	"context"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
)

// Backend is the placeholder for platforms without a JavaScript host.
type Backend struct{}

// New creates a Backend whose calls fail with an unsupported error.
func New() *Backend { return &Backend{} }

func (b *Backend) Request(context.Context, fetch.Method, fetch.Request) (fetch.Response, error) {
	return fetch.Response{}, errors.Unsupported("fetchjs backend requires GOOS=js GOARCH=wasm")
}

func (b *Backend) Close() error { return nil }
