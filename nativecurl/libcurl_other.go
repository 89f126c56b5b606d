//go:build !linux && !darwin

package nativecurl

import (
	"github.com/crosswire/fetch/errors"
	"github.com/crosswire/fetch/resource"
)

func loadLibcurl(string) (libcurl, *resource.Table, error) {
	return nil, resource.NewTable(), errors.Unsupported("nativecurl requires dlopen support (linux or darwin)")
}
