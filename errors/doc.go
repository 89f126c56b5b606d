// Package errors provides structured error types for the fetch facade.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category). The Error type carries the offending input value, the
// native library's code and diagnostic when one exists, and a cause chain.
//
// Use the convenience constructors for the facade's fixed vocabulary:
//
//	err := errors.MalformedStatusLine("BADLINE")
//	err := errors.Native(errors.PhasePerform, 6, "Couldn't resolve host name")
//	err := errors.FetchRejected(cause)
//
// All errors implement the standard error interface and support
// errors.Is/As; Is matches on Phase and Kind so callers can probe for a
// category without holding the exact instance:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindMalformedHeaderLine}) {
//	    ...
//	}
package errors
