// Package resource provides the opaque handle table backing native
// callback state.
//
// A native transport invoking registered callbacks needs a stable token
// identifying the per-call state it should append into. Handing the
// library a Go pointer would pin the unsafe boundary to raw addresses;
// instead the host inserts each state block into a Table and passes the
// integer Handle as the callback userdata. The native side holds only the
// borrowed handle, which it must not outlive the call; the host resolves
// it back to the state block inside each callback and removes it before
// the call returns.
//
// # Lifecycle
//
//	table := resource.NewTable()
//
//	h := table.Insert(state)      // before the native call
//	v, ok := table.Get(h)         // inside each callback
//	table.Remove(h)               // on every exit path
//
// Remove invokes the value's Drop method when it implements Dropper.
// Observers can subscribe to Created/Dropped events; tests use this to
// verify that every allocation is released exactly once regardless of the
// exit path taken.
package resource
