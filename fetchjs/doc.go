// Package fetchjs adapts the host JavaScript fetch API to the fetch
// facade for GOOS=js GOARCH=wasm builds. The host environment (Node or
// browser) is distinguished at call time from runtime globals to decide
// where the fetch function comes from. On all other platforms the
// backend compiles but every call fails with an unsupported error.
package fetchjs
