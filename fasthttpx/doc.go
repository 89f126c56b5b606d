// Package fasthttpx adapts valyala/fasthttp to the fetch facade. It
// exists alongside the standard-library backend as a second native
// transport with its own pooling and protocol behavior; the facade adds
// nothing on top beyond the common marshalling.
package fasthttpx
