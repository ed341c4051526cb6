package cbor

import "golang.org/x/sync/errgroup"

// DecodeAllConcurrently decodes each buffer in bufs by running fn against a
// freshly constructed CborReader for that buffer. Buffers are decoded
// concurrently, one goroutine per buffer: a CborReader is never safe for
// concurrent mutation by multiple goroutines, but independent readers over
// independent (or cloned) buffers are, per the reader's concurrency model,
// and this is the composition that lets callers exploit it without each
// one hand-rolling an errgroup.
//
// opts is applied to every constructed reader. DecodeAllConcurrently
// returns the first error encountered, if any, cancelling no in-flight
// work (fn is expected to be cheap and side-effect-free on error).
func DecodeAllConcurrently(bufs [][]byte, fn func(*CborReader) error, opts ...ReaderOption) error {
	var g errgroup.Group
	for _, buf := range bufs {
		buf := buf
		g.Go(func() error {
			r := NewCborReader(buf, opts...)
			return fn(r)
		})
	}
	return g.Wait()
}
