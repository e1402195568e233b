// Package stream runs the live video pipeline: acquire frames, match the
// faces in them, and publish annotated frames to viewers.
package stream

import "context"

// Source yields a sequence of encoded frames (JPEG bytes) from a camera or
// stream. Next returns io.EOF (or the underlying error) when the source is
// exhausted or closed; a source that fails to open yields no frames at all.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}
