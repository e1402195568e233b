package gallery

import "sync/atomic"

// Handle is an atomically swappable reference to the current gallery.
// A rebuild prepares a whole new gallery and swaps it in with a single
// store; in-flight matches keep reading the gallery they started with.
type Handle struct {
	ptr atomic.Pointer[Gallery]
}

// NewHandle creates a handle. A nil gallery is replaced by an empty one
// so Get never returns nil.
func NewHandle(g *Gallery) *Handle {
	if g == nil {
		g = &Gallery{}
	}
	h := &Handle{}
	h.ptr.Store(g)
	return h
}

// Get returns the current gallery.
func (h *Handle) Get() *Gallery {
	return h.ptr.Load()
}

// Set swaps in a new gallery.
func (h *Handle) Set(g *Gallery) {
	if g == nil {
		g = &Gallery{}
	}
	h.ptr.Store(g)
}
