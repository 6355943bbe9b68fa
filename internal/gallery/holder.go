package gallery

import (
	"context"
	"sync/atomic"
)

// Holder publishes the active gallery to concurrent readers. Matches take a
// snapshot once and use it for the whole call, so a reload never swaps the
// gallery out from under an in-flight query.
type Holder struct {
	current atomic.Pointer[Gallery]
}

// NewHolder creates a holder with an initial gallery. g may be nil when the
// process starts before any enrollment exists.
func NewHolder(g *Gallery) *Holder {
	h := &Holder{}
	if g != nil {
		h.current.Store(g)
	}
	return h
}

// Snapshot returns the active gallery, or nil when none is loaded.
func (h *Holder) Snapshot() *Gallery {
	return h.current.Load()
}

// Swap atomically replaces the active gallery.
func (h *Holder) Swap(g *Gallery) {
	h.current.Store(g)
}

// Reload loads a fresh gallery from the source and swaps it in atomically.
// On failure the previous gallery stays active.
func (h *Holder) Reload(ctx context.Context, src Source, dim int) error {
	g, err := Load(ctx, src, dim)
	if err != nil {
		return err
	}
	h.current.Store(g)
	return nil
}
