// Package gallery holds the known (identity, embedding) pairs the matcher
// searches against. A gallery is immutable for the lifetime of a process;
// regeneration happens out-of-band and is picked up through a Holder swap.
package gallery

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmpty is returned when a source yields zero entries.
	ErrEmpty = errors.New("gallery source yielded no entries")

	// ErrDuplicateIdentity is returned when a source reports the same
	// identity twice.
	ErrDuplicateIdentity = errors.New("duplicate identity in gallery source")

	// ErrDimensionMismatch is returned when an entry's embedding does not
	// match the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// LoadError wraps any failure to build a gallery from a source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading gallery from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Entry is one enrolled identity.
type Entry struct {
	ID        string    // opaque identity, unique within the gallery
	Name      string    // display name, informational only
	Embedding []float32 // fixed-dimension face embedding
}

// Source supplies gallery entries. Implementations live next to the storage
// technology (postgres, JSON file) and are only consulted at load time.
type Source interface {
	// Name identifies the source in load errors.
	Name() string
	// LoadEntries returns all enrolled entries in a stable order. The order
	// matters: exact distance ties resolve to the earliest entry.
	LoadEntries(ctx context.Context) ([]Entry, error)
}

// Gallery is an immutable collection of enrolled identities. All methods are
// safe for concurrent use by construction; nothing mutates after New.
type Gallery struct {
	entries []Entry
	dim     int
	byID    map[string]int
}

// New validates entries and builds a Gallery. dim <= 0 adopts the dimension
// of the first entry.
func New(entries []Entry, dim int) (*Gallery, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	if dim <= 0 {
		dim = len(entries[0].Embedding)
	}

	byID := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d has empty identity", i)
		}
		if _, seen := byID[e.ID]; seen {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateIdentity, e.ID)
		}
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("%w: identity %q has dim %d, want %d",
				ErrDimensionMismatch, e.ID, len(e.Embedding), dim)
		}
		byID[e.ID] = i
	}

	return &Gallery{entries: entries, dim: dim, byID: byID}, nil
}

// Load builds a gallery from a source, wrapping every failure in a LoadError.
func Load(ctx context.Context, src Source, dim int) (*Gallery, error) {
	entries, err := src.LoadEntries(ctx)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	g, err := New(entries, dim)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	return g, nil
}

// Len returns the number of enrolled identities.
func (g *Gallery) Len() int { return len(g.entries) }

// Dim returns the embedding dimension.
func (g *Gallery) Dim() int { return g.dim }

// Entries returns the entries in load order. The returned slice and the
// embeddings it references are read-only.
func (g *Gallery) Entries() []Entry { return g.entries }

// QueryAll returns the identities and their embedding vectors in load order.
// Both slices are read-only views into the gallery.
func (g *Gallery) QueryAll() ([]string, [][]float32) {
	ids := make([]string, len(g.entries))
	vectors := make([][]float32, len(g.entries))
	for i, e := range g.entries {
		ids[i] = e.ID
		vectors[i] = e.Embedding
	}
	return ids, vectors
}

// Get returns the entry for an identity, or false when it is not enrolled.
func (g *Gallery) Get(id string) (Entry, bool) {
	i, ok := g.byID[id]
	if !ok {
		return Entry{}, false
	}
	return g.entries[i], true
}

// FindByName returns the first entry whose normalized display name matches
// the normalized query. Used by enrollment tooling, not by the scan path.
func (g *Gallery) FindByName(name string) (Entry, bool) {
	want := NormalizeName(name)
	for _, e := range g.entries {
		if NormalizeName(e.Name) == want {
			return e, true
		}
	}
	return Entry{}, false
}
