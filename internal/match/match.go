// Package match implements nearest-neighbor identity matching over the
// gallery. The matcher is stateless apart from its configuration and an
// optional index; every call works on the gallery snapshot it is given.
package match

import (
	"errors"
	"fmt"
	"math"

	"github.com/kralovic/faceattend/internal/gallery"
)

// DefaultThreshold is the maximum Euclidean distance for an accepted match.
const DefaultThreshold = 0.6

var (
	// ErrEmptyGallery is returned when matching against a nil or empty gallery.
	ErrEmptyGallery = errors.New("gallery is empty")

	// ErrDimensionMismatch is returned when the query embedding dimension
	// does not match the gallery's.
	ErrDimensionMismatch = errors.New("query embedding dimension mismatch")
)

// Result describes the outcome of one nearest-neighbor query.
type Result struct {
	Matched    bool    // false when the best distance exceeded the threshold
	Identity   string  // empty when Matched is false
	Name       string  // display name of the matched identity
	Distance   float64 // raw Euclidean distance to the nearest entry
	Confidence float64 // (1 - Distance) * 100, clamped to [0, 100]
}

// Matcher performs nearest-neighbor search with a configurable acceptance
// threshold. Safe for concurrent use.
type Matcher struct {
	threshold float64
	index     *Index // optional, nil means exhaustive scan
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithIndex attaches an approximate index for large galleries. Queries
// against a gallery the index was not built for fall back to the exhaustive
// scan.
func WithIndex(idx *Index) Option {
	return func(m *Matcher) { m.index = idx }
}

// New creates a matcher. A non-positive threshold adopts DefaultThreshold.
func New(threshold float64, opts ...Option) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	m := &Matcher{threshold: threshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Match finds the gallery entry nearest to the query embedding. Exact
// distance ties resolve to the earliest entry in gallery load order.
func (m *Matcher) Match(query []float32, g *gallery.Gallery) (Result, error) {
	if g == nil || g.Len() == 0 {
		return Result{}, ErrEmptyGallery
	}
	if len(query) != g.Dim() {
		return Result{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), g.Dim())
	}

	if m.index != nil && m.index.Covers(g) {
		if best, bestDist, ok := m.index.Nearest(query); ok {
			return m.toResult(g.Entries()[best], bestDist), nil
		}
	}

	entries := g.Entries()
	best := 0
	bestDist := EuclideanDistance(query, entries[0].Embedding)
	for i := 1; i < len(entries); i++ {
		if d := EuclideanDistance(query, entries[i].Embedding); d < bestDist {
			best = i
			bestDist = d
		}
	}

	return m.toResult(entries[best], bestDist), nil
}

func (m *Matcher) toResult(e gallery.Entry, dist float64) Result {
	if dist > m.threshold {
		return Result{Matched: false, Distance: dist}
	}
	confidence := (1 - dist) * 100
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return Result{
		Matched:    true,
		Identity:   e.ID,
		Name:       e.Name,
		Distance:   dist,
		Confidence: confidence,
	}
}

// EuclideanDistance computes the L2 distance between two vectors of the same
// dimension.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
