package match

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/kralovic/faceattend/internal/gallery"
)

// HNSW parameters tuned for face embeddings at the gallery sizes this system
// targets (hundreds to low thousands of entries).
const (
	hnswMaxNeighbors  = 16
	hnswTieCandidates = 8
)

// Index is an optional approximate nearest-neighbor index over one gallery
// snapshot. Exhaustive scan stays the default; the index only short-cuts the
// candidate search and exact distances are always recomputed, so the
// acceptance decision is identical either way.
type Index struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int]
	gallery *gallery.Gallery
}

// NewIndex builds an index bound to the given gallery snapshot.
func NewIndex(g *gallery.Gallery) *Index {
	idx := &Index{}
	idx.Rebuild(g)
	return idx
}

// Rebuild replaces the index contents with the entries of a new snapshot.
func (idx *Index) Rebuild(g *gallery.Gallery) {
	graph := hnsw.NewGraph[int]()
	graph.M = hnswMaxNeighbors
	graph.Ml = 1.0 / float64(hnswMaxNeighbors)
	graph.Distance = hnsw.EuclideanDistance

	if g != nil {
		for i, e := range g.Entries() {
			graph.Add(hnsw.MakeNode(i, e.Embedding))
		}
	}

	idx.mu.Lock()
	idx.graph = graph
	idx.gallery = g
	idx.mu.Unlock()
}

// Covers reports whether the index was built for this gallery snapshot.
func (idx *Index) Covers(g *gallery.Gallery) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.gallery == g && g != nil
}

// Nearest returns the entry index and exact distance of the closest
// candidate. Among approximate candidates the earliest entry wins exact
// distance ties, preserving the exhaustive tie-break.
func (idx *Index) Nearest(query []float32) (int, float64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return 0, 0, false
	}

	neighbors := idx.graph.Search(query, hnswTieCandidates)
	if len(neighbors) == 0 {
		return 0, 0, false
	}

	best := -1
	bestDist := 0.0
	for _, n := range neighbors {
		d := EuclideanDistance(query, n.Value)
		if best == -1 || d < bestDist || (d == bestDist && n.Key < best) {
			best = n.Key
			bestDist = d
		}
	}
	return best, bestDist, true
}
