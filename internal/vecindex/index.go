// Package vecindex maintains the vector search index: an in-memory HNSW
// graph over chunk embeddings, persisted as a single artifact that other
// processes pick up through modification-time polling.
package vecindex

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

// HNSW tuning constants, matching the library's recommendations.
const (
	hnswM        = 16
	hnswEfSearch = 40
	hnswMl       = 0.25
)

// memIndex is the in-memory index state: the vector table plus the HNSW
// graph built over it. The graph maps internal uint64 keys to chunk ids;
// deletion is lazy (the mapping is dropped, the node stays) because
// removing graph nodes is unreliable, so rebuilds start from a fresh graph.
type memIndex struct {
	dimension int

	vectors map[string][]float32
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

func newMemIndex(dimension int) *memIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = hnswM
	graph.EfSearch = hnswEfSearch
	graph.Ml = hnswMl

	return &memIndex{
		dimension: dimension,
		vectors:   make(map[string][]float32),
		graph:     graph,
		idMap:     make(map[string]uint64),
		keyMap:    make(map[uint64]string),
	}
}

// add inserts or replaces one vector. Replacement orphans the old graph
// node.
func (m *memIndex) add(id string, vec []float32) error {
	if len(vec) != m.dimension {
		return deskerrors.New(deskerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector dimension %d does not match index dimension %d", len(vec), m.dimension), nil).
			WithDetail("expected", m.dimension).
			WithDetail("got", len(vec))
	}

	if oldKey, ok := m.idMap[id]; ok {
		delete(m.keyMap, oldKey)
		delete(m.idMap, id)
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)

	key := m.nextKey
	m.nextKey++
	m.graph.Add(hnsw.MakeNode(key, stored))
	m.vectors[id] = stored
	m.idMap[id] = key
	m.keyMap[key] = id
	return nil
}

// remove drops ids from the index. Unknown ids are ignored.
func (m *memIndex) remove(ids []string) {
	for _, id := range ids {
		if key, ok := m.idMap[id]; ok {
			delete(m.keyMap, key)
			delete(m.idMap, id)
			delete(m.vectors, id)
		}
	}
}

// hit is one raw nearest-neighbour result.
type hit struct {
	id    string
	score float64
}

// search returns up to k live neighbours of query, best first. Scores are
// cosine similarity in [-1, 1]. Orphaned graph nodes are skipped.
func (m *memIndex) search(query []float32, k int) ([]hit, error) {
	if len(query) != m.dimension {
		return nil, deskerrors.New(deskerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query dimension %d does not match index dimension %d", len(query), m.dimension), nil).
			WithDetail("expected", m.dimension).
			WithDetail("got", len(query))
	}
	if len(m.idMap) == 0 || k <= 0 {
		return nil, nil
	}

	// Over-fetch to cover lazily deleted nodes still present in the graph.
	fetchK := k + (m.graph.Len() - len(m.idMap))

	nodes := m.graph.Search(query, fetchK)
	hits := make([]hit, 0, k)
	for _, node := range nodes {
		id, ok := m.keyMap[node.Key]
		if !ok {
			continue
		}
		hits = append(hits, hit{
			id:    id,
			score: 1.0 - float64(m.graph.Distance(query, node.Value)),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// count returns the number of live vectors.
func (m *memIndex) count() int {
	return len(m.idMap)
}

// Index is the shared handle services search and maintain. All operations
// are serialised by one mutex; readers revalidate the on-disk artifact
// before searching so writes from other processes become visible.
type Index struct {
	mu   sync.Mutex
	mem  *memIndex
	path string

	// loadedMtime is the artifact modification time the in-memory state
	// was built from; zero when the index has never been persisted.
	loadedMtime int64
}

// Dimension returns the index dimension.
func (ix *Index) Dimension() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.mem.dimension
}

// Ntotal returns the number of live vectors.
func (ix *Index) Ntotal() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.mem.count()
}
