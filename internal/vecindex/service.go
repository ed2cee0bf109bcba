package vecindex

import (
	"context"
	"log/slog"

	"github.com/kishika1sei/askdesk/internal/model"
)

// Search expansion constants. Department filtering happens after the
// nearest-neighbour lookup, so the index is over-fetched and the fetch size
// doubles until enough scoped results survive or the cap is reached.
const (
	rebuildBatchSize   = 256
	searchExpansion    = 5
	maxSearchExpansion = 50
)

// Service exposes the index maintenance and search operations. It resolves
// raw neighbour ids against the chunk store and applies department scoping.
type Service struct {
	ix          *Index
	chunks      model.ChunkStore
	departments model.DepartmentCatalog
	logger      *slog.Logger
}

// NewService creates the index service.
func NewService(ix *Index, chunks model.ChunkStore, departments model.DepartmentCatalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ix: ix, chunks: chunks, departments: departments, logger: logger}
}

// Index returns the underlying index handle.
func (s *Service) Index() *Index {
	return s.ix
}

// IndexChunks adds the chunks' embeddings to the index and persists the new
// artifact. Existing ids are replaced.
func (s *Service) IndexChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.ix.mu.Lock()
	defer s.ix.mu.Unlock()
	s.ix.maybeReload()

	for _, c := range chunks {
		if err := s.ix.mem.add(c.ID, c.Embedding); err != nil {
			return err
		}
	}
	if err := s.ix.persist(); err != nil {
		return err
	}

	s.logger.Info("index_chunks_added",
		slog.Int("added", len(chunks)),
		slog.Int("ntotal", s.ix.mem.count()))
	return nil
}

// DeleteChunks removes ids from the index and persists. Unknown ids are
// ignored.
func (s *Service) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.ix.mu.Lock()
	defer s.ix.mu.Unlock()
	s.ix.maybeReload()

	s.ix.mem.remove(ids)
	if err := s.ix.persist(); err != nil {
		return err
	}

	s.logger.Info("index_chunks_deleted",
		slog.Int("deleted", len(ids)),
		slog.Int("ntotal", s.ix.mem.count()))
	return nil
}

// Rebuild reconstructs the index from every persisted chunk, streaming in
// id order, and atomically replaces the artifact. An empty chunk store
// aborts the rebuild so a live index is never replaced by an empty one.
func (s *Service) Rebuild(ctx context.Context) error {
	count, err := s.chunks.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		s.logger.Warn("index_rebuild_skipped_empty_chunk_store")
		return nil
	}

	fresh := newMemIndex(s.ix.Dimension())
	err = s.chunks.ListAllOrdered(ctx, rebuildBatchSize, func(batch []*model.Chunk) error {
		for _, c := range batch {
			if err := fresh.add(c.ID, c.Embedding); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.ix.mu.Lock()
	defer s.ix.mu.Unlock()
	s.ix.mem = fresh
	if err := s.ix.persist(); err != nil {
		return err
	}

	s.logger.Info("index_rebuilt", slog.Int("ntotal", fresh.count()))
	return nil
}

// Search returns up to topK chunks nearest to query within the given
// department scope, best first. Scores are cosine similarity in [-1, 1].
// Empty filters search company-wide.
func (s *Service) Search(ctx context.Context, query []float32, topK int, filters model.SearchFilters) ([]model.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	departmentID := filters.DepartmentID
	if departmentID == "" && filters.DepartmentCode != "" {
		dep, err := s.departments.GetByCode(ctx, filters.DepartmentCode)
		if err != nil {
			return nil, err
		}
		departmentID = dep.ID
	}

	s.ix.mu.Lock()
	s.ix.maybeReload()
	ntotal := s.ix.mem.count()
	s.ix.mu.Unlock()
	if ntotal == 0 {
		return nil, nil
	}

	searchK := min(ntotal, topK*searchExpansion)
	maxK := min(ntotal, topK*maxSearchExpansion)

	for {
		s.ix.mu.Lock()
		hits, err := s.ix.mem.search(query, searchK)
		s.ix.mu.Unlock()
		if err != nil {
			return nil, err
		}

		results, err := s.resolveScoped(ctx, hits, departmentID, topK)
		if err != nil {
			return nil, err
		}
		if len(results) >= topK || searchK >= maxK {
			if len(results) > topK {
				results = results[:topK]
			}
			return results, nil
		}
		searchK = min(maxK, searchK*2)
	}
}

// resolveScoped resolves raw hits against the chunk store and keeps only
// chunks whose document belongs to departmentID (all when empty), preserving
// score order, up to limit.
func (s *Service) resolveScoped(ctx context.Context, hits []hit, departmentID string, limit int) ([]model.SearchResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
		scores[h.id] = h.score
	}

	refs, err := s.chunks.GetRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.ChunkRef, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}

	results := make([]model.SearchResult, 0, limit)
	for _, h := range hits {
		ref, ok := byID[h.id]
		if !ok {
			// Index entry with no chunk row; stale until the next rebuild.
			continue
		}
		if departmentID != "" && ref.Document.DepartmentID != departmentID {
			continue
		}
		results = append(results, model.SearchResult{Chunk: ref, Score: scores[h.id]})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}
