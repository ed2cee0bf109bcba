package vecindex

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kishika1sei/askdesk/internal/model"
)

// fakeChunkStore serves chunks and their documents from memory.
type fakeChunkStore struct {
	chunks map[string]*model.Chunk
	docs   map[string]*model.Document
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{
		chunks: map[string]*model.Chunk{},
		docs:   map[string]*model.Document{},
	}
}

func (f *fakeChunkStore) put(id, documentID, departmentID string, vec []float32) {
	if _, ok := f.docs[documentID]; !ok {
		f.docs[documentID] = &model.Document{
			ID:           documentID,
			Title:        "doc " + documentID,
			DepartmentID: departmentID,
		}
	}
	f.chunks[id] = &model.Chunk{ID: id, DocumentID: documentID, Embedding: vec}
}

func (f *fakeChunkStore) CreateBatch(ctx context.Context, chunks []*model.Chunk) error {
	for _, c := range chunks {
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeChunkStore) Get(ctx context.Context, id string) (*model.Chunk, error) {
	c, ok := f.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk %s not found", id)
	}
	return c, nil
}

func (f *fakeChunkStore) GetRefs(ctx context.Context, ids []string) ([]*model.ChunkRef, error) {
	refs := make([]*model.ChunkRef, 0, len(ids))
	for _, id := range ids {
		c, ok := f.chunks[id]
		if !ok {
			continue
		}
		refs = append(refs, &model.ChunkRef{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Page:       c.Page,
			Content:    c.Content,
			Document:   f.docs[c.DocumentID],
		})
	}
	return refs, nil
}

func (f *fakeChunkStore) ListIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	var ids []string
	for id, c := range f.chunks {
		if c.DocumentID == documentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	for id, c := range f.chunks {
		if c.DocumentID == documentID {
			delete(f.chunks, id)
		}
	}
	return nil
}

func (f *fakeChunkStore) ListAllOrdered(ctx context.Context, batchSize int, fn func(batch []*model.Chunk) error) error {
	ids := make([]string, 0, len(f.chunks))
	for id := range f.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := make([]*model.Chunk, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, f.chunks[id])
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeChunkStore) Count(ctx context.Context) (int, error) {
	return len(f.chunks), nil
}

// fakeCatalog resolves departments from a fixed map.
type fakeCatalog struct {
	byCode map[string]*model.Department
}

func newFakeCatalog(deps ...*model.Department) *fakeCatalog {
	byCode := map[string]*model.Department{}
	for _, d := range deps {
		byCode[d.Code] = d
	}
	return &fakeCatalog{byCode: byCode}
}

func (f *fakeCatalog) ListCodes(ctx context.Context) ([]string, error) {
	codes := make([]string, 0, len(f.byCode))
	for c := range f.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes, nil
}

func (f *fakeCatalog) GetByCode(ctx context.Context, code string) (*model.Department, error) {
	d, ok := f.byCode[code]
	if !ok {
		return nil, fmt.Errorf("department %s not found", code)
	}
	return d, nil
}

func (f *fakeCatalog) GetByID(ctx context.Context, id string) (*model.Department, error) {
	for _, d := range f.byCode {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("department %s not found", id)
}

func (f *fakeCatalog) Create(ctx context.Context, d *model.Department) error {
	f.byCode[d.Code] = d
	return nil
}

func newTestService(t *testing.T, dimension int, chunks *fakeChunkStore, catalog *fakeCatalog) *Service {
	t.Helper()
	ix, err := Open(indexPath(t), dimension)
	require.NoError(t, err)
	return NewService(ix, chunks, catalog, nil)
}

func axisVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestService_IndexChunksPersists(t *testing.T) {
	chunks := newFakeChunkStore()
	svc := newTestService(t, 4, chunks, newFakeCatalog())

	err := svc.IndexChunks(context.Background(), []*model.Chunk{
		{ID: "c1", Embedding: axisVec(4, 0)},
		{ID: "c2", Embedding: axisVec(4, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, svc.Index().Ntotal())

	// The artifact round-trips through a fresh handle.
	reopened, err := Open(svc.Index().path, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Ntotal())
}

func TestService_DeleteChunks(t *testing.T) {
	chunks := newFakeChunkStore()
	svc := newTestService(t, 4, chunks, newFakeCatalog())

	require.NoError(t, svc.IndexChunks(context.Background(), []*model.Chunk{
		{ID: "c1", Embedding: axisVec(4, 0)},
		{ID: "c2", Embedding: axisVec(4, 1)},
	}))

	require.NoError(t, svc.DeleteChunks(context.Background(), []string{"c1", "unknown"}))

	assert.Equal(t, 1, svc.Index().Ntotal())
}

func TestService_RebuildSkipsWhenChunkStoreEmpty(t *testing.T) {
	// Given: a live index but an empty chunk store
	chunks := newFakeChunkStore()
	svc := newTestService(t, 4, chunks, newFakeCatalog())
	require.NoError(t, svc.IndexChunks(context.Background(), []*model.Chunk{
		{ID: "c1", Embedding: axisVec(4, 0)},
	}))

	// When: I rebuild
	require.NoError(t, svc.Rebuild(context.Background()))

	// Then: the live index is not replaced by an empty one
	assert.Equal(t, 1, svc.Index().Ntotal())
}

func TestService_RebuildFromChunkStore(t *testing.T) {
	// Given: an index holding a stale entry and a store with the truth
	chunks := newFakeChunkStore()
	chunks.put("c1", "d1", "dep1", axisVec(4, 0))
	chunks.put("c2", "d1", "dep1", axisVec(4, 1))
	svc := newTestService(t, 4, chunks, newFakeCatalog())
	require.NoError(t, svc.IndexChunks(context.Background(), []*model.Chunk{
		{ID: "stale", Embedding: axisVec(4, 2)},
	}))

	// When: I rebuild
	require.NoError(t, svc.Rebuild(context.Background()))

	// Then: only the store's chunks remain
	assert.Equal(t, 2, svc.Index().Ntotal())

	results, err := svc.Search(context.Background(), axisVec(4, 2), 5, model.SearchFilters{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "stale", r.Chunk.ID)
	}
}

func TestService_SearchCompanyWide(t *testing.T) {
	chunks := newFakeChunkStore()
	chunks.put("c1", "d1", "dep1", []float32{1, 0, 0, 0})
	chunks.put("c2", "d2", "dep2", []float32{0.9, 0.1, 0, 0})
	svc := newTestService(t, 4, chunks, newFakeCatalog())
	require.NoError(t, svc.IndexChunks(context.Background(), []*model.Chunk{
		{ID: "c1", Embedding: []float32{1, 0, 0, 0}},
		{ID: "c2", Embedding: []float32{0.9, 0.1, 0, 0}},
	}))

	results, err := svc.Search(context.Background(), []float32{1, 0, 0, 0}, 2, model.SearchFilters{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "c2", results[1].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	require.NotNil(t, results[0].Chunk.Document)
	assert.Equal(t, "dep1", results[0].Chunk.Document.DepartmentID)
}

func TestService_SearchScopedByDepartmentCode(t *testing.T) {
	// Given: ten near chunks in dep1 and two farther chunks in dep2
	chunks := newFakeChunkStore()
	svc := newTestService(t, 4, chunks, newFakeCatalog(
		&model.Department{ID: "dep1-id", Code: "dep1"},
		&model.Department{ID: "dep2-id", Code: "dep2"},
	))

	var toIndex []*model.Chunk
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("near%d", i)
		vec := []float32{1, float32(i) * 0.01, 0, 0}
		chunks.put(id, "d1", "dep1-id", vec)
		toIndex = append(toIndex, &model.Chunk{ID: id, Embedding: vec})
	}
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("far%d", i)
		vec := []float32{0.2, 0, 1, float32(i) * 0.1}
		chunks.put(id, "d2", "dep2-id", vec)
		toIndex = append(toIndex, &model.Chunk{ID: id, Embedding: vec})
	}
	require.NoError(t, svc.IndexChunks(context.Background(), toIndex))

	// When: I search scoped to dep2 with topK=1
	results, err := svc.Search(context.Background(), []float32{1, 0, 0, 0}, 1,
		model.SearchFilters{DepartmentCode: "dep2"})
	require.NoError(t, err)

	// Then: expansion widened past the dep1 block and found a dep2 chunk
	require.Len(t, results, 1)
	assert.Equal(t, "dep2-id", results[0].Chunk.Document.DepartmentID)
}

func TestService_SearchUnknownDepartmentCode(t *testing.T) {
	chunks := newFakeChunkStore()
	svc := newTestService(t, 4, chunks, newFakeCatalog())

	_, err := svc.Search(context.Background(), axisVec(4, 0), 3,
		model.SearchFilters{DepartmentCode: "nope"})

	assert.Error(t, err)
}

func TestService_SearchSkipsStaleIndexEntries(t *testing.T) {
	// Given: an indexed id with no chunk row behind it
	chunks := newFakeChunkStore()
	chunks.put("live", "d1", "dep1", []float32{0.9, 0.1, 0, 0})
	svc := newTestService(t, 4, chunks, newFakeCatalog())
	require.NoError(t, svc.IndexChunks(context.Background(), []*model.Chunk{
		{ID: "ghost", Embedding: []float32{1, 0, 0, 0}},
		{ID: "live", Embedding: []float32{0.9, 0.1, 0, 0}},
	}))

	results, err := svc.Search(context.Background(), []float32{1, 0, 0, 0}, 2, model.SearchFilters{})
	require.NoError(t, err)

	// Then: the ghost entry is silently dropped
	require.Len(t, results, 1)
	assert.Equal(t, "live", results[0].Chunk.ID)
}

func TestService_SearchEmptyIndex(t *testing.T) {
	svc := newTestService(t, 4, newFakeChunkStore(), newFakeCatalog())

	results, err := svc.Search(context.Background(), axisVec(4, 0), 3, model.SearchFilters{})

	require.NoError(t, err)
	assert.Empty(t, results)
}
