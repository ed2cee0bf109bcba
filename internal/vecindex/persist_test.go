package vecindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

func indexPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "chunks.index")
}

func TestOpen_MissingFileCreatesEmptyIndex(t *testing.T) {
	ix, err := Open(indexPath(t), 4)

	require.NoError(t, err)
	assert.Equal(t, 4, ix.Dimension())
	assert.Equal(t, 0, ix.Ntotal())
}

func TestOpen_MissingFileRequiresDimension(t *testing.T) {
	_, err := Open(indexPath(t), 0)

	require.Error(t, err)
	assert.Equal(t, deskerrors.ErrCodeConfigInvalid, deskerrors.GetCode(err))
}

func TestPersistAndReopen_RoundTrip(t *testing.T) {
	path := indexPath(t)

	// Given: a persisted index with two vectors
	ix, err := Open(path, 4)
	require.NoError(t, err)
	ix.mu.Lock()
	require.NoError(t, ix.mem.add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, ix.mem.add("b", []float32{0, 1, 0, 0}))
	require.NoError(t, ix.persist())
	ix.mu.Unlock()

	// When: another handle opens the same path
	reopened, err := Open(path, 4)
	require.NoError(t, err)

	// Then: the vectors and dimension survive
	assert.Equal(t, 2, reopened.Ntotal())
	assert.Equal(t, 4, reopened.Dimension())

	reopened.mu.Lock()
	hits, err := reopened.mem.search([]float32{1, 0, 0, 0}, 1)
	reopened.mu.Unlock()
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].id)
}

func TestOpen_AdoptsStoredDimensionWhenUnspecified(t *testing.T) {
	path := indexPath(t)

	ix, err := Open(path, 7)
	require.NoError(t, err)
	ix.mu.Lock()
	require.NoError(t, ix.mem.add("a", make([]float32, 7)))
	require.NoError(t, ix.persist())
	ix.mu.Unlock()

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, reopened.Dimension())
}

func TestOpen_DimensionMismatchRejected(t *testing.T) {
	path := indexPath(t)

	ix, err := Open(path, 4)
	require.NoError(t, err)
	ix.mu.Lock()
	require.NoError(t, ix.mem.add("a", make([]float32, 4)))
	require.NoError(t, ix.persist())
	ix.mu.Unlock()

	_, err = Open(path, 8)

	require.Error(t, err)
	assert.Equal(t, deskerrors.ErrCodeDimensionMismatch, deskerrors.GetCode(err))
}

func TestReadDimension(t *testing.T) {
	path := indexPath(t)

	// Missing file reads as 0
	dim, err := ReadDimension(path)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	ix, err := Open(path, 5)
	require.NoError(t, err)
	ix.mu.Lock()
	require.NoError(t, ix.mem.add("a", make([]float32, 5)))
	require.NoError(t, ix.persist())
	ix.mu.Unlock()

	dim, err = ReadDimension(path)
	require.NoError(t, err)
	assert.Equal(t, 5, dim)
}

func TestReload_PicksUpExternalWrite(t *testing.T) {
	path := indexPath(t)

	// Given: two handles on the same artifact
	writer, err := Open(path, 4)
	require.NoError(t, err)
	reader, err := Open(path, 4)
	require.NoError(t, err)

	// When: the writer persists a new vector
	writer.mu.Lock()
	require.NoError(t, writer.mem.add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, writer.persist())
	writer.mu.Unlock()

	// Then: the reader sees it after a reload check
	reader.Reload()
	assert.Equal(t, 1, reader.Ntotal())
}

func TestReload_UnchangedMtimeIsNoop(t *testing.T) {
	path := indexPath(t)

	ix, err := Open(path, 4)
	require.NoError(t, err)
	ix.mu.Lock()
	require.NoError(t, ix.mem.add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, ix.persist())
	mem := ix.mem
	ix.mu.Unlock()

	ix.Reload()

	// The in-memory state is not rebuilt when the file has not changed.
	ix.mu.Lock()
	assert.Same(t, mem, ix.mem)
	ix.mu.Unlock()
}

func TestReload_DimensionChangeKeepsCurrentIndex(t *testing.T) {
	path := indexPath(t)

	reader, err := Open(path, 4)
	require.NoError(t, err)
	reader.mu.Lock()
	require.NoError(t, reader.mem.add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, reader.persist())
	reader.mu.Unlock()

	// When: another process replaces the artifact with a different dimension
	other := &Index{path: path, mem: newMemIndex(8)}
	other.mu.Lock()
	require.NoError(t, other.mem.add("x", make([]float32, 8)))
	require.NoError(t, other.persist())
	other.mu.Unlock()

	reader.Reload()

	// Then: the reader keeps serving its 4-dimensional state
	assert.Equal(t, 4, reader.Dimension())
	assert.Equal(t, 1, reader.Ntotal())
}

func TestReload_CorruptArtifactKeepsCurrentIndex(t *testing.T) {
	path := indexPath(t)

	ix, err := Open(path, 4)
	require.NoError(t, err)
	ix.mu.Lock()
	require.NoError(t, ix.mem.add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, ix.persist())
	ix.mu.Unlock()

	// When: the artifact is clobbered with garbage
	require.NoError(t, os.WriteFile(path, []byte("not a gob stream"), 0o644))

	ix.Reload()

	// Then: the in-memory state survives
	assert.Equal(t, 1, ix.Ntotal())
}

func TestPersist_WritesAtomically(t *testing.T) {
	path := indexPath(t)

	ix, err := Open(path, 4)
	require.NoError(t, err)
	ix.mu.Lock()
	require.NoError(t, ix.mem.add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, ix.persist())
	ix.mu.Unlock()

	// No temp file is left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// And the artifact itself exists
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
