package vecindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

// indexArtifact is the on-disk format: the dimension header plus the full
// vector table. The HNSW graph is rebuilt on load; persisting only the
// vectors keeps the artifact self-describing and free of orphaned nodes.
type indexArtifact struct {
	Dimension int
	Vectors   map[string][]float32
}

// Open creates the index handle for path. An existing artifact is loaded;
// otherwise an empty index with the given dimension is created in memory
// (nothing is persisted until the first write). When dimension is 0 the
// artifact's stored dimension is adopted; a non-zero dimension that
// disagrees with the artifact is an error.
func Open(path string, dimension int) (*Index, error) {
	ix := &Index{path: path}

	art, mtime, err := readArtifact(path)
	if os.IsNotExist(err) {
		if dimension <= 0 {
			return nil, deskerrors.New(deskerrors.ErrCodeConfigInvalid,
				"index dimension required when no index file exists", nil)
		}
		ix.mem = newMemIndex(dimension)
		return ix, nil
	}
	if err != nil {
		return nil, deskerrors.New(deskerrors.ErrCodeIndexReload,
			"load index file", err).WithDetail("path", path)
	}
	if dimension > 0 && art.Dimension != dimension {
		return nil, deskerrors.New(deskerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index file dimension %d does not match embedding dimension %d", art.Dimension, dimension), nil).
			WithDetail("expected", dimension).
			WithDetail("got", art.Dimension)
	}

	ix.mem = buildMemIndex(art)
	ix.loadedMtime = mtime
	return ix, nil
}

// ReadDimension returns the dimension stored in the artifact at path, or 0
// when no artifact exists.
func ReadDimension(path string) (int, error) {
	art, _, err := readArtifact(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return art.Dimension, nil
}

func readArtifact(path string) (*indexArtifact, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = file.Close() }()

	var art indexArtifact
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&art); err != nil {
		return nil, 0, fmt.Errorf("decode index artifact: %w", err)
	}
	if art.Dimension <= 0 {
		return nil, 0, fmt.Errorf("index artifact has invalid dimension %d", art.Dimension)
	}
	return &art, info.ModTime().UnixNano(), nil
}

func buildMemIndex(art *indexArtifact) *memIndex {
	mem := newMemIndex(art.Dimension)
	for id, vec := range art.Vectors {
		// Vectors were validated on write; add cannot fail here.
		_ = mem.add(id, vec)
	}
	return mem
}

// persist writes the current state atomically (temp file + rename) under a
// cross-process file lock, then records the new modification time. Callers
// hold ix.mu.
func (ix *Index) persist() error {
	dir := filepath.Dir(ix.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "create index directory", err)
	}

	lock := flock.New(ix.path + ".lock")
	if err := lock.Lock(); err != nil {
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "acquire index lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmpPath := ix.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "create temp index file", err)
	}

	art := indexArtifact{
		Dimension: ix.mem.dimension,
		Vectors:   ix.mem.vectors,
	}
	writer := bufio.NewWriter(file)
	if err := gob.NewEncoder(writer).Encode(&art); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "encode index artifact", err)
	}
	if err := writer.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "flush index artifact", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "close temp index file", err)
	}
	if err := os.Rename(tmpPath, ix.path); err != nil {
		_ = os.Remove(tmpPath)
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "rename index file", err)
	}

	info, err := os.Stat(ix.path)
	if err != nil {
		return deskerrors.New(deskerrors.ErrCodeIndexPersist, "stat index file", err)
	}
	ix.loadedMtime = info.ModTime().UnixNano()
	return nil
}

// maybeReload swaps in the on-disk artifact when its modification time
// differs from the one the in-memory state was built from. A dimension
// change keeps the current index so searches stay consistent with the
// running embedder. Callers hold ix.mu.
func (ix *Index) maybeReload() {
	info, err := os.Stat(ix.path)
	if err != nil {
		// Never persisted, or deleted out from under us; keep serving the
		// in-memory state.
		return
	}
	mtime := info.ModTime().UnixNano()
	if mtime == ix.loadedMtime {
		return
	}

	art, mtime, err := readArtifact(ix.path)
	if err != nil {
		slog.Warn("index_reload_failed",
			slog.String("path", ix.path),
			slog.String("error", err.Error()))
		return
	}
	if art.Dimension != ix.mem.dimension {
		slog.Warn("index_reload_dimension_mismatch",
			slog.Int("current", ix.mem.dimension),
			slog.Int("file", art.Dimension))
		return
	}

	ix.mem = buildMemIndex(art)
	ix.loadedMtime = mtime
	slog.Info("index_reloaded",
		slog.String("path", ix.path),
		slog.Int("vectors", ix.mem.count()))
}

// Reload forces a reload check outside the search path. The file watcher
// calls this on write events.
func (ix *Index) Reload() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.maybeReload()
}
