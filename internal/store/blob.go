package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
	"github.com/kishika1sei/askdesk/internal/model"
)

// FileBlobStore stores uploaded files under a root directory. Stored paths
// are slash-separated and relative to the root; path traversal is rejected.
type FileBlobStore struct {
	root string
}

var _ model.BlobStore = (*FileBlobStore)(nil)

// NewFileBlobStore creates a blob store rooted at dir, creating it if
// needed.
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FileBlobStore{root: dir}, nil
}

// Save writes data under relativePath and returns the stored path.
func (s *FileBlobStore) Save(relativePath string, data []byte) (string, error) {
	full, err := s.resolve(relativePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob subdirectory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return filepath.ToSlash(relativePath), nil
}

// Delete removes a stored blob. Missing blobs are not an error.
func (s *FileBlobStore) Delete(storedPath string) error {
	full, err := s.resolve(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// ReadBytes returns the blob contents.
func (s *FileBlobStore) ReadBytes(storedPath string) ([]byte, error) {
	full, err := s.resolve(storedPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, deskerrors.New(deskerrors.ErrCodeBlobNotFound,
			"blob not found: "+storedPath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// ResolveFsPath returns the absolute filesystem path of a stored blob so
// extractors can open it directly.
func (s *FileBlobStore) ResolveFsPath(storedPath string) (string, error) {
	full, err := s.resolve(storedPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return "", deskerrors.New(deskerrors.ErrCodeBlobNotFound,
			"blob not found: "+storedPath, err)
	}
	return full, nil
}

func (s *FileBlobStore) resolve(storedPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storedPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob path %q", storedPath)
	}
	return filepath.Join(s.root, clean), nil
}
