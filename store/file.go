package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zero-day-ai/kgraph"
)

// FileStore keeps the artifact in a single file. Saves are atomic: data is
// written to a temporary file in the same directory and renamed over the
// artifact, so a concurrent reader sees either the old or the new artifact.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. An empty path selects
// DefaultArtifactPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultArtifactPath
	}
	return &FileStore{path: path}
}

// Path returns the artifact file path.
func (s *FileStore) Path() string { return s.path }

// Location implements ArtifactStore.
func (s *FileStore) Location() string { return s.path }

// Save implements ArtifactStore.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kgraph.NewStorageError("FileStore.Save", fmt.Errorf("failed to create directory %s: %w", dir, err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return kgraph.NewStorageError("FileStore.Save", fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return kgraph.NewStorageError("FileStore.Save", fmt.Errorf("failed to write artifact: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return kgraph.NewStorageError("FileStore.Save", fmt.Errorf("failed to sync artifact: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return kgraph.NewStorageError("FileStore.Save", fmt.Errorf("failed to close artifact: %w", err))
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return kgraph.NewStorageError("FileStore.Save", fmt.Errorf("failed to replace artifact: %w", err))
	}
	return nil
}

// Load implements ArtifactStore.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kgraph.NewNotFoundError("FileStore.Load", kgraph.ErrArtifactNotFound).
				WithContext(map[string]any{"path": s.path})
		}
		return nil, kgraph.NewStorageError("FileStore.Load", fmt.Errorf("failed to read artifact: %w", err))
	}
	return data, nil
}

// Close implements ArtifactStore. It is a no-op.
func (s *FileStore) Close() error { return nil }
