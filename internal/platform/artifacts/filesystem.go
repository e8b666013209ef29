package artifacts

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"aeye-server-go/internal/platform/errors"
)

// FileStore keeps artifacts under a root directory. Writes go through a temp
// file and a rename so readers never observe a partial image.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifacts.init", "failed to create artifact directory", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", errors.New(errors.KindStorage, "artifacts.key", fmt.Sprintf("invalid artifact key %q", key))
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(errors.KindStorage, "artifacts.put", "failed to create artifact directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return errors.Wrap(errors.KindStorage, "artifacts.put", "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(errors.KindStorage, "artifacts.put", "failed to write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.KindStorage, "artifacts.put", "failed to write artifact", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return errors.Wrap(errors.KindStorage, "artifacts.put", "failed to move artifact into place", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifacts.get", "failed to read artifact", err)
	}
	return data, nil
}

// Delete is idempotent.
func (s *FileStore) Delete(_ context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(errors.KindStorage, "artifacts.delete", "failed to delete artifact", err)
	}
	return nil
}
