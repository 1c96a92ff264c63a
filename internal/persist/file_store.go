package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore keeps the latest snapshot in a single file, prefixed by its
// checksum. Saves go to a temp file in the same directory which is then
// renamed over the target.
type FileStore struct {
	path string
	log  *zap.Logger
}

func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	sum := checksum(data)
	if _, err := tmp.Write(sum[:]); err != nil {
		tmp.Close()
		return fmt.Errorf("write checksum: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	s.log.Debug("snapshot written", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return nil
}

func (s *FileStore) Latest(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) < checksumSize {
		return nil, fmt.Errorf("snapshot %s: %w", s.path, ErrChecksum)
	}
	data := raw[checksumSize:]
	if err := verify(data, raw[:checksumSize]); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.path, err)
	}
	return data, nil
}
