package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

const lockRetryDelay = 100 * time.Millisecond

// FileStore keeps mappings in a JSON file. Writes go through a temp file and
// rename while holding an exclusive lock on "<path>.lock".
type FileStore struct {
	path string
	lock *flock.Flock
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the mapping file. A missing file yields an empty list.
func (s *FileStore) Load(_ context.Context) ([]Mapping, error) {
	mappings, err := Load(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("Mapping file not found: %s", s.path)
		return []Mapping{}, nil
	}
	return mappings, err
}

func (s *FileStore) Save(ctx context.Context, mappings []Mapping) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create mapping directory: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Warn("Failed to release mapping lock %s: %v", s.path, err)
		}
	}()

	return Save(s.path, mappings)
}

// Load reads mappings from a JSON file.
func Load(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var mappings []Mapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if mappings == nil {
		mappings = []Mapping{}
	}
	return mappings, nil
}

// Save writes mappings to path with indentation, replacing the file atomically.
func Save(path string, mappings []Mapping) error {
	content, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
