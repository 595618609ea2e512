package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

// Store persists the set of keys already sent.
type Store interface {
	// Load returns every key recorded so far.
	Load(ctx context.Context) (Set, error)
	// Save records keys. It never removes keys that are already stored.
	Save(ctx context.Context, keys Set) error
}

// FileStore keeps the keys as an indented JSON array on disk.
type FileStore struct {
	path   string
	logger *logging.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, logger *logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &FileStore{path: path, logger: logger}
}

var _ Store = (*FileStore)(nil)

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the file. A missing, unreadable or malformed file yields an
// empty set and no error.
func (s *FileStore) Load(ctx context.Context) (Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(), nil
}

// Save writes the union of the on-disk keys and keys.
func (s *FileStore) Save(ctx context.Context, keys Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.read()
	merged.Merge(keys)
	data, err := encodeKeys(merged.Keys())
	if err != nil {
		return fmt.Errorf("dedup: encode sent log: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func (s *FileStore) read() Set {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("dedup: sent log unreadable, starting empty", "path", s.path, "error", err)
		}
		return NewSet()
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		s.logger.Warn("dedup: sent log malformed, starting empty", "path", s.path, "error", err)
		return NewSet()
	}
	return NewSet(keys...)
}

// encodeKeys renders an indented array without HTML escaping so Thai text
// stays readable in the file.
func encodeKeys(keys []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(keys); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("dedup: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("dedup: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("dedup: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("dedup: replace sent log: %w", err)
	}
	return nil
}
