package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/growthvault/internal/filex"
)

const fileSuffix = ".json"

// FileStore keeps one file per key in a directory and enforces a capacity
// over all keys.
type FileStore struct {
	dir   string
	limit int64
	// initErr is set when the directory could not be prepared; every
	// operation then fails with ErrStorageUnavailable.
	initErr error
}

// NewFileStore prepares dir and checks that it is writable. It never fails:
// an unusable directory yields a store that reports itself unavailable.
func NewFileStore(dir string, limit int64) *FileStore {
	s := &FileStore{dir: dir, limit: limit}

	abs, err := filex.EnsureDir(dir)
	if err != nil {
		s.initErr = err
		return s
	}
	s.dir = abs

	probe := filepath.Join(abs, ".probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		s.initErr = err
		return s
	}
	_ = os.Remove(probe)
	return s
}

// Available reports whether the directory is usable.
func (s *FileStore) Available() bool {
	return s.initErr == nil
}

// Limit returns the capacity in bytes.
func (s *FileStore) Limit() int64 {
	return s.limit
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

func (s *FileStore) unavailable() error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, s.initErr)
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if !s.Available() {
		return nil, s.unavailable()
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapFSError("read", key, err)
	}
	return data, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if !s.Available() {
		return s.unavailable()
	}
	if err := checkQuota(ctx, s, BackendFile, key, value, s.limit); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(s.path(key), value, 0o600); err != nil {
		return wrapFSError("write", key, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if !s.Available() {
		return s.unavailable()
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapFSError("delete", key, err)
	}
	return nil
}

// Size is the total size of all stored values. Temporary files of writes in
// progress are not counted.
func (s *FileStore) Size(_ context.Context) (int64, error) {
	if !s.Available() {
		return 0, s.unavailable()
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, wrapFSError("list", s.dir, err)
	}
	var total int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

func wrapFSError(op, key string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s %s: %v", ErrStorageUnavailable, op, key, err)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
