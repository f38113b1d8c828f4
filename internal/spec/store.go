package spec

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Store loads specifications from disk, verifies their integrity, and keeps
// them cached for the process lifetime. Concurrent loads of the same file
// collapse into one read; the cache never evicts on its own and is cleared
// only explicitly (Clear, Forget, or a directory watcher calling them).
type Store struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Specification
	group singleflight.Group
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		logger: logger,
		cache:  make(map[string]*Specification),
	}
}

// Load returns the specification stored at path, reading and validating it
// at most once until the entry is forgotten.
func (st *Store) Load(path string) (*Specification, error) {
	key := filepath.Clean(path)

	st.mu.RLock()
	s, ok := st.cache[key]
	st.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := st.group.Do(key, func() (any, error) {
		st.mu.RLock()
		s, ok := st.cache[key]
		st.mu.RUnlock()
		if ok {
			return s, nil
		}

		data, err := os.ReadFile(key)
		if err != nil {
			return nil, fmt.Errorf("read specification: %w", err)
		}
		s, err = Decode(data)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}

		st.mu.Lock()
		st.cache[key] = s
		st.mu.Unlock()
		st.logger.Debug("specification loaded", "path", key, "useCase", s.UseCaseID)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Specification), nil
}

// Forget drops one cached entry so the next Load re-reads the file.
func (st *Store) Forget(path string) {
	key := filepath.Clean(path)
	st.mu.Lock()
	delete(st.cache, key)
	st.mu.Unlock()
}

// Clear drops every cached specification.
func (st *Store) Clear() {
	st.mu.Lock()
	st.cache = make(map[string]*Specification)
	st.mu.Unlock()
}

// Size returns the number of cached specifications.
func (st *Store) Size() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.cache)
}

// Save encodes the specification and writes it atomically: temp file in the
// destination directory, write, sync, re-read and fully re-validate, back
// up any existing file, then rename into place. The written record is
// cached under its path.
func (st *Store) Save(path string, s *Specification) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	key := filepath.Clean(path)
	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create specification dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".punit-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file for validation: %w", err)
	}
	saved, err := Decode(written)
	if err != nil {
		return fmt.Errorf("validate written specification: %w", err)
	}

	if _, err := os.Stat(key); err == nil {
		if err := copyFile(key, key+".bak"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, key); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}

	st.mu.Lock()
	st.cache[key] = saved
	st.mu.Unlock()
	st.logger.Info("specification saved", "path", key, "useCase", saved.UseCaseID)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
