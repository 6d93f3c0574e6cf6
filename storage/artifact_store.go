package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DirStore keeps artifacts as files in a single directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir. The directory is created lazily
// on the first write.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the backing directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Publish stages every artifact in a temp file first, then swaps them into
// place. If any swap fails the earlier ones are put back, so readers see
// either the whole new set or the whole old one.
func (s *DirStore) Publish(artifacts ...Artifact) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("artifact: create dir %q: %w", s.dir, err)
	}

	staged := make([]string, 0, len(artifacts))
	defer func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()
	for _, a := range artifacts {
		tmp, err := s.stage(a)
		if err != nil {
			return err
		}
		staged = append(staged, tmp)
	}

	var swapped []swap
	for i, a := range artifacts {
		sw := swap{target: filepath.Join(s.dir, a.Name)}
		if _, err := os.Stat(sw.target); err == nil {
			sw.prev = staged[i] + ".prev"
			if err := os.Rename(sw.target, sw.prev); err != nil {
				restore(swapped)
				return fmt.Errorf("artifact: publish %s: %w", sw.target, err)
			}
		}
		swapped = append(swapped, sw)
		if err := os.Rename(staged[i], sw.target); err != nil {
			restore(swapped)
			return fmt.Errorf("artifact: publish %s: %w", sw.target, err)
		}
	}

	for _, sw := range swapped {
		if sw.prev != "" {
			_ = os.Remove(sw.prev)
		}
	}
	return nil
}

func (s *DirStore) stage(a Artifact) (string, error) {
	tmp, err := os.CreateTemp(s.dir, "."+a.Name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("artifact: create %q: %w", a.Name, err)
	}
	if _, err := tmp.Write(a.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact: write %q: %w", a.Name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact: close %q: %w", a.Name, err)
	}
	return tmp.Name(), nil
}

// swap records a target replaced by Publish and where its old file went.
type swap struct {
	target string
	prev   string
}

func restore(swapped []swap) {
	for i := len(swapped) - 1; i >= 0; i-- {
		sw := swapped[i]
		if sw.prev == "" {
			_ = os.Remove(sw.target)
			continue
		}
		_ = os.Rename(sw.prev, sw.target)
	}
}

// Open returns ErrArtifactNotFound when the file does not exist.
func (s *DirStore) Open(name string) (io.ReadCloser, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact: %s: %w", path, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	return f, nil
}

// MemoryStore keeps artifacts in memory.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (s *MemoryStore) Publish(artifacts ...Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range artifacts {
		s.files[a.Name] = bytes.Clone(a.Data)
	}
	return nil
}

func (s *MemoryStore) Open(name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("artifact: %s: %w", name, ErrArtifactNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Has reports whether an artifact with the given name exists.
func (s *MemoryStore) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}
