// Package assets owns memory-mapped asset files. A Store is opened and closed
// explicitly by whoever needs it; there is no process-wide handle.
package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	ErrClosed   = errors.New("assets: store closed")
	ErrNotFound = errors.New("assets: entry not found")
	ErrCorrupt  = errors.New("assets: corrupt pack")
)

// Store is a read-only view of one file, mapped into memory on unix.
type Store struct {
	path string

	mu      sync.RWMutex
	data    []byte
	release func([]byte) error
	closed  bool
}

func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("assets: %s is a directory", path)
	}
	size := fi.Size()
	if size != int64(int(size)) {
		return nil, fmt.Errorf("assets: %s too large to map (%d bytes)", path, size)
	}

	s := &Store{path: path}
	if size == 0 {
		return s, nil
	}
	data, release, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("assets: map %s: %w", path, err)
	}
	s.data = data
	s.release = release
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Len is the mapped size in bytes, 0 after Close.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Bytes returns the mapping itself. It must not be written to. After Close
// it returns nil and slices obtained earlier must no longer be used; ReadAt
// is the checked accessor and reports ErrClosed.
func (s *Store) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("assets: negative offset %d", off)
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file. Calling it again is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	data := s.data
	s.data = nil
	if s.release != nil && data != nil {
		return s.release(data)
	}
	return nil
}
