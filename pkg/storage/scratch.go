package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Scratch manages short-lived media files in one directory. Every file it
// creates is tracked until removed so a shutdown can sweep leftovers.
type Scratch struct {
	dir   string
	owned bool

	mu    sync.Mutex
	files map[string]bool
}

// NewScratch creates a scratch area in dir. An empty dir creates a private
// temporary directory that Close removes.
func NewScratch(dir string) (*Scratch, error) {
	owned := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "sigmabot-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
		dir = tmp
		owned = true
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	return &Scratch{
		dir:   dir,
		owned: owned,
		files: make(map[string]bool),
	}, nil
}

// Dir returns the scratch directory
func (s *Scratch) Dir() string {
	return s.dir
}

// Save copies r into a new uniquely named file with the given extension and
// returns its path and size
func (s *Scratch) Save(r io.Reader, ext string) (string, int64, error) {
	filename := filepath.Join(s.dir, uuid.NewString()+ext)

	n, err := s.writeAtomic(filename, r)
	if err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	s.files[filename] = true
	s.mu.Unlock()

	return filename, n, nil
}

// Overwrite atomically replaces the contents of a file created by Save
func (s *Scratch) Overwrite(path string, data []byte) error {
	s.mu.Lock()
	tracked := s.files[path]
	s.mu.Unlock()
	if !tracked {
		return fmt.Errorf("not a scratch file: %s", path)
	}

	_, err := s.writeAtomic(path, bytes.NewReader(data))
	return err
}

// writeAtomic writes through a temporary file and renames it into place
func (s *Scratch) writeAtomic(filename string, r io.Reader) (int64, error) {
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to write media data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}

// Remove deletes a scratch file. Removing a missing file is not an error.
func (s *Scratch) Remove(path string) error {
	s.mu.Lock()
	delete(s.files, path)
	s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove scratch file: %w", err)
	}
	return nil
}

// Count returns the number of files currently tracked
func (s *Scratch) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Close removes every tracked file, and the directory itself when the
// scratch area created it
func (s *Scratch) Close() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	var firstErr error
	for _, p := range paths {
		if err := s.Remove(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.owned {
		if err := os.RemoveAll(s.dir); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove scratch directory: %w", err)
		}
	}
	return firstErr
}
