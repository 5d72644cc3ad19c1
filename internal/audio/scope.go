// Package audio handles the ephemeral audio artifacts of a voice turn: intake
// validation, duration probing, transcoding and guaranteed cleanup.
package audio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ArtifactPrefix starts the name of every artifact file so orphans can be swept
const ArtifactPrefix = "voicechat-"

// Scope owns every artifact created during one pipeline invocation. Close
// deletes all of them exactly once; callers defer it right after NewScope.
type Scope struct {
	dir string

	mu     sync.Mutex
	paths  map[string]struct{}
	closed bool
}

// NewScope creates a scope that places artifacts in dir (os.TempDir when empty)
func NewScope(dir string) *Scope {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Scope{
		dir:   dir,
		paths: make(map[string]struct{}),
	}
}

// Reserve returns a new unique artifact path with the given extension and
// tracks it. The file itself is not created.
func (s *Scope) Reserve(ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", errors.New("artifact scope already closed")
	}

	path := filepath.Join(s.dir, ArtifactPrefix+uuid.NewString()+ext)
	s.paths[path] = struct{}{}
	return path, nil
}

// WriteFrom copies r into a new tracked artifact, reading at most limit bytes.
// It returns the path and the number of bytes copied; exceeded reports that r
// held more than limit bytes, in which case the copy stops early.
func (s *Scope) WriteFrom(r io.Reader, ext string, limit int64) (path string, written int64, exceeded bool, err error) {
	path, err = s.Reserve(ext)
	if err != nil {
		return "", 0, false, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to create artifact: %w", err)
	}
	defer f.Close()

	// Read one byte past the limit so oversize input is detected without buffering it all
	written, err = io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		return path, written, false, fmt.Errorf("failed to write artifact: %w", err)
	}

	if written > limit {
		return path, written, true, nil
	}

	if err := f.Sync(); err != nil {
		return path, written, false, fmt.Errorf("failed to flush artifact: %w", err)
	}

	return path, written, false, nil
}

// Release deletes one artifact now and stops tracking it. Deleting an artifact
// that is already gone is not an error.
func (s *Scope) Release(path string) error {
	s.mu.Lock()
	delete(s.paths, path)
	s.mu.Unlock()

	return removeArtifact(path)
}

// Paths returns the artifacts still owned by the scope
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.paths))
	for path := range s.paths {
		out = append(out, path)
	}
	return out
}

// Close deletes every tracked artifact. It is safe to call more than once.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	paths := s.paths
	s.paths = make(map[string]struct{})
	s.mu.Unlock()

	var errs []error
	for path := range paths {
		if err := removeArtifact(path); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// removeArtifact deletes a file, treating "already gone" as success
func removeArtifact(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}
