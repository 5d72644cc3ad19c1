package audio

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically deletes artifacts left behind by a crashed process.
// In-process cleanup is handled by Scope; this only catches what outlived it.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
}

// NewSweeper creates a sweeper for artifacts in dir older than maxAge
func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		cron:   cron.New(),
	}
}

// Start schedules the sweep using a cron spec (e.g. "@every 10m")
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		removed, err := s.Sweep(time.Now())
		if err != nil {
			log.Printf("[AUDIO]: Artifact sweep finished with errors: %v", err)
		}
		if removed > 0 {
			log.Printf("[AUDIO]: Removed %d orphaned audio artifacts", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep removes artifacts last modified before now-maxAge and returns how many were removed
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list artifact directory: %w", err)
	}

	cutoff := now.Add(-s.maxAge)
	removed := 0

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), ArtifactPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Deleted between ReadDir and Info
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := removeArtifact(filepath.Join(s.dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}
