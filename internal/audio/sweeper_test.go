package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RemovesOnlyOldArtifacts(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, age time.Duration) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		mod := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mod, mod))
		return path
	}

	stale := write(ArtifactPrefix+"stale.wav", time.Hour)
	fresh := write(ArtifactPrefix+"fresh.wav", time.Minute)
	foreign := write("unrelated.wav", time.Hour)

	s := NewSweeper(dir, 15*time.Minute)
	removed, err := s.Sweep(now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, foreign)
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	s := NewSweeper(t.TempDir(), time.Minute)
	assert.Error(t, s.Start("not a schedule"))
}

func TestSweeper_StartAndStop(t *testing.T) {
	s := NewSweeper(t.TempDir(), time.Minute)
	require.NoError(t, s.Start("@every 1h"))
	s.Stop()
}
