package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_WriteFromAndClose(t *testing.T) {
	dir := t.TempDir()
	scope := NewScope(dir)

	path, written, exceeded, err := scope.WriteFrom(strings.NewReader("hello"), ".wav", 1024)
	require.NoError(t, err)
	assert.EqualValues(t, 5, written)
	assert.False(t, exceeded)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), ArtifactPrefix))
	assert.FileExists(t, path)

	require.NoError(t, scope.Close())
	assert.NoFileExists(t, path)
	assert.Empty(t, scope.Paths())

	// Second close is a no-op
	require.NoError(t, scope.Close())
}

func TestScope_WriteFromStopsPastLimit(t *testing.T) {
	scope := NewScope(t.TempDir())
	defer scope.Close()

	path, written, exceeded, err := scope.WriteFrom(bytes.NewReader(make([]byte, 4096)), ".bin", 100)
	require.NoError(t, err)
	assert.True(t, exceeded)
	assert.EqualValues(t, 101, written)
	assert.Contains(t, scope.Paths(), path)
}

func TestScope_ReleaseIsIdempotent(t *testing.T) {
	scope := NewScope(t.TempDir())
	defer scope.Close()

	path, _, _, err := scope.WriteFrom(strings.NewReader("data"), ".wav", 1024)
	require.NoError(t, err)

	require.NoError(t, scope.Release(path))
	assert.NoFileExists(t, path)
	require.NoError(t, scope.Release(path))
	assert.NotContains(t, scope.Paths(), path)
}

func TestScope_CloseIgnoresMissingFiles(t *testing.T) {
	scope := NewScope(t.TempDir())

	reserved, err := scope.Reserve(".wav")
	require.NoError(t, err)

	written, _, _, err := scope.WriteFrom(strings.NewReader("x"), ".wav", 10)
	require.NoError(t, err)
	require.NoError(t, os.Remove(written))

	// Neither the never-created nor the externally removed file is an error
	require.NoError(t, scope.Close())
	assert.NoFileExists(t, reserved)
}

func TestScope_ReserveAfterClose(t *testing.T) {
	scope := NewScope(t.TempDir())
	require.NoError(t, scope.Close())

	_, err := scope.Reserve(".wav")
	assert.Error(t, err)
}
