package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// writeWav writes a 16-bit mono WAV of silence lasting d
func writeWav(t *testing.T, dir string, d time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	const rate = 16000
	samples := int(d.Seconds() * rate)

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())

	return path
}

// fixedProber reports a fixed duration or error
type fixedProber struct {
	duration time.Duration
	err      error
	calls    int
}

func (p *fixedProber) Probe(_ context.Context, _ string) (time.Duration, error) {
	p.calls++
	return p.duration, p.err
}
