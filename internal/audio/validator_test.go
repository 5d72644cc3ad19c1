package audio

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_AcceptsWav(t *testing.T) {
	path := writeWav(t, t.TempDir(), 2*time.Second)
	prober := &fixedProber{duration: 2 * time.Second}
	v := NewValidator(Limits{}, prober)

	res, err := v.Validate(context.Background(), path, "audio/wav")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "audio/wav", res.MediaType)
	assert.Equal(t, 2*time.Second, res.Duration)
	assert.Equal(t, 1, prober.calls)
}

func TestValidator_GenericDeclaredTypeFallsBackToSniffing(t *testing.T) {
	path := writeWav(t, t.TempDir(), time.Second)
	v := NewValidator(Limits{}, &fixedProber{duration: time.Second})

	for _, declared := range []string{"", "application/octet-stream"} {
		res, err := v.Validate(context.Background(), path, declared)
		require.NoError(t, err)
		assert.True(t, res.Valid, declared)
	}
}

func TestValidator_Rejections(t *testing.T) {
	dir := t.TempDir()
	wavPath := writeWav(t, dir, time.Second)

	emptyPath := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))

	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("definitely not audio"), 0o600))

	tests := []struct {
		name     string
		path     string
		declared string
		limits   Limits
		prober   *fixedProber
		status   int
		code     string
	}{
		{
			name:   "empty",
			path:   emptyPath,
			prober: &fixedProber{duration: time.Second},
			status: http.StatusBadRequest,
			code:   CodeEmptyAudio,
		},
		{
			name:   "too large",
			path:   wavPath,
			limits: Limits{MaxBytes: 10},
			prober: &fixedProber{duration: time.Second},
			status: http.StatusRequestEntityTooLarge,
			code:   CodeAudioTooLarge,
		},
		{
			name:     "declared type not allowed",
			path:     wavPath,
			declared: "video/mp4",
			prober:   &fixedProber{duration: time.Second},
			status:   http.StatusUnsupportedMediaType,
			code:     CodeUnsupportedFormat,
		},
		{
			name:     "content is not audio",
			path:     textPath,
			declared: "audio/wav",
			prober:   &fixedProber{duration: time.Second},
			status:   http.StatusUnsupportedMediaType,
			code:     CodeUnsupportedFormat,
		},
		{
			name:   "undecodable",
			path:   wavPath,
			prober: &fixedProber{err: errors.New("corrupt")},
			status: http.StatusUnsupportedMediaType,
			code:   CodeUnsupportedFormat,
		},
		{
			name:   "too long",
			path:   wavPath,
			prober: &fixedProber{duration: 301 * time.Second},
			status: http.StatusUnprocessableEntity,
			code:   CodeAudioTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.limits, tt.prober)

			res, err := v.Validate(context.Background(), tt.path, tt.declared)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.code, res.Code)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestValidator_DurationAtLimitIsAccepted(t *testing.T) {
	path := writeWav(t, t.TempDir(), time.Second)
	v := NewValidator(Limits{MaxDuration: 300 * time.Second}, &fixedProber{duration: 300 * time.Second})

	res, err := v.Validate(context.Background(), path, "audio/x-wav")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidator_CanceledProbeIsAnError(t *testing.T) {
	path := writeWav(t, t.TempDir(), time.Second)
	v := NewValidator(Limits{}, &fixedProber{err: context.Canceled})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Validate(ctx, path, "audio/wav")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidator_CheckSize(t *testing.T) {
	v := NewValidator(Limits{MaxBytes: 100}, &fixedProber{})

	_, ok := v.CheckSize(100)
	assert.True(t, ok)

	res, ok := v.CheckSize(101)
	assert.False(t, ok)
	assert.Equal(t, CodeAudioTooLarge, res.Code)

	res, ok = v.CheckSize(0)
	assert.False(t, ok)
	assert.Equal(t, CodeEmptyAudio, res.Code)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".wav", ExtensionFor("audio/x-wav"))
	assert.Equal(t, ".webm", ExtensionFor("audio/webm; codecs=opus"))
	assert.Equal(t, ".mp3", ExtensionFor("AUDIO/MPEG"))
	assert.Equal(t, ".audio", ExtensionFor("application/octet-stream"))
}
