package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// Prober measures the playback duration of an audio file
type Prober interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// MediaProber reads WAV durations straight from the header and asks ffprobe
// about every other container
type MediaProber struct {
	FFProbePath string
}

// NewMediaProber creates a prober using the given ffprobe binary
func NewMediaProber(ffprobePath string) *MediaProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &MediaProber{FFProbePath: ffprobePath}
}

// Probe returns the duration of the file at path
func (p *MediaProber) Probe(ctx context.Context, path string) (time.Duration, error) {
	if d, ok := probeWav(path); ok {
		return d, nil
	}
	return p.probeFFProbe(ctx, path)
}

// probeWav reads the duration of a RIFF/WAVE file without decoding samples
func probeWav(path string) (time.Duration, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return 0, false
	}

	d, err := decoder.Duration()
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// probeFFProbe shells out to ffprobe for the container duration
func (p *MediaProber) probeFFProbe(ctx context.Context, path string) (time.Duration, error) {
	if _, err := exec.LookPath(p.FFProbePath); err != nil {
		return 0, fmt.Errorf("ffprobe not available: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.FFProbePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeDuration(stdout.String())
}

// parseProbeDuration parses ffprobe's "12.345000" output
func parseProbeDuration(out string) (time.Duration, error) {
	value := strings.TrimSpace(out)
	if value == "" || value == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}

	// Only the first line matters when a container reports several streams
	if line, _, found := strings.Cut(value, "\n"); found {
		value = strings.TrimSpace(line)
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration %q: %w", value, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("ffprobe reported non-positive duration %q", value)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
