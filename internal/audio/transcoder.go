package audio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
)

// Transcription providers prefer 16 kHz mono PCM
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// Converter resamples an input file into a new output file
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// FFmpegConverter converts audio with the ffmpeg binary
type FFmpegConverter struct {
	Path       string
	SampleRate int
	Channels   int
}

// NewFFmpegConverter creates a converter targeting 16 kHz mono WAV
func NewFFmpegConverter(ffmpegPath string) *FFmpegConverter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegConverter{
		Path:       ffmpegPath,
		SampleRate: TargetSampleRate,
		Channels:   TargetChannels,
	}
}

// Convert runs ffmpeg to produce a 16-bit PCM WAV at outputPath
func (c *FFmpegConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if _, err := exec.LookPath(c.Path); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-ar", strconv.Itoa(c.SampleRate),
		"-ac", strconv.Itoa(c.Channels),
		"-c:a", "pcm_s16le",
		outputPath,
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// Transcoder normalizes validated audio for the transcription provider. It
// never fails the pipeline: when conversion is impossible the original
// artifact is used as-is.
type Transcoder struct {
	converter Converter
}

// NewTranscoder creates a transcoder around a converter
func NewTranscoder(converter Converter) *Transcoder {
	return &Transcoder{converter: converter}
}

// Prepare returns the path to hand to the transcription provider and whether
// it is a newly transcoded artifact. On success the original artifact is
// deleted immediately; both artifacts stay owned by scope.
func (t *Transcoder) Prepare(ctx context.Context, scope *Scope, inputPath string) (string, bool) {
	outputPath, err := scope.Reserve(".wav")
	if err != nil {
		log.Printf("[AUDIO]: WARNING transcoding skipped, could not reserve output artifact: %v", err)
		return inputPath, false
	}

	if err := t.converter.Convert(ctx, inputPath, outputPath); err != nil {
		log.Printf("[AUDIO]: WARNING transcoding failed, sending original audio to transcription (accuracy may drop): %v", err)
		if relErr := scope.Release(outputPath); relErr != nil {
			log.Printf("[AUDIO]: Warning, %v", relErr)
		}
		return inputPath, false
	}

	if err := scope.Release(inputPath); err != nil {
		log.Printf("[AUDIO]: Warning, %v", err)
	}

	return outputPath, true
}
