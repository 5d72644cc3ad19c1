package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// VoiceActivityDetector decides when the speaker has finished by sampling the
// tail of a WAV file that is still being recorded
type VoiceActivityDetector struct {
	audioFile          string
	silenceThreshold   float64
	minSpeechDuration  time.Duration
	maxSilenceDuration time.Duration
	maxSpeechDuration  time.Duration
	window             time.Duration

	speechDetected bool
	speechStart    time.Time
	lastActivity   time.Time
}

// NewVoiceActivityDetector creates a new VAD instance
func NewVoiceActivityDetector(audioFile string) *VoiceActivityDetector {
	return &VoiceActivityDetector{
		audioFile:          audioFile,
		silenceThreshold:   SilenceThreshold,
		minSpeechDuration:  MinSpeechDuration,
		maxSilenceDuration: MaxSilenceDuration,
		maxSpeechDuration:  MaxSpeechDuration,
		window:             500 * time.Millisecond,
	}
}

// Monitor returns once speech has started and then stopped, or when ctx ends
func (vad *VoiceActivityDetector) Monitor(ctx context.Context) {
	// Give initial buffer time
	select {
	case <-ctx.Done():
		return
	case <-time.After(500 * time.Millisecond):
	}

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			amplitude, err := tailAmplitude(vad.audioFile, vad.window)
			if err != nil {
				// The recorder may not have written a full header yet
				continue
			}
			if vad.observe(amplitude, now) {
				return
			}
		}
	}
}

// observe feeds one amplitude sample and reports whether recording should stop
func (vad *VoiceActivityDetector) observe(amplitude float64, now time.Time) bool {
	if amplitude > vad.silenceThreshold {
		if !vad.speechDetected {
			vad.speechDetected = true
			vad.speechStart = now
			log.Println("[VAD]: Speech detected")
		}
		vad.lastActivity = now
	} else if vad.speechDetected {
		spoke := now.Sub(vad.speechStart)
		silent := now.Sub(vad.lastActivity)
		if spoke >= vad.minSpeechDuration && silent >= vad.maxSilenceDuration {
			log.Printf("[VAD]: End of speech detected (spoke for %.1fs, silent for %.1fs)", spoke.Seconds(), silent.Seconds())
			return true
		}
	}

	if vad.speechDetected && now.Sub(vad.speechStart) > vad.maxSpeechDuration {
		log.Println("[VAD]: Maximum recording time reached")
		return true
	}

	return false
}

// tailAmplitude returns the RMS amplitude (0..1) of the last window of a 16-bit PCM WAV file
func tailAmplitude(path string, window time.Duration) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if err := decoder.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("no PCM data yet: %w", err)
	}
	if decoder.BitDepth != 16 || decoder.NumChans == 0 || decoder.SampleRate == 0 {
		return 0, fmt.Errorf("unsupported recording format (%d-bit, %d channels)", decoder.BitDepth, decoder.NumChans)
	}

	dataStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	// Only whole frames are read, counted back from the end of what was written so far
	frameBytes := int64(decoder.NumChans) * 2
	available := (info.Size() - dataStart) / frameBytes * frameBytes
	want := int64(window.Seconds()*float64(decoder.SampleRate)) * frameBytes
	if want > available {
		want = available
	}
	if want <= 0 {
		return 0, nil
	}

	buf := make([]byte, want)
	if _, err := f.ReadAt(buf, dataStart+available-want); err != nil && err != io.EOF {
		return 0, err
	}

	var sum float64
	samples := len(buf) / 2
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(buf[i*2:]))) / 32768
		sum += s * s
	}

	return math.Sqrt(sum / float64(samples)), nil
}
