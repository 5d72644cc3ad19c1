package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethanbaker/voicechat/pkg/sdk"
	"github.com/ethanbaker/voicechat/pkg/utils"
)

const (
	// Session management constants
	SessionTimeout = 10 * time.Minute // Idle time after which a new session is started

	// Audio constants
	AudioSampleRate = 16000                     // Sample rate for audio recording
	AudioFileName   = "voicechat_recording.wav" // Temporary recording
	ReplyFileName   = "voicechat_reply.mp3"     // Temporary reply audio

	// Voice Activity Detection constants
	SilenceThreshold   = 0.01             // RMS amplitude below which audio counts as silence
	MinSpeechDuration  = 1 * time.Second  // Minimum duration of speech
	MaxSilenceDuration = 2 * time.Second  // Silence that ends an utterance
	MaxSpeechDuration  = 30 * time.Second // Longest utterance recorded
	MaxRecordDuration  = 60 * time.Second // Safety limit for one recording, including leading silence
)

// players are tried in order to play the reply audio
var players = [][]string{
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
	{"mpg123", "-q"},
	{"afplay"},
}

// VoiceAssistant records utterances, sends them to the voice backend and plays the answers
type VoiceAssistant struct {
	config *utils.Config
	api    *sdk.Client
	player []string

	// Session management
	currentSessionID string
	lastTurnTime     time.Time
}

// NewVoiceAssistant creates a new voice assistant instance
func NewVoiceAssistant(cfg *utils.Config) (*VoiceAssistant, error) {
	// Validate required configuration
	backendURL := cfg.Get("BACKEND_BASE_URL")
	if backendURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL not set in config or environment")
	}

	backendAPIKey := cfg.Get("BACKEND_API_KEY")
	if backendAPIKey == "" {
		return nil, fmt.Errorf("BACKEND_API_KEY not set in config or environment")
	}

	return &VoiceAssistant{
		config: cfg,
		api:    sdk.NewClient(backendURL, backendAPIKey),
	}, nil
}

// Start begins the voice assistant main loop
func (va *VoiceAssistant) Start(ctx context.Context) error {
	log.Println("[LISTEN]: Voice assistant started. Say something to begin...")

	// Check if required tools are available
	if err := va.checkDependencies(); err != nil {
		return fmt.Errorf("dependency check failed: %w", err)
	}

	// Main voice interaction loop
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if err := va.processVoiceInteraction(ctx); err != nil {
					log.Printf("[LISTEN]: Error processing voice interaction: %v", err)
					time.Sleep(2 * time.Second) // Brief pause before trying again
				}
			}
		}
	}()

	return nil
}

// Stop gracefully stops the voice assistant
func (va *VoiceAssistant) Stop() error {
	log.Println("[LISTEN]: Stopping voice assistant...")

	// Remove any temporary audio files
	for _, name := range []string{AudioFileName, ReplyFileName} {
		if err := os.Remove(filepath.Join(os.TempDir(), name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

// checkDependencies verifies that required external tools are available
func (va *VoiceAssistant) checkDependencies() error {
	_, arecordErr := exec.LookPath("arecord")
	_, ffmpegErr := exec.LookPath("ffmpeg")
	if arecordErr != nil && ffmpegErr != nil {
		return fmt.Errorf("no audio recording tool found (need arecord or ffmpeg)")
	}

	for _, p := range players {
		if _, err := exec.LookPath(p[0]); err == nil {
			va.player = p
			break
		}
	}
	if va.player == nil {
		log.Println("[LISTEN]: Warning - no audio player found (ffplay, mpg123, afplay), replies will only be logged")
	}

	return nil
}

// processVoiceInteraction handles one complete voice interaction cycle
func (va *VoiceAssistant) processVoiceInteraction(ctx context.Context) error {
	log.Println("[LISTEN]: Listening for speech... (Speak now)")

	// Record audio from user with voice activity detection
	audioFile, err := va.recordAudio(ctx)
	if err != nil {
		return fmt.Errorf("failed to record audio: %w", err)
	}
	defer os.Remove(audioFile) // Clean up audio file

	// Check if we actually got some audio content
	if info, err := os.Stat(audioFile); err != nil || info.Size() < 1000 { // Less than 1KB suggests no real audio
		log.Println("[LISTEN]: No significant audio detected, listening again...")
		time.Sleep(1 * time.Second)
		return nil
	}

	log.Println("[LISTEN]: Audio captured, sending turn...")

	resp, err := va.sendTurn(ctx, audioFile)
	if sdk.IsCode(err, "no_speech_detected") {
		log.Println("[LISTEN]: No clear speech detected, listening again...")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to send turn: %w", err)
	}

	log.Printf("[LISTEN]: User said: %s", resp.Transcript)
	if !resp.Persisted {
		log.Printf("[LISTEN]: Warning - turn was not saved (%s), the assistant will not remember it", resp.TurnError)
	}

	// Play the spoken reply
	if err := va.playReply(ctx, resp.Audio); err != nil {
		log.Printf("[LISTEN]: Warning - failed to play response: %v", err)
	}

	// Brief pause before listening again
	time.Sleep(1 * time.Second)

	return nil
}

// sendTurn uploads a recording, continuing the current session unless it went idle
func (va *VoiceAssistant) sendTurn(ctx context.Context, audioFile string) (*sdk.TurnResponse, error) {
	sessionID := va.currentSessionID
	if time.Since(va.lastTurnTime) > SessionTimeout {
		sessionID = ""
	}

	f, err := os.Open(audioFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resp, err := va.api.SendTurn(ctx, sessionID, filepath.Base(audioFile), "audio/wav", f)
	if err != nil {
		return nil, err
	}

	if resp.SessionID != va.currentSessionID {
		log.Printf("[LISTEN]: Using session %s", resp.SessionID)
	}
	va.currentSessionID = resp.SessionID
	va.lastTurnTime = time.Now()

	return resp, nil
}

// recordAudio streams audio from the microphone with voice activity detection
func (va *VoiceAssistant) recordAudio(ctx context.Context) (string, error) {
	audioFile := filepath.Join(os.TempDir(), AudioFileName)
	_ = os.Remove(audioFile)

	// Create a context with timeout as a safety measure
	recordCtx, cancel := context.WithTimeout(ctx, MaxRecordDuration)
	defer cancel()

	var cmd *exec.Cmd
	if _, err := exec.LookPath("arecord"); err == nil {
		cmd = exec.CommandContext(recordCtx, "arecord",
			"-D", "default", // Default audio device
			"-f", "S16_LE", // 16-bit little-endian format
			"-c", "1", // Mono
			"-r", strconv.Itoa(AudioSampleRate),
			audioFile,
		)
	} else {
		// Fallback to ffmpeg with PulseAudio
		cmd = exec.CommandContext(recordCtx, "ffmpeg",
			"-f", "pulse",
			"-i", "default",
			"-ar", strconv.Itoa(AudioSampleRate),
			"-ac", "1",
			"-c:a", "pcm_s16le",
			"-y",
			audioFile,
		)
	}

	// Start the recording process
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", filepath.Base(cmd.Path), err)
	}

	// Record until the speaker stops or the safety limit is reached
	NewVoiceActivityDetector(audioFile).Monitor(recordCtx)

	// Stop the recording process
	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}
	_ = cmd.Wait()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	return audioFile, nil
}

// playReply writes the reply audio to a temporary file and plays it
func (va *VoiceAssistant) playReply(ctx context.Context, audio []byte) error {
	if va.player == nil {
		log.Printf("[LISTEN]: Received %d bytes of reply audio (no player available)", len(audio))
		return nil
	}

	replyFile := filepath.Join(os.TempDir(), ReplyFileName)
	if err := os.WriteFile(replyFile, audio, 0o600); err != nil {
		return err
	}
	defer os.Remove(replyFile)

	args := append(append([]string{}, va.player[1:]...), replyFile)
	return exec.CommandContext(ctx, va.player[0], args...).Run()
}
