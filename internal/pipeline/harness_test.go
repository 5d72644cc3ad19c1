package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/ethanbaker/voicechat/internal/audio"
	"github.com/ethanbaker/voicechat/internal/conversation"
	"github.com/ethanbaker/voicechat/internal/providers"
	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/retry"
)

// wavClip returns a 16-bit mono WAV of silence lasting d
func wavClip(t *testing.T, d time.Duration) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	const rate = 16000
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, int(d.Seconds()*rate)),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

type fixedProber struct {
	duration time.Duration
}

func (p fixedProber) Probe(context.Context, string) (time.Duration, error) {
	return p.duration, nil
}

// copyConverter stands in for ffmpeg by copying the input
type copyConverter struct {
	fail bool
}

func (c copyConverter) Convert(_ context.Context, in, out string) error {
	if c.fail {
		return errors.New("ffmpeg exited with status 1")
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o600)
}

type fakeRecognizer struct {
	calls     atomic.Int32
	text      string
	err       error
	filenames []string
	mu        sync.Mutex
}

func (f *fakeRecognizer) Recognize(_ context.Context, r io.Reader, filename string) (string, error) {
	f.calls.Add(1)
	_, _ = io.Copy(io.Discard, r)
	f.mu.Lock()
	f.filenames = append(f.filenames, filename)
	f.mu.Unlock()
	return f.text, f.err
}

type fakeGenerator struct {
	calls   atomic.Int32
	reply   string
	err     error
	block   bool
	onCall  func()
	history []providers.ChatMessage
	mu      sync.Mutex
}

func (f *fakeGenerator) Complete(ctx context.Context, messages []providers.ChatMessage, _ providers.GenerationParams) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.history = messages
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall()
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

type fakeSpeech struct {
	calls atomic.Int32
	audio []byte
	err   error
}

func (f *fakeSpeech) Speak(context.Context, string, string) ([]byte, error) {
	f.calls.Add(1)
	return f.audio, f.err
}

// failingAppendStore rejects every turn write
type failingAppendStore struct {
	*session.InMemoryStore
}

func (s failingAppendStore) AppendMessages(context.Context, ...*session.Message) error {
	return errors.New("database is read-only")
}

// harness wires a real orchestrator around fake providers
type harness struct {
	dir        string
	store      session.Store
	recognizer *fakeRecognizer
	generator  *fakeGenerator
	speech     *fakeSpeech
	converter  copyConverter
	limits     audio.Limits
	duration   time.Duration
	timeout    time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		dir:        t.TempDir(),
		store:      session.NewInMemoryStore(),
		recognizer: &fakeRecognizer{text: "what is the weather"},
		generator:  &fakeGenerator{reply: "Sunny and warm."},
		speech:     &fakeSpeech{audio: []byte("ID3-mp3")},
		duration:   3 * time.Second,
	}
}

func (h *harness) orchestrator() *Orchestrator {
	policy := retry.DefaultPolicy("")
	policy.BaseDelay = time.Millisecond
	policy.AttemptTimeout = time.Second

	return New(Dependencies{
		Validator:   audio.NewValidator(h.limits, fixedProber{duration: h.duration}),
		Transcoder:  audio.NewTranscoder(h.converter),
		Transcriber: providers.NewTranscriptionClient(h.recognizer, policy),
		Resolver:    conversation.NewResolver(h.store),
		Loader:      conversation.NewContextLoader(h.store, 20),
		Generator:   providers.NewResponseGenerator(h.generator, policy, "be brief", providers.GenerationParams{MaxTokens: 100}),
		Synthesizer: providers.NewSpeechSynthesizer(h.speech, policy, "alloy"),
		Recorder:    conversation.NewTurnRecorder(h.store),
	}, Config{
		Timeout:      h.timeout,
		TempDir:      h.dir,
		ContextLimit: 20,
	})
}

// artifacts lists every file left in the artifact directory
func (h *harness) artifacts(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), audio.ArtifactPrefix) {
			names = append(names, e.Name())
		}
	}
	return names
}

func (h *harness) providerCalls() int {
	return int(h.recognizer.calls.Load() + h.generator.calls.Load() + h.speech.calls.Load())
}

func wavRequest(t *testing.T, owner, sessionID string) Request {
	return Request{
		OwnerID:     owner,
		SessionID:   sessionID,
		Audio:       bytes.NewReader(wavClip(t, 3*time.Second)),
		ContentType: "audio/wav",
	}
}
