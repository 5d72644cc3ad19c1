package providers

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ethanbaker/voicechat/pkg/retry"
)

// fastPolicy keeps the default attempt count without real backoff
func fastPolicy(name string) retry.Policy {
	p := retry.DefaultPolicy(name)
	p.BaseDelay = time.Millisecond
	p.AttemptTimeout = time.Second
	return p
}

// scripted returns queued results in order, repeating the last one
type scripted[T any] struct {
	mu      sync.Mutex
	results []T
	errs    []error
	calls   int
	last    []ChatMessage
	inputs  []string
}

func (s *scripted[T]) next() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := min(s.calls, len(s.errs)-1)
	s.calls++
	return s.results[i], s.errs[i]
}

type fakeRecognizer struct {
	scripted[string]
}

func (f *fakeRecognizer) Recognize(_ context.Context, audio io.Reader, filename string) (string, error) {
	data, _ := io.ReadAll(audio)
	f.mu.Lock()
	f.inputs = append(f.inputs, filename+":"+string(data))
	f.mu.Unlock()
	return f.next()
}

type fakeGenerator struct {
	scripted[string]
}

func (f *fakeGenerator) Complete(_ context.Context, messages []ChatMessage, _ GenerationParams) (string, error) {
	f.mu.Lock()
	f.last = messages
	f.mu.Unlock()
	return f.next()
}

type fakeSpeech struct {
	scripted[[]byte]
}

func (f *fakeSpeech) Speak(_ context.Context, text, _ string) ([]byte, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()
	return f.next()
}
