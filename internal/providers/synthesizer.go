package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/ethanbaker/voicechat/pkg/retry"
)

// MaxSpeechInputChars is the longest text the synthesizer accepts
const MaxSpeechInputChars = 4096

// CodeTextTooLong rejects replies over MaxSpeechInputChars
const CodeTextTooLong = "text_too_long"

// SpeechSynthesizer converts replies to mp3 audio
type SpeechSynthesizer struct {
	provider SpeechProvider
	policy   retry.Policy
	voice    string
}

// NewSpeechSynthesizer creates a synthesizer speaking with voice
func NewSpeechSynthesizer(provider SpeechProvider, policy retry.Policy, voice string) *SpeechSynthesizer {
	if policy.Name == "" {
		policy.Name = "synthesis"
	}
	return &SpeechSynthesizer{provider: provider, policy: policy, voice: voice}
}

// Synthesize returns the audio for text. Text over the ceiling is rejected
// without calling the provider.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if n := utf8.RuneCountInString(text); n > MaxSpeechInputChars {
		return nil, apperr.Validation(CodeTextTooLong,
			fmt.Sprintf("reply is %d characters, the synthesis limit is %d", n, MaxSpeechInputChars))
	}

	audio, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]byte, error) {
		data, err := s.provider.Speak(ctx, text, s.voice)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, apperr.Upstream("synthesis", http.StatusBadGateway, 0, errors.New("provider returned no audio"))
		}
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	return audio, nil
}
