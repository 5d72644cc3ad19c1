// Package providers wraps the three external AI collaborators of a voice turn:
// speech recognition, text generation and speech synthesis. Every call goes
// through the retry wrapper; provider implementations return errors already
// classified with apperr.
package providers

import (
	"context"
	"io"
)

// Chat roles understood by text generation providers
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role/content pair sent to a text generation provider
type ChatMessage struct {
	Role    string
	Content string
}

// GenerationParams bound a single completion
type GenerationParams struct {
	MaxTokens   int64
	Temperature float64
}

// SpeechRecognizer converts audio to text
type SpeechRecognizer interface {
	Recognize(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// TextGenerator produces one reply for an ordered conversation
type TextGenerator interface {
	Complete(ctx context.Context, messages []ChatMessage, params GenerationParams) (string, error)
}

// SpeechProvider converts text to raw audio bytes
type SpeechProvider interface {
	Speak(ctx context.Context, text, voice string) ([]byte, error)
}
