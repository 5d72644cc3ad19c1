package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/ethanbaker/voicechat/pkg/retry"
)

// CodeTranscriptionFailed marks an exhausted or rejected transcription call
const CodeTranscriptionFailed = "transcription_failed"

// TranscriptionClient recognizes speech in a prepared audio artifact
type TranscriptionClient struct {
	recognizer SpeechRecognizer
	policy     retry.Policy
}

// NewTranscriptionClient creates a transcription client
func NewTranscriptionClient(recognizer SpeechRecognizer, policy retry.Policy) *TranscriptionClient {
	if policy.Name == "" {
		policy.Name = "transcription"
	}
	return &TranscriptionClient{recognizer: recognizer, policy: policy}
}

// Transcribe returns the trimmed text recognized in the artifact at path. The
// file is reopened on every attempt. filename carries the format hint sent to
// the provider. An empty result is returned as-is; deciding what silence means
// is up to the caller.
func (c *TranscriptionClient) Transcribe(ctx context.Context, path, filename string) (string, error) {
	text, err := retry.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", apperr.Internal("failed to open audio artifact", err)
		}
		defer f.Close()

		return c.recognizer.Recognize(ctx, f, filename)
	})
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.KindUpstreamTransient && e.Code == "" {
			e.Code = CodeTranscriptionFailed
		}
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}
