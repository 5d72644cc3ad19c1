package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIConfig configures the OpenAI-backed providers
type OpenAIConfig struct {
	APIKey  string
	BaseURL string

	TranscriptionModel string
	Language           string
	ChatModel          string
	SpeechModel        string
}

// OpenAI implements SpeechRecognizer, TextGenerator and SpeechProvider. The
// SDK's own retries are disabled; retry policy lives in the clients.
type OpenAI struct {
	client openai.Client
	config OpenAIConfig
}

// NewOpenAI creates the OpenAI providers
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = string(openai.AudioModelWhisper1)
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = string(openai.ChatModelGPT4oMini)
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = string(openai.SpeechModelTTS1)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		config: cfg,
	}, nil
}

// Recognize transcribes audio with the configured transcription model
func (o *OpenAI) Recognize(ctx context.Context, audio io.Reader, filename string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filepath.Base(filename), contentTypeFor(filename)),
		Model: openai.AudioModel(o.config.TranscriptionModel),
	}
	if o.config.Language != "" {
		params.Language = openai.String(o.config.Language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", classify("transcription", err)
	}

	return resp.Text, nil
}

// Complete runs a chat completion and returns the first choice's text
func (o *OpenAI) Complete(ctx context.Context, messages []ChatMessage, params GenerationParams) (string, error) {
	body := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.config.ChatModel),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	if params.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(params.MaxTokens)
	}
	body.Temperature = openai.Float(params.Temperature)

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			body.Messages = append(body.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			body.Messages = append(body.Messages, openai.AssistantMessage(m.Content))
		default:
			body.Messages = append(body.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", classify("generation", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

// Speak synthesizes mp3 audio for text
func (o *OpenAI) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.config.SpeechModel),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, classify("synthesis", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify("synthesis", fmt.Errorf("failed to read synthesized audio: %w", err))
	}

	return data, nil
}

// classify converts an SDK error into an apperr.Error. Errors without an HTTP
// response (dial failures, per-attempt deadlines, broken streams) carry status 0
// and stay retryable.
func classify(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var retryAfter time.Duration
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"), time.Now())
		}
		return apperr.Upstream(provider, apiErr.StatusCode, retryAfter, err)
	}

	// The caller's own cancellation is not a provider fault
	if errors.Is(err, context.Canceled) {
		return err
	}

	return apperr.Upstream(provider, 0, 0, err)
}

// parseRetryAfter accepts both the delta-seconds and HTTP-date forms
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}

	return 0
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
