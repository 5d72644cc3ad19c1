package api

import (
	"fmt"
	"os"
	"time"

	"github.com/ethanbaker/voicechat/internal/audio"
	"github.com/ethanbaker/voicechat/internal/conversation"
	"github.com/ethanbaker/voicechat/internal/pipeline"
	"github.com/ethanbaker/voicechat/internal/providers"
	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/retry"
	"github.com/ethanbaker/voicechat/pkg/utils"
)

// components are the long-lived objects built once at startup and shared by every request
type components struct {
	store    session.Store
	pipeline *pipeline.Orchestrator
	resolver *conversation.Resolver
	loader   *conversation.ContextLoader
	sweeper  *audio.Sweeper
	limits   audio.Limits
	tempDir  string
}

// buildComponents wires the turn pipeline around store
func buildComponents(cfg *utils.Config, store session.Store) (*components, error) {
	profile, err := utils.LoadVoiceProfile(cfg.Get("VOICE_PROFILE_PATH"))
	if err != nil {
		return nil, err
	}

	openai, err := providers.NewOpenAI(providers.OpenAIConfig{
		APIKey:             cfg.Get("OPENAI_API_KEY"),
		BaseURL:            cfg.Get("OPENAI_BASE_URL"),
		TranscriptionModel: cfg.GetWithDefault("TRANSCRIPTION_MODEL", "whisper-1"),
		Language:           cfg.Get("TRANSCRIPTION_LANGUAGE"),
		ChatModel:          cfg.GetWithDefault("CHAT_MODEL", "gpt-4o-mini"),
		SpeechModel:        cfg.GetWithDefault("SPEECH_MODEL", "tts-1"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create providers: %w", err)
	}

	policy := func(name string) retry.Policy {
		p := retry.DefaultPolicy(name)
		p.MaxRetries = cfg.GetIntWithDefault("PROVIDER_MAX_RETRIES", p.MaxRetries)
		p.AttemptTimeout = cfg.GetDurationWithDefault("PROVIDER_CALL_TIMEOUT", p.AttemptTimeout)
		return p
	}

	defaults := audio.DefaultLimits()
	limits := audio.Limits{
		MaxBytes:     cfg.GetInt64WithDefault("AUDIO_MAX_BYTES", defaults.MaxBytes),
		MaxDuration:  cfg.GetDurationWithDefault("AUDIO_MAX_DURATION", defaults.MaxDuration),
		AllowedTypes: defaults.AllowedTypes,
	}

	tempDir := cfg.GetWithDefault("AUDIO_TEMP_DIR", os.TempDir())
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audio temp dir: %w", err)
	}

	validator := audio.NewValidator(limits, audio.NewMediaProber(cfg.GetWithDefault("FFPROBE_PATH", "ffprobe")))
	resolver := conversation.NewResolver(store)
	loader := conversation.NewContextLoader(store, cfg.GetIntWithDefault("CONTEXT_LIMIT", conversation.DefaultContextLimit))

	orchestrator := pipeline.New(pipeline.Dependencies{
		Validator:   validator,
		Transcoder:  audio.NewTranscoder(audio.NewFFmpegConverter(cfg.GetWithDefault("FFMPEG_PATH", "ffmpeg"))),
		Transcriber: providers.NewTranscriptionClient(openai, policy("transcription")),
		Resolver:    resolver,
		Loader:      loader,
		Generator: providers.NewResponseGenerator(openai, policy("generation"), profile.SystemPrompt, providers.GenerationParams{
			MaxTokens:   profile.MaxTokens,
			Temperature: profile.Temperature,
		}),
		Synthesizer: providers.NewSpeechSynthesizer(openai, policy("synthesis"), profile.Voice),
		Recorder:    conversation.NewTurnRecorder(store),
	}, pipeline.Config{
		Timeout:      cfg.GetDurationWithDefault("PIPELINE_TIMEOUT", pipeline.DefaultTimeout),
		TempDir:      tempDir,
		ContextLimit: cfg.GetIntWithDefault("CONTEXT_LIMIT", conversation.DefaultContextLimit),
	})

	return &components{
		store:    store,
		pipeline: orchestrator,
		resolver: resolver,
		loader:   loader,
		sweeper:  audio.NewSweeper(tempDir, cfg.GetDurationWithDefault("AUDIO_SWEEP_MAX_AGE", 15*time.Minute)),
		limits:   validator.Limits(),
		tempDir:  tempDir,
	}, nil
}
