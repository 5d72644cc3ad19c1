package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is used when no voice profile overrides it
const DefaultSystemPrompt = "You are a friendly voice assistant. Answer in a few short, natural spoken sentences. " +
	"Do not use markdown, lists, code blocks or emoji since your reply will be read aloud."

// VoiceProfile holds the persona and generation parameters for spoken replies
type VoiceProfile struct {
	SystemPrompt     string  `yaml:"system_prompt"`
	SystemPromptPath string  `yaml:"system_prompt_path"` // Read instead of SystemPrompt when set
	Voice            string  `yaml:"voice"`
	MaxTokens        int64   `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
}

// DefaultVoiceProfile returns the built-in profile
func DefaultVoiceProfile() VoiceProfile {
	return VoiceProfile{
		SystemPrompt: DefaultSystemPrompt,
		Voice:        "alloy",
		MaxTokens:    300,
		Temperature:  0.7,
	}
}

// LoadVoiceProfile reads a YAML voice profile. Fields missing from the file keep
// their defaults. An empty path returns the default profile.
func LoadVoiceProfile(path string) (VoiceProfile, error) {
	profile := DefaultVoiceProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read voice profile %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse voice profile %s: %w", path, err)
	}

	// Prompt files are resolved relative to the profile
	if profile.SystemPromptPath != "" {
		promptPath := profile.SystemPromptPath
		if !filepath.IsAbs(promptPath) {
			promptPath = filepath.Join(filepath.Dir(path), promptPath)
		}

		prompt, err := LoadPrompt(promptPath)
		if err != nil {
			return profile, err
		}
		profile.SystemPrompt = prompt
	}

	if strings.TrimSpace(profile.SystemPrompt) == "" {
		return profile, fmt.Errorf("voice profile %s has an empty system prompt", path)
	}
	if profile.MaxTokens <= 0 {
		return profile, fmt.Errorf("voice profile %s: max_tokens must be positive", path)
	}
	if profile.Temperature < 0 || profile.Temperature > 2 {
		return profile, fmt.Errorf("voice profile %s: temperature must be within [0, 2]", path)
	}

	return profile, nil
}

// LoadPrompt loads prompt instructions from a specific file path
// The path must be exact - no fallback searching is performed
func LoadPrompt(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(content)), nil
}
