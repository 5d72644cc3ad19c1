package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/ethanbaker/voicechat/pkg/retry"
)

// HistoryWindow is the number of prior entries included in a generation prompt
const HistoryWindow = 10

// ResponseGenerator produces the assistant's reply to an utterance
type ResponseGenerator struct {
	generator    TextGenerator
	policy       retry.Policy
	systemPrompt string
	params       GenerationParams
}

// NewResponseGenerator creates a response generator with a fixed system instruction
func NewResponseGenerator(generator TextGenerator, policy retry.Policy, systemPrompt string, params GenerationParams) *ResponseGenerator {
	if policy.Name == "" {
		policy.Name = "generation"
	}
	return &ResponseGenerator{
		generator:    generator,
		policy:       policy,
		systemPrompt: systemPrompt,
		params:       params,
	}
}

// BuildPrompt assembles system instruction + the newest HistoryWindow entries + the utterance
func (g *ResponseGenerator) BuildPrompt(history []ChatMessage, utterance string) []ChatMessage {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: g.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: RoleUser, Content: utterance})
	return messages
}

// Generate returns the non-empty reply for utterance given the prior conversation
func (g *ResponseGenerator) Generate(ctx context.Context, history []ChatMessage, utterance string) (string, error) {
	messages := g.BuildPrompt(history, utterance)

	reply, err := retry.Do(ctx, g.policy, func(ctx context.Context) (string, error) {
		return g.generator.Complete(ctx, messages, g.params)
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", apperr.EmptyGeneration("the assistant produced an empty reply")
	}

	return reply, nil
}
