package main

import (
	"errors"
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/ethanbaker/voicechat/pkg/sdk"
)

// respondEphemeral sends a response that is only visible to the user who invoked the command
func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
}

// deferReply sends a deferred response to acknowledge the interaction
func deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
}

// editFollowup edits the initial response to an interaction with new content
func editFollowup(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	// Chunking handled simply: send first chunk, then followups.
	chunks := chunkString(content, 1900)
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &chunks[0]})
	for _, c := range chunks[1:] {
		_, _ = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: c})
	}
}

// reply posts content to a channel in message-sized chunks
func reply(s *discordgo.Session, channelID, content string) {
	for _, c := range chunkString(content, 1900) {
		if _, err := s.ChannelMessageSend(channelID, c); err != nil {
			log.Printf("[DISCORD]: failed to send message to %s: %v", channelID, err)
			return
		}
	}
}

// errorReply tells the channel a voice turn failed, using the backend's message when there is one
func errorReply(s *discordgo.Session, channelID, prefix string, err error) {
	log.Printf("[DISCORD]: %s in %s: %v", prefix, channelID, err)
	reply(s, channelID, fmt.Sprintf("%s: %s", prefix, describeError(err)))
}

// describeError turns backend errors into something worth showing a user
func describeError(err error) string {
	switch {
	case sdk.IsCode(err, "no_speech_detected"):
		return "I didn't hear anything in that recording."
	case sdk.IsCode(err, "audio_too_long"), sdk.IsCode(err, "audio_too_large"):
		return "that recording is too long."
	case sdk.IsCode(err, "unsupported_format"):
		return "I can't play that kind of file."
	case sdk.IsCode(err, "rate_limited"):
		return "I'm getting too many requests, try again in a moment."
	}

	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// audioAttachment returns the first attachment that looks like audio
func audioAttachment(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, att := range attachments {
		if att == nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(att.ContentType), "audio/") {
			return att
		}
		if mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(att.Filename))); strings.HasPrefix(mediaType, "audio/") {
			return att
		}
	}
	return nil
}

// quoteTranscript renders what the user said as a Discord quote
func quoteTranscript(transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return ""
	}
	return "> " + strings.ReplaceAll(transcript, "\n", "\n> ")
}

// replyFilename picks an attachment name matching the reply's media type
func replyFilename(contentType string) string {
	switch strings.ToLower(contentType) {
	case "audio/wav", "audio/x-wav":
		return "reply.wav"
	case "audio/ogg":
		return "reply.ogg"
	default:
		return "reply.mp3"
	}
}

// formatHistory renders stored messages oldest first
func formatHistory(messages []sdk.Message) string {
	if len(messages) == 0 {
		return "Nothing has been said yet."
	}

	var b strings.Builder
	for _, m := range messages {
		speaker := "You"
		if m.Role == "assistant" {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "**%s** (%s): %s\n", speaker, m.CreatedAt.Format("Jan 2 15:04"), m.Content)
	}
	return strings.TrimSpace(b.String())
}

// interactionUser returns the id of the user behind an interaction in a guild or DM
func interactionUser(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// chunkString splits a long string into smaller chunks, ensuring no chunk exceeds the specified size
func chunkString(s string, size int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for len(s) > size {
		// Try to split on paragraph or sentence boundaries
		split := findSplit(s[:size])
		out = append(out, strings.TrimSpace(s[:split]))
		s = s[split:]
	}
	if strings.TrimSpace(s) != "" {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// splitRe is a regex to find natural split points in text
var splitRe = regexp.MustCompile(`(?s)(.*?[\n\r]{2}|.*?[.!?])$`)

// findSplit finds the index of a good split point in the string
func findSplit(s string) int {
	m := splitRe.FindStringSubmatchIndex(s)
	if len(m) >= 4 {
		return m[3]
	}
	return len(s)
}
