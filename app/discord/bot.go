package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ethanbaker/voicechat/pkg/sdk"
	"github.com/ethanbaker/voicechat/pkg/utils"
)

const THREAD_ARCHIVE = 1440 // 24 hours

// Bot represents the Discord bot instance
type Bot struct {
	config *utils.Config      // Configuration struct
	dg     *discordgo.Session // Discord session
	api    *sdk.Client        // Backend API client
	http   *http.Client       // Attachment downloads

	conversations ConversationStore // Channel/thread -> voice session

	// Important configuration values
	botChannelID       string // Channel ID where the bot listens for voice messages
	threadChannelID    string // Channel ID where conversation threads are created
	guildID            string // Guild ID for slash commands (empty for global)
	historyLimit       int    // Messages shown by /history
	maxAttachmentBytes int64  // Largest attachment forwarded to the backend
}

// Create a new Discord bot instance
func NewBot(cfg *utils.Config, conversations ConversationStore) (*Bot, error) {
	// Get discord token
	token := cfg.Get("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN not set in config or environment")
	}

	// Get important configuration values
	botChannelID := cfg.Get("BOT_CHANNEL_ID")
	if botChannelID == "" {
		return nil, fmt.Errorf("BOT_CHANNEL_ID not set in config or environment")
	}

	threadChannelID := cfg.Get("THREAD_CHANNEL_ID")
	if threadChannelID == "" {
		return nil, fmt.Errorf("THREAD_CHANNEL_ID not set in config or environment")
	}

	historyLimit := cfg.GetIntWithDefault("HISTORY_LIMIT", 10)
	if historyLimit <= 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be a positive integer")
	}

	guildID := cfg.Get("GUILD_ID") // empty = global commands
	if guildID == "" {
		log.Println("GUILD_ID not set, using global commands")
	}

	// Get base URL and api key
	baseURL := cfg.Get("BACKEND_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL not set in config or environment")
	}

	apiKey := cfg.Get("BACKEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("BACKEND_API_KEY not set in config or environment")
	}

	// Create a new Discord session
	dg, err := discordgo.New("Bot " + strings.TrimPrefix(token, "Bot "))
	if err != nil {
		return nil, err
	}

	// Create the bot instance
	b := &Bot{
		config:             cfg,
		dg:                 dg,
		api:                sdk.NewClient(baseURL, apiKey),
		http:               &http.Client{Timeout: 30 * time.Second},
		conversations:      conversations,
		botChannelID:       botChannelID,
		threadChannelID:    threadChannelID,
		guildID:            guildID,
		historyLimit:       historyLimit,
		maxAttachmentBytes: cfg.GetInt64WithDefault("MAX_ATTACHMENT_BYTES", 25<<20),
	}

	// Intents
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages

	// Handlers
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Start the bot and connect to Discord
func (b *Bot) Start() error {
	if err := b.dg.Open(); err != nil {
		return err
	}

	// Register slash commands
	return b.registerCommands()
}

// Stop the bot and clean up resources
func (b *Bot) Stop() error {
	_ = b.unregisterCommands()
	return b.dg.Close()
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[DISCORD]: Logged in as: %s#%s", r.User.Username, r.User.Discriminator)
}

// onMessageCreate forwards voice messages posted in the bot channel or a bound thread
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from the bot itself
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}

	_, bound := b.conversations.Get(m.ChannelID)
	if m.ChannelID != b.botChannelID && !bound {
		return
	}

	att := audioAttachment(m.Attachments)
	if att == nil {
		if strings.TrimSpace(m.Content) != "" && m.ChannelID == b.botChannelID {
			reply(s, m.ChannelID, "Send me a voice message and I'll answer out loud.")
		}
		return
	}

	go b.handleVoiceMessage(m.ChannelID, m.Message, att)
}

// handleVoiceMessage runs one voice turn for an attachment and posts the spoken reply
func (b *Bot) handleVoiceMessage(channelID string, msg *discordgo.Message, att *discordgo.MessageAttachment) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_ = b.dg.ChannelTyping(channelID)

	audio, err := b.download(ctx, att)
	if err != nil {
		errorReply(b.dg, channelID, "Failed to download the voice message", err)
		return
	}

	// An unknown or stale session is replaced by the backend
	sessionID, _ := b.conversations.Get(channelID)

	resp, err := b.api.SendTurn(ctx, sessionID, att.Filename, att.ContentType, bytes.NewReader(audio))
	if err != nil {
		errorReply(b.dg, channelID, "I couldn't answer that", err)
		return
	}

	if resp.SessionID != "" && resp.SessionID != sessionID {
		if err := b.conversations.Set(channelID, resp.SessionID); err != nil {
			log.Printf("[DISCORD]: failed to bind session %s to channel %s: %v", resp.SessionID, channelID, err)
		}
	}

	content := quoteTranscript(resp.Transcript)
	if !resp.Persisted {
		content += "\n-# This turn could not be saved and won't be remembered."
	}

	_, err = b.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:   content,
		Reference: msg.Reference(),
		Files: []*discordgo.File{{
			Name:        replyFilename(resp.ContentType),
			ContentType: resp.ContentType,
			Reader:      bytes.NewReader(resp.Audio),
		}},
	})
	if err != nil {
		log.Printf("[DISCORD]: failed to post reply in %s: %v", channelID, err)
	}
}

// download fetches an attachment, refusing anything larger than maxAttachmentBytes
func (b *Bot) download(ctx context.Context, att *discordgo.MessageAttachment) ([]byte, error) {
	if int64(att.Size) > b.maxAttachmentBytes {
		return nil, fmt.Errorf("attachment is %d bytes, the limit is %d", att.Size, b.maxAttachmentBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxAttachmentBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.maxAttachmentBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", b.maxAttachmentBytes)
	}

	return data, nil
}
