package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ethanbaker/voicechat/pkg/sdk"
)

// onInteractionCreate handles interactions (slash commands)
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleApplicationCommand(i)
	}
}

// commandNames are the commands owned by this bot
var commandNames = []string{"conversation", "history", "forget"}

// registerCommands registers the bot's slash commands with Discord
func (b *Bot) registerCommands() error {
	// Define commands
	commands := []*discordgo.ApplicationCommand{
		{Name: "conversation", Description: "Start a voice conversation thread"},
		{Name: "history", Description: "Show what was said recently in this conversation"},
		{Name: "forget", Description: "Start over with a fresh session in this channel"},
	}

	// Register commands
	guildID := b.guildID // empty = global commands
	for _, cmd := range commands {
		if _, err := b.dg.ApplicationCommandCreate(b.dg.State.User.ID, guildID, cmd); err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}

	return nil
}

// unregisterCommands removes the bot's slash commands from Discord
func (b *Bot) unregisterCommands() error {
	guildID := b.guildID
	cmds, err := b.dg.ApplicationCommands(b.dg.State.User.ID, guildID)
	if err != nil {
		return err
	}

	for _, c := range cmds {
		for _, name := range commandNames {
			if c.Name == name {
				_ = b.dg.ApplicationCommandDelete(b.dg.State.User.ID, guildID, c.ID)
			}
		}
	}

	return nil
}

// handleApplicationCommand processes a slash command interaction
func (b *Bot) handleApplicationCommand(i *discordgo.InteractionCreate) {
	if i == nil {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "conversation":
		b.handleConversation(i)
	case "history":
		b.handleHistory(i)
	case "forget":
		b.handleForget(i)
	}
}

// handleConversation creates a thread bound to a fresh session
func (b *Bot) handleConversation(i *discordgo.InteractionCreate) {
	// Make sure this channel is the thread channel
	if i.ChannelID != b.threadChannelID {
		respondEphemeral(b.dg, i, fmt.Sprintf("Please use the <#%s> channel for conversations.", b.threadChannelID))
		return
	}

	// Acknowledge creation and defer
	deferReply(b.dg, i, false)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sess, err := b.api.CreateSession(ctx, &sdk.CreateSessionRequest{
			Metadata: map[string]any{"discord_channel": i.ChannelID, "discord_user": interactionUser(i)},
		})
		if err != nil {
			editFollowup(b.dg, i, fmt.Sprintf("Failed to create session: %v", err))
			return
		}

		// Create thread under the configured parent channel
		thread, err := b.dg.ThreadStartComplex(b.threadChannelID, &discordgo.ThreadStart{
			Name:                fmt.Sprintf("Voice conversation %s", sess.ID[:8]),
			AutoArchiveDuration: THREAD_ARCHIVE,
			Type:                discordgo.ChannelTypeGuildPublicThread,
		})
		if err != nil {
			editFollowup(b.dg, i, fmt.Sprintf("Failed to create thread: %v", err))
			return
		}

		// Bind conversation to thread
		if err := b.conversations.Set(thread.ID, sess.ID); err != nil {
			editFollowup(b.dg, i, fmt.Sprintf("Failed to bind session: %v", err))
			return
		}

		reply(b.dg, thread.ID, "Send a voice message here to talk.")
		editFollowup(b.dg, i, fmt.Sprintf("Created conversation thread <#%s>", thread.ID))
	}()
}

// handleHistory lists the newest messages of the channel's session
func (b *Bot) handleHistory(i *discordgo.InteractionCreate) {
	sessionID, ok := b.conversations.Get(i.ChannelID)
	if !ok {
		respondEphemeral(b.dg, i, "There is no conversation in this channel yet.")
		return
	}

	deferReply(b.dg, i, true)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		list, err := b.api.ListMessages(ctx, sessionID, b.historyLimit)
		if err != nil {
			editFollowup(b.dg, i, fmt.Sprintf("Failed to load history: %v", err))
			return
		}

		editFollowup(b.dg, i, formatHistory(list.Messages))
	}()
}

// handleForget drops the channel's binding so the next voice message starts a new session
func (b *Bot) handleForget(i *discordgo.InteractionCreate) {
	if err := b.conversations.Delete(i.ChannelID); err != nil {
		respondEphemeral(b.dg, i, fmt.Sprintf("Failed to reset: %v", err))
		return
	}
	respondEphemeral(b.dg, i, "Done. The next voice message starts a new conversation.")
}
