package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const maxMessageLength = 2000

func truncate(text string) string {
	if len(text) > maxMessageLength {
		return text[:maxMessageLength-3] + "..."
	}
	return text
}

func (a *Adapter) Send(ctx context.Context, channelID, content string) (string, error) {
	m, err := a.session.ChannelMessageSend(channelID, truncate(content), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return m.ID, nil
}

func (a *Adapter) Reply(ctx context.Context, channelID, messageID, content string) (string, error) {
	m, err := a.session.ChannelMessageSendReply(channelID, truncate(content), &discordgo.MessageReference{
		ChannelID: channelID,
		MessageID: messageID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("reply to message: %w", err)
	}
	return m.ID, nil
}

func (a *Adapter) Edit(ctx context.Context, channelID, messageID, content string) error {
	if _, err := a.session.ChannelMessageEdit(channelID, messageID, truncate(content), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, channelID, messageID string) error {
	if err := a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (a *Adapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := a.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

func (a *Adapter) Typing(ctx context.Context, channelID string) error {
	if err := a.session.ChannelTyping(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("typing indicator: %w", err)
	}
	return nil
}
