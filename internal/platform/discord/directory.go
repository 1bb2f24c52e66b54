package discord

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/parrothq/parrot/internal/platform"
)

// discordEpoch is the millisecond origin of Discord snowflake ids.
const discordEpoch = 1420070400000

// snowflakeAt builds the smallest snowflake for an instant, used to page the
// message history around a timestamp.
func snowflakeAt(at time.Time) string {
	ms := at.UnixMilli() - discordEpoch
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms<<22, 10)
}

func createdAt(id string) time.Time {
	ts, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func toKind(t discordgo.ChannelType) platform.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return platform.KindText
	case discordgo.ChannelTypeGuildNews:
		return platform.KindAnnouncement
	case discordgo.ChannelTypeGuildVoice:
		return platform.KindVoice
	case discordgo.ChannelTypeGuildStageVoice:
		return platform.KindStage
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildNewsThread:
		return platform.KindThread
	case discordgo.ChannelTypeGuildPrivateThread:
		return platform.KindPrivateThread
	case discordgo.ChannelTypeGuildForum:
		return platform.KindForum
	case discordgo.ChannelTypeGuildCategory:
		return platform.KindCategory
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		return platform.KindDM
	default:
		return platform.KindUnknown
	}
}

func (a *Adapter) Channel(ctx context.Context, channelID string) (platform.Channel, error) {
	ch, err := a.session.State.Channel(channelID)
	if err != nil {
		ch, err = a.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return platform.Channel{}, platform.ErrNotFound
		}
	}
	return a.toChannel(ch), nil
}

func (a *Adapter) toChannel(ch *discordgo.Channel) platform.Channel {
	kind := toKind(ch.Type)
	out := platform.Channel{
		ID:        ch.ID,
		GuildID:   ch.GuildID,
		ParentID:  ch.ParentID,
		Name:      ch.Name,
		Kind:      kind,
		CreatedAt: createdAt(ch.ID),
	}
	out.Visible = a.visibleToEveryone(ch)
	out.Sendable = out.Textual()
	return out
}

// visibleToEveryone resolves whether the guild's default role can both view
// the channel and read its history. Threads inherit their parent's
// overwrites.
func (a *Adapter) visibleToEveryone(ch *discordgo.Channel) bool {
	if ch.Type == discordgo.ChannelTypeGuildPrivateThread {
		return false
	}
	if ch.GuildID == "" {
		return false
	}
	guild, err := a.session.State.Guild(ch.GuildID)
	if err != nil {
		return false
	}

	var perms int64
	for _, r := range guild.Roles {
		// The everyone role shares the guild's id.
		if r.ID == ch.GuildID {
			perms = r.Permissions
			break
		}
	}

	target := ch
	if ch.IsThread() && ch.ParentID != "" {
		if parent, err := a.session.State.Channel(ch.ParentID); err == nil {
			target = parent
		}
	}
	for _, ow := range target.PermissionOverwrites {
		if ow.Type == discordgo.PermissionOverwriteTypeRole && ow.ID == ch.GuildID {
			perms = (perms &^ ow.Deny) | ow.Allow
			break
		}
	}

	need := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	return perms&need == need
}

func (a *Adapter) PublicChannels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	guild, err := a.session.State.Guild(guildID)
	var raw []*discordgo.Channel
	if err == nil && len(guild.Channels) > 0 {
		raw = guild.Channels
	} else {
		raw, err = a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
	}

	var out []platform.Channel
	for _, ch := range raw {
		c := a.toChannel(ch)
		if !c.Textual() || c.Kind == platform.KindPrivateThread || !c.Visible {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *Adapter) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	guild, err := a.session.State.Guild(guildID)
	var raw []*discordgo.Role
	if err == nil && len(guild.Roles) > 0 {
		raw = guild.Roles
	} else {
		raw, err = a.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list roles: %w", err)
		}
	}

	var out []platform.Role
	for _, r := range raw {
		if r.ID == guildID {
			continue
		}
		out = append(out, platform.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (a *Adapter) Emojis(ctx context.Context, guildID string) ([]platform.Emoji, error) {
	guild, err := a.session.State.Guild(guildID)
	var raw []*discordgo.Emoji
	if err == nil && len(guild.Emojis) > 0 {
		raw = guild.Emojis
	} else {
		raw, err = a.session.GuildEmojis(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list emojis: %w", err)
		}
	}

	var out []platform.Emoji
	for _, e := range raw {
		if e.ID == "" {
			continue
		}
		out = append(out, platform.Emoji{ID: e.ID, Name: e.Name, Animated: e.Animated})
	}
	return out, nil
}

func (a *Adapter) Message(ctx context.Context, ref platform.MessageRef) (platform.Message, error) {
	m, err := a.session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Message{}, platform.ErrNotFound
	}
	if m.GuildID == "" {
		m.GuildID = ref.GuildID
	}
	return a.toMessage(m), nil
}

func (a *Adapter) MessageNear(ctx context.Context, channelID string, at time.Time) (platform.MessageRef, error) {
	msgs, err := a.session.ChannelMessages(channelID, 1, "", "", snowflakeAt(at), discordgo.WithContext(ctx))
	if err != nil || len(msgs) == 0 {
		return platform.MessageRef{}, platform.ErrNotFound
	}
	m := msgs[0]
	guildID := m.GuildID
	if guildID == "" {
		if ch, cerr := a.Channel(ctx, channelID); cerr == nil {
			guildID = ch.GuildID
		}
	}
	return platform.MessageRef{GuildID: guildID, ChannelID: channelID, MessageID: m.ID}, nil
}

func (a *Adapter) toMessage(m *discordgo.Message) platform.Message {
	out := platform.Message{
		ID:              m.ID,
		GuildID:         m.GuildID,
		ChannelID:       m.ChannelID,
		Content:         m.Content,
		System:          m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply,
		FromInteraction: m.Interaction != nil,
		CreatedAt:       m.Timestamp,
	}
	if m.Author != nil {
		out.Author = platform.User{ID: m.Author.ID, Name: m.Author.Username, Bot: m.Author.Bot}
	}
	if m.MessageReference != nil {
		out.ReplyTo = m.MessageReference.MessageID
	}
	for _, u := range m.Mentions {
		out.MentionedUsers = append(out.MentionedUsers, u.ID)
	}
	if ch, err := a.session.State.Channel(m.ChannelID); err == nil && ch.IsThread() {
		out.ThreadParentID = ch.ParentID
	}
	return out
}
