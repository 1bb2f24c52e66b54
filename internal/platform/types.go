// Package platform defines the chat-platform surface the engine consumes.
// Adapters (see platform/discord) translate gateway events and API calls into
// these types so everything above them stays platform-agnostic and testable.
package platform

import "time"

// ChannelKind tags a channel with its capability class.
type ChannelKind string

const (
	KindText          ChannelKind = "text"
	KindAnnouncement  ChannelKind = "announcement"
	KindVoice         ChannelKind = "voice"
	KindStage         ChannelKind = "stage"
	KindThread        ChannelKind = "thread"
	KindPrivateThread ChannelKind = "private_thread"
	KindForum         ChannelKind = "forum"
	KindCategory      ChannelKind = "category"
	KindDM            ChannelKind = "dm"
	KindUnknown       ChannelKind = "unknown"
)

// User is a platform account.
type User struct {
	ID   string
	Name string
	Bot  bool
}

// Channel is a capability-tagged view of a guild channel.
type Channel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	Kind     ChannelKind
	// Visible reports whether the default (everyone) role can view the
	// channel and read its history.
	Visible bool
	// Sendable reports whether the engine itself can send messages there.
	Sendable bool
	// CreatedAt is derived from the channel id; used when sampling a
	// plausible message timestamp inside the channel's lifetime.
	CreatedAt time.Time
}

// Textual reports whether messages can be posted as plain text in the channel.
func (c Channel) Textual() bool {
	switch c.Kind {
	case KindText, KindAnnouncement, KindVoice, KindStage, KindThread, KindPrivateThread:
		return true
	default:
		return false
	}
}

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// Emoji is a guild custom emoji. Mention renders by id so the output stays
// valid even when the name has drifted.
type Emoji struct {
	ID       string
	Name     string
	Animated bool
}

// Mention returns the inline form of the emoji.
func (e Emoji) Mention() string {
	if e.Animated {
		return "<a:" + e.Name + ":" + e.ID + ">"
	}
	return "<:" + e.Name + ":" + e.ID + ">"
}

// MessageRef locates a message.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// Message is an inbound or fetched message.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	Author    User
	Content   string
	// ReplyTo is the referenced message id when the message is an explicit
	// reply, empty otherwise.
	ReplyTo string
	// System marks platform-generated messages (joins, pins, boosts).
	System bool
	// FromInteraction marks messages produced through an application command.
	FromInteraction bool
	// MentionedUsers lists ids of users directly mentioned in the content.
	MentionedUsers []string
	// ThreadParentID is set when the message was posted inside a thread.
	ThreadParentID string
	CreatedAt      time.Time
}

// MentionsOnly reports whether every mentioned user is within the given set.
func (m Message) MentionsOnly(allowed ...string) bool {
	for _, id := range m.MentionedUsers {
		ok := false
		for _, a := range allowed {
			if id == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
