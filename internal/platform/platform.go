package platform

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced entity does not exist or cannot
// be fetched. Callers treat it as "entity unavailable" and degrade.
var ErrNotFound = errors.New("platform: not found")

// Messenger sends and mutates messages. All operations are best-effort from
// the engine's point of view; failures on edits and deletes are logged and
// swallowed by callers.
type Messenger interface {
	Send(ctx context.Context, channelID, content string) (messageID string, err error)
	Reply(ctx context.Context, channelID, messageID, content string) (sentID string, err error)
	Edit(ctx context.Context, channelID, messageID, content string) error
	Delete(ctx context.Context, channelID, messageID string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	Typing(ctx context.Context, channelID string) error
}

// Directory enumerates scope entities used for visibility checks and for
// re-synthesizing anonymized references.
type Directory interface {
	Channel(ctx context.Context, channelID string) (Channel, error)
	// PublicChannels returns the textual channels of the guild that the
	// default role can both view and read history in. Private threads are
	// excluded.
	PublicChannels(ctx context.Context, guildID string) ([]Channel, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	Emojis(ctx context.Context, guildID string) ([]Emoji, error)
	// Message fetches a single message by reference.
	Message(ctx context.Context, ref MessageRef) (Message, error)
	// MessageNear resolves the message closest to the given instant in the
	// channel, for link re-synthesis. ErrNotFound when the channel is empty
	// around that time.
	MessageNear(ctx context.Context, channelID string, at time.Time) (MessageRef, error)
}

// Identity describes the engine's own account.
type Identity struct {
	UserID string
	// AppID is the application id, used to recognize invites pointing back
	// at this exact application.
	AppID string
}
