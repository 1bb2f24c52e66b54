package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parrothq/parrot/internal/cache"
	"github.com/parrothq/parrot/internal/corpus"
	"github.com/parrothq/parrot/internal/platform"
	"github.com/parrothq/parrot/internal/transform"
)

// Consents resolves whether a user's messages may be learned from.
type Consents interface {
	IsAllowed(ctx context.Context, userID, guildID string) (bool, error)
}

// Learner turns inbound messages into stored (prompt, response) pairs. Every
// inbound message runs through it; most are dropped at one of the gates with
// no side effect.
type Learner struct {
	logger    *slog.Logger
	store     corpus.Store
	consents  Consents
	configs   ConfigStore
	directory platform.Directory
	pending   *cache.TTL[string, platform.Message]
	filter    transform.Filter
	identity  platform.Identity
}

func NewLearner(
	log *slog.Logger,
	store corpus.Store,
	consents Consents,
	configs ConfigStore,
	directory platform.Directory,
	pending *cache.TTL[string, platform.Message],
	identity platform.Identity,
) *Learner {
	return &Learner{
		logger:    log.With(slog.String("service", "learner")),
		store:     store,
		consents:  consents,
		configs:   configs,
		directory: directory,
		pending:   pending,
		filter:    transform.Filter{AppID: identity.AppID},
		identity:  identity,
	}
}

// Learn evaluates one inbound message and persists a pair when every gate
// passes. The returned bool reports whether a pair was stored. Transient
// platform fetch failures drop the message silently; store failures are the
// only errors returned.
func (l *Learner) Learn(ctx context.Context, msg platform.Message) (bool, error) {
	if msg.GuildID == "" {
		return false, nil
	}

	// Capture the channel's previous message, then make this one available
	// as a future prompt before any gate can drop it.
	previous, hadPrevious := l.pending.Get(msg.ChannelID)
	if msg.Author.ID != l.identity.UserID && !msg.System {
		l.pending.Set(msg.ChannelID, msg)
	}

	if msg.Author.ID == l.identity.UserID || msg.System || msg.FromInteraction {
		return false, nil
	}

	cfg, err := l.configs.Get(ctx, msg.GuildID)
	if err != nil {
		return false, err
	}
	if !cfg.Enabled || msg.ChannelID == cfg.ChannelID {
		return false, nil
	}

	ref, ok := l.resolvePrompt(ctx, msg, previous, hadPrevious)
	if !ok {
		return false, nil
	}
	if ref.Author.ID == msg.Author.ID {
		return false, nil
	}
	if ref.Author.ID == l.identity.UserID || ref.FromInteraction {
		return false, nil
	}

	allowed, err := l.consents.IsAllowed(ctx, msg.Author.ID, msg.GuildID)
	if err != nil {
		return false, fmt.Errorf("resolve consent: %w", err)
	}
	if !allowed {
		return false, nil
	}

	if !l.channelLearnable(ctx, msg.ChannelID) {
		return false, nil
	}

	responseProfile := transform.Profile{AuthorID: msg.Author.ID, BotID: l.identity.UserID, GuildID: msg.GuildID}
	response := transform.Response(msg.Content, responseProfile)
	if !l.filter.UsableResponse(response) {
		return false, nil
	}

	promptProfile := transform.Profile{AuthorID: ref.Author.ID, BotID: l.identity.UserID, GuildID: msg.GuildID}
	prompt := transform.Prompt(ref.Content, promptProfile)
	if !l.filter.UsablePrompt(prompt) {
		return false, nil
	}
	if transform.Prompt(msg.Content, responseProfile) == prompt {
		return false, nil
	}

	entry, err := l.store.Save(ctx, corpus.Entry{GuildID: msg.GuildID, Prompt: prompt, Response: response})
	if err != nil {
		return false, fmt.Errorf("persist pair: %w", err)
	}
	l.logger.Debug("pair learned",
		slog.String("guild_id", entry.GuildID),
		slog.String("entry_id", entry.ID),
	)
	return true, nil
}

// resolvePrompt picks the stimulus message: the explicit reply target when
// one exists, otherwise the channel's previous message. A failed reply fetch
// means no prompt.
func (l *Learner) resolvePrompt(ctx context.Context, msg, previous platform.Message, hadPrevious bool) (platform.Message, bool) {
	if msg.ReplyTo != "" {
		ref, err := l.directory.Message(ctx, platform.MessageRef{
			GuildID:   msg.GuildID,
			ChannelID: msg.ChannelID,
			MessageID: msg.ReplyTo,
		})
		if err != nil {
			l.logger.Warn("reply reference unavailable",
				slog.String("channel_id", msg.ChannelID),
				slog.String("message_id", msg.ReplyTo),
				slog.Any("error", err),
			)
			return platform.Message{}, false
		}
		return ref, true
	}
	if !hadPrevious || previous.ID == msg.ID {
		return platform.Message{}, false
	}
	return previous, true
}

func (l *Learner) channelLearnable(ctx context.Context, channelID string) bool {
	ch, err := l.directory.Channel(ctx, channelID)
	if err != nil {
		l.logger.Warn("channel unavailable", slog.String("channel_id", channelID), slog.Any("error", err))
		return false
	}
	if ch.Kind == platform.KindPrivateThread || ch.Kind == platform.KindDM {
		return false
	}
	return ch.Visible && ch.Textual()
}
