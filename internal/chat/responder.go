package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/parrothq/parrot/internal/cache"
	"github.com/parrothq/parrot/internal/match"
	"github.com/parrothq/parrot/internal/platform"
	"github.com/parrothq/parrot/internal/transform"
)

// Retriever finds a stored response for a query. Satisfied by match.Matcher.
type Retriever interface {
	Retrieve(ctx context.Context, query, guildID string, excluded map[string]struct{}, tiers []float64) (string, bool, error)
}

// Responder decides whether a message in the configured chat channel gets a
// response, and produces the reified text to send.
type Responder struct {
	logger    *slog.Logger
	configs   ConfigStore
	matcher   Retriever
	directory platform.Directory
	reifier   *transform.Reifier
	removals  *cache.TTL[removalKey, struct{}]
	identity  platform.Identity
}

func NewResponder(
	log *slog.Logger,
	configs ConfigStore,
	matcher Retriever,
	directory platform.Directory,
	reifier *transform.Reifier,
	removals *cache.TTL[removalKey, struct{}],
	identity platform.Identity,
) *Responder {
	return &Responder{
		logger:    log.With(slog.String("service", "responder")),
		configs:   configs,
		matcher:   matcher,
		directory: directory,
		reifier:   reifier,
		removals:  removals,
		identity:  identity,
	}
}

// Respond returns the text to send for the message, or ok=false when the
// message should get no response. Replies select the stricter tier set;
// ambient chat the looser one.
func (r *Responder) Respond(ctx context.Context, msg platform.Message) (string, bool, error) {
	if msg.GuildID == "" || msg.Author.ID == r.identity.UserID || msg.FromInteraction {
		return "", false, nil
	}

	cfg, err := r.configs.Get(ctx, msg.GuildID)
	if err != nil {
		return "", false, err
	}
	if !cfg.Enabled || msg.ChannelID != cfg.ChannelID {
		return "", false, nil
	}

	// Messages pinging a third party are a conversation with that person,
	// not with the engine.
	if !msg.MentionsOnly(r.identity.UserID, msg.Author.ID) {
		return "", false, nil
	}

	profile := transform.Profile{AuthorID: msg.Author.ID, BotID: r.identity.UserID, GuildID: msg.GuildID}
	query := transform.Prompt(msg.Content, profile)
	if strings.TrimSpace(query) == "" {
		return "", false, nil
	}

	tiers := match.AmbientTiers
	if msg.ReplyTo != "" {
		tiers = match.ReplyTiers
	}

	stored, ok, err := r.matcher.Retrieve(ctx, query, msg.GuildID, r.excluded(msg.GuildID), tiers)
	if err != nil || !ok {
		return "", false, err
	}
	return r.reifier.Reify(ctx, stored, msg.Author.ID, guildScope{dir: r.directory, guildID: msg.GuildID}), true, nil
}

// excluded collects the guild's purged response texts still in the memo.
func (r *Responder) excluded(guildID string) map[string]struct{} {
	var out map[string]struct{}
	for _, k := range r.removals.Keys() {
		if k.GuildID != guildID {
			continue
		}
		if out == nil {
			out = map[string]struct{}{}
		}
		out[k.Response] = struct{}{}
	}
	return out
}

// guildScope adapts the platform directory to the reifier's candidate
// supplier for one guild.
type guildScope struct {
	dir     platform.Directory
	guildID string
}

func (s guildScope) PublicChannels(ctx context.Context) ([]platform.Channel, error) {
	return s.dir.PublicChannels(ctx, s.guildID)
}

func (s guildScope) Roles(ctx context.Context) ([]platform.Role, error) {
	return s.dir.Roles(ctx, s.guildID)
}

func (s guildScope) Emojis(ctx context.Context) ([]platform.Emoji, error) {
	return s.dir.Emojis(ctx, s.guildID)
}

func (s guildScope) MessageLinkNear(ctx context.Context, ch platform.Channel, at time.Time) (string, error) {
	ref, err := s.dir.MessageNear(ctx, ch.ID, at)
	if err != nil {
		return "", err
	}
	return "https://discord.com/channels/" + ref.GuildID + "/" + ref.ChannelID + "/" + ref.MessageID, nil
}
