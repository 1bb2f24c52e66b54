package transform

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/parrothq/parrot/internal/platform"
)

// Scope supplies the candidate entities of one guild for re-synthesis.
// Implementations fetch lazily; a failed fetch degrades to "no candidates"
// and the placeholder is left in place.
type Scope interface {
	PublicChannels(ctx context.Context) ([]platform.Channel, error)
	Roles(ctx context.Context) ([]platform.Role, error)
	Emojis(ctx context.Context) ([]platform.Emoji, error)
	// MessageLinkNear returns the URL of the real message closest to the
	// instant inside the channel, or platform.ErrNotFound.
	MessageLinkNear(ctx context.Context, ch platform.Channel, at time.Time) (string, error)
}

var (
	storedMessageLinkPattern = regexp.MustCompile(`(?i)https?://(?:\w+\.)?discord(?:app)?\.com/channels/(?:\d{17,20}|@me)/\d+/\d+`)
	storedEmojiPattern       = regexp.MustCompile(`<a?:\w+:0>`)
)

// Reifier resolves placeholder tokens in a stored response back into live
// entity references before sending. Sampling is uniform per occurrence and
// re-rolled on every call through the injected random source.
type Reifier struct {
	BotID string
	Rand  *rand.Rand
	Now   func() time.Time
}

// NewReifier builds a Reifier with a time-seeded random source.
func NewReifier(botID string) *Reifier {
	return &Reifier{
		BotID: botID,
		Rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		Now:   time.Now,
	}
}

// Reify is the inverse of Anonymize: BOT references stay the engine, SELF
// becomes the requester, and channel/role/emoji placeholders are re-sampled
// from the scope. When a candidate set is empty the placeholder is left
// unresolved; that is degraded output, not an error.
func (r *Reifier) Reify(ctx context.Context, text, requesterID string, scope Scope) string {
	text = userPattern.ReplaceAllString(text, "<@"+r.BotID+">")
	text = strings.ReplaceAll(text, SelfToken, "<@"+requesterID+">")

	text = r.reifyChannels(ctx, text, scope)
	text = r.reifyRoles(ctx, text, scope)
	text = r.reifyEmojis(ctx, text, scope)
	return text
}

func (r *Reifier) reifyChannels(ctx context.Context, text string, scope Scope) string {
	hasLinks := storedMessageLinkPattern.MatchString(text)
	if !hasLinks && !strings.Contains(text, ChannelToken) {
		return text
	}

	channels, err := scope.PublicChannels(ctx)
	if err != nil || len(channels) == 0 {
		return text
	}

	text = replaceEachToken(text, ChannelToken, func() string {
		ch := channels[r.Rand.Intn(len(channels))]
		return "<#" + ch.ID + ">"
	})

	if !hasLinks {
		return text
	}
	return storedMessageLinkPattern.ReplaceAllStringFunc(text, func(string) string {
		ch := channels[r.Rand.Intn(len(channels))]
		return r.sampleMessageLink(ctx, scope, ch)
	})
}

// sampleMessageLink picks a pseudo-random instant within the channel's
// lifetime and resolves the nearest real message, falling back to the
// channel itself when none is found.
func (r *Reifier) sampleMessageLink(ctx context.Context, scope Scope, ch platform.Channel) string {
	created := ch.CreatedAt
	now := r.Now()
	span := now.Sub(created)
	if span < 0 {
		span = 0
	}
	at := created.Add(time.Duration(r.Rand.Int63n(int64(span) + 1)))
	if url, err := scope.MessageLinkNear(ctx, ch, at); err == nil && url != "" {
		return url
	}
	return "https://discord.com/channels/" + ch.GuildID + "/" + ch.ID
}

func (r *Reifier) reifyRoles(ctx context.Context, text string, scope Scope) string {
	if !strings.Contains(text, RoleToken) {
		return text
	}
	roles, err := scope.Roles(ctx)
	if err != nil || len(roles) == 0 {
		return text
	}
	return replaceEachToken(text, RoleToken, func() string {
		return "<@&" + roles[r.Rand.Intn(len(roles))].ID + ">"
	})
}

func (r *Reifier) reifyEmojis(ctx context.Context, text string, scope Scope) string {
	if !storedEmojiPattern.MatchString(text) {
		return text
	}
	emojis, err := scope.Emojis(ctx)
	if err != nil || len(emojis) == 0 {
		return text
	}
	return storedEmojiPattern.ReplaceAllStringFunc(text, func(string) string {
		return emojis[r.Rand.Intn(len(emojis))].Mention()
	})
}

// replaceEachToken substitutes every occurrence independently so repeated
// placeholders can resolve to different entities.
func replaceEachToken(s, token string, next func() string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, token)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(next())
		s = s[i+len(token):]
	}
}
