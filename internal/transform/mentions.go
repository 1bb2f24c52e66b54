package transform

import (
	"regexp"
	"strings"
)

// Placeholder tokens written into stored text. A zero snowflake can never
// refer to a real entity, so stored entries neither leak nor depend on
// entities that may be gone by retrieval time.
const (
	SelfToken        = "<@0>"
	ChannelToken     = "<#0>"
	RoleToken        = "<@&0>"
	LinkedRolesToken = "<id:linked-roles>"
	// EmojiFallback is used when an emoji's name is not recoverable.
	EmojiFallback = "emoji"
)

// EmojiStyle selects how anonymized emoji are rendered: prompts keep the
// short ":name:" form, responses keep the sendable "<:name:0>" form.
type EmojiStyle int

const (
	EmojiShort EmojiStyle = iota
	EmojiInline
)

// Profile identifies the parties of a message during anonymization.
type Profile struct {
	// AuthorID is the message author; their own references become SelfToken.
	AuthorID string
	// BotID is the engine's identity; every third-party reference collapses
	// onto it so stored text never names another person.
	BotID string
	// GuildID scopes message links: links into the same guild keep a
	// "this guild" shape, everything else becomes a DM-shaped link.
	GuildID string
}

// rule is one ordered step of the anonymization pipeline. Replace receives
// the regex submatches and the profile and returns the stored form.
type rule struct {
	pattern *regexp.Regexp
	replace func(groups []string, p Profile, style EmojiStyle) string
}

var (
	userPattern        = regexp.MustCompile(`<@!?(\d{17,20})>`)
	channelPattern     = regexp.MustCompile(`<#(\d{17,20})>`)
	rolePattern        = regexp.MustCompile(`<@&(\d{17,20})>`)
	linkedRolePattern  = regexp.MustCompile(`<id:linked-roles:\d{17,20}>`)
	messageLinkPattern = regexp.MustCompile(`(?i)https?://\w+\.discord(?:app)?\.com/channels/(\d{17,20}|@me)/(\d{17,20})/(\d{17,20})`)
	channelLinkPattern = regexp.MustCompile(`(?i)https?://\w+\.discord(?:app)?\.com/channels/(\d{17,20}|@me)/(\d{17,20})`)
	guildLinkPattern   = regexp.MustCompile(`(?i)https?://\w+\.discord(?:app)?\.com/channels/(\d{17,20}|@me)`)

	emojiPattern        = regexp.MustCompile(`<(a?):(\w+):(\d{17,20})>`)
	emojiImagePattern   = regexp.MustCompile(`(?i)\[([^\[\]]+)\]\(https?://cdn\.discordapp\.com/emojis/\d{17,20}\.\w+(?:[#?][\w!#$%&'()*+,./:;=?@~-]*)?\)`)
	emojiCDNNamePattern = regexp.MustCompile(`(?i)https?://cdn\.discordapp\.com/emojis/\d{17,20}\.\w+\?(?:[\w!$%&'()*+,./:;=?@~-]+&)?name=(\w+)[\w!#$%&'()*+,./:;=?@~-]*`)
	emojiCDNPattern     = regexp.MustCompile(`(?i)https?://cdn\.discordapp\.com/emojis/\d{17,20}\.\w+(?:[#?][\w!#$%&'()*+,./:;=?@~-]*)?`)
)

// anonymizeRules is applied strictly in order; earlier rules rewrite syntax
// that later, broader rules would otherwise match.
var anonymizeRules = []rule{
	{userPattern, func(g []string, p Profile, _ EmojiStyle) string {
		if g[1] == p.AuthorID {
			return SelfToken
		}
		return "<@" + p.BotID + ">"
	}},
	{channelPattern, func([]string, Profile, EmojiStyle) string { return ChannelToken }},
	{rolePattern, func([]string, Profile, EmojiStyle) string { return RoleToken }},
	{linkedRolePattern, func([]string, Profile, EmojiStyle) string { return LinkedRolesToken }},
	{messageLinkPattern, func(g []string, p Profile, _ EmojiStyle) string {
		if g[1] == p.GuildID && p.GuildID != "" {
			return "https://discord.com/channels/" + p.GuildID + "/0/0"
		}
		return "https://discord.com/channels/@me/0/0"
	}},
	{channelLinkPattern, func([]string, Profile, EmojiStyle) string { return ChannelToken }},
	{guildLinkPattern, func(g []string, p Profile, _ EmojiStyle) string {
		if g[1] == p.GuildID && p.GuildID != "" {
			return "https://discord.com/channels/" + p.GuildID
		}
		return "https://discord.com/channels/@me"
	}},
	{emojiPattern, func(g []string, _ Profile, style EmojiStyle) string {
		return emojiToken(g[2], style)
	}},
	{emojiImagePattern, func(g []string, _ Profile, style EmojiStyle) string {
		return emojiToken(g[1], style)
	}},
	{emojiCDNNamePattern, func(g []string, _ Profile, style EmojiStyle) string {
		return emojiToken(g[1], style)
	}},
	{emojiCDNPattern, func(_ []string, _ Profile, style EmojiStyle) string {
		return emojiToken(EmojiFallback, style)
	}},
}

func emojiToken(name string, style EmojiStyle) string {
	if name == "" {
		name = EmojiFallback
	}
	if style == EmojiInline {
		return "<:" + name + ":0>"
	}
	return ":" + name + ":"
}

// Anonymize substitutes every platform entity reference in text with its
// placeholder. Deterministic and pure; the inverse direction is Reifier.
func Anonymize(text string, p Profile, style EmojiStyle) string {
	for _, r := range anonymizeRules {
		text = r.pattern.ReplaceAllStringFunc(text, func(m string) string {
			return r.replace(r.pattern.FindStringSubmatch(m), p, style)
		})
	}
	return text
}

// Prompt produces the canonical stored/compared form of a prompt-side
// message: canonicalized text with short emoji tokens.
func Prompt(text string, p Profile) string {
	return Anonymize(Canonicalize(text), p, EmojiShort)
}

// Response produces the stored form of a response-side message: anonymized
// with sendable emoji tokens, trimmed. Content gating is the filter's job.
func Response(text string, p Profile) string {
	return strings.TrimSpace(Anonymize(text, p, EmojiInline))
}

// StoredResponse maps a displayed (reified) response back to its stored form
// so it can be matched against corpus entries. Reification only ever emits
// the engine's own mention or the requester's, so every non-engine mention
// collapses back to the self token.
func StoredResponse(displayed, botID string) string {
	return userPattern.ReplaceAllStringFunc(strings.TrimSpace(displayed), func(m string) string {
		if userPattern.FindStringSubmatch(m)[1] == botID {
			return "<@" + botID + ">"
		}
		return SelfToken
	})
}
