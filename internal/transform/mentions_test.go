package transform

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrothq/parrot/internal/platform"
)

const (
	testAuthor = "100000000000000001"
	testOther  = "100000000000000002"
	testBot    = "100000000000000009"
	testGuild  = "200000000000000001"
)

func testProfile() Profile {
	return Profile{AuthorID: testAuthor, BotID: testBot, GuildID: testGuild}
}

func TestAnonymizeUsers(t *testing.T) {
	got := Anonymize("hey <@"+testAuthor+"> meet <@!"+testOther+">", testProfile(), EmojiInline)
	assert.Equal(t, "hey <@0> meet <@"+testBot+">", got)
}

func TestAnonymizeChannelsAndRoles(t *testing.T) {
	in := "go to <#300000000000000001> and ping <@&400000000000000001>"
	got := Anonymize(in, testProfile(), EmojiInline)
	assert.Equal(t, "go to <#0> and ping <@&0>", got)
}

func TestAnonymizeLinkedRoles(t *testing.T) {
	got := Anonymize("see <id:linked-roles:400000000000000001>", testProfile(), EmojiInline)
	assert.Equal(t, "see <id:linked-roles>", got)
}

func TestAnonymizeMessageLinks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"same guild keeps guild shape",
			"https://ptb.discord.com/channels/" + testGuild + "/300000000000000001/500000000000000001",
			"https://discord.com/channels/" + testGuild + "/0/0",
		},
		{
			"cross guild becomes dm shaped",
			"https://canary.discordapp.com/channels/200000000000000099/300000000000000001/500000000000000001",
			"https://discord.com/channels/@me/0/0",
		},
		{
			"channel link collapses to channel placeholder",
			"https://www.discord.com/channels/" + testGuild + "/300000000000000001",
			ChannelToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Anonymize(tt.in, testProfile(), EmojiInline))
		})
	}
}

func TestAnonymizeEmoji(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		style EmojiStyle
		want  string
	}{
		{"inline response form", "<:wave:600000000000000001>", EmojiInline, "<:wave:0>"},
		{"animated inline", "<a:party:600000000000000002>", EmojiInline, "<:party:0>"},
		{"prompt short form", "<:wave:600000000000000001>", EmojiShort, ":wave:"},
		{
			"cdn image markdown keeps name",
			"[wave](https://cdn.discordapp.com/emojis/600000000000000001.webp?size=48)",
			EmojiInline,
			"<:wave:0>",
		},
		{
			"cdn link with name parameter",
			"https://cdn.discordapp.com/emojis/600000000000000001.png?size=48&name=wave",
			EmojiShort,
			":wave:",
		},
		{
			"bare cdn link falls back to generic token",
			"https://cdn.discordapp.com/emojis/600000000000000001.gif",
			EmojiInline,
			"<:emoji:0>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Anonymize(tt.in, testProfile(), tt.style))
		})
	}
}

func TestCanonicalizeFolding(t *testing.T) {
	assert.Equal(t, "heya", Canonicalize("Héya"))
	assert.Equal(t, "ffi", Canonicalize("ﬃ"))
	assert.Equal(t, "bold and sneaky", Canonicalize("**bold** and ||sneaky||"))
	assert.Equal(t, "code here", Canonicalize("`code` here"))
}

func TestPromptStable(t *testing.T) {
	p := testProfile()
	a := Prompt("**Héllo** <@"+testOther+">", p)
	b := Prompt("hello <@"+testOther+">", p)
	assert.Equal(t, b, a)
}

func TestStoredResponse(t *testing.T) {
	displayed := "hey <@100000000000000042>, ask <@" + testBot + "> or <@!100000000000000043>"
	got := StoredResponse(displayed, testBot)
	assert.Equal(t, "hey <@0>, ask <@"+testBot+"> or <@0>", got)
}

func TestStoredResponseTrimsAndPassesPlainText(t *testing.T) {
	assert.Equal(t, "general kenobi", StoredResponse("  general kenobi \n", testBot))
}

// fakeScope returns fixed candidate sets.
type fakeScope struct {
	channels []platform.Channel
	roles    []platform.Role
	emojis   []platform.Emoji
	linkErr  error
}

func (s *fakeScope) PublicChannels(context.Context) ([]platform.Channel, error) {
	return s.channels, nil
}
func (s *fakeScope) Roles(context.Context) ([]platform.Role, error)   { return s.roles, nil }
func (s *fakeScope) Emojis(context.Context) ([]platform.Emoji, error) { return s.emojis, nil }
func (s *fakeScope) MessageLinkNear(_ context.Context, ch platform.Channel, _ time.Time) (string, error) {
	if s.linkErr != nil {
		return "", s.linkErr
	}
	return "https://discord.com/channels/" + ch.GuildID + "/" + ch.ID + "/500000000000000005", nil
}

func fullScope() *fakeScope {
	return &fakeScope{
		channels: []platform.Channel{{
			ID:        "300000000000000001",
			GuildID:   testGuild,
			Kind:      platform.KindText,
			CreatedAt: time.Now().Add(-24 * time.Hour),
		}},
		roles:  []platform.Role{{ID: "400000000000000001", Name: "regular"}},
		emojis: []platform.Emoji{{ID: "600000000000000001", Name: "wave"}},
	}
}

func seededReifier() *Reifier {
	return &Reifier{BotID: testBot, Rand: rand.New(rand.NewSource(1)), Now: time.Now}
}

func TestReifyRoundTrip(t *testing.T) {
	requester := "100000000000000042"
	in := "yo <@" + testAuthor + "> check <#300000000000000009> <@&400000000000000009> <:wave:600000000000000009> " +
		"https://discord.com/channels/" + testGuild + "/300000000000000009/500000000000000009"

	stored := Anonymize(in, testProfile(), EmojiInline)
	out := seededReifier().Reify(context.Background(), stored, requester, fullScope())

	assert.NotContains(t, out, SelfToken)
	assert.NotContains(t, out, ChannelToken)
	assert.NotContains(t, out, RoleToken)
	assert.NotContains(t, out, ":0>")
	assert.NotContains(t, out, "/0/0")
	assert.Contains(t, out, "<@"+requester+">")
	assert.Contains(t, out, "<#300000000000000001>")
	assert.Contains(t, out, "<@&400000000000000001>")
	assert.Contains(t, out, "<:wave:600000000000000001>")
}

func TestReifyEmptyCandidatesLeavesPlaceholders(t *testing.T) {
	out := seededReifier().Reify(context.Background(), "go to <#0> with <@&0> <:wave:0>", "u", &fakeScope{})
	assert.Contains(t, out, ChannelToken)
	assert.Contains(t, out, RoleToken)
	assert.Contains(t, out, "<:wave:0>")
}

func TestReifyLinkFallsBackToChannel(t *testing.T) {
	scope := fullScope()
	scope.linkErr = platform.ErrNotFound
	out := seededReifier().Reify(context.Background(), "see https://discord.com/channels/"+testGuild+"/0/0", "u", scope)
	require.Contains(t, out, "https://discord.com/channels/"+testGuild+"/300000000000000001")
	assert.NotContains(t, out, "/0/0")
}

func TestReifyRepeatedPlaceholdersResolveIndependently(t *testing.T) {
	scope := fullScope()
	scope.channels = append(scope.channels, platform.Channel{
		ID: "300000000000000002", GuildID: testGuild, Kind: platform.KindText,
		CreatedAt: time.Now().Add(-time.Hour),
	})

	r := seededReifier()
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		out := r.Reify(context.Background(), "<#0>", "u", scope)
		seen[out] = true
	}
	assert.Len(t, seen, 2, "both channels should be sampled over repeated calls")
}

func TestFoldMalformedInputPassesThrough(t *testing.T) {
	bad := string([]byte{0xff, 0xfe, 'h', 'i'})
	out := Fold(bad)
	assert.True(t, strings.HasSuffix(out, "hi"))
}
