package chat

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrothq/parrot/internal/corpus"
	"github.com/parrothq/parrot/internal/match"
	"github.com/parrothq/parrot/internal/platform"
	"github.com/parrothq/parrot/internal/transform"
)

const (
	testGuild       = "200000000000000001"
	testLearnChan   = "300000000000000001"
	testChatChan    = "300000000000000002"
	testAuthor      = "100000000000000001"
	testOther       = "100000000000000002"
	testBot         = "100000000000000009"
	testApp         = "400000000000000001"
)

type memStore struct {
	mu      sync.Mutex
	entries []corpus.Entry
}

func (s *memStore) Find(_ context.Context, f corpus.Filter) ([]corpus.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []corpus.Entry
	for _, e := range s.entries {
		if e.GuildID == f.GuildID && (f.Response == "" || e.Response == f.Response) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) FindOne(ctx context.Context, f corpus.Filter) (corpus.Entry, error) {
	found, err := s.Find(ctx, f)
	if err != nil {
		return corpus.Entry{}, err
	}
	if len(found) == 0 {
		return corpus.Entry{}, corpus.ErrNotFound
	}
	return found[0], nil
}

func (s *memStore) Save(_ context.Context, e corpus.Entry) (corpus.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *memStore) DeleteMany(_ context.Context, f corpus.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []corpus.Entry
	var removed int64
	for _, e := range s.entries {
		if e.GuildID == f.GuildID && (f.Response == "" || e.Response == f.Response) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *memStore) Count(_ context.Context, guildID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.GuildID == guildID {
			n++
		}
	}
	return n, nil
}

type memConfigs struct {
	cfgs map[string]ScopeConfig
}

func (m *memConfigs) Get(_ context.Context, guildID string) (ScopeConfig, error) {
	if cfg, ok := m.cfgs[guildID]; ok {
		return cfg, nil
	}
	return ScopeConfig{GuildID: guildID}, nil
}

func (m *memConfigs) Upsert(_ context.Context, cfg ScopeConfig) error {
	m.cfgs[cfg.GuildID] = cfg
	return nil
}

type fakeConsents struct {
	isAllowed func(userID, guildID string) (bool, error)
}

func (f *fakeConsents) IsAllowed(_ context.Context, userID, guildID string) (bool, error) {
	if f.isAllowed == nil {
		return true, nil
	}
	return f.isAllowed(userID, guildID)
}

type fakeDirectory struct {
	channel func(ctx context.Context, id string) (platform.Channel, error)
	message func(ctx context.Context, ref platform.MessageRef) (platform.Message, error)
}

func (f *fakeDirectory) Channel(ctx context.Context, id string) (platform.Channel, error) {
	if f.channel == nil {
		return platform.Channel{
			ID: id, GuildID: testGuild, Kind: platform.KindText,
			Visible: true, Sendable: true, CreatedAt: time.Now().Add(-time.Hour),
		}, nil
	}
	return f.channel(ctx, id)
}

func (f *fakeDirectory) PublicChannels(context.Context, string) ([]platform.Channel, error) {
	return nil, platform.ErrNotFound
}

func (f *fakeDirectory) Roles(context.Context, string) ([]platform.Role, error) {
	return nil, platform.ErrNotFound
}

func (f *fakeDirectory) Emojis(context.Context, string) ([]platform.Emoji, error) {
	return nil, platform.ErrNotFound
}

func (f *fakeDirectory) Message(ctx context.Context, ref platform.MessageRef) (platform.Message, error) {
	if f.message == nil {
		return platform.Message{}, platform.ErrNotFound
	}
	return f.message(ctx, ref)
}

func (f *fakeDirectory) MessageNear(context.Context, string, time.Time) (platform.MessageRef, error) {
	return platform.MessageRef{}, platform.ErrNotFound
}

type sentCall struct {
	channelID string
	messageID string
	content   string
}

type fakeMessenger struct {
	mu      sync.Mutex
	next    int
	sends   []sentCall
	replies []sentCall
	edits   []sentCall
	deletes []sentCall
}

func (f *fakeMessenger) id() string {
	f.next++
	return "sent-" + strconv.Itoa(f.next)
}

func (f *fakeMessenger) Send(_ context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.sends = append(f.sends, sentCall{channelID: channelID, messageID: id, content: content})
	return id, nil
}

func (f *fakeMessenger) Reply(_ context.Context, channelID, messageID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.replies = append(f.replies, sentCall{channelID: channelID, messageID: id, content: content})
	return id, nil
}

func (f *fakeMessenger) Edit(_ context.Context, channelID, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentCall{channelID: channelID, messageID: messageID, content: content})
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, sentCall{channelID: channelID, messageID: messageID})
	return nil
}

func (f *fakeMessenger) React(context.Context, string, string, string) error { return nil }

func (f *fakeMessenger) Typing(context.Context, string) error { return nil }

type harness struct {
	store     *memStore
	configs   *memConfigs
	consents  *fakeConsents
	directory *fakeDirectory
	messenger *fakeMessenger
	caches    *Caches
	learner   *Learner
	responder *Responder
	svc       *Service
}

func newHarness() *harness {
	h := &harness{
		store: &memStore{},
		configs: &memConfigs{cfgs: map[string]ScopeConfig{
			testGuild: {GuildID: testGuild, ChannelID: testChatChan, Enabled: true},
		}},
		consents:  &fakeConsents{},
		directory: &fakeDirectory{},
		messenger: &fakeMessenger{},
		caches:    NewCaches(),
	}
	identity := platform.Identity{UserID: testBot, AppID: testApp}
	log := slog.Default()
	h.learner = NewLearner(log, h.store, h.consents, h.configs, h.directory, h.caches.Pending, identity)
	h.responder = NewResponder(log, h.configs, match.New(h.store), h.directory,
		transform.NewReifier(testBot), h.caches.Removals, identity)
	h.svc = NewService(log, h.learner, h.responder, h.messenger, h.store, h.caches, identity, 0)
	h.svc.randFloat = func() float64 { return 0 }
	h.svc.sleep = func(context.Context, time.Duration) {}
	return h
}

func msgIn(channelID, id, authorID, content string) platform.Message {
	return platform.Message{
		ID:        id,
		GuildID:   testGuild,
		ChannelID: channelID,
		Author:    platform.User{ID: authorID},
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func TestLearnFromExplicitReply(t *testing.T) {
	h := newHarness()
	h.directory.message = func(_ context.Context, ref platform.MessageRef) (platform.Message, error) {
		require.Equal(t, "m1", ref.MessageID)
		return msgIn(testLearnChan, "m1", testOther, "Hi"), nil
	}

	msg := msgIn(testLearnChan, "m2", testAuthor, "hello there")
	msg.ReplyTo = "m1"

	learned, err := h.learner.Learn(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, learned)

	require.Len(t, h.store.entries, 1)
	assert.Equal(t, "hi", h.store.entries[0].Prompt)
	assert.Equal(t, "hello there", h.store.entries[0].Response)
	assert.Equal(t, testGuild, h.store.entries[0].GuildID)
}

func TestLearnUsesPendingPrompt(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	learned, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m1", testOther, "hi"))
	require.NoError(t, err)
	assert.False(t, learned, "the first message of a channel has no prompt")

	learned, err = h.learner.Learn(ctx, msgIn(testLearnChan, "m2", testAuthor, "hello there"))
	require.NoError(t, err)
	require.True(t, learned)

	require.Len(t, h.store.entries, 1)
	assert.Equal(t, "hi", h.store.entries[0].Prompt)
	assert.Equal(t, "hello there", h.store.entries[0].Response)
}

func TestLearnSelfConversationDropped(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m1", testAuthor, "hi"))
	require.NoError(t, err)
	learned, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m2", testAuthor, "hello there"))
	require.NoError(t, err)

	assert.False(t, learned)
	assert.Empty(t, h.store.entries)
}

func TestLearnWithoutConsentDropped(t *testing.T) {
	h := newHarness()
	h.consents.isAllowed = func(string, string) (bool, error) { return false, nil }
	ctx := context.Background()

	_, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m1", testOther, "hi"))
	require.NoError(t, err)
	learned, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m2", testAuthor, "hello there"))
	require.NoError(t, err)

	assert.False(t, learned)
	assert.Empty(t, h.store.entries)
}

func TestLearnSkipsChatChannel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.learner.Learn(ctx, msgIn(testChatChan, "m1", testOther, "hi"))
	require.NoError(t, err)
	learned, err := h.learner.Learn(ctx, msgIn(testChatChan, "m2", testAuthor, "hello there"))
	require.NoError(t, err)

	assert.False(t, learned)
	assert.Empty(t, h.store.entries)
}

func TestLearnHiddenChannelDropped(t *testing.T) {
	h := newHarness()
	h.directory.channel = func(_ context.Context, id string) (platform.Channel, error) {
		return platform.Channel{ID: id, GuildID: testGuild, Kind: platform.KindText, Visible: false}, nil
	}
	ctx := context.Background()

	_, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m1", testOther, "hi"))
	require.NoError(t, err)
	learned, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m2", testAuthor, "hello there"))
	require.NoError(t, err)

	assert.False(t, learned)
	assert.Empty(t, h.store.entries)
}

func TestLearnPrivateThreadDropped(t *testing.T) {
	h := newHarness()
	h.directory.channel = func(_ context.Context, id string) (platform.Channel, error) {
		return platform.Channel{ID: id, GuildID: testGuild, Kind: platform.KindPrivateThread, Visible: true}, nil
	}
	ctx := context.Background()

	_, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m1", testOther, "hi"))
	require.NoError(t, err)
	learned, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m2", testAuthor, "hello there"))
	require.NoError(t, err)

	assert.False(t, learned)
	assert.Empty(t, h.store.entries)
}

func TestLearnReplyFetchFailureDropsSilently(t *testing.T) {
	h := newHarness()
	h.directory.message = func(context.Context, platform.MessageRef) (platform.Message, error) {
		return platform.Message{}, platform.ErrNotFound
	}

	msg := msgIn(testLearnChan, "m2", testAuthor, "hello there")
	msg.ReplyTo = "gone"

	learned, err := h.learner.Learn(context.Background(), msg)
	require.NoError(t, err, "a missing reply reference is not an error")
	assert.False(t, learned)
	assert.Empty(t, h.store.entries)
}

func TestLearnRejectsOversizedResponse(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m1", testOther, "hi"))
	require.NoError(t, err)
	learned, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m2", testAuthor, strings.Repeat("a", 501)))
	require.NoError(t, err)

	assert.False(t, learned)
	assert.Empty(t, h.store.entries)
}

func TestLearnRejectsSelfEcho(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m1", testOther, "hello there"))
	require.NoError(t, err)
	learned, err := h.learner.Learn(ctx, msgIn(testLearnChan, "m2", testAuthor, "Hello There"))
	require.NoError(t, err)

	assert.False(t, learned, "a pair whose sides canonicalize equal must not be stored")
	assert.Empty(t, h.store.entries)
}

func seedPair(h *harness, prompt, response string) {
	h.store.entries = append(h.store.entries, corpus.Entry{
		GuildID: testGuild, Prompt: prompt, Response: response,
	})
}

func TestRespondServesStoredPair(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	got, ok, err := h.responder.Respond(context.Background(), msgIn(testChatChan, "m1", testAuthor, "hello there"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "general kenobi", got)
}

func TestRespondOnlyInChatChannel(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	_, ok, err := h.responder.Respond(context.Background(), msgIn(testLearnChan, "m1", testAuthor, "hello there"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRespondSkipsThirdPartyPing(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	msg := msgIn(testChatChan, "m1", testAuthor, "hello there")
	msg.MentionedUsers = []string{testOther}

	_, ok, err := h.responder.Respond(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRespondAllowsEnginePing(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	msg := msgIn(testChatChan, "m1", testAuthor, "hello there")
	msg.MentionedUsers = []string{testBot}

	_, ok, err := h.responder.Respond(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRespondIgnoresEngineMessages(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	_, ok, err := h.responder.Respond(context.Background(), msgIn(testChatChan, "m1", testBot, "hello there"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveResponsePurgesAndMemoizes(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")
	seedPair(h, "hi", "general kenobi")
	seedPair(h, "hello there", "unrelated")
	ctx := context.Background()

	n, err := h.svc.RemoveResponse(ctx, testGuild, "general kenobi")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, ok, err := h.responder.Respond(ctx, msgIn(testChatChan, "m1", testAuthor, "hello there"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "unrelated", got)

	// Even if the store still held a copy, the memo blocks re-serving.
	seedPair(h, "hello there", "general kenobi")
	got, ok, err = h.responder.Respond(ctx, msgIn(testChatChan, "m2", testAuthor, "hello there"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "unrelated", got)
}

func TestServiceRepliesInChatChannel(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	msg := msgIn(testChatChan, "m1", testAuthor, "hello there")
	h.svc.HandleMessage(context.Background(), msg)

	require.Len(t, h.messenger.replies, 1)
	assert.Equal(t, "general kenobi", h.messenger.replies[0].content)
	assert.Empty(t, h.messenger.sends)

	link, ok := h.caches.Links.Get("m1")
	require.True(t, ok)
	assert.Equal(t, h.messenger.replies[0].messageID, link.MessageID)
}

func TestServiceSendsPlainForSystemMessages(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	msg := msgIn(testChatChan, "m1", testAuthor, "hello there")
	msg.System = true
	h.svc.HandleMessage(context.Background(), msg)

	assert.Empty(t, h.messenger.replies)
	require.Len(t, h.messenger.sends, 1)
	assert.Equal(t, "general kenobi", h.messenger.sends[0].content)
}

func TestServiceComposeDebounce(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	h.caches.Composing.Set(testChatChan, struct{}{})
	h.svc.HandleMessage(context.Background(), msgIn(testChatChan, "m1", testAuthor, "hello there"))

	assert.Empty(t, h.messenger.replies)
	assert.Empty(t, h.messenger.sends)
}

func TestEditCascadeRewritesLinkedResponse(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")
	h.caches.Links.Set("m1", sentRef{ChannelID: testChatChan, MessageID: "r1"})

	h.svc.HandleEdit(context.Background(), msgIn(testChatChan, "m1", testAuthor, "hello there"))

	require.Len(t, h.messenger.edits, 1)
	assert.Equal(t, "r1", h.messenger.edits[0].messageID)
	assert.Equal(t, "general kenobi", h.messenger.edits[0].content)
}

func TestEditCascadeBlanksDisqualifiedResponse(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")
	h.caches.Links.Set("m1", sentRef{ChannelID: testChatChan, MessageID: "r1"})

	h.svc.HandleEdit(context.Background(), msgIn(testChatChan, "m1", testAuthor, "wwwwwwwwwwwwwwwwww"))

	require.Len(t, h.messenger.edits, 1)
	assert.Equal(t, blankResponse, h.messenger.edits[0].content)
}

func TestEditSendsWhenNewlyQualifying(t *testing.T) {
	h := newHarness()
	seedPair(h, "hello there", "general kenobi")

	h.svc.HandleEdit(context.Background(), msgIn(testChatChan, "m1", testAuthor, "hello there"))

	require.Len(t, h.messenger.replies, 1)
	_, ok := h.caches.Links.Get("m1")
	assert.True(t, ok)
}

func TestDeleteCascadeRemovesResponse(t *testing.T) {
	h := newHarness()
	h.caches.Links.Set("m1", sentRef{ChannelID: testChatChan, MessageID: "r1"})

	h.svc.HandleDelete(context.Background(), platform.MessageRef{
		GuildID: testGuild, ChannelID: testChatChan, MessageID: "m1",
	})

	require.Len(t, h.messenger.deletes, 1)
	assert.Equal(t, "r1", h.messenger.deletes[0].messageID)
	_, ok := h.caches.Links.Get("m1")
	assert.False(t, ok)
}

func TestDeleteOfResponseDropsLinkOnly(t *testing.T) {
	h := newHarness()
	h.caches.Links.Set("m1", sentRef{ChannelID: testChatChan, MessageID: "r1"})

	h.svc.HandleDelete(context.Background(), platform.MessageRef{
		GuildID: testGuild, ChannelID: testChatChan, MessageID: "r1",
	})

	assert.Empty(t, h.messenger.deletes)
	_, ok := h.caches.Links.Get("m1")
	assert.False(t, ok)
}
