package counting

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrothq/parrot/internal/platform"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in      string
		base    int
		want    int64
		wantErr bool
	}{
		{"42", 10, 42, false},
		{" 42 ", 10, 42, false},
		{"1,234", 10, 1234, false},
		{"1,234,567", 10, 1234567, false},
		{"1234", 10, 1234, false},
		{"-5", 10, -5, false},
		{"12,34", 10, 0, true},
		{"1,2345", 10, 0, true},
		{"forty", 10, 0, true},
		{"", 10, 0, true},
		{"ff", 16, 255, false},
		{"FF", 16, 255, false},
		{"101", 2, 5, false},
		{"102", 2, 0, true},
		{"1,000", 16, 0, true},
	}
	for _, tc := range cases {
		got, err := ParseNumber(tc.in, tc.base)
		if tc.wantErr {
			assert.Error(t, err, "input %q base %d", tc.in, tc.base)
			continue
		}
		require.NoError(t, err, "input %q base %d", tc.in, tc.base)
		assert.Equal(t, tc.want, got, "input %q base %d", tc.in, tc.base)
	}
}

func TestStringifyNumber(t *testing.T) {
	assert.Equal(t, "1,234,567", StringifyNumber(1234567, 10))
	assert.Equal(t, "42", StringifyNumber(42, 10))
	assert.Equal(t, "ff", StringifyNumber(255, 16))
	assert.Equal(t, "101", StringifyNumber(5, 2))
}

type memStore struct {
	cfg      Config
	st       State
	missing  bool
	disabled bool
}

func (m *memStore) Get(context.Context, string) (Config, State, error) {
	if m.missing {
		return Config{}, State{}, ErrNotConfigured
	}
	return m.cfg, m.st, nil
}

func (m *memStore) UpsertConfig(_ context.Context, cfg Config) error {
	m.cfg = cfg
	return nil
}

func (m *memStore) SetState(_ context.Context, _ string, st State) error {
	m.st = st
	return nil
}

func (m *memStore) Disable(context.Context, string) error {
	m.disabled = true
	m.cfg.Enabled = false
	return nil
}

type call struct {
	channelID string
	messageID string
	content   string
}

type fakeMessenger struct {
	reacts  []call
	deletes []call
	sends   []call
	sendErr error
}

func (f *fakeMessenger) Send(_ context.Context, channelID, content string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sends = append(f.sends, call{channelID: channelID, content: content})
	return "sent", nil
}

func (f *fakeMessenger) Reply(context.Context, string, string, string) (string, error) {
	return "", errors.New("unexpected reply")
}

func (f *fakeMessenger) Edit(context.Context, string, string, string) error { return nil }

func (f *fakeMessenger) Delete(_ context.Context, channelID, messageID string) error {
	f.deletes = append(f.deletes, call{channelID: channelID, messageID: messageID})
	return nil
}

func (f *fakeMessenger) React(_ context.Context, channelID, messageID, emoji string) error {
	f.reacts = append(f.reacts, call{channelID: channelID, messageID: messageID, content: emoji})
	return nil
}

func (f *fakeMessenger) Typing(context.Context, string) error { return nil }

const countChan = "300000000000000010"

func newService(store *memStore, m *fakeMessenger) *Service {
	return NewService(slog.Default(), store, m,
		platform.Identity{UserID: "100000000000000009"})
}

func countMsg(id, author, content string) platform.Message {
	return platform.Message{
		ID: id, GuildID: "200000000000000001", ChannelID: countChan,
		Author: platform.User{ID: author}, Content: content, CreatedAt: time.Now(),
	}
}

func TestCountAdvances(t *testing.T) {
	store := &memStore{cfg: Config{ChannelID: countChan, Enabled: true, Base: 10, Step: 1}}
	m := &fakeMessenger{}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "1"))
	assert.Equal(t, State{LastNumber: 1, LastAuthor: "u1", LastMessage: "m1"}, store.st)

	svc.HandleMessage(context.Background(), countMsg("m2", "u2", "2"))
	assert.Equal(t, int64(2), store.st.LastNumber)

	require.Len(t, m.reacts, 2)
	assert.Equal(t, "👍", m.reacts[0].content)
}

func TestCountRejectsWrongNumber(t *testing.T) {
	store := &memStore{cfg: Config{ChannelID: countChan, Enabled: true, Base: 10, Step: 1}}
	m := &fakeMessenger{}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "1"))
	svc.HandleMessage(context.Background(), countMsg("m2", "u2", "7"))

	assert.Equal(t, int64(1), store.st.LastNumber, "a wrong number must not advance the count")
	require.Len(t, m.reacts, 2)
	assert.Equal(t, "👎", m.reacts[1].content)
}

func TestCountRejectsDoubleCount(t *testing.T) {
	store := &memStore{cfg: Config{ChannelID: countChan, Enabled: true, Base: 10, Step: 1}}
	m := &fakeMessenger{}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "1"))
	svc.HandleMessage(context.Background(), countMsg("m2", "u1", "2"))

	assert.Equal(t, int64(1), store.st.LastNumber)
	assert.Equal(t, "👎", m.reacts[1].content)
}

func TestCountResetOnMistake(t *testing.T) {
	store := &memStore{cfg: Config{ChannelID: countChan, Enabled: true, Base: 10, Step: 1, Reset: true}}
	m := &fakeMessenger{}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "1"))
	svc.HandleMessage(context.Background(), countMsg("m2", "u2", "9"))

	assert.Equal(t, State{}, store.st)
	require.Len(t, m.sends, 1)
	assert.Equal(t, countChan, m.sends[0].channelID)
}

func TestCountSilentDeletesInsteadOfReacting(t *testing.T) {
	store := &memStore{cfg: Config{ChannelID: countChan, Enabled: true, Base: 10, Step: 1, Silent: true}}
	m := &fakeMessenger{}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "nope"))

	assert.Empty(t, m.reacts)
	require.Len(t, m.deletes, 1)
	assert.Equal(t, "m1", m.deletes[0].messageID)
}

func TestCountCustomBaseAndStep(t *testing.T) {
	store := &memStore{cfg: Config{ChannelID: countChan, Enabled: true, Base: 16, Step: 2}}
	m := &fakeMessenger{}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "a"))
	assert.Equal(t, int64(10), store.st.LastNumber)

	svc.HandleMessage(context.Background(), countMsg("m2", "u2", "c"))
	assert.Equal(t, int64(12), store.st.LastNumber)
}

func TestCountBrokenLogsChannelDisablesGame(t *testing.T) {
	store := &memStore{cfg: Config{
		ChannelID: countChan, Enabled: true, Base: 10, Step: 1,
		LogsChannel: "300000000000000011",
	}}
	m := &fakeMessenger{sendErr: errors.New("missing access")}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "not a number"))

	assert.True(t, store.disabled)
}

func TestCountIgnoresUnconfiguredChannel(t *testing.T) {
	store := &memStore{missing: true}
	m := &fakeMessenger{}
	svc := newService(store, m)

	svc.HandleMessage(context.Background(), countMsg("m1", "u1", "1"))

	assert.Empty(t, m.reacts)
	assert.Empty(t, m.deletes)
}
