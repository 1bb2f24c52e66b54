// Package ouija runs the séance game: a thread opened under an enabled
// channel collects an answer one character per message, contributed by
// anyone but the asker, until the completion word ends the session.
package ouija

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/parrothq/parrot/internal/platform"
)

var (
	// ErrNotConfigured is returned for channels without an ouija setup.
	ErrNotConfigured = errors.New("ouija: channel not configured")
	// ErrNoSession is returned for threads with no open session.
	ErrNoSession = errors.New("ouija: no session")
)

// DefaultComplete ends a session when posted on its own.
const DefaultComplete = "goodbye"

// Config is a channel's ouija setup. Threads created under the channel
// become boards.
type Config struct {
	ChannelID string
	Enabled   bool
	// Complete is the word that closes a session.
	Complete string
}

// Session is one running board.
type Session struct {
	ThreadID string
	// OwnerID asked the question and may not move the planchette.
	OwnerID string
	// Answer is the text assembled so far.
	Answer string
	// LastUser contributed the previous character.
	LastUser string
}

// Store persists ouija configuration and open sessions.
type Store interface {
	GetConfig(ctx context.Context, channelID string) (Config, error)
	UpsertConfig(ctx context.Context, cfg Config) error
	GetSession(ctx context.Context, threadID string) (Session, error)
	PutSession(ctx context.Context, s Session) error
	EndSession(ctx context.Context, threadID string) error
}

// Service reacts to thread creation and collects answer characters.
type Service struct {
	logger    *slog.Logger
	store     Store
	messenger platform.Messenger
	identity  platform.Identity
}

func NewService(log *slog.Logger, store Store, messenger platform.Messenger, identity platform.Identity) *Service {
	return &Service{
		logger:    log.With(slog.String("service", "ouija")),
		store:     store,
		messenger: messenger,
		identity:  identity,
	}
}

// HandleThreadCreate opens a session when the thread's parent channel is an
// enabled board.
func (s *Service) HandleThreadCreate(ctx context.Context, thread platform.Channel, ownerID string) {
	cfg, err := s.store.GetConfig(ctx, thread.ParentID)
	if errors.Is(err, ErrNotConfigured) {
		return
	}
	if err != nil {
		s.logger.Error("load ouija config", slog.String("channel_id", thread.ParentID), slog.Any("error", err))
		return
	}
	if !cfg.Enabled {
		return
	}

	if err := s.store.PutSession(ctx, Session{ThreadID: thread.ID, OwnerID: ownerID}); err != nil {
		s.logger.Error("open session", slog.String("thread_id", thread.ID), slog.Any("error", err))
		return
	}
	if _, err := s.messenger.Send(ctx, thread.ID, "The spirits are listening. One character at a time."); err != nil {
		s.logger.Debug("greeting failed", slog.String("thread_id", thread.ID), slog.Any("error", err))
	}
}

// HandleMessage feeds one thread message into its session.
func (s *Service) HandleMessage(ctx context.Context, msg platform.Message) {
	if msg.Author.ID == s.identity.UserID || msg.System || msg.ThreadParentID == "" {
		return
	}
	session, err := s.store.GetSession(ctx, msg.ChannelID)
	if errors.Is(err, ErrNoSession) {
		return
	}
	if err != nil {
		s.logger.Error("load session", slog.String("thread_id", msg.ChannelID), slog.Any("error", err))
		return
	}

	if msg.Author.ID == session.OwnerID || msg.Author.ID == session.LastUser {
		s.discard(ctx, msg)
		return
	}

	content := strings.TrimSpace(msg.Content)
	if s.isComplete(ctx, msg.ThreadParentID, content) {
		answer := session.Answer
		if answer == "" {
			answer = "…"
		}
		if _, err := s.messenger.Send(ctx, msg.ChannelID, "The spirits say: "+answer); err != nil {
			s.logger.Warn("answer failed", slog.String("thread_id", msg.ChannelID), slog.Any("error", err))
			return
		}
		if err := s.store.EndSession(ctx, msg.ChannelID); err != nil {
			s.logger.Error("end session", slog.String("thread_id", msg.ChannelID), slog.Any("error", err))
		}
		return
	}

	// A bare message body cannot carry leading or trailing spaces, so an
	// underscore contributes one.
	if content == "_" {
		content = " "
	}
	if utf8.RuneCountInString(content) != 1 {
		s.discard(ctx, msg)
		return
	}

	session.Answer += content
	session.LastUser = msg.Author.ID
	if err := s.store.PutSession(ctx, session); err != nil {
		s.logger.Error("save session", slog.String("thread_id", msg.ChannelID), slog.Any("error", err))
	}
}

func (s *Service) isComplete(ctx context.Context, parentID, content string) bool {
	complete := DefaultComplete
	if cfg, err := s.store.GetConfig(ctx, parentID); err == nil && cfg.Complete != "" {
		complete = cfg.Complete
	}
	return strings.EqualFold(content, complete)
}

func (s *Service) discard(ctx context.Context, msg platform.Message) {
	if err := s.messenger.Delete(ctx, msg.ChannelID, msg.ID); err != nil {
		s.logger.Debug("discard failed", slog.String("message_id", msg.ID), slog.Any("error", err))
	}
}
