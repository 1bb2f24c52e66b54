// Package wordchain runs the word-chain game: each message must be a real
// word that starts with the last letter of the previous word, has not been
// played before in the channel, and comes from a different author.
package wordchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/parrothq/parrot/internal/dictionary"
	"github.com/parrothq/parrot/internal/platform"
	"github.com/parrothq/parrot/internal/transform"
)

var (
	// ErrNotConfigured is returned for channels without a word-chain setup.
	ErrNotConfigured = errors.New("wordchain: channel not configured")
	// ErrNoWords is returned when a channel's chain is still empty.
	ErrNoWords = errors.New("wordchain: no words yet")
)

// Config is a channel's word-chain setup.
type Config struct {
	ChannelID string
	Enabled   bool
	// Language is the dictionary language name, e.g. "English".
	Language string
	// Phrases allows multi-word entries; each word is checked separately.
	Phrases bool
	// Silent deletes offending messages instead of reacting to them.
	Silent      bool
	LogsChannel string
}

// Word is one accepted chain entry.
type Word struct {
	ChannelID string
	Word      string
	AuthorID  string
	MessageID string
	CreatedAt time.Time
}

// Store persists word-chain configuration and played words.
type Store interface {
	GetConfig(ctx context.Context, channelID string) (Config, error)
	UpsertConfig(ctx context.Context, cfg Config) error
	// Latest returns the most recently accepted word, or ErrNoWords.
	Latest(ctx context.Context, channelID string) (Word, error)
	// Find returns the prior play of word in the channel, or ErrNoWords.
	Find(ctx context.Context, channelID, word string) (Word, error)
	Add(ctx context.Context, w Word) error
}

// wordShape limits single-word entries to letters, marks, apostrophes and
// hyphens.
var wordShape = regexp.MustCompile(`^[\p{L}\p{M}'-]+$`)

const minWordLength = 3

// Service validates word-chain messages and persists accepted words.
type Service struct {
	logger    *slog.Logger
	store     Store
	messenger platform.Messenger
	lookup    dictionary.Lookup
	identity  platform.Identity
}

func NewService(log *slog.Logger, store Store, messenger platform.Messenger, lookup dictionary.Lookup, identity platform.Identity) *Service {
	return &Service{
		logger:    log.With(slog.String("service", "wordchain")),
		store:     store,
		messenger: messenger,
		lookup:    lookup,
		identity:  identity,
	}
}

// HandleMessage checks one message against the channel's chain.
func (s *Service) HandleMessage(ctx context.Context, msg platform.Message) {
	if msg.Author.ID == s.identity.UserID || msg.System {
		return
	}
	cfg, err := s.store.GetConfig(ctx, msg.ChannelID)
	if errors.Is(err, ErrNotConfigured) {
		return
	}
	if err != nil {
		s.logger.Error("load wordchain config", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}
	if !cfg.Enabled {
		return
	}

	word := transform.Fold(strings.TrimSpace(msg.Content))
	if reason, ok := s.validShape(cfg, word); !ok {
		s.reject(ctx, cfg, msg, reason)
		return
	}

	latest, err := s.store.Latest(ctx, msg.ChannelID)
	switch {
	case errors.Is(err, ErrNoWords):
		// Chain opener, no predecessor constraints.
	case err != nil:
		s.logger.Error("load latest word", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	default:
		if latest.AuthorID == msg.Author.ID {
			s.reject(ctx, cfg, msg, "you played the previous word")
			return
		}
		if firstRune(word) != lastRune(latest.Word) {
			s.reject(ctx, cfg, msg, fmt.Sprintf("must start with %q", lastRune(latest.Word)))
			return
		}
	}

	if prior, err := s.store.Find(ctx, msg.ChannelID, word); err == nil {
		s.reject(ctx, cfg, msg, fmt.Sprintf("already played: %s", messageURL(msg.GuildID, prior)))
		return
	} else if !errors.Is(err, ErrNoWords) {
		s.logger.Error("look up word", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}

	if !s.inDictionary(ctx, cfg, word) {
		s.reject(ctx, cfg, msg, fmt.Sprintf("%q is not a %s word", word, cfg.Language))
		return
	}

	entry := Word{
		ChannelID: msg.ChannelID,
		Word:      word,
		AuthorID:  msg.Author.ID,
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt,
	}
	if err := s.store.Add(ctx, entry); err != nil {
		s.logger.Error("store word", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}
	if !cfg.Silent {
		if err := s.messenger.React(ctx, msg.ChannelID, msg.ID, "👍"); err != nil {
			s.logger.Debug("react failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) validShape(cfg Config, word string) (string, bool) {
	if utf8.RuneCountInString(word) < minWordLength {
		return fmt.Sprintf("words need at least %d letters", minWordLength), false
	}
	if cfg.Phrases {
		for _, part := range strings.Fields(word) {
			if !wordShape.MatchString(part) {
				return "letters only", false
			}
		}
		return "", true
	}
	if !wordShape.MatchString(word) {
		return "letters only", false
	}
	return "", true
}

// inDictionary checks every word of the entry. A lookup failure accepts the
// word rather than stalling the game.
func (s *Service) inDictionary(ctx context.Context, cfg Config, word string) bool {
	for _, part := range strings.Fields(word) {
		real, err := s.lookup.IsWord(ctx, part, cfg.Language)
		if err != nil {
			s.logger.Warn("dictionary unavailable", slog.String("word", part), slog.Any("error", err))
			return true
		}
		if !real {
			return false
		}
	}
	return true
}

func (s *Service) reject(ctx context.Context, cfg Config, msg platform.Message, reason string) {
	if cfg.Silent {
		if err := s.messenger.Delete(ctx, msg.ChannelID, msg.ID); err != nil {
			s.logger.Debug("delete failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	} else {
		if err := s.messenger.React(ctx, msg.ChannelID, msg.ID, "👎"); err != nil {
			s.logger.Debug("react failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	}
	if cfg.LogsChannel != "" {
		text := fmt.Sprintf("<@%s> broke the chain in <#%s>: %s", msg.Author.ID, msg.ChannelID, reason)
		if _, err := s.messenger.Send(ctx, cfg.LogsChannel, text); err != nil {
			s.logger.Warn("logs channel unreachable", slog.String("channel_id", cfg.LogsChannel), slog.Any("error", err))
		}
	}
}

func messageURL(guildID string, w Word) string {
	return "https://discord.com/channels/" + guildID + "/" + w.ChannelID + "/" + w.MessageID
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}
