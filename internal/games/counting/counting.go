// Package counting runs the sequential counting game: each message in a
// configured channel must be the next number in the sequence, posted by a
// different author than the previous one.
package counting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/parrothq/parrot/internal/platform"
)

// ErrNotConfigured is returned for channels without a counting setup.
var ErrNotConfigured = errors.New("counting: channel not configured")

// Config is a channel's counting setup.
type Config struct {
	ChannelID string
	Enabled   bool
	// Base is the numeral base counted in, 2 through 36.
	Base int
	// Step is the increment between consecutive numbers.
	Step int64
	// Reset restarts the count from zero after a wrong number.
	Reset bool
	// Silent deletes offending messages instead of reacting to them.
	Silent      bool
	LogsChannel string
}

// State is the running position of a channel's count.
type State struct {
	LastNumber  int64
	LastAuthor  string
	LastMessage string
}

// Store persists counting configuration and state.
type Store interface {
	Get(ctx context.Context, channelID string) (Config, State, error)
	UpsertConfig(ctx context.Context, cfg Config) error
	SetState(ctx context.Context, channelID string, st State) error
	Disable(ctx context.Context, channelID string) error
}

// groupedDecimal accepts plain digit runs and comma-grouped thousands, but
// not mixed or misplaced grouping.
var groupedDecimal = regexp.MustCompile(`^[+-]?\d{1,3}(?:\d*|(?:,\d{3})+)$`)

// ParseNumber reads a whole message as one number in the given base. Base 10
// additionally accepts comma grouping.
func ParseNumber(text string, base int) (int64, error) {
	text = strings.TrimSpace(text)
	if base == 10 {
		if !groupedDecimal.MatchString(text) {
			return 0, fmt.Errorf("not a base-10 number: %q", text)
		}
		text = strings.ReplaceAll(text, ",", "")
	}
	n, err := strconv.ParseInt(strings.ToLower(text), base, 64)
	if err != nil {
		return 0, fmt.Errorf("not a base-%d number: %q", base, text)
	}
	return n, nil
}

var decimalPrinter = message.NewPrinter(language.English)

// StringifyNumber renders a number the way players type it: grouped in base
// 10, bare digits elsewhere.
func StringifyNumber(n int64, base int) string {
	if base == 10 {
		return decimalPrinter.Sprintf("%d", n)
	}
	return strconv.FormatInt(n, base)
}

// Service validates counting messages and advances the channel state.
type Service struct {
	logger    *slog.Logger
	store     Store
	messenger platform.Messenger
	identity  platform.Identity
}

func NewService(log *slog.Logger, store Store, messenger platform.Messenger, identity platform.Identity) *Service {
	return &Service{
		logger:    log.With(slog.String("service", "counting")),
		store:     store,
		messenger: messenger,
		identity:  identity,
	}
}

// HandleMessage checks one message against the channel's count.
func (s *Service) HandleMessage(ctx context.Context, msg platform.Message) {
	if msg.Author.ID == s.identity.UserID || msg.System {
		return
	}
	cfg, st, err := s.store.Get(ctx, msg.ChannelID)
	if errors.Is(err, ErrNotConfigured) {
		return
	}
	if err != nil {
		s.logger.Error("load counting state", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}
	if !cfg.Enabled {
		return
	}

	n, err := ParseNumber(msg.Content, cfg.Base)
	if err != nil {
		s.reject(ctx, cfg, msg, "not a number", false)
		return
	}
	if st.LastMessage != "" && msg.Author.ID == st.LastAuthor {
		s.reject(ctx, cfg, msg, "counted twice in a row", false)
		return
	}
	if st.LastMessage != "" && n != st.LastNumber+cfg.Step {
		s.reject(ctx, cfg, msg,
			fmt.Sprintf("expected %s, got %s",
				StringifyNumber(st.LastNumber+cfg.Step, cfg.Base),
				StringifyNumber(n, cfg.Base)),
			cfg.Reset)
		return
	}

	next := State{LastNumber: n, LastAuthor: msg.Author.ID, LastMessage: msg.ID}
	if err := s.store.SetState(ctx, msg.ChannelID, next); err != nil {
		s.logger.Error("advance count", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}
	if !cfg.Silent {
		if err := s.messenger.React(ctx, msg.ChannelID, msg.ID, "👍"); err != nil {
			s.logger.Debug("react failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) reject(ctx context.Context, cfg Config, msg platform.Message, reason string, reset bool) {
	if cfg.Silent {
		if err := s.messenger.Delete(ctx, msg.ChannelID, msg.ID); err != nil {
			s.logger.Debug("delete failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	} else {
		if err := s.messenger.React(ctx, msg.ChannelID, msg.ID, "👎"); err != nil {
			s.logger.Debug("react failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	}

	if reset {
		if err := s.store.SetState(ctx, msg.ChannelID, State{}); err != nil {
			s.logger.Error("reset count", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		} else if _, err := s.messenger.Send(ctx, msg.ChannelID,
			"Wrong number, the count starts over."); err != nil {
			s.logger.Debug("announce failed", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		}
	}

	s.log(ctx, cfg, fmt.Sprintf("<@%s> broke the count in <#%s>: %s", msg.Author.ID, msg.ChannelID, reason))
}

// log writes to the configured logs channel. A channel that can no longer be
// written to disables itself so the game does not spam errors forever.
func (s *Service) log(ctx context.Context, cfg Config, text string) {
	if cfg.LogsChannel == "" {
		return
	}
	if _, err := s.messenger.Send(ctx, cfg.LogsChannel, text); err != nil {
		s.logger.Warn("logs channel unreachable, disabling game",
			slog.String("channel_id", cfg.ChannelID),
			slog.Any("error", err),
		)
		if derr := s.store.Disable(ctx, cfg.ChannelID); derr != nil {
			s.logger.Error("disable counting", slog.String("channel_id", cfg.ChannelID), slog.Any("error", derr))
		}
	}
}
