// Package discord adapts the Discord gateway and REST API to the platform
// surface the engine consumes.
package discord

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/parrothq/parrot/internal/config"
	"github.com/parrothq/parrot/internal/platform"
)

// Adapter owns the gateway session and implements platform.Messenger and
// platform.Directory on top of it.
type Adapter struct {
	logger   *slog.Logger
	session  *discordgo.Session
	identity platform.Identity
}

var (
	_ platform.Messenger = (*Adapter)(nil)
	_ platform.Directory = (*Adapter)(nil)
)

func NewAdapter(log *slog.Logger, cfg config.DiscordConfig) (*Adapter, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildEmojis |
		discordgo.IntentsMessageContent
	session.StateEnabled = true

	return &Adapter{
		logger:  log.With(slog.String("adapter", "discord")),
		session: session,
		// Bot accounts share their user id with the application id, so the
		// identity is known before the gateway connects.
		identity: platform.Identity{UserID: cfg.AppID, AppID: cfg.AppID},
	}, nil
}

// Identity returns the engine's own account.
func (a *Adapter) Identity() platform.Identity {
	return a.identity
}

// Open connects the gateway.
func (a *Adapter) Open() error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	if u := a.session.State.User; u != nil {
		a.logger.Info("gateway connected", slog.String("user_id", u.ID), slog.String("username", u.Username))
	}
	return nil
}

// Close disconnects the gateway.
func (a *Adapter) Close() error {
	return a.session.Close()
}

// Connected reports whether the gateway session is live.
func (a *Adapter) Connected() bool {
	return a.session.DataReady
}

// Latency is the gateway heartbeat round-trip.
func (a *Adapter) Latency() time.Duration {
	return a.session.HeartbeatLatency()
}
