package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScopeConfig is a guild's chat feature setup: the one channel the engine
// talks in. Learning runs in every other public channel of the guild.
type ScopeConfig struct {
	GuildID   string
	ChannelID string
	Enabled   bool
}

// ConfigStore persists per-guild chat configuration.
type ConfigStore interface {
	// Get returns the guild's config. An unconfigured guild yields a zero,
	// disabled config and no error.
	Get(ctx context.Context, guildID string) (ScopeConfig, error)
	Upsert(ctx context.Context, cfg ScopeConfig) error
}

// PGConfigStore is the Postgres-backed ConfigStore.
type PGConfigStore struct {
	pool *pgxpool.Pool
}

func NewPGConfigStore(pool *pgxpool.Pool) *PGConfigStore {
	return &PGConfigStore{pool: pool}
}

func (s *PGConfigStore) Get(ctx context.Context, guildID string) (ScopeConfig, error) {
	cfg := ScopeConfig{GuildID: guildID}
	err := s.pool.QueryRow(ctx,
		`SELECT channel_id, enabled FROM chat_config WHERE guild_id = $1`,
		guildID,
	).Scan(&cfg.ChannelID, &cfg.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return ScopeConfig{}, fmt.Errorf("get chat config: %w", err)
	}
	return cfg, nil
}

func (s *PGConfigStore) Upsert(ctx context.Context, cfg ScopeConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_config (guild_id, channel_id, enabled)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id) DO UPDATE SET channel_id = $2, enabled = $3`,
		cfg.GuildID, cfg.ChannelID, cfg.Enabled,
	)
	if err != nil {
		return fmt.Errorf("upsert chat config: %w", err)
	}
	return nil
}
