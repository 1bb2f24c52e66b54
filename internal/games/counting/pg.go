package counting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed counting store. Config and running state
// share one row per channel.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, channelID string) (Config, State, error) {
	cfg := Config{ChannelID: channelID}
	var st State
	err := s.pool.QueryRow(ctx,
		`SELECT enabled, base, step, reset, silent, logs_channel,
		        last_number, last_author, last_message
		 FROM counting_config WHERE channel_id = $1`,
		channelID,
	).Scan(&cfg.Enabled, &cfg.Base, &cfg.Step, &cfg.Reset, &cfg.Silent, &cfg.LogsChannel,
		&st.LastNumber, &st.LastAuthor, &st.LastMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, State{}, ErrNotConfigured
	}
	if err != nil {
		return Config{}, State{}, fmt.Errorf("get counting config: %w", err)
	}
	return cfg, st, nil
}

func (s *PGStore) UpsertConfig(ctx context.Context, cfg Config) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO counting_config (channel_id, enabled, base, step, reset, silent, logs_channel)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (channel_id) DO UPDATE SET
		   enabled = $2, base = $3, step = $4, reset = $5, silent = $6, logs_channel = $7`,
		cfg.ChannelID, cfg.Enabled, cfg.Base, cfg.Step, cfg.Reset, cfg.Silent, cfg.LogsChannel,
	)
	if err != nil {
		return fmt.Errorf("upsert counting config: %w", err)
	}
	return nil
}

func (s *PGStore) SetState(ctx context.Context, channelID string, st State) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE counting_config
		 SET last_number = $2, last_author = $3, last_message = $4
		 WHERE channel_id = $1`,
		channelID, st.LastNumber, st.LastAuthor, st.LastMessage,
	)
	if err != nil {
		return fmt.Errorf("set counting state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotConfigured
	}
	return nil
}

func (s *PGStore) Disable(ctx context.Context, channelID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE counting_config SET enabled = FALSE WHERE channel_id = $1`,
		channelID,
	)
	if err != nil {
		return fmt.Errorf("disable counting: %w", err)
	}
	return nil
}
