package wordchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed word-chain store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetConfig(ctx context.Context, channelID string) (Config, error) {
	cfg := Config{ChannelID: channelID}
	err := s.pool.QueryRow(ctx,
		`SELECT enabled, language, phrases, silent, logs_channel
		 FROM wordchain_config WHERE channel_id = $1`,
		channelID,
	).Scan(&cfg.Enabled, &cfg.Language, &cfg.Phrases, &cfg.Silent, &cfg.LogsChannel)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, ErrNotConfigured
	}
	if err != nil {
		return Config{}, fmt.Errorf("get wordchain config: %w", err)
	}
	return cfg, nil
}

func (s *PGStore) UpsertConfig(ctx context.Context, cfg Config) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wordchain_config (channel_id, enabled, language, phrases, silent, logs_channel)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (channel_id) DO UPDATE SET
		   enabled = $2, language = $3, phrases = $4, silent = $5, logs_channel = $6`,
		cfg.ChannelID, cfg.Enabled, cfg.Language, cfg.Phrases, cfg.Silent, cfg.LogsChannel,
	)
	if err != nil {
		return fmt.Errorf("upsert wordchain config: %w", err)
	}
	return nil
}

func (s *PGStore) Latest(ctx context.Context, channelID string) (Word, error) {
	var w Word
	err := s.pool.QueryRow(ctx,
		`SELECT channel_id, word, author_id, message_id, created_at
		 FROM wordchain_words WHERE channel_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		channelID,
	).Scan(&w.ChannelID, &w.Word, &w.AuthorID, &w.MessageID, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Word{}, ErrNoWords
	}
	if err != nil {
		return Word{}, fmt.Errorf("latest word: %w", err)
	}
	return w, nil
}

func (s *PGStore) Find(ctx context.Context, channelID, word string) (Word, error) {
	var w Word
	err := s.pool.QueryRow(ctx,
		`SELECT channel_id, word, author_id, message_id, created_at
		 FROM wordchain_words WHERE channel_id = $1 AND word = $2`,
		channelID, word,
	).Scan(&w.ChannelID, &w.Word, &w.AuthorID, &w.MessageID, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Word{}, ErrNoWords
	}
	if err != nil {
		return Word{}, fmt.Errorf("find word: %w", err)
	}
	return w, nil
}

func (s *PGStore) Add(ctx context.Context, w Word) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wordchain_words (channel_id, word, author_id, message_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		w.ChannelID, w.Word, w.AuthorID, w.MessageID, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add word: %w", err)
	}
	return nil
}
