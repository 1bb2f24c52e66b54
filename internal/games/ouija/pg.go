package ouija

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed ouija store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetConfig(ctx context.Context, channelID string) (Config, error) {
	cfg := Config{ChannelID: channelID}
	err := s.pool.QueryRow(ctx,
		`SELECT enabled, complete FROM ouija_config WHERE channel_id = $1`,
		channelID,
	).Scan(&cfg.Enabled, &cfg.Complete)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, ErrNotConfigured
	}
	if err != nil {
		return Config{}, fmt.Errorf("get ouija config: %w", err)
	}
	return cfg, nil
}

func (s *PGStore) UpsertConfig(ctx context.Context, cfg Config) error {
	if cfg.Complete == "" {
		cfg.Complete = DefaultComplete
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ouija_config (channel_id, enabled, complete)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (channel_id) DO UPDATE SET enabled = $2, complete = $3`,
		cfg.ChannelID, cfg.Enabled, cfg.Complete,
	)
	if err != nil {
		return fmt.Errorf("upsert ouija config: %w", err)
	}
	return nil
}

func (s *PGStore) GetSession(ctx context.Context, threadID string) (Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx,
		`SELECT thread_id, owner_id, answer, last_user FROM ouija_sessions WHERE thread_id = $1`,
		threadID,
	).Scan(&sess.ThreadID, &sess.OwnerID, &sess.Answer, &sess.LastUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *PGStore) PutSession(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ouija_sessions (thread_id, owner_id, answer, last_user)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (thread_id) DO UPDATE SET answer = $3, last_user = $4`,
		sess.ThreadID, sess.OwnerID, sess.Answer, sess.LastUser,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *PGStore) EndSession(ctx context.Context, threadID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM ouija_sessions WHERE thread_id = $1`,
		threadID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}
