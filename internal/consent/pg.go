package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed consent store. Overrides are kept as a
// jsonb map keyed by guild id.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) FindOne(ctx context.Context, userID string) (Record, error) {
	var rec Record
	var overrides []byte
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, default_allowed, overrides FROM chat_consent WHERE user_id = $1`,
		userID,
	).Scan(&rec.UserID, &rec.DefaultAllowed, &overrides)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find consent: %w", err)
	}
	if err := json.Unmarshal(overrides, &rec.Overrides); err != nil {
		return Record{}, fmt.Errorf("decode overrides: %w", err)
	}
	return rec, nil
}

func (s *PGStore) Upsert(ctx context.Context, r Record) error {
	overrides, err := json.Marshal(r.Overrides)
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}
	if r.Overrides == nil {
		overrides = []byte(`{}`)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO chat_consent (user_id, default_allowed, overrides)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET default_allowed = $2, overrides = $3`,
		r.UserID, r.DefaultAllowed, overrides,
	)
	if err != nil {
		return fmt.Errorf("upsert consent: %w", err)
	}
	return nil
}
