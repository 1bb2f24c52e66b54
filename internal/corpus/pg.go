package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed corpus store.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("service", "corpus")),
	}
}

func (s *PGStore) Find(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, guild_id, prompt, response, created_at FROM chat_entries WHERE guild_id = $1`
	args := []any{f.GuildID}
	if f.Response != "" {
		query += ` AND response = $2`
		args = append(args, f.Response)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id uuid.UUID
		if err := rows.Scan(&id, &e.GuildID, &e.Prompt, &e.Response, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.ID = id.String()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGStore) FindOne(ctx context.Context, f Filter) (Entry, error) {
	query := `SELECT id, guild_id, prompt, response, created_at FROM chat_entries WHERE guild_id = $1`
	args := []any{f.GuildID}
	if f.Response != "" {
		query += ` AND response = $2`
		args = append(args, f.Response)
	}
	query += ` LIMIT 1`

	var e Entry
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, args...).Scan(&id, &e.GuildID, &e.Prompt, &e.Response, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("find entry: %w", err)
	}
	e.ID = id.String()
	return e, nil
}

func (s *PGStore) Save(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_entries (id, guild_id, prompt, response) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		e.ID, e.GuildID, e.Prompt, e.Response,
	).Scan(&e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("save entry: %w", err)
	}
	s.logger.Debug("entry saved", slog.String("guild_id", e.GuildID), slog.String("id", e.ID))
	return e, nil
}

func (s *PGStore) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	query := `DELETE FROM chat_entries WHERE guild_id = $1`
	args := []any{f.GuildID}
	if f.Response != "" {
		query += ` AND response = $2`
		args = append(args, f.Response)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) Count(ctx context.Context, guildID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chat_entries WHERE guild_id = $1`, guildID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}
