// Package consent tracks whether a user allows their messages to be learned
// from. Consent gates learning only, never retrieval: stored entries carry no
// author identity, so a later revocation cannot unserve past phrasing. That
// asymmetry is deliberate and documented to users.
package consent

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotFound is returned when a user has no consent record yet.
var ErrNotFound = errors.New("consent: record not found")

// Record is one user's learning permission: a global default plus per-guild
// overrides. Absent record means opted out everywhere.
type Record struct {
	UserID         string
	DefaultAllowed bool
	Overrides      map[string]bool
}

// Allowed resolves the effective permission for one guild.
func (r Record) Allowed(guildID string) bool {
	if v, ok := r.Overrides[guildID]; ok {
		return v
	}
	return r.DefaultAllowed
}

// Store is the persistence contract for consent records.
type Store interface {
	FindOne(ctx context.Context, userID string) (Record, error)
	// Upsert writes the record, creating it if absent.
	Upsert(ctx context.Context, r Record) error
}

// Service resolves and mutates consent. Records are created lazily on the
// first explicit user action and never deleted automatically.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(log *slog.Logger, store Store) *Service {
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "consent")),
	}
}

// IsAllowed reports whether the user's messages may be learned from in the
// guild. No record means no.
func (s *Service) IsAllowed(ctx context.Context, userID, guildID string) (bool, error) {
	rec, err := s.store.FindOne(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Allowed(guildID), nil
}

// Get returns the user's record, or a zeroed opt-out record when absent.
func (s *Service) Get(ctx context.Context, userID string) (Record, error) {
	rec, err := s.store.FindOne(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Record{UserID: userID, Overrides: map[string]bool{}}, nil
	}
	return rec, err
}

// SetGlobal updates the user's default permission across all guilds.
func (s *Service) SetGlobal(ctx context.Context, userID string, allowed bool) (Record, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	rec.DefaultAllowed = allowed
	if err := s.store.Upsert(ctx, rec); err != nil {
		return Record{}, err
	}
	s.logger.Info("consent updated", slog.String("user_id", userID), slog.Bool("allowed", allowed), slog.String("scope", "global"))
	return rec, nil
}

// SetScoped sets a per-guild override, leaving the global default intact.
func (s *Service) SetScoped(ctx context.Context, userID, guildID string, allowed bool) (Record, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	if rec.Overrides == nil {
		rec.Overrides = map[string]bool{}
	}
	rec.Overrides[guildID] = allowed
	if err := s.store.Upsert(ctx, rec); err != nil {
		return Record{}, err
	}
	s.logger.Info("consent updated", slog.String("user_id", userID), slog.Bool("allowed", allowed), slog.String("scope", guildID))
	return rec, nil
}
