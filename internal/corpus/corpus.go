// Package corpus stores learned (prompt, response) pairs, scoped per guild.
package corpus

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindOne when no entry matches.
var ErrNotFound = errors.New("corpus: entry not found")

// Entry is one learned pair. Immutable once saved, except for deletion.
// Response text is anonymized before it gets here and carries no author
// identity.
type Entry struct {
	ID        string
	GuildID   string
	Prompt    string
	Response  string
	CreatedAt time.Time
}

// Filter selects entries by exact, case-sensitive equality on the set
// fields. GuildID is always required.
type Filter struct {
	GuildID  string
	Response string
}

// Store is the persistence contract. Implementations are atomic per
// document and offer no cross-document transactions; the pipeline never
// needs one.
type Store interface {
	Find(ctx context.Context, f Filter) ([]Entry, error)
	FindOne(ctx context.Context, f Filter) (Entry, error)
	Save(ctx context.Context, e Entry) (Entry, error)
	// DeleteMany removes every matching entry and returns the count.
	DeleteMany(ctx context.Context, f Filter) (int64, error)
	// Count reports the number of entries in a scope.
	Count(ctx context.Context, guildID string) (int64, error)
}
