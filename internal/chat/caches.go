package chat

import (
	"time"

	"github.com/parrothq/parrot/internal/cache"
	"github.com/parrothq/parrot/internal/platform"
)

// sentRef locates a response the engine sent, so edit and delete cascades
// can reach it later.
type sentRef struct {
	ChannelID string
	MessageID string
}

// removalKey identifies a purged response text within one guild.
type removalKey struct {
	GuildID  string
	Response string
}

// Caches holds the chat service's process-local working state. All of it is
// ephemeral: after a restart old source messages can no longer be tracked,
// and that is an accepted loss.
type Caches struct {
	// Pending holds the latest candidate prompt per channel.
	Pending *cache.TTL[string, platform.Message]
	// Links maps a source message id to the response sent for it.
	Links *cache.TTL[string, sentRef]
	// Removals remembers purged response texts so a retrieval racing the
	// store deletion cannot re-serve them.
	Removals *cache.TTL[removalKey, struct{}]
	// Composing debounces sends per channel while a composing delay runs.
	// The TTL releases the flag even if a send path dies mid-flight.
	Composing *cache.TTL[string, struct{}]
}

func NewCaches() *Caches {
	return &Caches{
		Pending:   cache.NewTTL[string, platform.Message](1024, time.Hour),
		Links:     cache.NewTTL[string, sentRef](4096, 12*time.Hour),
		Removals:  cache.NewTTL[removalKey, struct{}](1024, 24*time.Hour),
		Composing: cache.NewTTL[string, struct{}](1024, 30*time.Second),
	}
}

// Sweep drops expired entries across all caches and reports the total.
func (c *Caches) Sweep() int {
	return c.Pending.Sweep() + c.Links.Sweep() + c.Removals.Sweep() + c.Composing.Sweep()
}
