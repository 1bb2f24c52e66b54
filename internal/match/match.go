// Package match retrieves the best stored response for a prompt using tiered
// approximate string matching.
package match

import (
	"context"
	"math/rand"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/parrothq/parrot/internal/corpus"
)

// Tier sets, tried in strictly descending order. The first tier with at
// least one candidate above its threshold wins; lower tiers are never
// consulted after a hit.
var (
	// ReplyTiers applies when the query came in as an explicit reply.
	ReplyTiers = []float64{0.95, 0.75, 0.5}
	// AmbientTiers applies to ordinary chat-channel traffic.
	AmbientTiers = []float64{0.9, 0.75, 0.45}
)

// Matcher scores stored prompts against a query. Events are handled
// concurrently, so the default random draw goes through the locked global
// source; tests inject their own.
type Matcher struct {
	store  corpus.Store
	metric *metrics.Levenshtein
	rng    func(n int) int
}

// New builds a Matcher over the store.
func New(store corpus.Store) *Matcher {
	return newMatcher(store, rand.Intn)
}

// NewWithRand builds a Matcher with an explicit random source, for
// deterministic selection in tests.
func NewWithRand(store corpus.Store, r *rand.Rand) *Matcher {
	return newMatcher(store, r.Intn)
}

func newMatcher(store corpus.Store, rng func(int) int) *Matcher {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return &Matcher{store: store, metric: lev, rng: rng}
}

// Retrieve returns a stored response whose prompt is similar to the query,
// or ok=false when no tier yields a candidate. Responses in excluded, and
// responses textually equal to the query itself, are never returned. Among
// same-tier candidates the pick is uniformly random and re-rolled per call.
func (m *Matcher) Retrieve(ctx context.Context, query, guildID string, excluded map[string]struct{}, tiers []float64) (string, bool, error) {
	entries, err := m.store.Find(ctx, corpus.Filter{GuildID: guildID})
	if err != nil {
		return "", false, err
	}

	type scored struct {
		response   string
		similarity float64
	}
	candidates := make([]scored, 0, len(entries))
	for _, e := range entries {
		if e.Response == "" || e.Response == query {
			continue
		}
		if _, skip := excluded[e.Response]; skip {
			continue
		}
		candidates = append(candidates, scored{
			response:   e.Response,
			similarity: strutil.Similarity(query, e.Prompt, m.metric),
		})
	}

	for _, threshold := range tiers {
		var hits []string
		for _, c := range candidates {
			if c.similarity >= threshold {
				hits = append(hits, c.response)
			}
		}
		if len(hits) > 0 {
			return hits[m.rng(len(hits))], true, nil
		}
	}
	return "", false, nil
}
