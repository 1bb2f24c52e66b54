package chat

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/parrothq/parrot/internal/corpus"
	"github.com/parrothq/parrot/internal/platform"
	"github.com/parrothq/parrot/internal/transform"
)

// blankResponse replaces a tracked response whose source no longer qualifies
// for any answer. Editing to truly empty content is rejected by the platform.
const blankResponse = "\u200b"

// Service orchestrates learning, responding and response lifecycle tracking
// over the inbound event stream. Events arrive concurrently and unordered;
// the service holds no lock across the learn and respond paths.
type Service struct {
	logger    *slog.Logger
	learner   *Learner
	responder *Responder
	messenger platform.Messenger
	store     corpus.Store
	caches    *Caches
	identity  platform.Identity

	maxComposeDelay time.Duration
	randFloat       func() float64
	sleep           func(ctx context.Context, d time.Duration)
}

func NewService(
	log *slog.Logger,
	learner *Learner,
	responder *Responder,
	messenger platform.Messenger,
	store corpus.Store,
	caches *Caches,
	identity platform.Identity,
	maxComposeDelay time.Duration,
) *Service {
	return &Service{
		logger:          log.With(slog.String("service", "chat")),
		learner:         learner,
		responder:       responder,
		messenger:       messenger,
		store:           store,
		caches:          caches,
		identity:        identity,
		maxComposeDelay: maxComposeDelay,
		randFloat:       rand.Float64,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// HandleMessage runs one inbound message through learning and then through
// the respond path. Each call is an independent task.
func (s *Service) HandleMessage(ctx context.Context, msg platform.Message) {
	learned, err := s.learner.Learn(ctx, msg)
	if err != nil {
		s.logger.Error("learning failed", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
	} else if learned {
		s.logger.Debug("learned", slog.String("guild_id", msg.GuildID))
	}
	s.maybeRespond(ctx, msg)
}

func (s *Service) maybeRespond(ctx context.Context, msg platform.Message) {
	if _, busy := s.caches.Composing.Get(msg.ChannelID); busy {
		return
	}

	content, ok, err := s.responder.Respond(ctx, msg)
	if err != nil {
		s.logger.Error("respond failed", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	// Raise the debounce flag before the composing delay so a concurrent
	// message in the same channel does not trigger a second send.
	s.caches.Composing.Set(msg.ChannelID, struct{}{})
	defer s.caches.Composing.Delete(msg.ChannelID)

	if err := s.messenger.Typing(ctx, msg.ChannelID); err != nil {
		s.logger.Debug("typing failed", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
	}
	s.sleep(ctx, s.composeDelay())
	if ctx.Err() != nil {
		return
	}

	sentID, err := s.deliver(ctx, msg, content)
	if err != nil {
		s.logger.Warn("send failed", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}
	s.caches.Links.Set(msg.ID, sentRef{ChannelID: msg.ChannelID, MessageID: sentID})
}

// deliver replies to ordinary messages and plain-sends next to system ones,
// which cannot be replied to.
func (s *Service) deliver(ctx context.Context, msg platform.Message, content string) (string, error) {
	if msg.System {
		return s.messenger.Send(ctx, msg.ChannelID, content)
	}
	return s.messenger.Reply(ctx, msg.ChannelID, msg.ID, content)
}

// composeDelay emulates a human typing pause. Squaring the draw biases short
// waits while keeping the occasional long one.
func (s *Service) composeDelay() time.Duration {
	return time.Duration(s.randFloat() * s.randFloat() * float64(s.maxComposeDelay))
}

// HandleEdit propagates a source message edit to its tracked response:
// re-answer in place, blank the response when the new content no longer
// qualifies, or send fresh when it newly qualifies. Last write wins.
func (s *Service) HandleEdit(ctx context.Context, msg platform.Message) {
	content, ok, err := s.responder.Respond(ctx, msg)
	if err != nil {
		s.logger.Error("respond failed", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
		return
	}

	link, linked := s.caches.Links.Get(msg.ID)
	switch {
	case linked && ok:
		if err := s.messenger.Edit(ctx, link.ChannelID, link.MessageID, content); err != nil {
			s.logger.Warn("edit cascade failed", slog.String("message_id", link.MessageID), slog.Any("error", err))
		}
	case linked && !ok:
		if err := s.messenger.Edit(ctx, link.ChannelID, link.MessageID, blankResponse); err != nil {
			s.logger.Warn("edit cascade failed", slog.String("message_id", link.MessageID), slog.Any("error", err))
		}
	case !linked && ok:
		sentID, err := s.deliver(ctx, msg, content)
		if err != nil {
			s.logger.Warn("send failed", slog.String("channel_id", msg.ChannelID), slog.Any("error", err))
			return
		}
		s.caches.Links.Set(msg.ID, sentRef{ChannelID: msg.ChannelID, MessageID: sentID})
	}
}

// HandleDelete removes the tracked response of a deleted source message.
// Delete events sometimes identify the response itself rather than the
// source; then only the link is dropped.
func (s *Service) HandleDelete(ctx context.Context, ref platform.MessageRef) {
	if link, ok := s.caches.Links.Get(ref.MessageID); ok {
		if err := s.messenger.Delete(ctx, link.ChannelID, link.MessageID); err != nil {
			s.logger.Debug("delete cascade failed", slog.String("message_id", link.MessageID), slog.Any("error", err))
		}
		s.caches.Links.Delete(ref.MessageID)
		return
	}
	if source, ok := s.caches.Links.FindKey(func(v sentRef) bool { return v.MessageID == ref.MessageID }); ok {
		s.caches.Links.Delete(source)
	}
}

// RemoveResponse purges every corpus entry in the guild whose stored text
// matches the displayed response, and memoizes the text so in-flight
// retrievals cannot re-serve it. Returns the number of entries removed.
func (s *Service) RemoveResponse(ctx context.Context, guildID, displayed string) (int64, error) {
	stored := transform.StoredResponse(displayed, s.identity.UserID)
	n, err := s.store.DeleteMany(ctx, corpus.Filter{GuildID: guildID, Response: stored})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.caches.Removals.Set(removalKey{GuildID: guildID, Response: stored}, struct{}{})
		s.logger.Info("responses purged", slog.String("guild_id", guildID), slog.Int64("count", n))
	}
	return n, nil
}

// RegisterSweep schedules periodic eviction of expired cache entries.
func (s *Service) RegisterSweep(c *cron.Cron) error {
	_, err := c.AddFunc("@every 10m", func() {
		if n := s.caches.Sweep(); n > 0 {
			s.logger.Debug("cache sweep", slog.Int("evicted", n))
		}
	})
	return err
}
