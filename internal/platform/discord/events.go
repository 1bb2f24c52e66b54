package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/parrothq/parrot/internal/chat"
	"github.com/parrothq/parrot/internal/games/counting"
	"github.com/parrothq/parrot/internal/games/ouija"
	"github.com/parrothq/parrot/internal/games/wordchain"
	"github.com/parrothq/parrot/internal/platform"
)

// Events dispatches gateway events to the engine services. Each event is
// handled as an independent task, matching the unordered delivery of the
// gateway itself.
type Events struct {
	logger    *slog.Logger
	adapter   *Adapter
	chat      *chat.Service
	counting  *counting.Service
	wordchain *wordchain.Service
	ouija     *ouija.Service
}

func NewEvents(
	log *slog.Logger,
	adapter *Adapter,
	chatSvc *chat.Service,
	countingSvc *counting.Service,
	wordchainSvc *wordchain.Service,
	ouijaSvc *ouija.Service,
) *Events {
	return &Events{
		logger:    log.With(slog.String("service", "events")),
		adapter:   adapter,
		chat:      chatSvc,
		counting:  countingSvc,
		wordchain: wordchainSvc,
		ouija:     ouijaSvc,
	}
}

// Register attaches the gateway handlers. The returned function removes
// them again.
func (e *Events) Register(ctx context.Context) func() {
	removers := []func(){
		e.adapter.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			if ctx.Err() != nil || m.Message == nil {
				return
			}
			msg := e.adapter.toMessage(m.Message)
			go e.handleMessage(ctx, msg)
		}),
		e.adapter.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
			if ctx.Err() != nil || m.Message == nil || m.Author == nil {
				return
			}
			msg := e.adapter.toMessage(m.Message)
			go e.chat.HandleEdit(ctx, msg)
		}),
		e.adapter.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageDelete) {
			if ctx.Err() != nil {
				return
			}
			ref := platform.MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}
			go e.chat.HandleDelete(ctx, ref)
		}),
		e.adapter.session.AddHandler(func(_ *discordgo.Session, t *discordgo.ThreadCreate) {
			if ctx.Err() != nil || t.Channel == nil {
				return
			}
			thread := e.adapter.toChannel(t.Channel)
			go e.ouija.HandleThreadCreate(ctx, thread, t.OwnerID)
		}),
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

func (e *Events) handleMessage(ctx context.Context, msg platform.Message) {
	// Foreign bots neither play the games nor feed the corpus.
	if msg.Author.Bot && msg.Author.ID != e.adapter.identity.UserID {
		return
	}
	e.chat.HandleMessage(ctx, msg)
	e.counting.HandleMessage(ctx, msg)
	e.wordchain.HandleMessage(ctx, msg)
	e.ouija.HandleMessage(ctx, msg)
}
