package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/parrothq/parrot/internal/chat"
	"github.com/parrothq/parrot/internal/consent"
	"github.com/parrothq/parrot/internal/games/counting"
	"github.com/parrothq/parrot/internal/games/ouija"
	"github.com/parrothq/parrot/internal/games/wordchain"
)

const (
	cmdChatConfig      = "chat-config"
	cmdConsent         = "consent"
	cmdCountingConfig  = "counting-config"
	cmdWordchainConfig = "wordchain-config"
	cmdOuijaConfig     = "ouija-config"
	cmdRemoveResponse  = "Remove Response"

	componentConsentPrefix = "consent:"
	modalRemovePrefix      = "remove-response:"
	confirmationWord       = "confirm"
)

var (
	manageGuild    = int64(discordgo.PermissionManageGuild)
	manageMessages = int64(discordgo.PermissionManageMessages)
)

// Interactions implements the slash command, button and modal surface.
type Interactions struct {
	logger         *slog.Logger
	adapter        *Adapter
	chat           *chat.Service
	chatConfigs    chat.ConfigStore
	consents       *consent.Service
	countingStore  counting.Store
	wordchainStore wordchain.Store
	ouijaStore     ouija.Store
}

func NewInteractions(
	log *slog.Logger,
	adapter *Adapter,
	chatSvc *chat.Service,
	chatConfigs chat.ConfigStore,
	consents *consent.Service,
	countingStore counting.Store,
	wordchainStore wordchain.Store,
	ouijaStore ouija.Store,
) *Interactions {
	return &Interactions{
		logger:         log.With(slog.String("service", "interactions")),
		adapter:        adapter,
		chat:           chatSvc,
		chatConfigs:    chatConfigs,
		consents:       consents,
		countingStore:  countingStore,
		wordchainStore: wordchainStore,
		ouijaStore:     ouijaStore,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     cmdChatConfig,
			Description:              "Configure the channel the engine chats in",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Chat channel", Required: true},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Turn chatting on or off", Required: true},
			},
		},
		{
			Name:        cmdConsent,
			Description: "View and change whether your messages may be learned from",
		},
		{
			Name:                     cmdCountingConfig,
			Description:              "Configure the counting game for a channel",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Counting channel", Required: true},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Turn the game on or off", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "base", Description: "Numeral base (2-36, default 10)"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "step", Description: "Increment between numbers (default 1)"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "reset", Description: "Restart the count after a mistake"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "silent", Description: "Delete offending messages instead of reacting"},
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "logs_channel", Description: "Channel for rule-break logs"},
			},
		},
		{
			Name:                     cmdWordchainConfig,
			Description:              "Configure the word-chain game for a channel",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Word-chain channel", Required: true},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Turn the game on or off", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "language", Description: "Dictionary language (default English)"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "phrases", Description: "Allow multi-word entries"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "silent", Description: "Delete offending messages instead of reacting"},
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "logs_channel", Description: "Channel for rule-break logs"},
			},
		},
		{
			Name:                     cmdOuijaConfig,
			Description:              "Configure the ouija board for a channel",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Board channel", Required: true},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Turn the board on or off", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "complete", Description: "Word that ends a session (default goodbye)"},
			},
		},
		{
			Name:                     cmdRemoveResponse,
			Type:                     discordgo.MessageApplicationCommand,
			DefaultMemberPermissions: &manageMessages,
		},
	}
}

// Register overwrites the application commands and attaches the interaction
// handler. The returned function detaches it.
func (x *Interactions) Register(ctx context.Context) (func(), error) {
	if _, err := x.adapter.session.ApplicationCommandBulkOverwrite(
		x.adapter.identity.AppID, "", commandDefinitions(), discordgo.WithContext(ctx),
	); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}

	remove := x.adapter.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		if ctx.Err() != nil {
			return
		}
		go x.dispatch(ctx, i)
	})
	return remove, nil
}

func (x *Interactions) dispatch(ctx context.Context, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case cmdChatConfig:
			x.handleChatConfig(ctx, i, data)
		case cmdConsent:
			x.handleConsent(ctx, i)
		case cmdCountingConfig:
			x.handleCountingConfig(ctx, i, data)
		case cmdWordchainConfig:
			x.handleWordchainConfig(ctx, i, data)
		case cmdOuijaConfig:
			x.handleOuijaConfig(ctx, i, data)
		case cmdRemoveResponse:
			x.openRemoveModal(i, data)
		}
	case discordgo.InteractionMessageComponent:
		if id := i.MessageComponentData().CustomID; strings.HasPrefix(id, componentConsentPrefix) {
			x.handleConsentButton(ctx, i, id)
		}
	case discordgo.InteractionModalSubmit:
		if data := i.ModalSubmitData(); strings.HasPrefix(data.CustomID, modalRemovePrefix) {
			x.handleRemoveSubmit(ctx, i, data)
		}
	}
}

func options(data discordgo.ApplicationCommandInteractionData) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		out[opt.Name] = opt
	}
	return out
}

func invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (x *Interactions) respond(i *discordgo.InteractionCreate, content string) {
	err := x.adapter.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		x.logger.Warn("interaction response failed", slog.Any("error", err))
	}
}

func (x *Interactions) handleChatConfig(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := options(data)
	ch := opts["channel"].ChannelValue(x.adapter.session)
	if ch == nil {
		x.respond(i, "❌ Unknown channel.")
		return
	}
	cfg := chat.ScopeConfig{
		GuildID:   i.GuildID,
		ChannelID: ch.ID,
		Enabled:   opts["enabled"].BoolValue(),
	}
	if err := x.chatConfigs.Upsert(ctx, cfg); err != nil {
		x.logger.Error("save chat config", slog.String("guild_id", i.GuildID), slog.Any("error", err))
		x.respond(i, "❌ Could not save the configuration.")
		return
	}
	if cfg.Enabled {
		x.respond(i, fmt.Sprintf("✅ Chatting in <#%s>, learning everywhere else.", cfg.ChannelID))
		return
	}
	x.respond(i, "✅ Chatting disabled.")
}

func (x *Interactions) handleConsent(ctx context.Context, i *discordgo.InteractionCreate) {
	userID := invokerID(i)
	rec, err := x.consents.Get(ctx, userID)
	if err != nil {
		x.logger.Error("load consent", slog.String("user_id", userID), slog.Any("error", err))
		x.respond(i, "❌ Could not load your settings.")
		return
	}

	scope := "global"
	scopeLabel := "everywhere"
	effective := rec.DefaultAllowed
	if i.GuildID != "" {
		scope = i.GuildID
		scopeLabel = "in this server"
		effective = rec.Allowed(i.GuildID)
	}
	state := "are NOT"
	if effective {
		state = "are"
	}

	err = x.adapter.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf(
				"Your messages %s available for learning %s.\n"+
					"Note: responses already learned stay anonymous and cannot be traced back or unlearned per user.",
				state, scopeLabel),
			Flags: discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Allow",
						Style:    discordgo.SuccessButton,
						CustomID: componentConsentPrefix + "allow:" + scope,
					},
					discordgo.Button{
						Label:    "Deny",
						Style:    discordgo.DangerButton,
						CustomID: componentConsentPrefix + "deny:" + scope,
					},
				}},
			},
		},
	})
	if err != nil {
		x.logger.Warn("interaction response failed", slog.Any("error", err))
	}
}

func (x *Interactions) handleConsentButton(ctx context.Context, i *discordgo.InteractionCreate, customID string) {
	parts := strings.Split(strings.TrimPrefix(customID, componentConsentPrefix), ":")
	if len(parts) != 2 {
		return
	}
	action, scope := parts[0], parts[1]
	allowed := action == "allow"
	userID := invokerID(i)

	var err error
	if scope == "global" {
		_, err = x.consents.SetGlobal(ctx, userID, allowed)
	} else {
		_, err = x.consents.SetScoped(ctx, userID, scope, allowed)
	}
	if err != nil {
		x.logger.Error("save consent", slog.String("user_id", userID), slog.Any("error", err))
		x.respond(i, "❌ Could not save your choice.")
		return
	}
	if allowed {
		x.respond(i, "✅ Learning from your messages is now allowed.")
		return
	}
	x.respond(i, "✅ Learning from your messages is now denied.")
}

func (x *Interactions) openRemoveModal(i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if data.Resolved == nil {
		x.respond(i, "❌ Message unavailable.")
		return
	}
	msg, ok := data.Resolved.Messages[data.TargetID]
	if !ok || msg == nil {
		x.respond(i, "❌ Message unavailable.")
		return
	}
	err := x.adapter.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalRemovePrefix + msg.ChannelID + ":" + msg.ID,
			Title:    "Remove learned response",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    "confirmation",
						Label:       "Type 'confirm' to delete every copy",
						Style:       discordgo.TextInputShort,
						Placeholder: confirmationWord,
						Required:    true,
						MaxLength:   16,
					},
				}},
			},
		},
	})
	if err != nil {
		x.logger.Warn("modal open failed", slog.Any("error", err))
	}
}

func (x *Interactions) handleRemoveSubmit(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData) {
	parts := strings.Split(strings.TrimPrefix(data.CustomID, modalRemovePrefix), ":")
	if len(parts) != 2 {
		return
	}
	channelID, messageID := parts[0], parts[1]

	confirmation := ""
	if len(data.Components) == 0 {
		return
	}
	if row, ok := data.Components[0].(*discordgo.ActionsRow); ok && len(row.Components) > 0 {
		if input, ok := row.Components[0].(*discordgo.TextInput); ok {
			confirmation = input.Value
		}
	}
	if !strings.EqualFold(strings.TrimSpace(confirmation), confirmationWord) {
		x.respond(i, "❌ Not confirmed, nothing was removed.")
		return
	}

	msg, err := x.adapter.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		x.respond(i, "❌ Message unavailable.")
		return
	}
	n, err := x.chat.RemoveResponse(ctx, i.GuildID, msg.Content)
	if err != nil {
		x.logger.Error("remove response", slog.String("guild_id", i.GuildID), slog.Any("error", err))
		x.respond(i, "❌ Could not remove the response.")
		return
	}
	x.respond(i, fmt.Sprintf("✅ Removed %d learned cop%s of that response.", n, plural(n)))
}

func plural(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func (x *Interactions) handleCountingConfig(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := options(data)
	ch := opts["channel"].ChannelValue(x.adapter.session)
	if ch == nil {
		x.respond(i, "❌ Unknown channel.")
		return
	}
	cfg := counting.Config{
		ChannelID: ch.ID,
		Enabled:   opts["enabled"].BoolValue(),
		Base:      10,
		Step:      1,
	}
	if opt, ok := opts["base"]; ok {
		base := opt.IntValue()
		if base < 2 || base > 36 {
			x.respond(i, "❌ Base must be between 2 and 36.")
			return
		}
		cfg.Base = int(base)
	}
	if opt, ok := opts["step"]; ok {
		cfg.Step = opt.IntValue()
	}
	if opt, ok := opts["reset"]; ok {
		cfg.Reset = opt.BoolValue()
	}
	if opt, ok := opts["silent"]; ok {
		cfg.Silent = opt.BoolValue()
	}
	if opt, ok := opts["logs_channel"]; ok {
		if logs := opt.ChannelValue(x.adapter.session); logs != nil {
			cfg.LogsChannel = logs.ID
		}
	}
	if err := x.countingStore.UpsertConfig(ctx, cfg); err != nil {
		x.logger.Error("save counting config", slog.String("channel_id", cfg.ChannelID), slog.Any("error", err))
		x.respond(i, "❌ Could not save the configuration.")
		return
	}
	x.respond(i, fmt.Sprintf("✅ Counting in <#%s>: base %d, step %d.", cfg.ChannelID, cfg.Base, cfg.Step))
}

func (x *Interactions) handleWordchainConfig(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := options(data)
	ch := opts["channel"].ChannelValue(x.adapter.session)
	if ch == nil {
		x.respond(i, "❌ Unknown channel.")
		return
	}
	cfg := wordchain.Config{
		ChannelID: ch.ID,
		Enabled:   opts["enabled"].BoolValue(),
		Language:  "English",
	}
	if opt, ok := opts["language"]; ok && strings.TrimSpace(opt.StringValue()) != "" {
		cfg.Language = strings.TrimSpace(opt.StringValue())
	}
	if opt, ok := opts["phrases"]; ok {
		cfg.Phrases = opt.BoolValue()
	}
	if opt, ok := opts["silent"]; ok {
		cfg.Silent = opt.BoolValue()
	}
	if opt, ok := opts["logs_channel"]; ok {
		if logs := opt.ChannelValue(x.adapter.session); logs != nil {
			cfg.LogsChannel = logs.ID
		}
	}
	if err := x.wordchainStore.UpsertConfig(ctx, cfg); err != nil {
		x.logger.Error("save wordchain config", slog.String("channel_id", cfg.ChannelID), slog.Any("error", err))
		x.respond(i, "❌ Could not save the configuration.")
		return
	}
	x.respond(i, fmt.Sprintf("✅ Word chain in <#%s>, %s dictionary.", cfg.ChannelID, cfg.Language))
}

func (x *Interactions) handleOuijaConfig(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := options(data)
	ch := opts["channel"].ChannelValue(x.adapter.session)
	if ch == nil {
		x.respond(i, "❌ Unknown channel.")
		return
	}
	cfg := ouija.Config{
		ChannelID: ch.ID,
		Enabled:   opts["enabled"].BoolValue(),
		Complete:  ouija.DefaultComplete,
	}
	if opt, ok := opts["complete"]; ok && strings.TrimSpace(opt.StringValue()) != "" {
		cfg.Complete = strings.TrimSpace(opt.StringValue())
	}
	if err := x.ouijaStore.UpsertConfig(ctx, cfg); err != nil {
		x.logger.Error("save ouija config", slog.String("channel_id", cfg.ChannelID), slog.Any("error", err))
		x.respond(i, "❌ Could not save the configuration.")
		return
	}
	x.respond(i, fmt.Sprintf("✅ Ouija board in <#%s>, sessions end on %q.", cfg.ChannelID, cfg.Complete))
}
