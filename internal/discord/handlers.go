package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vckeeper/internal/core"
)

// onReady registers slash commands globally, throttled so a large
// command set cannot trip the HTTP rate limit.
func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	b.log.Info("gateway ready", zap.String("user", s.State.User.Username))
	go b.registerCommands(s)
}

func (b *Bot) registerCommands(s *discordgo.Session) {
	limiter := rate.NewLimiter(rate.Limit(40), 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, cmd := range core.AllCommands() {
		sp, ok := cmd.(core.SlashProvider)
		if !ok {
			continue
		}
		def := sp.SlashDefinition()
		if def == nil {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			b.log.Error("command registration aborted", zap.Error(err))
			return
		}
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", def); err != nil {
			b.log.Error("command registration failed",
				zap.String("command", def.Name), zap.Error(err))
			continue
		}
		b.log.Debug("command registered", zap.String("command", def.Name))
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		cmd, ok := core.GetCommand(name)
		if !ok {
			return
		}
		ctx := &core.SlashContext{Session: s, Event: i, Deps: b.deps}
		if err := cmd.Run(ctx); err != nil {
			b.log.Error("command failed", zap.String("command", name), zap.Error(err))
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		name, _, _ := strings.Cut(customID, ":")
		cmd, ok := core.GetCommand(name)
		if !ok {
			return
		}
		handler, ok := cmd.(core.ComponentHandler)
		if !ok {
			return
		}
		ctx := &core.ComponentContext{Session: s, Event: i, Deps: b.deps}
		if err := handler.Component(ctx); err != nil {
			b.log.Error("component failed", zap.String("custom_id", customID), zap.Error(err))
		}
	}
}

func (b *Bot) onMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.UserID == s.State.User.ID {
		return
	}
	ctx := &core.ReactionContext{Session: s, Reaction: r, Deps: b.deps}
	for _, cmd := range core.AllCommands() {
		if handler, ok := cmd.(core.ReactionHandler); ok {
			if err := handler.Reaction(ctx); err != nil {
				b.log.Error("reaction handler failed", zap.String("command", cmd.Name()), zap.Error(err))
			}
		}
	}
}

// onVoiceStateUpdate drives two teardown paths: the bot being removed
// from voice destroys the guild session, and a vote target leaving its
// channel aborts the vote. A human leaving the bot's channel may also
// empty it, which destroys the session too.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID == s.State.User.ID {
		if v.ChannelID == "" {
			b.log.Info("bot removed from voice", zap.String("guild", v.GuildID))
			b.sessions.Cleanup(v.GuildID)
		}
		return
	}

	oldChannel := ""
	if v.BeforeUpdate != nil {
		oldChannel = v.BeforeUpdate.ChannelID
	}
	if oldChannel == "" || oldChannel == v.ChannelID {
		return
	}

	b.votes.NotifyVoiceLeave(v.GuildID, v.UserID, oldChannel)

	botChannel, err := core.FindUserVoiceChannel(s, v.GuildID, s.State.User.ID)
	if err != nil || botChannel != oldChannel {
		return
	}
	humans, err := core.VoiceChannelHumans(s, v.GuildID, oldChannel)
	if err == nil && len(humans) == 0 {
		b.log.Info("voice channel emptied", zap.String("guild", v.GuildID))
		b.sessions.Cleanup(v.GuildID)
	}
}
