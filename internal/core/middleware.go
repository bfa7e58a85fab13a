package core

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"vckeeper/internal/storage"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	if w.wrap != nil {
		return w.wrap(ctx)
	}
	return w.Command.Run(ctx)
}

func (w *wrappedCommand) Component(ctx *ComponentContext) error {
	if ch, ok := w.Command.(ComponentHandler); ok {
		return ch.Component(ctx)
	}
	return nil
}

func (w *wrappedCommand) Reaction(ctx *ReactionContext) error {
	if rh, ok := w.Command.(ReactionHandler); ok {
		return rh.Reaction(ctx)
	}
	return nil
}

func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}

// WithGuildOnly drops slash invocations arriving outside a guild.
func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*SlashContext); ok && v.Event.GuildID == "" {
					return RespondEphemeral(v.Session, v.Event, "This command only works inside a server.")
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithAllowedUsers restricts a command to the static allow-list. An
// empty list allows everyone.
func WithAllowedUsers() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				v, ok := ctx.(*SlashContext)
				if !ok || len(v.Deps.Allowed) == 0 {
					return cmd.Run(ctx)
				}
				userID := InteractionUserID(v.Event)
				for _, id := range v.Deps.Allowed {
					if id == userID {
						return cmd.Run(ctx)
					}
				}
				return RespondEphemeral(v.Session, v.Event, "You are not allowed to use this command.")
			},
		}
	}
}

// WithCommandLogger logs the invocation and records it in the guild's
// command history. Recording failures never fail the command.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				err := cmd.Run(ctx)

				v, ok := ctx.(*SlashContext)
				if !ok || v.Event.GuildID == "" {
					return err
				}
				userID := InteractionUserID(v.Event)
				username := InteractionUsername(v.Event)

				v.Deps.Log.Info("command executed",
					zap.String("command", cmd.Name()),
					zap.String("guild", v.Event.GuildID),
					zap.String("user", userID),
					zap.Error(err))

				rec := storage.CommandRecord{
					UserID:   userID,
					Username: username,
					Command:  cmd.Name(),
					Datetime: time.Now().UTC(),
				}
				if e := v.Deps.Storage.AppendCommand(v.Event.GuildID, rec); e != nil {
					v.Deps.Log.Warn("command history append failed",
						zap.String("command", cmd.Name()), zap.Error(e))
				}
				return err
			},
		}
	}
}

// InteractionUserID works in both guild and DM interactions.
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func InteractionUsername(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}
