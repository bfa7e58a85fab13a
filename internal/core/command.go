// Package core is the command framework: the Command interface, the
// registry, the middleware chain and the interaction helpers.
package core

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"vckeeper/internal/music/session"
	"vckeeper/internal/storage"
	"vckeeper/internal/upload"
	"vckeeper/internal/votekick"
)

type Command interface {
	Name() string
	Description() string
	Category() string
	Run(ctx interface{}) error
}

// SlashProvider - how this command should be registered with Discord
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// ComponentHandler - hook for button/menu interactions beyond Run
type ComponentHandler interface {
	Component(*ComponentContext) error
}

// ReactionHandler - hook for message reactions
type ReactionHandler interface {
	Reaction(*ReactionContext) error
}

// Deps are the shared services handed to every command.
type Deps struct {
	Storage  *storage.Storage
	Sessions *session.Registry
	Votes    *votekick.Coordinator
	Uploads  *upload.Manager
	Allowed  []string
	Log      *zap.Logger
}

// Contexts - what runtime hands you when executing a command

type SlashContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}

type ComponentContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}

type ReactionContext struct {
	Session  *discordgo.Session
	Reaction *discordgo.MessageReactionAdd
	Deps     *Deps
}
