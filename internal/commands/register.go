// Package commands registers every slash command with its middleware
// chain.
package commands

import (
	"vckeeper/internal/commands/moderation"
	"vckeeper/internal/commands/music"
	"vckeeper/internal/commands/stats"
	"vckeeper/internal/commands/uploads"
	"vckeeper/internal/core"
)

// RegisterAll wires the command set into the core registry.
func RegisterAll() {
	guildCmds := []core.Command{
		&music.PlayCommand{},
		&music.PauseCommand{},
		&music.ResumeCommand{},
		&music.SkipCommand{},
		&music.StopCommand{},
		&music.QueueCommand{},
		moderation.NewVotekickCommand(),
		&moderation.VotekickHistoryCommand{},
		&moderation.VotekickLeaderboardCommand{},
		&stats.StatsCommand{},
	}
	for _, cmd := range guildCmds {
		core.RegisterCommand(core.ApplyMiddlewares(cmd,
			core.WithGuildOnly(),
			core.WithAllowedUsers(),
			core.WithCommandLogger(),
		))
	}

	// Uploads also work in DMs, so no guild gate.
	core.RegisterCommand(core.ApplyMiddlewares(&uploads.UploadCommand{},
		core.WithAllowedUsers(),
		core.WithCommandLogger(),
	))
}
