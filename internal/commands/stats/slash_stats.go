// Package stats holds the per-guild statistics command.
package stats

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"vckeeper/internal/core"
	"vckeeper/internal/votekick"
)

type StatsCommand struct{}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Description() string { return "Show this server's bot statistics" }
func (c *StatsCommand) Category() string    { return "📊 Stats" }

func (c *StatsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *StatsCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	guildID := sc.Event.GuildID

	kicks, err := sc.Deps.Storage.VotekickHistory(guildID)
	if err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, "📊 Could not load the stats.")
	}
	removals := 0
	for _, rec := range kicks {
		if rec.Action != votekick.ActionNone {
			removals++
		}
	}

	commands, err := sc.Deps.Storage.CommandHistory(guildID)
	if err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, "📊 Could not load the stats.")
	}

	playback := "idle"
	queued, cached := 0, 0
	if s, ok := sc.Deps.Sessions.Get(guildID); ok {
		playback = s.State().String()
		queued = len(s.Queue())
		cached = s.Store().Len()
	}

	embed := &discordgo.MessageEmbed{
		Title: "📊 Server stats",
		Color: core.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Playback",
				Value: fmt.Sprintf("State: %s\nQueued tracks: %d\nCached tracks: %d",
					playback, queued, cached),
			},
			{
				Name:  "Votekicks",
				Value: fmt.Sprintf("Concluded: %d\nRemovals: %d", len(kicks), removals),
			},
			{
				Name:  "Commands",
				Value: fmt.Sprintf("Recent invocations on record: %d", len(commands)),
			},
		},
	}
	return core.RespondEmbed(sc.Session, sc.Event, embed)
}
