package moderation

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"vckeeper/internal/core"
)

type VotekickLeaderboardCommand struct{}

func (c *VotekickLeaderboardCommand) Name() string { return "votekick-leaderboard" }
func (c *VotekickLeaderboardCommand) Description() string {
	return "Rank members by how often they were vote-kicked"
}
func (c *VotekickLeaderboardCommand) Category() string { return "🔨 Moderation" }

func (c *VotekickLeaderboardCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *VotekickLeaderboardCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}

	board, err := sc.Deps.Storage.VotekickLeaderboard(sc.Event.GuildID)
	if err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, "🔨 Could not load the leaderboard.")
	}
	if len(board) == 0 {
		return core.Respond(sc.Session, sc.Event, "Nobody has been removed by vote yet.")
	}
	if len(board) > historyPageSize {
		board = board[:historyPageSize]
	}

	medals := []string{"🥇", "🥈", "🥉"}
	var b strings.Builder
	for i, entry := range board {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s **%s** — voted on %d times, removed %d times\n",
			rank, entry.TargetName, entry.Times, entry.Removals)
	}

	return core.RespondEmbed(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Title:       "🔨 Votekick leaderboard",
		Description: b.String(),
		Color:       core.EmbedColor,
	})
}
