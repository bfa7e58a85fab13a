package moderation

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"vckeeper/internal/core"
	"vckeeper/internal/votekick"
)

const historyPageSize = 10

type VotekickHistoryCommand struct{}

func (c *VotekickHistoryCommand) Name() string { return "votekick-history" }
func (c *VotekickHistoryCommand) Description() string {
	return "Show this server's concluded votekicks"
}
func (c *VotekickHistoryCommand) Category() string { return "🔨 Moderation" }

func (c *VotekickHistoryCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "Only show votes against this member",
			},
		},
	}
}

func (c *VotekickHistoryCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}

	var target *discordgo.User
	for _, opt := range sc.Event.ApplicationCommandData().Options {
		if opt.Name == "member" {
			target = opt.UserValue(sc.Session)
		}
	}

	var (
		records []votekick.HistoryRecord
		err     error
	)
	if target != nil {
		records, err = sc.Deps.Storage.UserVotekickHistory(sc.Event.GuildID, target.ID)
	} else {
		records, err = sc.Deps.Storage.VotekickHistory(sc.Event.GuildID)
	}
	if err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, "🔨 Could not load the vote history.")
	}
	if len(records) == 0 {
		return core.Respond(sc.Session, sc.Event, "No concluded votekicks yet.")
	}

	// Newest first, capped to one page.
	if len(records) > historyPageSize {
		records = records[len(records)-historyPageSize:]
	}

	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		fmt.Fprintf(&b, "**%s** — %s/%s, %d/%d votes, <t:%d:R>\n",
			rec.TargetName, rec.Action, rec.Result, rec.Votes, rec.MemberCount, rec.Timestamp.Unix())
	}

	return core.RespondEmbed(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Title:       "🔨 Votekick history",
		Description: b.String(),
		Color:       core.EmbedColor,
	})
}
