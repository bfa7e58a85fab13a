// Package music holds the playback slash commands. Each command is
// thin glue over the guild's playback session.
package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"vckeeper/internal/core"
	"vckeeper/internal/music/resolve"
)

type PlayCommand struct{}

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Queue a track by link or search query" }
func (c *PlayCommand) Category() string    { return "🎵 Music" }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "YouTube/Spotify/SoundCloud link or song name",
				Required:    true,
			},
		},
	}
}

func (c *PlayCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	session := sc.Session
	event := sc.Event

	var query string
	for _, opt := range event.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	if query == "" {
		return core.RespondEphemeral(session, event, "🎵 A link or search query is required.")
	}

	// Resolution and download can take a while.
	if err := core.Defer(session, event); err != nil {
		return fmt.Errorf("deferred response: %w", err)
	}

	voiceChannel, err := core.FindUserVoiceChannel(session, event.GuildID, event.Member.User.ID)
	if err != nil {
		return core.Followup(session, event, "🎵 Join a voice channel first.")
	}

	guildSession, err := sc.Deps.Sessions.GetOrCreate(event.GuildID)
	if err != nil {
		return core.Followup(session, event, "🎵 Could not open the playback session for this server.")
	}

	pos, rec, err := guildSession.Enqueue(context.Background(), voiceChannel, query)
	if err != nil {
		return core.Followup(session, event, enqueueErrorText(err))
	}

	if pos == 1 {
		return core.Followup(session, event, fmt.Sprintf("▶️ Now playing: %s", rec.SourceURL))
	}
	return core.Followup(session, event, fmt.Sprintf("🎶 Queued at position %d: %s", pos, rec.SourceURL))
}

func enqueueErrorText(err error) string {
	switch {
	case errors.Is(err, resolve.ErrNoResults):
		return "🎵 Nothing found for that query."
	case errors.Is(err, resolve.ErrUnsupported):
		return "🎵 That link is not from a supported platform."
	default:
		return "🎵 Could not fetch that track, try another one."
	}
}
