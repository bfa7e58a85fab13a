package music

import (
	"errors"

	"github.com/bwmarrin/discordgo"

	"vckeeper/internal/core"
	"vckeeper/internal/music/session"
	"vckeeper/internal/music/voice"
)

func simpleSlash(name, description string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: description,
		Type:        discordgo.ChatApplicationCommand,
	}
}

// guildSession fetches the live session, answering the interaction when
// there is none.
func guildSession(sc *core.SlashContext) (*session.Session, bool) {
	s, ok := sc.Deps.Sessions.Get(sc.Event.GuildID)
	if !ok {
		core.RespondEphemeral(sc.Session, sc.Event, "🎵 Nothing is playing on this server.")
		return nil, false
	}
	return s, true
}

func controlErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrNothingPlaying):
		return "🎵 Nothing is playing right now."
	case errors.Is(err, voice.ErrAlreadyPaused):
		return "⏸ Playback is already paused."
	case errors.Is(err, voice.ErrNotPaused):
		return "▶️ Playback is not paused."
	default:
		return "🎵 That did not work, try again."
	}
}

type PauseCommand struct{}

func (c *PauseCommand) Name() string        { return "pause" }
func (c *PauseCommand) Description() string { return "Pause the current track" }
func (c *PauseCommand) Category() string    { return "🎵 Music" }

func (c *PauseCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return simpleSlash(c.Name(), c.Description())
}

func (c *PauseCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	s, ok := guildSession(sc)
	if !ok {
		return nil
	}
	if err := s.Pause(); err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, controlErrorText(err))
	}
	return core.Respond(sc.Session, sc.Event, "⏸ Paused.")
}

type ResumeCommand struct{}

func (c *ResumeCommand) Name() string        { return "resume" }
func (c *ResumeCommand) Description() string { return "Resume a paused track" }
func (c *ResumeCommand) Category() string    { return "🎵 Music" }

func (c *ResumeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return simpleSlash(c.Name(), c.Description())
}

func (c *ResumeCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	s, ok := guildSession(sc)
	if !ok {
		return nil
	}
	if err := s.Resume(); err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, controlErrorText(err))
	}
	return core.Respond(sc.Session, sc.Event, "▶️ Resumed.")
}

type SkipCommand struct{}

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "Skip to the next track in the queue" }
func (c *SkipCommand) Category() string    { return "🎵 Music" }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return simpleSlash(c.Name(), c.Description())
}

func (c *SkipCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	s, ok := guildSession(sc)
	if !ok {
		return nil
	}
	if err := s.Skip(); err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, controlErrorText(err))
	}
	return core.Respond(sc.Session, sc.Event, "⏭ Skipped.")
}

type StopCommand struct{}

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stop playback and clear the queue" }
func (c *StopCommand) Category() string    { return "🎵 Music" }

func (c *StopCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return simpleSlash(c.Name(), c.Description())
}

func (c *StopCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	if _, ok := sc.Deps.Sessions.Get(sc.Event.GuildID); !ok {
		return core.RespondEphemeral(sc.Session, sc.Event, "🎵 Nothing is playing on this server.")
	}
	sc.Deps.Sessions.Cleanup(sc.Event.GuildID)
	return core.Respond(sc.Session, sc.Event, "⏹ Stopped and cleaned up.")
}

type QueueCommand struct{}

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "Show the pending track queue" }
func (c *QueueCommand) Category() string    { return "🎵 Music" }

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return simpleSlash(c.Name(), c.Description())
}

func (c *QueueCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	s, ok := sc.Deps.Sessions.Get(sc.Event.GuildID)
	if !ok {
		return core.Respond(sc.Session, sc.Event, "Queue is empty.")
	}
	return core.Respond(sc.Session, sc.Event, session.RenderQueue(s))
}
