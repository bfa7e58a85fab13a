// Package moderation holds the votekick slash commands.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"vckeeper/internal/core"
	"vckeeper/internal/votekick"
)

const (
	voteEmoji       = "👍"
	defaultDuration = 60 * time.Second
	choiceWindow    = 30 * time.Second
)

// VotekickCommand runs the full vote flow: reaction collection with a
// live countdown embed, then for a unanimous result a button choice
// between disconnect and kick.
type VotekickCommand struct {
	mu sync.Mutex
	// collection message id -> in-flight vote, for the reaction handler
	byMessage map[string]*votekick.Vote
	// choice message id -> unanimous-choice state, for the button handler
	choices map[string]*choiceState
}

type choiceState struct {
	vote    *votekick.Vote
	decided chan struct{}
}

func NewVotekickCommand() *VotekickCommand {
	return &VotekickCommand{
		byMessage: make(map[string]*votekick.Vote),
		choices:   make(map[string]*choiceState),
	}
}

func (c *VotekickCommand) Name() string { return "votekick" }
func (c *VotekickCommand) Description() string {
	return "Start a vote to remove a member from the voice channel"
}
func (c *VotekickCommand) Category() string { return "🔨 Moderation" }

func (c *VotekickCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minDuration, maxDuration := float64(15), float64(300)
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "target",
				Description: "Member to vote on",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "duration",
				Description: "Voting window in seconds (default 60)",
				MinValue:    &minDuration,
				MaxValue:    maxDuration,
			},
		},
	}
}

func (c *VotekickCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}
	session := sc.Session
	event := sc.Event

	var target *discordgo.User
	duration := defaultDuration
	for _, opt := range event.ApplicationCommandData().Options {
		switch opt.Name {
		case "target":
			target = opt.UserValue(session)
		case "duration":
			duration = time.Duration(opt.IntValue()) * time.Second
		}
	}
	if target == nil {
		return core.RespondEphemeral(session, event, "🔨 A target member is required.")
	}
	if target.Bot {
		return core.RespondEphemeral(session, event, "🔨 Bots cannot be vote-kicked.")
	}
	if target.ID == event.Member.User.ID {
		return core.RespondEphemeral(session, event, "🔨 You cannot votekick yourself.")
	}

	channelID, err := core.FindUserVoiceChannel(session, event.GuildID, target.ID)
	if err != nil {
		return core.RespondEphemeral(session, event,
			fmt.Sprintf("🔨 %s is not in a voice channel.", target.Username))
	}
	humans, err := core.VoiceChannelHumans(session, event.GuildID, channelID)
	if err != nil {
		return core.RespondEphemeral(session, event, "🔨 Could not read the voice channel members.")
	}

	vote, err := sc.Deps.Votes.Start(votekick.StartParams{
		GuildID:        event.GuildID,
		ChannelID:      channelID,
		TargetID:       target.ID,
		TargetName:     target.Username,
		StarterID:      event.Member.User.ID,
		HumanMemberIDs: humans,
		Duration:       duration,
	})
	switch {
	case errors.Is(err, votekick.ErrSelfTarget):
		return core.RespondEphemeral(session, event, "🔨 You cannot votekick yourself.")
	case errors.Is(err, votekick.ErrAlreadyActive):
		return core.RespondEphemeral(session, event, "🔨 A vote against that member is already running.")
	case errors.Is(err, votekick.ErrInsufficientParticipants):
		return core.RespondEphemeral(session, event, "🔨 At least two humans must be in the voice channel.")
	case err != nil:
		return err
	}

	embed := c.voteEmbed(vote, duration)
	if err := core.RespondEmbed(session, event, embed); err != nil {
		return fmt.Errorf("votekick announce: %w", err)
	}
	msg, err := session.InteractionResponse(event.Interaction)
	if err != nil {
		return fmt.Errorf("votekick message lookup: %w", err)
	}
	if err := session.MessageReactionAdd(msg.ChannelID, msg.ID, voteEmoji); err != nil {
		sc.Deps.Log.Warn("seed reaction failed", zap.Error(err))
	}

	c.mu.Lock()
	c.byMessage[msg.ID] = vote
	c.mu.Unlock()

	go c.collect(sc, vote, msg.ChannelID, msg.ID)
	return nil
}

// collect drives the vote to its terminal state and edits the
// announcement as it goes.
func (c *VotekickCommand) collect(sc *core.SlashContext, vote *votekick.Vote, channelID, messageID string) {
	defer func() {
		c.mu.Lock()
		delete(c.byMessage, messageID)
		c.mu.Unlock()
	}()

	onTick := func(remaining time.Duration, _, _ int) {
		embed := c.voteEmbed(vote, remaining)
		if _, err := sc.Session.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
			sc.Deps.Log.Debug("countdown edit failed", zap.Error(err))
		}
	}

	outcome := vote.Run(context.Background(), onTick)
	switch outcome {
	case votekick.OutcomeHalf:
		rec := sc.Deps.Votes.ResolveHalf(vote)
		c.finishEmbed(sc, channelID, messageID, vote, rec)
	case votekick.OutcomeTimeout:
		rec := sc.Deps.Votes.ResolveTimeout(vote)
		c.finishEmbed(sc, channelID, messageID, vote, rec)
	case votekick.OutcomeAbortedLeft:
		rec := sc.Deps.Votes.ResolveAborted(vote)
		c.finishEmbed(sc, channelID, messageID, vote, rec)
	case votekick.OutcomeUnanimous:
		c.offerChoice(sc, vote, channelID, messageID)
	}
}

// offerChoice posts the disconnect-or-kick buttons and arms the 30s
// decision window.
func (c *VotekickCommand) offerChoice(sc *core.SlashContext, vote *votekick.Vote, channelID, voteMessageID string) {
	msg, err := sc.Session.FollowupMessageCreate(sc.Event.Interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf("🔨 The vote against **%s** was unanimous! Voters, pick the punishment (30s):", vote.TargetName),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Disconnect",
						Style:    discordgo.PrimaryButton,
						CustomID: "votekick:disconnect",
					},
					discordgo.Button{
						Label:    "Kick from server",
						Style:    discordgo.DangerButton,
						CustomID: "votekick:kick",
					},
				},
			},
		},
	})
	if err != nil {
		sc.Deps.Log.Error("choice message failed, resolving as timeout", zap.Error(err))
		if rec, claimed := sc.Deps.Votes.ResolveChoiceTimeout(vote); claimed {
			c.finishEmbed(sc, channelID, voteMessageID, vote, rec)
		}
		return
	}

	state := &choiceState{vote: vote, decided: make(chan struct{})}
	c.mu.Lock()
	c.choices[msg.ID] = state
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.choices, msg.ID)
			c.mu.Unlock()
		}()

		select {
		case <-state.decided:
		case <-time.After(choiceWindow):
			rec, claimed := sc.Deps.Votes.ResolveChoiceTimeout(vote)
			if !claimed {
				return
			}
			content := "🔨 Nobody picked a punishment in time. The vote lapses."
			if _, err := sc.Session.FollowupMessageEdit(sc.Event.Interaction, msg.ID, &discordgo.WebhookEdit{
				Content:    &content,
				Components: &[]discordgo.MessageComponent{},
			}); err != nil {
				sc.Deps.Log.Debug("choice timeout edit failed", zap.Error(err))
			}
			c.finishEmbed(sc, channelID, voteMessageID, vote, rec)
		}
	}()
}

// Reaction tallies 👍 reactions on active vote announcements.
func (c *VotekickCommand) Reaction(ctx *core.ReactionContext) error {
	r := ctx.Reaction
	if r.Emoji.Name != voteEmoji {
		return nil
	}
	c.mu.Lock()
	vote, ok := c.byMessage[r.MessageID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	vote.Cast(r.UserID)
	return nil
}

// Component handles the unanimous-outcome punishment buttons. The first
// voter's click wins; everyone after is told the decision is made.
func (c *VotekickCommand) Component(ctx *core.ComponentContext) error {
	event := ctx.Event
	c.mu.Lock()
	state, ok := c.choices[event.Message.ID]
	c.mu.Unlock()
	if !ok {
		return core.RespondEphemeral(ctx.Session, event, "🔨 This vote is already settled.")
	}

	userID := event.Member.User.ID
	switch err := state.vote.ClaimDecision(userID); {
	case errors.Is(err, votekick.ErrNotEligible):
		return core.RespondEphemeral(ctx.Session, event, "🔨 Only the original voters may decide.")
	case errors.Is(err, votekick.ErrAlreadyDecided):
		return core.RespondEphemeral(ctx.Session, event, "🔨 The decision has already been made.")
	case err != nil:
		return err
	}
	close(state.decided)

	action := votekick.ActionDisconnect
	if event.MessageComponentData().CustomID == "votekick:kick" {
		action = votekick.ActionKick
	}
	rec := ctx.Deps.Votes.ResolveChoice(state.vote, action)

	return ctx.Session.InteractionRespond(event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    resultText(state.vote, rec),
			Components: []discordgo.MessageComponent{},
		},
	})
}

func (c *VotekickCommand) voteEmbed(vote *votekick.Vote, remaining time.Duration) *discordgo.MessageEmbed {
	if remaining < 0 {
		remaining = 0
	}
	return &discordgo.MessageEmbed{
		Title: "🔨 Votekick in progress",
		Description: fmt.Sprintf(
			"Vote to remove **%s** from the voice channel by reacting with %s.\n\n"+
				"Votes: **%d** / **%d** needed\nTime remaining: **%ds**",
			vote.TargetName, voteEmoji, vote.Votes(), vote.Threshold(), int(remaining.Seconds())),
		Color: core.EmbedColor,
	}
}

func (c *VotekickCommand) finishEmbed(sc *core.SlashContext, channelID, messageID string, vote *votekick.Vote, rec votekick.HistoryRecord) {
	embed := &discordgo.MessageEmbed{
		Title:       "🔨 Votekick concluded",
		Description: resultText(vote, rec),
		Color:       core.EmbedColor,
	}
	if _, err := sc.Session.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
		sc.Deps.Log.Debug("result edit failed", zap.Error(err))
	}
}

func resultText(vote *votekick.Vote, rec votekick.HistoryRecord) string {
	switch rec.Result {
	case votekick.ResultSuccess:
		return fmt.Sprintf("🔨 **%s** was disconnected from voice (%d/%d votes).",
			vote.TargetName, rec.Votes, vote.MemberCount())
	case votekick.ResultUnanimousDisconnect:
		return fmt.Sprintf("🔨 Unanimous! **%s** was disconnected from voice.", vote.TargetName)
	case votekick.ResultUnanimousKick:
		return fmt.Sprintf("🔨 Unanimous! **%s** was kicked from the server.", vote.TargetName)
	case votekick.ResultNotEnough:
		return fmt.Sprintf("🔨 I lack the permissions to act on **%s**. No action taken.", vote.TargetName)
	case votekick.ResultAbortedLeft:
		return fmt.Sprintf("🔨 **%s** left the voice channel. Vote aborted.", vote.TargetName)
	default:
		return fmt.Sprintf("🔨 The vote against **%s** expired with %d/%d votes. No action taken.",
			vote.TargetName, rec.Votes, vote.Threshold())
	}
}
