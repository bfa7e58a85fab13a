package votekick

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action is the moderation action a concluded vote performed.
type Action string

const (
	ActionNone       Action = "none"
	ActionDisconnect Action = "disconnect"
	ActionKick       Action = "kick"
)

// Result classifies how a vote concluded.
type Result string

const (
	ResultSuccess             Result = "success"
	ResultUnanimousDisconnect Result = "unanimous_disconnect"
	ResultUnanimousKick       Result = "unanimous_kick"
	ResultTimeout             Result = "timeout"
	ResultNotEnough           Result = "not_enough"
	ResultAbortedLeft         Result = "aborted_left"
)

// HistoryRecord is the durable trace of one concluded vote.
type HistoryRecord struct {
	GuildID     string    `json:"guild_id"`
	TargetID    string    `json:"target_id"`
	TargetName  string    `json:"target_name"`
	Action      Action    `json:"action"`
	Result      Result    `json:"result"`
	MemberCount int       `json:"member_count"`
	Votes       int       `json:"votes"`
	DurationSec int       `json:"duration_sec"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryStore persists concluded votes, append-only.
type HistoryStore interface {
	AppendVotekick(rec HistoryRecord) error
}

// Moderator performs the voice-channel moderation actions.
type Moderator interface {
	DisconnectVoice(guildID, userID string) error
	Kick(guildID, userID, reason string) error
}

// StartParams describes a vote to start. HumanMemberIDs is the non-bot
// occupancy of the target's voice channel at start time; it is never
// recomputed.
type StartParams struct {
	GuildID        string
	ChannelID      string
	TargetID       string
	TargetName     string
	StarterID      string
	HumanMemberIDs []string
	Duration       time.Duration
}

// Coordinator owns the active-vote registry and turns concluded votes
// into moderation actions and history records.
type Coordinator struct {
	mu    sync.Mutex
	votes map[string]*Vote

	history HistoryStore
	mod     Moderator
	log     *zap.Logger
}

func NewCoordinator(history HistoryStore, mod Moderator, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		votes:   make(map[string]*Vote),
		history: history,
		mod:     mod,
		log:     log,
	}
}

func voteKey(guildID, channelID, targetID string) string {
	return guildID + ":" + channelID + ":" + targetID
}

// Start registers a vote. Fails with ErrSelfTarget when the starter
// targets themselves, with ErrAlreadyActive when one is already running
// for the same guild, channel and target, and with
// ErrInsufficientParticipants for fewer than two humans.
func (c *Coordinator) Start(p StartParams) (*Vote, error) {
	if p.StarterID == p.TargetID {
		return nil, ErrSelfTarget
	}
	if len(p.HumanMemberIDs) < 2 {
		return nil, ErrInsufficientParticipants
	}

	eligible := make(map[string]struct{}, len(p.HumanMemberIDs))
	for _, id := range p.HumanMemberIDs {
		eligible[id] = struct{}{}
	}

	v := &Vote{
		GuildID:    p.GuildID,
		ChannelID:  p.ChannelID,
		TargetID:   p.TargetID,
		TargetName: p.TargetName,
		StarterID:  p.StarterID,
		Duration:   p.Duration,
		eligible:   eligible,
		threshold:  int(math.Ceil(float64(len(eligible)) / 2)),
		startedAt:  time.Now(),
		voters:     make(map[string]struct{}),
		end:        make(chan endCause, 1),
		coord:      c,
	}

	key := voteKey(p.GuildID, p.ChannelID, p.TargetID)
	c.mu.Lock()
	if _, active := c.votes[key]; active {
		c.mu.Unlock()
		return nil, ErrAlreadyActive
	}
	c.votes[key] = v
	c.mu.Unlock()

	c.log.Info("votekick started",
		zap.String("guild", p.GuildID),
		zap.String("target", p.TargetID),
		zap.Int("members", len(eligible)),
		zap.Int("threshold", v.threshold))
	return v, nil
}

// Lookup returns the active vote for the triple, when one exists.
func (c *Coordinator) Lookup(guildID, channelID, targetID string) (*Vote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.votes[voteKey(guildID, channelID, targetID)]
	return v, ok
}

func (c *Coordinator) remove(v *Vote) {
	c.mu.Lock()
	delete(c.votes, voteKey(v.GuildID, v.ChannelID, v.TargetID))
	c.mu.Unlock()
}

// NotifyVoiceLeave aborts any vote targeting userID in the channel it
// just left. Called from the gateway's voice-state handler.
func (c *Coordinator) NotifyVoiceLeave(guildID, userID, oldChannelID string) {
	if oldChannelID == "" {
		return
	}
	v, ok := c.Lookup(guildID, oldChannelID, userID)
	if !ok {
		return
	}
	v.TargetLeft()
}

// ResolveHalf handles a threshold outcome: disconnect the target from
// voice. A permission failure still concludes the vote, recorded as
// not_enough.
func (c *Coordinator) ResolveHalf(v *Vote) HistoryRecord {
	if err := c.mod.DisconnectVoice(v.GuildID, v.TargetID); err != nil {
		c.log.Warn("votekick disconnect failed",
			zap.String("guild", v.GuildID), zap.String("target", v.TargetID), zap.Error(err))
		return c.record(v, ActionNone, ResultNotEnough)
	}
	return c.record(v, ActionDisconnect, ResultSuccess)
}

// ResolveChoice handles the action a voter picked after a unanimous
// outcome.
func (c *Coordinator) ResolveChoice(v *Vote, action Action) HistoryRecord {
	switch action {
	case ActionKick:
		if err := c.mod.Kick(v.GuildID, v.TargetID, "removed by unanimous vote"); err != nil {
			c.log.Warn("votekick kick failed",
				zap.String("guild", v.GuildID), zap.String("target", v.TargetID), zap.Error(err))
			return c.record(v, ActionNone, ResultNotEnough)
		}
		return c.record(v, ActionKick, ResultUnanimousKick)
	default:
		if err := c.mod.DisconnectVoice(v.GuildID, v.TargetID); err != nil {
			c.log.Warn("votekick disconnect failed",
				zap.String("guild", v.GuildID), zap.String("target", v.TargetID), zap.Error(err))
			return c.record(v, ActionNone, ResultNotEnough)
		}
		return c.record(v, ActionDisconnect, ResultUnanimousDisconnect)
	}
}

// ResolveChoiceTimeout concludes an unanswered unanimous-choice window.
// Returns false when a voter's claim already resolved the vote.
func (c *Coordinator) ResolveChoiceTimeout(v *Vote) (HistoryRecord, bool) {
	if !v.claimTimeout() {
		return HistoryRecord{}, false
	}
	return c.record(v, ActionNone, ResultTimeout), true
}

// ResolveTimeout concludes a below-threshold expiry.
func (c *Coordinator) ResolveTimeout(v *Vote) HistoryRecord {
	return c.record(v, ActionNone, ResultTimeout)
}

// ResolveAborted concludes a vote whose target left mid-window.
func (c *Coordinator) ResolveAborted(v *Vote) HistoryRecord {
	return c.record(v, ActionNone, ResultAbortedLeft)
}

// record appends the single history entry for v. The append runs after
// any moderation attempt so a failed action still leaves a trace.
func (c *Coordinator) record(v *Vote, action Action, result Result) HistoryRecord {
	rec := HistoryRecord{
		GuildID:     v.GuildID,
		TargetID:    v.TargetID,
		TargetName:  v.TargetName,
		Action:      action,
		Result:      result,
		MemberCount: v.MemberCount(),
		Votes:       v.Votes(),
		DurationSec: int(v.Duration.Seconds()),
		Timestamp:   time.Now().UTC(),
	}

	if !v.claimRecord() {
		c.log.Warn("duplicate votekick resolution suppressed",
			zap.String("guild", v.GuildID), zap.String("target", v.TargetID))
		return rec
	}
	if err := c.history.AppendVotekick(rec); err != nil {
		c.log.Error("votekick history append failed",
			zap.String("guild", v.GuildID), zap.Error(err))
	}

	c.log.Info("votekick concluded",
		zap.String("guild", v.GuildID),
		zap.String("target", v.TargetID),
		zap.String("action", string(action)),
		zap.String("result", string(result)),
		zap.Int("votes", rec.Votes))
	return rec
}
