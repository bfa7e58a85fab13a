// Package votekick runs time-boxed group-consensus votes to remove a
// member from a voice channel. One vote may be active per
// (guild, voice channel, target) at a time.
package votekick

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrAlreadyActive            = errors.New("votekick: a vote against this member is already running")
	ErrInsufficientParticipants = errors.New("votekick: not enough humans in the voice channel")
	ErrSelfTarget               = errors.New("votekick: the starter cannot target themselves")
	ErrNotEligible              = errors.New("votekick: only members present at vote start may act")
	ErrAlreadyDecided           = errors.New("votekick: the outcome has already been decided")
)

// Outcome is how the collection window ended.
type Outcome int

const (
	// OutcomeHalf: threshold reached without unanimity.
	OutcomeHalf Outcome = iota
	// OutcomeUnanimous: every eligible participant voted.
	OutcomeUnanimous
	// OutcomeTimeout: window expired below threshold.
	OutcomeTimeout
	// OutcomeAbortedLeft: the target left the voice channel.
	OutcomeAbortedLeft
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHalf:
		return "half"
	case OutcomeUnanimous:
		return "unanimous"
	case OutcomeAbortedLeft:
		return "aborted_left"
	default:
		return "timeout"
	}
}

// endCause is an early-termination signal delivered to Run.
type endCause int

const (
	causeUnanimous endCause = iota
	causeThreshold
	causeTargetLeft
)

// Vote is one in-flight votekick. Cast, TargetLeft and the decision
// claims are safe for concurrent use; Run must be called exactly once.
type Vote struct {
	GuildID    string
	ChannelID  string
	TargetID   string
	TargetName string
	StarterID  string
	Duration   time.Duration

	eligible  map[string]struct{}
	threshold int
	startedAt time.Time

	mu       sync.Mutex
	voters   map[string]struct{}
	ended    bool
	decided  bool
	recorded bool

	// end carries the first early-termination cause; capacity 1 plus the
	// ended flag make delivery exactly-once.
	end chan endCause

	coord *Coordinator
}

// Threshold is the affirmative-vote count that resolves the vote short
// of unanimity.
func (v *Vote) Threshold() int { return v.threshold }

// MemberCount is the number of eligible participants, fixed at start.
func (v *Vote) MemberCount() int { return len(v.eligible) }

// StartedAt is the vote's start time.
func (v *Vote) StartedAt() time.Time { return v.startedAt }

// Votes is the current affirmative tally.
func (v *Vote) Votes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.voters)
}

// Eligible reports whether userID was in the voice channel at start.
// Members joining mid-vote are never added.
func (v *Vote) Eligible(userID string) bool {
	_, ok := v.eligible[userID]
	return ok
}

// Voters returns the users who have cast an affirmative vote.
func (v *Vote) Voters() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.voters))
	for id := range v.voters {
		out = append(out, id)
	}
	return out
}

// Cast records an affirmative vote from userID. Repeat casts and casts
// from ineligible users change nothing. Reaching the threshold or
// unanimity ends the collection window.
func (v *Vote) Cast(userID string) {
	if !v.Eligible(userID) {
		return
	}

	v.mu.Lock()
	if v.ended {
		v.mu.Unlock()
		return
	}
	if _, dup := v.voters[userID]; dup {
		v.mu.Unlock()
		return
	}
	v.voters[userID] = struct{}{}
	count := len(v.voters)

	var cause endCause
	fire := false
	switch {
	case count == len(v.eligible):
		cause, fire = causeUnanimous, true
	case count >= v.threshold:
		cause, fire = causeThreshold, true
	}
	if fire {
		v.ended = true
	}
	v.mu.Unlock()

	if fire {
		v.end <- cause
	}
}

// TargetLeft aborts the collection window because the target left the
// voice channel. Safe to call after the vote has ended.
func (v *Vote) TargetLeft() {
	v.mu.Lock()
	if v.ended {
		v.mu.Unlock()
		return
	}
	v.ended = true
	v.mu.Unlock()
	v.end <- causeTargetLeft
}

// Run drives the collection window and blocks until it ends. onTick, if
// non-nil, fires every five seconds with the remaining time and the
// current tally; it is display-only and may be slow or fail without
// affecting resolution. The active-vote entry is removed before Run
// returns, whatever the outcome.
func (v *Vote) Run(ctx context.Context, onTick func(remaining time.Duration, votes, threshold int)) Outcome {
	defer v.coord.remove(v)

	timer := time.NewTimer(v.Duration)
	defer timer.Stop()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	deadline := v.startedAt.Add(v.Duration)
	for {
		select {
		case cause := <-v.end:
			switch cause {
			case causeUnanimous:
				return OutcomeUnanimous
			case causeThreshold:
				return OutcomeHalf
			default:
				return OutcomeAbortedLeft
			}
		case <-ticker.C:
			if onTick != nil {
				onTick(time.Until(deadline), v.Votes(), v.threshold)
			}
		case <-timer.C:
			v.expire()
			return OutcomeTimeout
		case <-ctx.Done():
			v.expire()
			return OutcomeTimeout
		}
	}
}

// expire marks the vote ended so late casts are ignored.
func (v *Vote) expire() {
	v.mu.Lock()
	v.ended = true
	v.mu.Unlock()
}

// ClaimDecision reserves the unanimous-outcome choice for userID. Only
// members of the original voter set may claim, and only the first claim
// succeeds; later claims get ErrAlreadyDecided.
func (v *Vote) ClaimDecision(userID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, voted := v.voters[userID]; !voted {
		return ErrNotEligible
	}
	if v.decided {
		return ErrAlreadyDecided
	}
	v.decided = true
	return nil
}

// claimTimeout reserves the choice for the timeout path. Returns false
// when a voter's claim already won.
func (v *Vote) claimTimeout() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.decided {
		return false
	}
	v.decided = true
	return true
}

// claimRecord guards the single history append per vote.
func (v *Vote) claimRecord() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.recorded {
		return false
	}
	v.recorded = true
	return true
}
