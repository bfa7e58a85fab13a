package storage

import (
	"sort"

	"vckeeper/internal/votekick"
)

// AppendVotekick adds one concluded vote to the guild's append-only
// history. Implements votekick.HistoryStore.
func (s *Storage) AppendVotekick(rec votekick.HistoryRecord) error {
	guild, err := s.guildRecord(rec.GuildID)
	if err != nil {
		return err
	}
	guild.VotekickHistory = append(guild.VotekickHistory, rec)
	return s.saveGuildRecord(rec.GuildID, guild)
}

// VotekickHistory returns the guild's concluded votes, oldest first.
func (s *Storage) VotekickHistory(guildID string) ([]votekick.HistoryRecord, error) {
	guild, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return guild.VotekickHistory, nil
}

// UserVotekickHistory returns the guild's concluded votes targeting one
// user, oldest first.
func (s *Storage) UserVotekickHistory(guildID, targetID string) ([]votekick.HistoryRecord, error) {
	all, err := s.VotekickHistory(guildID)
	if err != nil {
		return nil, err
	}
	var out []votekick.HistoryRecord
	for _, rec := range all {
		if rec.TargetID == targetID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// LeaderboardEntry aggregates a guild's votes against one target.
type LeaderboardEntry struct {
	TargetID   string
	TargetName string
	Times      int
	Removals   int
}

// VotekickLeaderboard ranks targets by actual removals (disconnects and
// kicks). Votes that concluded without action do not place a target on
// the board, though they still count toward its vote total.
func (s *Storage) VotekickLeaderboard(guildID string) ([]LeaderboardEntry, error) {
	all, err := s.VotekickHistory(guildID)
	if err != nil {
		return nil, err
	}

	byTarget := make(map[string]*LeaderboardEntry)
	order := make([]string, 0)
	for _, rec := range all {
		e, ok := byTarget[rec.TargetID]
		if !ok {
			e = &LeaderboardEntry{TargetID: rec.TargetID}
			byTarget[rec.TargetID] = e
			order = append(order, rec.TargetID)
		}
		e.TargetName = rec.TargetName
		e.Times++
		if rec.Action != votekick.ActionNone {
			e.Removals++
		}
	}

	out := make([]LeaderboardEntry, 0, len(order))
	for _, id := range order {
		if byTarget[id].Removals == 0 {
			continue
		}
		out = append(out, *byTarget[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Removals != out[j].Removals {
			return out[i].Removals > out[j].Removals
		}
		return out[i].Times > out[j].Times
	})
	return out, nil
}
