// Package storage is the bot's durable main store: votekick history and
// command history per guild, upload history per user. It wraps one
// datastore file shared by all guilds; per-guild playback queues live in
// their own files and are not managed here.
package storage

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"vckeeper/datastore"
	"vckeeper/internal/votekick"
)

const commandHistoryLimit = 20

type Storage struct {
	ds *datastore.DataStore
}

// GuildRecord is everything persisted for one guild.
type GuildRecord struct {
	VotekickHistory []votekick.HistoryRecord `json:"votekick_history"`
	CommandHistory  []CommandRecord          `json:"cmd_history"`
}

// UserRecord is everything persisted for one user.
type UserRecord struct {
	Uploads []UploadRecord `json:"uploads"`
}

// CommandRecord is one executed command, kept for the stats view.
type CommandRecord struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Command  string    `json:"command"`
	Param    string    `json:"param"`
	Datetime time.Time `json:"datetime"`
}

// UploadRecord is one file pushed to a hosting service.
type UploadRecord struct {
	Service    string    `json:"service"`
	FileName   string    `json:"file_name"`
	URL        string    `json:"url"`
	SizeBytes  int64     `json:"size_bytes"`
	Lifetime   string    `json:"lifetime,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func New(filePath string, logger *zap.Logger) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.Logger = logger

	ds, err := datastore.OpenWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", filePath, err)
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func guildKey(guildID string) string { return "guild:" + guildID }
func userKey(userID string) string   { return "user:" + userID }

func (s *Storage) guildRecord(guildID string) (*GuildRecord, error) {
	var rec GuildRecord
	if _, err := s.ds.Get(guildKey(guildID), &rec); err != nil {
		return nil, fmt.Errorf("storage: load guild %s: %w", guildID, err)
	}
	return &rec, nil
}

func (s *Storage) saveGuildRecord(guildID string, rec *GuildRecord) error {
	if err := s.ds.Set(guildKey(guildID), rec); err != nil {
		return fmt.Errorf("storage: save guild %s: %w", guildID, err)
	}
	return nil
}

func (s *Storage) userRecord(userID string) (*UserRecord, error) {
	var rec UserRecord
	if _, err := s.ds.Get(userKey(userID), &rec); err != nil {
		return nil, fmt.Errorf("storage: load user %s: %w", userID, err)
	}
	return &rec, nil
}

func (s *Storage) saveUserRecord(userID string, rec *UserRecord) error {
	if err := s.ds.Set(userKey(userID), rec); err != nil {
		return fmt.Errorf("storage: save user %s: %w", userID, err)
	}
	return nil
}

// AppendCommand records an executed command, keeping the newest
// commandHistoryLimit entries.
func (s *Storage) AppendCommand(guildID string, rec CommandRecord) error {
	guild, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	guild.CommandHistory = append(guild.CommandHistory, rec)
	if n := len(guild.CommandHistory); n > commandHistoryLimit {
		guild.CommandHistory = guild.CommandHistory[n-commandHistoryLimit:]
	}
	return s.saveGuildRecord(guildID, guild)
}

// CommandHistory returns the recorded commands, oldest first.
func (s *Storage) CommandHistory(guildID string) ([]CommandRecord, error) {
	guild, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return guild.CommandHistory, nil
}
