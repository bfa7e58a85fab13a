// Package trackstore is the durable per-guild record of fetched tracks.
// Each guild owns one store file; the file lives and dies with the
// guild's playback session.
package trackstore

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"vckeeper/datastore"
)

// Record is one cached track. SourceID is unique within a guild store.
type Record struct {
	SourceID   string    `json:"source_id"`
	SourceURL  string    `json:"source_url"`
	LocalPath  string    `json:"local_path"`
	ReuseCount int       `json:"reuse_count"`
	AddedAt    time.Time `json:"added_at"`
}

// Store wraps a per-guild datastore file.
type Store struct {
	ds      *datastore.DataStore
	guildID string
}

// Open creates or loads the queue store for guildID under dir.
func Open(dir, guildID string, logger *zap.Logger) (*Store, error) {
	cfg := datastore.DefaultConfig(filepath.Join(dir, "queue_"+guildID+".json"))
	cfg.Logger = logger

	ds, err := datastore.OpenWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("trackstore: open guild %s: %w", guildID, err)
	}
	return &Store{ds: ds, guildID: guildID}, nil
}

// Lookup returns the record for sourceID, or nil when absent.
func (s *Store) Lookup(sourceID string) (*Record, error) {
	var rec Record
	ok, err := s.ds.Get(sourceID, &rec)
	if err != nil {
		return nil, fmt.Errorf("trackstore: lookup %s: %w", sourceID, err)
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Insert stores a freshly fetched track with a reuse count of 1.
func (s *Store) Insert(sourceID, sourceURL, localPath string) (*Record, error) {
	rec := Record{
		SourceID:   sourceID,
		SourceURL:  sourceURL,
		LocalPath:  localPath,
		ReuseCount: 1,
		AddedAt:    time.Now().UTC(),
	}
	if err := s.ds.Set(sourceID, rec); err != nil {
		return nil, fmt.Errorf("trackstore: insert %s: %w", sourceID, err)
	}
	return &rec, nil
}

// IncrementReuse bumps the reuse counter of an existing record and
// returns the updated record.
func (s *Store) IncrementReuse(sourceID string) (*Record, error) {
	rec, err := s.Lookup(sourceID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("trackstore: increment %s: record not found", sourceID)
	}

	rec.ReuseCount++
	if err := s.ds.Set(sourceID, *rec); err != nil {
		return nil, fmt.Errorf("trackstore: increment %s: %w", sourceID, err)
	}
	return rec, nil
}

// Remove deletes the record for sourceID. Removing a missing record is
// not an error.
func (s *Store) Remove(sourceID string) error {
	if err := s.ds.Delete(sourceID); err != nil {
		return fmt.Errorf("trackstore: remove %s: %w", sourceID, err)
	}
	return nil
}

// Paths returns the local file path of every stored record. Used by
// cleanup to unlink leftover cache files.
func (s *Store) Paths() []string {
	keys := s.ds.Keys()
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		var rec Record
		if ok, err := s.ds.Get(k, &rec); err == nil && ok && rec.LocalPath != "" {
			paths = append(paths, rec.LocalPath)
		}
	}
	return paths
}

// FilePath returns the backing file's path.
func (s *Store) FilePath() string {
	return s.ds.FilePath()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.ds.Keys())
}

// Close flushes and closes the store, keeping the file on disk.
func (s *Store) Close() error {
	return s.ds.Close()
}

// CloseAndRemove closes the store and deletes its backing file.
func (s *Store) CloseAndRemove() error {
	return s.ds.Destroy()
}
