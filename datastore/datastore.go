// Package datastore is a small JSON-file key/value store with atomic
// writes and periodic autosave. Each store owns exactly one file.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("datastore is closed")

// Config holds configuration options for a DataStore.
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	Logger           *zap.Logger
}

// DefaultConfig returns a default configuration for the given file path.
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		Logger:           zap.NewNop(),
	}
}

type DataStore struct {
	mu           sync.RWMutex
	data         map[string]json.RawMessage
	file         string
	lastChecksum string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.Logger

	closeMu sync.Mutex
	closed  bool
}

// Open creates or loads a DataStore backed by filePath.
func Open(filePath string) (*DataStore, error) {
	return OpenWithConfig(DefaultConfig(filePath))
}

// OpenWithConfig creates or loads a DataStore with a custom configuration.
func OpenWithConfig(cfg *Config) (*DataStore, error) {
	if cfg == nil || cfg.FilePath == "" {
		return nil, errors.New("datastore: file path cannot be empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("datastore: create directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ds := &DataStore{
		data:   make(map[string]json.RawMessage),
		file:   cfg.FilePath,
		ctx:    ctx,
		cancel: cancel,
		log:    cfg.Logger,
	}

	switch _, err := os.Stat(cfg.FilePath); {
	case os.IsNotExist(err):
		if err := ds.writeFileAtomic([]byte("{}")); err != nil {
			cancel()
			return nil, fmt.Errorf("datastore: initialize file: %w", err)
		}
	case err == nil:
		if err := ds.loadFromFile(); err != nil {
			cancel()
			return nil, fmt.Errorf("datastore: load file: %w", err)
		}
	default:
		cancel()
		return nil, fmt.Errorf("datastore: stat file: %w", err)
	}

	if cfg.AutoSaveInterval > 0 {
		ds.wg.Add(1)
		go ds.autoSave(cfg.AutoSaveInterval)
	}

	return ds, nil
}

// Get unmarshals the value stored under key into out. The boolean
// reports whether the key existed.
func (ds *DataStore) Get(key string, out any) (bool, error) {
	if ds.isClosed() {
		return false, ErrClosed
	}

	ds.mu.RLock()
	raw, ok := ds.data[key]
	ds.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("datastore: decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key.
func (ds *DataStore) Set(key string, value any) error {
	if ds.isClosed() {
		return ErrClosed
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("datastore: encode %q: %w", key, err)
	}

	ds.mu.Lock()
	ds.data[key] = raw
	ds.mu.Unlock()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (ds *DataStore) Delete(key string) error {
	if ds.isClosed() {
		return ErrClosed
	}

	ds.mu.Lock()
	delete(ds.data, key)
	ds.mu.Unlock()
	return nil
}

// Keys returns all stored keys in unspecified order.
func (ds *DataStore) Keys() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	return keys
}

// Save forces an immediate save to disk.
func (ds *DataStore) Save() error {
	if ds.isClosed() {
		return ErrClosed
	}
	return ds.saveToFile()
}

// Close stops the autosave loop and performs a final save.
func (ds *DataStore) Close() error {
	ds.closeMu.Lock()
	if ds.closed {
		ds.closeMu.Unlock()
		return nil
	}
	ds.closed = true
	ds.closeMu.Unlock()

	ds.cancel()
	ds.wg.Wait()
	return ds.saveToFile()
}

// Destroy closes the store without a final save and removes its backing
// file from disk.
func (ds *DataStore) Destroy() error {
	ds.closeMu.Lock()
	alreadyClosed := ds.closed
	ds.closed = true
	ds.closeMu.Unlock()

	if !alreadyClosed {
		ds.cancel()
		ds.wg.Wait()
	}

	if err := os.Remove(ds.file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("datastore: remove file: %w", err)
	}
	return nil
}

// FilePath returns the path of the backing file.
func (ds *DataStore) FilePath() string {
	return ds.file
}

func (ds *DataStore) isClosed() bool {
	ds.closeMu.Lock()
	defer ds.closeMu.Unlock()
	return ds.closed
}

func (ds *DataStore) saveToFile() error {
	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("datastore: marshal data: %w", err)
	}

	sum := checksum(data)
	ds.mu.RLock()
	unchanged := sum == ds.lastChecksum
	ds.mu.RUnlock()
	if unchanged {
		return nil
	}

	if err := ds.writeFileAtomic(data); err != nil {
		return err
	}

	ds.mu.Lock()
	ds.lastChecksum = sum
	ds.mu.Unlock()
	return nil
}

func (ds *DataStore) loadFromFile() error {
	raw, err := os.ReadFile(ds.file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if data == nil {
		data = make(map[string]json.RawMessage)
	}

	ds.mu.Lock()
	ds.data = data
	ds.lastChecksum = checksum(raw)
	ds.mu.Unlock()
	return nil
}

// writeFileAtomic writes via a temp file, fsync and rename so a crash
// mid-write never leaves a truncated store behind.
func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmp := ds.file + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, ds.file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (ds *DataStore) autoSave(interval time.Duration) {
	defer ds.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ds.ctx.Done():
			return
		case <-ticker.C:
			if err := ds.saveToFile(); err != nil {
				ds.log.Warn("datastore autosave failed", zap.String("file", ds.file), zap.Error(err))
			}
		}
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
