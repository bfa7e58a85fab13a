package session

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"vckeeper/internal/music/trackstore"
)

// Registry maps guild ids to playback sessions. Sessions are created on
// first use and removed only by Cleanup.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	deps    Deps
	dataDir string
	log     *zap.Logger
}

func NewRegistry(deps Deps, dataDir string) *Registry {
	deps.fillDefaults()
	return &Registry{
		sessions: make(map[string]*Session),
		deps:     deps,
		dataDir:  dataDir,
		log:      deps.Logger,
	}
}

// Get returns the session for guildID when one exists.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// GetOrCreate returns the guild's session, opening its queue store on
// first use.
func (r *Registry) GetOrCreate(guildID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s, nil
	}

	store, err := trackstore.Open(r.dataDir, guildID, r.deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("session: open queue store for guild %s: %w", guildID, err)
	}

	s := newSession(guildID, store, r.deps)
	r.sessions[guildID] = s
	r.log.Info("session created", zap.String("guild", guildID))
	return s, nil
}

// Guilds lists guilds with a live session.
func (r *Registry) Guilds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sessions))
	for g := range r.sessions {
		out = append(out, g)
	}
	return out
}

// Cleanup tears down a guild's session: player, connection, cached
// files, queue store file, registry entry. Idempotent; calling it for a
// guild without a session is a no-op. Every step runs even when an
// earlier one fails; failures are logged and swallowed.
func (r *Registry) Cleanup(guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	var errs []error
	errs = append(errs, s.shutdown()...)

	for _, path := range s.store.Paths() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}

	if err := s.store.CloseAndRemove(); err != nil {
		errs = append(errs, fmt.Errorf("remove queue store: %w", err))
	}

	for _, err := range errs {
		r.log.Warn("cleanup error (ignored)", zap.String("guild", guildID), zap.Error(err))
	}
	r.log.Info("session cleaned", zap.String("guild", guildID))
}

// CleanupAll tears down every live session, used on shutdown.
func (r *Registry) CleanupAll() {
	for _, guildID := range r.Guilds() {
		r.Cleanup(guildID)
	}
}
