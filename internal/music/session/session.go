// Package session owns per-guild playback state: the pending queue, the
// voice connection, the active player and the transitions between them.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"vckeeper/internal/music/trackstore"
)

// State is the playback state of one guild session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	default:
		return "idle"
	}
}

var (
	ErrNothingPlaying = errors.New("session: nothing is playing")
	ErrClosed         = errors.New("session: session is closed")
)

type advanceReason int

const (
	reasonStart advanceReason = iota
	reasonTrackDone
	reasonTrackError
)

// Session is the playback state machine for one guild. All transitions
// funnel through advance; the per-session mutex keeps them serial.
type Session struct {
	guildID string
	store   *trackstore.Store
	deps    Deps
	log     *zap.Logger

	// enqueueMu serializes the lookup-or-fetch-then-insert sequence so
	// at most one fetch per guild is in flight.
	enqueueMu sync.Mutex

	mu        sync.Mutex
	state     State
	queue     []trackstore.Record
	conn      Connection
	player    Player
	channelID string
	closed    bool
}

func newSession(guildID string, store *trackstore.Store, deps Deps) *Session {
	return &Session{
		guildID: guildID,
		store:   store,
		deps:    deps,
		log:     deps.Logger.With(zap.String("guild", guildID)),
	}
}

func (s *Session) GuildID() string { return s.guildID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsPlaying reports whether playback is actively progressing.
func (s *Session) IsPlaying() bool {
	return s.State() == StatePlaying
}

// Queue returns a snapshot of the pending queue, head first.
func (s *Session) Queue() []trackstore.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trackstore.Record, len(s.queue))
	copy(out, s.queue)
	return out
}

// Store exposes the backing queue store for stats and cleanup.
func (s *Session) Store() *trackstore.Store { return s.store }

// Enqueue resolves locator, reuses or fetches the audio file, appends
// the track to the pending queue and starts playback when the session
// is idle. Returns the 1-based queue position.
func (s *Session) Enqueue(ctx context.Context, voiceChannelID, locator string) (int, *trackstore.Record, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil, ErrClosed
	}
	s.mu.Unlock()

	res, err := s.deps.Resolver.Resolve(ctx, locator)
	if err != nil {
		return 0, nil, err
	}

	s.enqueueMu.Lock()
	rec, err := s.lookupOrFetch(ctx, res.SourceID, res.URL)
	s.enqueueMu.Unlock()
	if err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil, ErrClosed
	}
	s.queue = append(s.queue, *rec)
	pos := len(s.queue)
	s.channelID = voiceChannelID

	start := s.state == StateIdle
	if start {
		// Claim the transition before unlocking so a second enqueue in
		// the same window cannot start a concurrent advance.
		s.state = StateConnecting
	}
	s.mu.Unlock()

	if start {
		go s.advance(reasonStart)
	}
	return pos, rec, nil
}

// lookupOrFetch is the cache-or-download step. A hit requires both a
// store record and the file still on disk; anything else refetches.
func (s *Session) lookupOrFetch(ctx context.Context, sourceID, sourceURL string) (*trackstore.Record, error) {
	rec, err := s.store.Lookup(sourceID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if _, statErr := os.Stat(rec.LocalPath); statErr == nil {
			return s.store.IncrementReuse(sourceID)
		}
		s.log.Warn("cached record without file, refetching",
			zap.String("source", sourceID), zap.String("path", rec.LocalPath))
	}

	dest := filepath.Join(s.deps.CacheDir, sourceID+".mp3")
	if err := s.deps.Fetcher.Fetch(ctx, sourceURL, dest); err != nil {
		return nil, fmt.Errorf("session: fetch %s: %w", sourceID, err)
	}
	return s.store.Insert(sourceID, sourceURL, dest)
}

// advance is the single transition function of the state machine. It is
// invoked after a fresh start, natural completion, player error or skip.
func (s *Session) advance(reason advanceReason) {
	if reason != reasonStart {
		s.finishCurrent()
	}
	s.playHead()
}

// playHead connects if needed and starts the head of the queue,
// soft-skipping entries whose cached file has gone missing.
func (s *Session) playHead() {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.state = StateIdle
			s.player = nil
			s.mu.Unlock()
			s.log.Info("queue drained, session idle")
			return
		}

		head := s.queue[0]
		channelID := s.channelID
		needConn := s.conn == nil || !s.conn.Ready()
		if needConn {
			s.state = StateConnecting
		}
		s.mu.Unlock()

		if needConn {
			conn, err := s.deps.Connector.Join(s.guildID, channelID)
			if err != nil {
				s.log.Warn("voice join failed, stopping playback", zap.Error(err))
				s.mu.Lock()
				s.state = StateIdle
				s.player = nil
				s.mu.Unlock()
				return
			}
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				conn.Disconnect()
				return
			}
			s.conn = conn
			s.mu.Unlock()
		}

		if _, err := os.Stat(head.LocalPath); err != nil {
			s.log.Warn("cached file missing, skipping track",
				zap.String("source", head.SourceID), zap.String("path", head.LocalPath))
			s.popHead()
			continue
		}

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		player, err := s.deps.Players.NewPlayer(conn, head.LocalPath)
		if err != nil {
			s.log.Warn("player start failed, dropping track",
				zap.String("source", head.SourceID), zap.Error(err))
			s.finishCurrent()
			time.Sleep(s.deps.ErrorBackoff)
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			player.Stop()
			return
		}
		s.player = player
		s.state = StatePlaying
		s.mu.Unlock()

		s.log.Info("now playing",
			zap.String("source", head.SourceID), zap.String("url", head.SourceURL))
		go s.watch(player)
		return
	}
}

// watch waits for the player to finish and re-enters the state machine.
// A short debounce follows natural completion, a longer backoff follows
// errors. Stale players (replaced or torn down) are ignored.
func (s *Session) watch(player Player) {
	err := <-player.Done()

	s.mu.Lock()
	stale := s.player != player || s.closed
	s.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		s.log.Warn("player error, advancing", zap.Error(err))
		time.Sleep(s.deps.ErrorBackoff)
		s.advance(reasonTrackError)
		return
	}
	time.Sleep(s.deps.IdleDebounce)
	s.advance(reasonTrackDone)
}

// finishCurrent pops the just-finished head and garbage-collects its
// cached file: the file and record go only when no remaining queue
// entry shares the source id and the track was fetched exactly once.
func (s *Session) finishCurrent() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.player = nil
		s.mu.Unlock()
		return
	}
	finished := s.queue[0]
	s.queue = s.queue[1:]
	s.player = nil

	stillQueued := false
	for _, q := range s.queue {
		if q.SourceID == finished.SourceID {
			stillQueued = true
			break
		}
	}
	s.mu.Unlock()

	if stillQueued {
		return
	}

	rec, err := s.store.Lookup(finished.SourceID)
	if err != nil {
		s.log.Warn("release lookup failed", zap.String("source", finished.SourceID), zap.Error(err))
		return
	}
	if rec == nil || rec.ReuseCount != 1 {
		return
	}

	if err := os.Remove(rec.LocalPath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("cache file delete failed", zap.String("path", rec.LocalPath), zap.Error(err))
	}
	if err := s.store.Remove(finished.SourceID); err != nil {
		s.log.Warn("record delete failed", zap.String("source", finished.SourceID), zap.Error(err))
	}
}

// popHead drops the head without touching the store, used for the
// missing-file soft-skip.
func (s *Session) popHead() {
	s.mu.Lock()
	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()
}

// Pause suspends the active player.
func (s *Session) Pause() error {
	player, ok := s.activePlayer()
	if !ok {
		return ErrNothingPlaying
	}
	return player.Pause()
}

// Resume continues a paused player.
func (s *Session) Resume() error {
	player, ok := s.activePlayer()
	if !ok {
		return ErrNothingPlaying
	}
	return player.Resume()
}

// Skip forces the current player to stop; its completion callback
// drives the advance to the next track.
func (s *Session) Skip() error {
	player, ok := s.activePlayer()
	if !ok {
		return ErrNothingPlaying
	}
	player.Stop()
	return nil
}

func (s *Session) activePlayer() (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil || s.state != StatePlaying {
		return nil, false
	}
	return s.player, true
}

// Connected reports whether a live voice connection exists.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn.Ready()
}

// shutdown stops the player and connection and marks the session
// closed. Errors are collected, not raised; teardown is best-effort.
func (s *Session) shutdown() []error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	player := s.player
	conn := s.conn
	s.player = nil
	s.conn = nil
	s.queue = nil
	s.state = StateIdle
	s.mu.Unlock()

	var errs []error
	if player != nil {
		player.Stop()
	}
	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
	}
	return errs
}
