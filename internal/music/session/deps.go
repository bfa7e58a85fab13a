package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vckeeper/internal/music/resolve"
)

// Resolver maps a source locator to a canonical source id and URL.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (resolve.Resolved, error)
}

// Fetcher downloads audio to a deterministic path. Must be idempotent
// when the destination file already exists.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// Connection is an established voice transport.
type Connection interface {
	Ready() bool
	Disconnect() error
}

// Connector joins a voice channel and blocks until the transport is
// ready. This is the only blocking step of a track transition.
type Connector interface {
	Join(guildID, channelID string) (Connection, error)
}

// Player plays one local audio file over one connection. Done yields
// exactly one value: nil on natural or forced completion, an error on
// playback failure.
type Player interface {
	Pause() error
	Resume() error
	Stop()
	Done() <-chan error
}

// PlayerFactory builds a player bound to a file and a connection.
type PlayerFactory interface {
	NewPlayer(conn Connection, filePath string) (Player, error)
}

// Deps bundles the collaborators a playback session drives.
type Deps struct {
	Resolver  Resolver
	Fetcher   Fetcher
	Connector Connector
	Players   PlayerFactory

	CacheDir string

	// IdleDebounce delays the advance after natural track completion,
	// smoothing back-to-back transitions. ErrorBackoff delays the
	// advance after a player failure.
	IdleDebounce time.Duration
	ErrorBackoff time.Duration

	Logger *zap.Logger
}

const (
	defaultIdleDebounce = 300 * time.Millisecond
	defaultErrorBackoff = 500 * time.Millisecond
)

func (d *Deps) fillDefaults() {
	if d.IdleDebounce == 0 {
		d.IdleDebounce = defaultIdleDebounce
	}
	if d.ErrorBackoff == 0 {
		d.ErrorBackoff = defaultErrorBackoff
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}
