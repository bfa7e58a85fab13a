package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"vckeeper/internal/music/resolve"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, locator string) (resolve.Resolved, error) {
	return resolve.Resolved{SourceID: locator, URL: "https://tracks.test/" + locator}, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _, destPath string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return os.WriteFile(destPath, []byte("audio"), 0o644)
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeConn struct {
	mu           sync.Mutex
	disconnected bool
}

func (c *fakeConn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disconnected
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

type fakeConnector struct {
	mu    sync.Mutex
	joins int
	conn  *fakeConn
}

func (c *fakeConnector) Join(_, _ string) (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins++
	c.conn = &fakeConn{}
	return c.conn, nil
}

type fakePlayer struct {
	path string
	done chan error
	once sync.Once
}

func (p *fakePlayer) Pause() error  { return nil }
func (p *fakePlayer) Resume() error { return nil }
func (p *fakePlayer) Stop()         { p.finish(nil) }

func (p *fakePlayer) Done() <-chan error { return p.done }

func (p *fakePlayer) finish(err error) {
	p.once.Do(func() { p.done <- err })
}

type fakeFactory struct {
	mu      sync.Mutex
	players []*fakePlayer
}

func (f *fakeFactory) NewPlayer(_ Connection, filePath string) (Player, error) {
	p := &fakePlayer{path: filePath, done: make(chan error, 1)}
	f.mu.Lock()
	f.players = append(f.players, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeFactory) player(i int) *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.players) {
		return nil
	}
	return f.players[i]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

type harness struct {
	registry  *Registry
	fetcher   *fakeFetcher
	connector *fakeConnector
	factory   *fakeFactory
	cacheDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fetcher:   &fakeFetcher{},
		connector: &fakeConnector{},
		factory:   &fakeFactory{},
		cacheDir:  t.TempDir(),
	}
	deps := Deps{
		Resolver:     fakeResolver{},
		Fetcher:      h.fetcher,
		Connector:    h.connector,
		Players:      h.factory,
		CacheDir:     h.cacheDir,
		IdleDebounce: time.Millisecond,
		ErrorBackoff: time.Millisecond,
		Logger:       zap.NewNop(),
	}
	h.registry = NewRegistry(deps, t.TempDir())
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEnqueue_PositionsAndOrder(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	ctx := context.Background()

	pos, rec, err := s.Enqueue(ctx, "vc", "track-a")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if pos != 1 || rec.SourceID != "track-a" {
		t.Errorf("got pos=%d id=%q, want 1/track-a", pos, rec.SourceID)
	}

	waitFor(t, "first player", func() bool { return h.factory.count() == 1 })

	pos, _, err = s.Enqueue(ctx, "vc", "track-b")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if pos != 2 {
		t.Errorf("second enqueue pos = %d, want 2", pos)
	}

	queue := s.Queue()
	if len(queue) != 2 || queue[0].SourceID != "track-a" || queue[1].SourceID != "track-b" {
		t.Errorf("queue = %+v, want track-a then track-b", queue)
	}
}

func TestEnqueue_ReusesCachedFile(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	ctx := context.Background()

	if _, _, err := s.Enqueue(ctx, "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	_, rec, err := s.Enqueue(ctx, "vc", "track-a")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if h.fetcher.count() != 1 {
		t.Errorf("fetch count = %d, want 1", h.fetcher.count())
	}
	if rec.ReuseCount != 2 {
		t.Errorf("ReuseCount = %d, want 2", rec.ReuseCount)
	}
}

func TestAdvance_KeepsFileStillQueued(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	ctx := context.Background()

	if _, _, err := s.Enqueue(ctx, "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, _, err := s.Enqueue(ctx, "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "first player", func() bool { return h.factory.count() == 1 })

	h.factory.player(0).finish(nil)
	waitFor(t, "second player", func() bool { return h.factory.count() == 2 })

	path := filepath.Join(h.cacheDir, "track-a.mp3")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("cache file was deleted while a queue entry still needs it: %v", err)
	}

	h.factory.player(1).finish(nil)
	waitFor(t, "idle", func() bool { return s.State() == StateIdle })

	// Fetched once but requested twice: the reuse counter keeps the
	// cached file alive for future requests.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("reused cache file was deleted: %v", err)
	}
	if got, _ := s.Store().Lookup("track-a"); got == nil {
		t.Error("reused record was deleted")
	}
}

func TestPlayHead_SkipsMissingFile(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	ctx := context.Background()

	if _, _, err := s.Enqueue(ctx, "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "first player", func() bool { return h.factory.count() == 1 })
	if _, _, err := s.Enqueue(ctx, "vc", "track-b"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Yank the next track's file out from under the session.
	if err := os.Remove(filepath.Join(h.cacheDir, "track-b.mp3")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	h.factory.player(0).finish(nil)
	waitFor(t, "idle after soft skip", func() bool { return s.State() == StateIdle })

	if h.factory.count() != 1 {
		t.Errorf("player count = %d, the missing track must not be started", h.factory.count())
	}
}

func TestSession_FullLifecycle(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if s.State() != StateIdle {
		t.Fatalf("initial state = %v, want idle", s.State())
	}

	if _, _, err := s.Enqueue(context.Background(), "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "playing", func() bool { return s.State() == StatePlaying })

	if !s.Connected() {
		t.Error("session is playing without a ready connection")
	}
	if got := h.factory.player(0).path; got != filepath.Join(h.cacheDir, "track-a.mp3") {
		t.Errorf("player path = %q", got)
	}

	h.factory.player(0).finish(nil)
	waitFor(t, "idle", func() bool { return s.State() == StateIdle })

	if h.connector.joins != 1 {
		t.Errorf("joins = %d, want 1", h.connector.joins)
	}

	// Fetched exactly once and no longer queued: file and record go.
	path := filepath.Join(h.cacheDir, "track-a.mp3")
	waitFor(t, "cache eviction", func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	})
	if rec, _ := s.Store().Lookup("track-a"); rec != nil {
		t.Errorf("record survived its last playback: %+v", rec)
	}
}

func TestSkip_AdvancesToNextTrack(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	ctx := context.Background()

	if _, _, err := s.Enqueue(ctx, "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "playing", func() bool { return s.State() == StatePlaying })
	if _, _, err := s.Enqueue(ctx, "vc", "track-b"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := s.Skip(); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	waitFor(t, "second player", func() bool { return h.factory.count() == 2 })

	if got := h.factory.player(1).path; got != filepath.Join(h.cacheDir, "track-b.mp3") {
		t.Errorf("player path after skip = %q", got)
	}
}

func TestControls_RequirePlayback(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if err := s.Pause(); err != ErrNothingPlaying {
		t.Errorf("Pause on idle = %v, want ErrNothingPlaying", err)
	}
	if err := s.Resume(); err != ErrNothingPlaying {
		t.Errorf("Resume on idle = %v, want ErrNothingPlaying", err)
	}
	if err := s.Skip(); err != ErrNothingPlaying {
		t.Errorf("Skip on idle = %v, want ErrNothingPlaying", err)
	}
}

func TestCleanup_RemovesEverythingAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if _, _, err := s.Enqueue(context.Background(), "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "playing", func() bool { return s.State() == StatePlaying })

	storeFile := s.Store().FilePath()
	cacheFile := filepath.Join(h.cacheDir, "track-a.mp3")

	h.registry.Cleanup("g1")
	h.registry.Cleanup("g1")

	if _, ok := h.registry.Get("g1"); ok {
		t.Error("session still registered after cleanup")
	}
	if _, err := os.Stat(cacheFile); !os.IsNotExist(err) {
		t.Errorf("cache file survived cleanup, stat err = %v", err)
	}
	if _, err := os.Stat(storeFile); !os.IsNotExist(err) {
		t.Errorf("queue store file survived cleanup, stat err = %v", err)
	}
	if !h.connector.conn.disconnected {
		t.Error("voice connection was not disconnected")
	}

	if _, _, err := s.Enqueue(context.Background(), "vc", "track-b"); err != ErrClosed {
		t.Errorf("Enqueue after cleanup = %v, want ErrClosed", err)
	}
}

func TestRenderQueue(t *testing.T) {
	h := newHarness(t)
	s, err := h.registry.GetOrCreate("g1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if got := RenderQueue(s); got != "Queue is empty." {
		t.Errorf("empty render = %q", got)
	}

	ctx := context.Background()
	if _, _, err := s.Enqueue(ctx, "vc", "track-a"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "playing", func() bool { return s.State() == StatePlaying })
	if _, _, err := s.Enqueue(ctx, "vc", "track-b"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := RenderQueue(s)
	want := "**Queue:**\n1. https://tracks.test/track-a (playing)\n2. https://tracks.test/track-b"
	if got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
	if len(got) > messageLimit {
		t.Errorf("render length %d exceeds message limit", len(got))
	}
}
