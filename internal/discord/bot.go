// Package discord is the gateway shell: it owns the discordgo session,
// wires the domain services together and routes gateway events into the
// command framework, the playback sessions and the votekick coordinator.
package discord

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"vckeeper/internal/config"
	"vckeeper/internal/core"
	"vckeeper/internal/music/fetch"
	"vckeeper/internal/music/resolve"
	"vckeeper/internal/music/session"
	"vckeeper/internal/music/voice"
	"vckeeper/internal/storage"
	"vckeeper/internal/upload"
	"vckeeper/internal/votekick"
)

// Bot is the running Discord bot.
type Bot struct {
	dg  *discordgo.Session
	cfg *config.Config
	log *zap.Logger

	sessions *session.Registry
	votes    *votekick.Coordinator
	deps     *core.Deps
}

// NewBot builds the session and the full service graph behind it.
func NewBot(cfg *config.Config, store *storage.Storage, log *zap.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	b := &Bot{dg: dg, cfg: cfg, log: log}

	downloader := fetch.NewDownloader(log)
	var spotifyMeta resolve.MetadataClient
	if sp := resolve.NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret); sp != nil {
		spotifyMeta = sp
	}
	resolver := resolve.New(
		resolve.NewYouTubeSearcher(),
		resolve.NewYouTubeMusicSearcher(),
		spotifyMeta,
		downloader,
		log,
	)

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("discord: create cache dir: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("discord: create data dir: %w", err)
	}

	b.sessions = session.NewRegistry(session.Deps{
		Resolver:  resolver,
		Fetcher:   downloader,
		Connector: voice.NewConnector(dg),
		Players:   voice.NewFactory(log),
		CacheDir:  cfg.CacheDir,
		Logger:    log,
	}, cfg.DataDir)

	b.votes = votekick.NewCoordinator(store, b, log)

	b.deps = &core.Deps{
		Storage:  store,
		Sessions: b.sessions,
		Votes:    b.votes,
		Uploads:  upload.NewManager(cfg.CatboxUserHash, log),
		Allowed:  cfg.AllowedUsers,
		Log:      log,
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onMessageReactionAdd)
	dg.AddHandler(b.onVoiceStateUpdate)

	return b, nil
}

// Deps exposes the shared command dependencies for the shell's owner.
func (b *Bot) Deps() *core.Deps { return b.deps }

// Run opens the gateway connection and blocks until ctx is cancelled,
// then tears everything down.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info("shutdown signal received, cleaning up")
	b.sessions.CleanupAll()
	return nil
}
