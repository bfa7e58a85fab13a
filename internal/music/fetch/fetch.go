// Package fetch downloads audio through the yt-dlp binary.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"vckeeper/internal/music/resolve"
)

// Downloader fetches audio files to deterministic paths. Fetch is
// idempotent: an existing destination file is returned untouched.
type Downloader struct {
	log *zap.Logger
}

func NewDownloader(log *zap.Logger) *Downloader {
	return &Downloader{log: log}
}

// Fetch downloads url as mp3 to destPath.
func (d *Downloader) Fetch(ctx context.Context, url, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		d.log.Debug("fetch skipped, file already cached", zap.String("path", destPath))
		return nil
	}

	// Strip the channel suffix some share links carry; yt-dlp chokes on it.
	cleaned := strings.SplitN(url, "&ab_channel", 2)[0]

	_, err := ytdlp.New().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("0").
		NoProgress().
		RestrictFilenames().
		Output(destPath).
		Run(ctx, cleaned)
	if err != nil {
		return fmt.Errorf("fetch: download %s: %w", cleaned, err)
	}

	if _, statErr := os.Stat(destPath); statErr != nil {
		return fmt.Errorf("fetch: download finished but %s is missing: %w", destPath, statErr)
	}
	return nil
}

// Probe extracts id, canonical URL and title for a media URL without
// downloading anything. Used for platforms without a dedicated client.
func (d *Downloader) Probe(ctx context.Context, rawURL string) (resolve.Resolved, error) {
	res, err := ytdlp.New().
		Print("%(id)s\t%(webpage_url)s\t%(title)s").
		NoPlaylist().
		NoWarnings().
		Run(ctx, "--skip-download", rawURL)
	if err != nil {
		return resolve.Resolved{}, fmt.Errorf("fetch: probe %s: %w", rawURL, err)
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
			continue
		}
		return resolve.Resolved{SourceID: parts[0], URL: parts[1], Title: parts[2]}, nil
	}
	return resolve.Resolved{}, errors.New("fetch: probe returned no usable metadata")
}
