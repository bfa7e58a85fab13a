// Package resolve maps a source locator (URL across supported
// platforms, or free-text search) to a canonical source id and playable
// URL.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrNoResults means a free-text search produced nothing playable.
	ErrNoResults = errors.New("resolve: no results")
	// ErrUnsupported means the URL belongs to no supported platform.
	ErrUnsupported = errors.New("resolve: unsupported source")
)

// Resolved is a locator mapped to a stable id and playable URL.
type Resolved struct {
	SourceID string
	URL      string
	Title    string
}

// Searcher finds the first matching video for a free-text query.
type Searcher interface {
	SearchFirst(ctx context.Context, query string) (Resolved, error)
}

// MetadataClient fetches title/artist for a Spotify track id.
type MetadataClient interface {
	TrackMeta(ctx context.Context, trackID string) (title, artist string, err error)
}

// Prober extracts id/URL/title from an arbitrary media URL via the
// fetch tool, for platforms without a dedicated client (SoundCloud).
type Prober interface {
	Probe(ctx context.Context, rawURL string) (Resolved, error)
}

// Resolver resolves locators using platform detection plus the injected
// search and metadata collaborators.
type Resolver struct {
	search      Searcher       // plain YouTube search
	musicSearch Searcher       // YouTube Music search, tried first for catalog queries
	spotify     MetadataClient // may be nil when credentials are absent
	prober      Prober
	log         *zap.Logger
}

func New(search, musicSearch Searcher, spotify MetadataClient, prober Prober, log *zap.Logger) *Resolver {
	return &Resolver{
		search:      search,
		musicSearch: musicSearch,
		spotify:     spotify,
		prober:      prober,
		log:         log,
	}
}

// Resolve maps locator to a Resolved source. Free text goes through
// search; URLs go through platform-specific extraction.
func (r *Resolver) Resolve(ctx context.Context, locator string) (Resolved, error) {
	if !IsURL(locator) {
		return r.searchFirst(ctx, locator)
	}

	switch DetectPlatform(locator) {
	case PlatformYouTube, PlatformYouTubeMusic:
		id, err := ExtractVideoID(locator)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{SourceID: id, URL: CanonicalYouTubeURL(id)}, nil

	case PlatformSpotify:
		return r.resolveSpotify(ctx, locator)

	case PlatformSoundCloud:
		if r.prober == nil {
			return Resolved{}, ErrUnsupported
		}
		res, err := r.prober.Probe(ctx, locator)
		if err != nil {
			return Resolved{}, fmt.Errorf("resolve: probe soundcloud: %w", err)
		}
		return res, nil

	default:
		return Resolved{}, ErrUnsupported
	}
}

// resolveSpotify turns a Spotify track URL into a YouTube source via
// track metadata plus search.
func (r *Resolver) resolveSpotify(ctx context.Context, locator string) (Resolved, error) {
	if r.spotify == nil {
		return Resolved{}, fmt.Errorf("%w: spotify credentials not configured", ErrUnsupported)
	}

	trackID, err := SpotifyTrackID(locator)
	if err != nil {
		return Resolved{}, err
	}

	title, artist, err := r.spotify.TrackMeta(ctx, trackID)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolve: spotify metadata: %w", err)
	}

	query := title
	if artist != "" {
		query = title + " " + artist
	}
	return r.searchFirst(ctx, query)
}

// searchFirst tries YouTube Music first for catalog-quality matches,
// then falls back to plain YouTube search.
func (r *Resolver) searchFirst(ctx context.Context, query string) (Resolved, error) {
	if r.musicSearch != nil {
		if res, err := r.musicSearch.SearchFirst(ctx, query); err == nil {
			return res, nil
		} else if r.log != nil {
			r.log.Debug("youtube music search failed, falling back", zap.String("query", query), zap.Error(err))
		}
	}

	if r.search == nil {
		return Resolved{}, ErrNoResults
	}
	res, err := r.search.SearchFirst(ctx, query)
	if err != nil {
		return Resolved{}, err
	}
	return res, nil
}
