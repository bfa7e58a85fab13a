package resolve

import (
	"context"

	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

// YouTubeSearcher finds tracks via plain YouTube search.
type YouTubeSearcher struct {
	client *ytsearch.Client
}

func NewYouTubeSearcher() *YouTubeSearcher {
	return &YouTubeSearcher{client: ytsearch.NewClient(nil)}
}

func (s *YouTubeSearcher) SearchFirst(ctx context.Context, query string) (Resolved, error) {
	res, err := s.client.Search(ctx, query)
	if err != nil {
		return Resolved{}, err
	}
	for _, v := range res.Results {
		if v.VideoID == "" {
			continue
		}
		return Resolved{
			SourceID: v.VideoID,
			URL:      CanonicalYouTubeURL(v.VideoID),
			Title:    v.Title,
		}, nil
	}
	return Resolved{}, ErrNoResults
}

// YouTubeMusicSearcher finds tracks via the YouTube Music catalog,
// which gives cleaner matches for title/artist queries.
type YouTubeMusicSearcher struct{}

func NewYouTubeMusicSearcher() *YouTubeMusicSearcher {
	return &YouTubeMusicSearcher{}
}

func (s *YouTubeMusicSearcher) SearchFirst(_ context.Context, query string) (Resolved, error) {
	result, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return Resolved{}, err
	}
	for _, t := range result.Tracks {
		if t.VideoID == "" {
			continue
		}
		title := t.Title
		if len(t.Artists) > 0 {
			title = t.Title + " - " + t.Artists[0].Name
		}
		return Resolved{
			SourceID: t.VideoID,
			URL:      CanonicalYouTubeURL(t.VideoID),
			Title:    title,
		}, nil
	}
	return Resolved{}, ErrNoResults
}
