package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyClient fetches track metadata from the Spotify Web API using
// the client-credentials flow. No user login is involved.
type SpotifyClient struct {
	creds *clientcredentials.Config

	mu     sync.Mutex
	client *spotify.Client
}

// NewSpotifyClient returns nil when credentials are not configured, so
// callers can wire it straight into the Resolver.
func NewSpotifyClient(clientID, clientSecret string) *SpotifyClient {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &SpotifyClient{
		creds: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
	}
}

func (c *SpotifyClient) TrackMeta(ctx context.Context, trackID string) (string, string, error) {
	client := c.apiClient(ctx)

	track, err := client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return "", "", fmt.Errorf("spotify: get track %s: %w", trackID, err)
	}
	if track.Name == "" {
		return "", "", errors.New("spotify: track has no title")
	}

	artist := ""
	if len(track.Artists) > 0 {
		artist = track.Artists[0].Name
	}
	return track.Name, artist, nil
}

// apiClient lazily builds the API client. The oauth2 transport refreshes
// the client-credentials token on its own.
func (c *SpotifyClient) apiClient(ctx context.Context) *spotify.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		c.client = spotify.New(c.creds.Client(ctx))
	}
	return c.client
}
