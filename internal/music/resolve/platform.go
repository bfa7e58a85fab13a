package resolve

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Platform identifies the service a source locator points at.
type Platform string

const (
	PlatformYouTube      Platform = "youtube"
	PlatformYouTubeMusic Platform = "youtube_music"
	PlatformSpotify      Platform = "spotify"
	PlatformSoundCloud   Platform = "soundcloud"
	PlatformUnknown      Platform = "unknown"
)

var videoIDRegex = regexp.MustCompile(`(?:youtube\.com/(?:[^/\n\s]+/\S+/|\S*\?v=|.*[/\\])|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// IsURL reports whether the input looks like a URL rather than free text.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DetectPlatform classifies a URL by hostname. YouTube Music is checked
// before plain YouTube since its host is a youtube.com subdomain.
func DetectPlatform(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return PlatformUnknown
	}
	host := u.Hostname()

	switch {
	case strings.Contains(host, "music.youtube.com"):
		return PlatformYouTubeMusic
	case strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be"):
		return PlatformYouTube
	case strings.Contains(host, "open.spotify.com") && strings.HasPrefix(u.Path, "/track/"):
		return PlatformSpotify
	case strings.Contains(host, "soundcloud.com"):
		return PlatformSoundCloud
	default:
		return PlatformUnknown
	}
}

// ExtractVideoID pulls the 11-character video id out of a YouTube URL.
func ExtractVideoID(rawURL string) (string, error) {
	cleaned := strings.SplitN(rawURL, "&ab_channel", 2)[0]
	m := videoIDRegex.FindStringSubmatch(cleaned)
	if m == nil {
		return "", errors.New("resolve: unable to parse video id from URL")
	}
	return m[1], nil
}

// SpotifyTrackID extracts the track id from an open.spotify.com URL.
func SpotifyTrackID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("resolve: parse spotify URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "track" || parts[1] == "" {
		return "", errors.New("resolve: not a spotify track URL")
	}
	return parts[1], nil
}

// CanonicalYouTubeURL rebuilds a watch URL with only the video id,
// dropping playlist, timestamp and channel noise.
func CanonicalYouTubeURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
