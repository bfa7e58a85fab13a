package resolve

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeSearcher struct {
	result Resolved
	err    error
	calls  int
}

func (f *fakeSearcher) SearchFirst(_ context.Context, _ string) (Resolved, error) {
	f.calls++
	return f.result, f.err
}

type fakeMeta struct {
	title, artist string
	err           error
	lastID        string
}

func (f *fakeMeta) TrackMeta(_ context.Context, id string) (string, string, error) {
	f.lastID = id
	return f.title, f.artist, f.err
}

func TestResolver_YouTubeURL(t *testing.T) {
	r := New(&fakeSearcher{}, nil, nil, nil, zap.NewNop())

	res, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=junk")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.SourceID != "dQw4w9WgXcQ" {
		t.Errorf("SourceID = %q", res.SourceID)
	}
	if res.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("URL = %q, want canonical watch URL", res.URL)
	}
}

func TestResolver_FreeTextPrefersMusicSearch(t *testing.T) {
	music := &fakeSearcher{result: Resolved{SourceID: "music1", URL: "u1"}}
	plain := &fakeSearcher{result: Resolved{SourceID: "plain1", URL: "u2"}}
	r := New(plain, music, nil, nil, zap.NewNop())

	res, err := r.Resolve(context.Background(), "some song title")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.SourceID != "music1" {
		t.Errorf("SourceID = %q, want the music search hit", res.SourceID)
	}
	if plain.calls != 0 {
		t.Error("plain search was called although music search succeeded")
	}
}

func TestResolver_FreeTextFallsBackToPlainSearch(t *testing.T) {
	music := &fakeSearcher{err: errors.New("boom")}
	plain := &fakeSearcher{result: Resolved{SourceID: "plain1", URL: "u"}}
	r := New(plain, music, nil, nil, zap.NewNop())

	res, err := r.Resolve(context.Background(), "some song title")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.SourceID != "plain1" {
		t.Errorf("SourceID = %q, want the fallback hit", res.SourceID)
	}
}

func TestResolver_SpotifyURL(t *testing.T) {
	meta := &fakeMeta{title: "Song", artist: "Artist"}
	search := &fakeSearcher{result: Resolved{SourceID: "yt1", URL: "u"}}
	r := New(search, nil, meta, nil, zap.NewNop())

	res, err := r.Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if meta.lastID != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("metadata looked up id %q", meta.lastID)
	}
	if res.SourceID != "yt1" {
		t.Errorf("SourceID = %q, want the search result", res.SourceID)
	}
}

func TestResolver_SpotifyWithoutCredentials(t *testing.T) {
	r := New(&fakeSearcher{}, nil, nil, nil, zap.NewNop())

	_, err := r.Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
}

func TestResolver_UnknownURL(t *testing.T) {
	r := New(&fakeSearcher{}, nil, nil, nil, zap.NewNop())

	_, err := r.Resolve(context.Background(), "https://example.com/file.mp3")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
}
