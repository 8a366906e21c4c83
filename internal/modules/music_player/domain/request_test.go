package domain

import (
	"errors"
	"testing"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		hint   TrackSource
		kind   QueryKind
		source TrackSource
		id     string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "", QueryDirectTrack, TrackSourceYouTube, "dQw4w9WgXcQ"},
		{"watch url extra params", "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42", "", QueryDirectTrack, TrackSourceYouTube, "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "", QueryDirectTrack, TrackSourceYouTube, "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "", QueryDirectTrack, TrackSourceYouTube, "dQw4w9WgXcQ"},
		{"scheme-less", "youtu.be/dQw4w9WgXcQ", "", QueryDirectTrack, TrackSourceYouTube, "dQw4w9WgXcQ"},
		{"music host", "https://music.youtube.com/watch?v=dQw4w9WgXcQ", "", QueryDirectTrack, TrackSourceYouTubeMusic, "dQw4w9WgXcQ"},
		{"playlist", "https://www.youtube.com/playlist?list=PL1234567890", "", QueryDirectPlaylist, TrackSourceYouTube, "PL1234567890"},
		{"watch in playlist", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1234567890", "", QueryDirectPlaylist, TrackSourceYouTube, "PL1234567890"},
		{"spotify track", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "", QueryMetadataTrack, TrackSourceSpotify, "4uLU6hMCjMI75M1A2tKUQC"},
		{"spotify intl", "https://open.spotify.com/intl-ja/track/4uLU6hMCjMI75M1A2tKUQC?si=abc", "", QueryMetadataTrack, TrackSourceSpotify, "4uLU6hMCjMI75M1A2tKUQC"},
		{"spotify playlist", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "", QueryMetadataPlaylist, TrackSourceSpotify, "37i9dQZF1DXcBWIGoYBM5M"},
		{"spotify album", "https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3", "", QueryMetadataAlbum, TrackSourceSpotify, "1DFixLWuPkv3KT3TnV35m3"},
		{"spotify uri", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "", QueryMetadataTrack, TrackSourceSpotify, "4uLU6hMCjMI75M1A2tKUQC"},
		{"free text", "lofi beats", "", QueryFreeText, TrackSourceYouTube, ""},
		{"free text music hint", "lofi beats", TrackSourceYouTubeMusic, QueryFreeText, TrackSourceYouTubeMusic, ""},
		{"free text spotify hint", "never gonna give you up", TrackSourceSpotify, QueryFreeText, TrackSourceSpotify, ""},
		{"single word", "lofi", "", QueryFreeText, TrackSourceYouTube, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := tt.hint
			if hint == "" {
				hint = TrackSourceYouTube
			}
			q, err := ParseQuery(tt.input, hint)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, q.Kind)
			}
			if q.Source != tt.source {
				t.Errorf("expected source %s, got %s", tt.source, q.Source)
			}
			if q.ID != tt.id {
				t.Errorf("expected ID %q, got %q", tt.id, q.ID)
			}
			if tt.kind == QueryFreeText && q.Text != tt.input {
				t.Errorf("expected text %q, got %q", tt.input, q.Text)
			}
		})
	}
}

func TestParseQuery_InvalidInput(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"https://source.example/video/abc",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/playlist",
		"https://youtu.be/",
		"https://open.spotify.com/artist/4uLU6hMCjMI75M1A2tKUQC",
		"https://open.spotify.com/track/tooshort",
		"http://%zz",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseQuery(in, TrackSourceYouTube)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestQueryKind_IsCollection(t *testing.T) {
	collections := []QueryKind{QueryDirectPlaylist, QueryMetadataPlaylist, QueryMetadataAlbum}
	for _, k := range collections {
		if !k.IsCollection() {
			t.Errorf("expected %s to be a collection", k)
		}
	}
	for _, k := range []QueryKind{QueryFreeText, QueryDirectTrack, QueryMetadataTrack} {
		if k.IsCollection() {
			t.Errorf("expected %s not to be a collection", k)
		}
	}
}
