package ports

import (
	"context"
	"time"
)

// Candidate is one result returned by a source backend.
type Candidate struct {
	ID         string // source-specific identifier
	Title      string
	Artist     string
	Duration   time.Duration // zero when unknown
	URL        string
	ArtworkURL string
	IsStream   bool
}

// Collection is an ordered list of candidates such as a playlist or album.
type Collection struct {
	ID      string
	Name    string
	Entries []Candidate

	// Truncated is the number of entries beyond the requested limit.
	Truncated int

	// Skipped is the number of entries the backend reported but could not describe,
	// e.g. deleted or private videos.
	Skipped int
}

// StreamHandle is an opaque value the audio transport can start streaming from.
type StreamHandle string

// AudioSource is a direct-audio-capable backend.
// Implementations return *domain.Error values classified by kind.
type AudioSource interface {
	// Search returns up to limit ranked candidates for free text.
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)

	// FetchMetadata returns the candidate for a source identifier.
	FetchMetadata(ctx context.Context, id string) (Candidate, error)

	// FetchPlaylist returns up to limit playlist entries in source order.
	FetchPlaylist(ctx context.Context, id string, limit int) (Collection, error)

	// OpenStream returns a handle the transport can stream the identified track from.
	OpenStream(ctx context.Context, id string) (StreamHandle, error)
}

// MusicSearcher is implemented by audio sources that can search a music-only catalog,
// which gives better candidates when matching metadata-only tracks.
type MusicSearcher interface {
	SearchMusic(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// MetadataSource is a backend that describes tracks but cannot stream them.
type MetadataSource interface {
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
	FetchMetadata(ctx context.Context, id string) (Candidate, error)
	FetchPlaylist(ctx context.Context, id string, limit int) (Collection, error)
	FetchAlbum(ctx context.Context, id string, limit int) (Collection, error)
}
