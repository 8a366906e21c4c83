package domain

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// TrackID uniquely identifies a resolved track within the process.
// Two requests for the same song produce two tracks with different IDs.
type TrackID string

var trackSeq atomic.Uint64

func nextTrackID() TrackID {
	return TrackID("t" + strconv.FormatUint(trackSeq.Add(1), 36))
}

// TrackParams holds the values a Track is created from.
type TrackParams struct {
	Title      string
	Artist     string
	Duration   time.Duration
	URI        string
	ArtworkURL string
	Handle     string // direct-source identifier used to open an audio stream
	Source     TrackSource
	Kind       SourceKind
	IsStream   bool

	// MatchedFrom is the metadata-only link a SourceKindMetadata track was matched from.
	MatchedFrom string

	RequesterID snowflake.ID
}

// Track is a resolved, playable unit. It is immutable once created.
type Track struct {
	id          TrackID
	title       string
	artist      string
	duration    time.Duration
	uri         string
	artworkURL  string
	handle      string
	source      TrackSource
	kind        SourceKind
	isStream    bool
	matchedFrom string
	requesterID snowflake.ID
	enqueuedAt  time.Time
}

// NewTrack creates a new Track.
func NewTrack(p TrackParams) *Track {
	title := p.Title
	if title == "" {
		title = UnknownTitle
	}
	return &Track{
		id:          nextTrackID(),
		title:       title,
		artist:      p.Artist,
		duration:    p.Duration,
		uri:         p.URI,
		artworkURL:  p.ArtworkURL,
		handle:      p.Handle,
		source:      p.Source,
		kind:        p.Kind,
		isStream:    p.IsStream,
		matchedFrom: p.MatchedFrom,
		requesterID: p.RequesterID,
		enqueuedAt:  time.Now().UTC(),
	}
}

// UnknownTitle is used for tracks whose source reported no title.
const UnknownTitle = "Unknown title"

func (t *Track) ID() TrackID               { return t.id }
func (t *Track) Title() string             { return t.title }
func (t *Track) Artist() string            { return t.artist }
func (t *Track) Duration() time.Duration   { return t.duration }
func (t *Track) URI() string               { return t.uri }
func (t *Track) ArtworkURL() string        { return t.artworkURL }
func (t *Track) Handle() string            { return t.handle }
func (t *Track) Source() TrackSource       { return t.source }
func (t *Track) Kind() SourceKind          { return t.kind }
func (t *Track) IsStream() bool            { return t.isStream }
func (t *Track) MatchedFrom() string       { return t.matchedFrom }
func (t *Track) RequesterID() snowflake.ID { return t.requesterID }
func (t *Track) EnqueuedAt() time.Time     { return t.enqueuedAt }

// IsPlayable returns true if the track carries a handle a stream can be opened from.
func (t *Track) IsPlayable() bool {
	return t.handle != ""
}

// FormattedDuration returns the duration as a human-readable string (mm:ss or hh:mm:ss).
func (t *Track) FormattedDuration() string {
	if t.isStream {
		return "LIVE"
	}
	if t.duration <= 0 {
		return "??:??"
	}
	return FormatDuration(t.duration)
}

// FormatDuration formats d as mm:ss, or hh:mm:ss when it spans an hour or more.
func FormatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
	}
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
