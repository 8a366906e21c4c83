package domain

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// TrackRequest is a raw request to play something. It is discarded after resolution.
type TrackRequest struct {
	GuildID     snowflake.ID
	RequesterID snowflake.ID
	Input       string      // free text or URL
	SourceHint  TrackSource // only consulted for free text
}

// QueryKind is the classification of a request's input.
type QueryKind int

const (
	QueryFreeText QueryKind = iota
	QueryDirectTrack
	QueryDirectPlaylist
	QueryMetadataTrack
	QueryMetadataPlaylist
	QueryMetadataAlbum
)

func (k QueryKind) String() string {
	switch k {
	case QueryFreeText:
		return "free_text"
	case QueryDirectTrack:
		return "direct_track"
	case QueryDirectPlaylist:
		return "direct_playlist"
	case QueryMetadataTrack:
		return "metadata_track"
	case QueryMetadataPlaylist:
		return "metadata_playlist"
	case QueryMetadataAlbum:
		return "metadata_album"
	default:
		return "unknown"
	}
}

// IsCollection returns true for kinds that expand into several tracks.
func (k QueryKind) IsCollection() bool {
	return k == QueryDirectPlaylist || k == QueryMetadataPlaylist || k == QueryMetadataAlbum
}

// Query is a classified request input.
type Query struct {
	Kind   QueryKind
	Source TrackSource
	ID     string // source identifier for link kinds
	Text   string // search text for QueryFreeText
	URL    string // normalized link for link kinds
}

var (
	youTubeVideoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	spotifyID      = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
	spotifyURI     = regexp.MustCompile(`^spotify:(track|playlist|album):([A-Za-z0-9]{22})$`)
	spotifyPath    = regexp.MustCompile(`^/(?:intl-[a-z]{2}(?:-[a-z]{2})?/)?(track|playlist|album)/([^/]+)/?$`)
)

var knownHosts = []string{
	"youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be",
	"open.spotify.com",
}

// ParseQuery classifies a request input. Links to unsupported hosts, links without an
// identifier and unparseable links fail with ErrInvalidInput. Anything that does not
// look like a link is free text searched on hint.
func ParseQuery(input string, hint TrackSource) (Query, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Query{}, NewError(KindInvalidInput, "The query is empty.", nil)
	}

	if m := spotifyURI.FindStringSubmatch(input); m != nil {
		return spotifyQuery(m[1], m[2])
	}

	if !looksLikeURL(input) {
		if hint == TrackSourceOther {
			hint = TrackSourceYouTube
		}
		return Query{Kind: QueryFreeText, Source: hint, Text: input}, nil
	}

	raw := input
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Query{}, NewError(KindInvalidInput, "The link could not be parsed.", err)
	}

	switch host := strings.ToLower(u.Hostname()); host {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		return youTubeQuery(u)
	case "youtu.be":
		return youTubeVideoQuery(u, strings.Trim(u.Path, "/"))
	case "open.spotify.com":
		m := spotifyPath.FindStringSubmatch(u.Path)
		if m == nil {
			return Query{}, NewError(KindInvalidInput, "This Spotify link is not supported.", nil)
		}
		return spotifyQuery(m[1], m[2])
	default:
		return Query{}, NewError(KindInvalidInput, "Links from "+host+" are not supported.", nil)
	}
}

func looksLikeURL(input string) bool {
	if strings.ContainsAny(input, " \t\n") {
		return false
	}
	lower := strings.ToLower(input)
	if strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "www.") {
		return true
	}
	for _, host := range knownHosts {
		if strings.HasPrefix(lower, host+"/") {
			return true
		}
	}
	return false
}

func youTubeQuery(u *url.URL) (Query, error) {
	path := u.Path
	values := u.Query()

	if strings.Contains(path, "playlist") ||
		(values.Has("list") && strings.Contains(path, "watch")) {
		id := values.Get("list")
		if id == "" {
			return Query{}, NewError(KindInvalidInput, "The playlist link has no playlist ID.", nil)
		}
		return Query{
			Kind:   QueryDirectPlaylist,
			Source: TrackSourceYouTube,
			ID:     id,
			URL:    "https://www.youtube.com/playlist?list=" + id,
		}, nil
	}

	if strings.HasPrefix(path, "/watch") {
		return youTubeVideoQuery(u, values.Get("v"))
	}
	for _, prefix := range []string{"/shorts/", "/live/", "/embed/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			return youTubeVideoQuery(u, strings.Trim(rest, "/"))
		}
	}

	return Query{}, NewError(KindInvalidInput, "This YouTube link is not supported.", nil)
}

func youTubeVideoQuery(u *url.URL, id string) (Query, error) {
	if !youTubeVideoID.MatchString(id) {
		return Query{}, NewError(KindInvalidInput, "The link has no valid video ID.", nil)
	}

	source := TrackSourceYouTube
	if strings.EqualFold(u.Hostname(), "music.youtube.com") {
		source = TrackSourceYouTubeMusic
	}
	return Query{
		Kind:   QueryDirectTrack,
		Source: source,
		ID:     id,
		URL:    "https://www.youtube.com/watch?v=" + id,
	}, nil
}

func spotifyQuery(kind, id string) (Query, error) {
	if !spotifyID.MatchString(id) {
		return Query{}, NewError(KindInvalidInput, "The link has no valid Spotify ID.", nil)
	}

	q := Query{
		Source: TrackSourceSpotify,
		ID:     id,
		URL:    "https://open.spotify.com/" + kind + "/" + id,
	}
	switch kind {
	case "track":
		q.Kind = QueryMetadataTrack
	case "playlist":
		q.Kind = QueryMetadataPlaylist
	default:
		q.Kind = QueryMetadataAlbum
	}
	return q, nil
}
