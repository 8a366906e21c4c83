package domain

// TrackSource represents the platform a request targets or a track came from.
type TrackSource string

const (
	TrackSourceYouTube      TrackSource = "youtube"
	TrackSourceYouTubeMusic TrackSource = "music"
	TrackSourceSpotify      TrackSource = "spotify"
	TrackSourceOther        TrackSource = "other"
)

// ParseTrackSource converts a source name string to a TrackSource.
// An empty name yields TrackSourceYouTube, the default search source.
func ParseTrackSource(name string) TrackSource {
	switch name {
	case "", "youtube", "yt":
		return TrackSourceYouTube
	case "music", "ytmusic", "youtube_music":
		return TrackSourceYouTubeMusic
	case "spotify":
		return TrackSourceSpotify
	default:
		return TrackSourceOther
	}
}

// DisplayName returns a human-readable platform name.
func (s TrackSource) DisplayName() string {
	switch s {
	case TrackSourceYouTube:
		return "YouTube"
	case TrackSourceYouTubeMusic:
		return "YouTube Music"
	case TrackSourceSpotify:
		return "Spotify"
	default:
		return "Other"
	}
}

// Color returns the platform's brand color for embeds.
func (s TrackSource) Color() int {
	switch s {
	case TrackSourceYouTube, TrackSourceYouTubeMusic:
		return 0xFF0000
	case TrackSourceSpotify:
		return 0x1DB954
	default:
		return 0x5865F2
	}
}

// SourceKind describes how a ResolvedTrack was obtained.
type SourceKind int

const (
	// SourceKindDirect is a track taken from a direct-audio-capable source link.
	SourceKindDirect SourceKind = iota
	// SourceKindMetadata is a metadata-only track matched to a direct-source track.
	SourceKindMetadata
	// SourceKindSearch is the top result of a free-text search.
	SourceKindSearch
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindDirect:
		return "direct"
	case SourceKindMetadata:
		return "metadata"
	case SourceKindSearch:
		return "search"
	default:
		return "unknown"
	}
}
