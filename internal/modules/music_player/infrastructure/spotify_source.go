package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// spotifyPageSize is the largest page the Web API returns for playlist and album items.
const spotifyPageSize = 50

// SpotifyConfig contains Spotify Web API credentials.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
}

// SpotifySource is a metadata-only source backed by the Spotify Web API.
type SpotifySource struct {
	client *spotify.Client
}

// NewSpotifySource creates a SpotifySource authenticated with the client credentials flow.
func NewSpotifySource(ctx context.Context, cfg SpotifyConfig) (*SpotifySource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify client ID and secret are required")
	}

	auth := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := auth.Token(ctx); err != nil {
		return nil, fmt.Errorf("failed to get Spotify token: %w", err)
	}

	return &SpotifySource{client: spotify.New(auth.Client(ctx))}, nil
}

// Search returns up to limit tracks matching query.
func (s *SpotifySource) Search(ctx context.Context, query string, limit int) ([]ports.Candidate, error) {
	results, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, classifySpotifyError(err)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	candidates := make([]ports.Candidate, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		if len(candidates) >= limit {
			break
		}
		candidates = append(candidates, fullTrackCandidate(&results.Tracks.Tracks[i]))
	}
	return candidates, nil
}

// FetchMetadata returns the track with the given ID.
func (s *SpotifySource) FetchMetadata(ctx context.Context, id string) (ports.Candidate, error) {
	track, err := s.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return ports.Candidate{}, classifySpotifyError(err)
	}
	return fullTrackCandidate(track), nil
}

// FetchPlaylist returns up to limit tracks of the playlist in playlist order.
// Episodes and removed tracks are counted as skipped.
func (s *SpotifySource) FetchPlaylist(ctx context.Context, id string, limit int) (ports.Collection, error) {
	playlist, err := s.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("id,name"))
	if err != nil {
		return ports.Collection{}, classifySpotifyError(err)
	}
	collection := ports.Collection{ID: id, Name: playlist.Name}

	for offset := 0; ; offset += spotifyPageSize {
		page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id),
			spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return ports.Collection{}, classifySpotifyError(err)
		}

		for i := range page.Items {
			track := page.Items[i].Track.Track
			if len(collection.Entries) >= limit {
				collection.Truncated++
				continue
			}
			if track == nil || track.ID == "" {
				collection.Skipped++
				continue
			}
			collection.Entries = append(collection.Entries, fullTrackCandidate(track))
		}

		if len(page.Items) < spotifyPageSize {
			return collection, nil
		}
		if len(collection.Entries) >= limit {
			// The rest is only counted.
			collection.Truncated += max(0, int(page.Total)-offset-len(page.Items))
			return collection, nil
		}
	}
}

// FetchAlbum returns up to limit tracks of the album in track order.
func (s *SpotifySource) FetchAlbum(ctx context.Context, id string, limit int) (ports.Collection, error) {
	album, err := s.client.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return ports.Collection{}, classifySpotifyError(err)
	}

	collection := ports.Collection{ID: id, Name: album.Name}
	artwork := largestImage(album.Images)

	tracks := album.Tracks.Tracks
	total := int(album.Tracks.Total)
	for offset := len(tracks); offset < total && offset < limit; offset += spotifyPageSize {
		page, err := s.client.GetAlbumTracks(ctx, spotify.ID(id),
			spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return ports.Collection{}, classifySpotifyError(err)
		}
		if len(page.Tracks) == 0 {
			break
		}
		tracks = append(tracks, page.Tracks...)
	}

	for i := range tracks {
		if len(collection.Entries) >= limit {
			break
		}
		collection.Entries = append(collection.Entries, simpleTrackCandidate(&tracks[i], artwork))
	}
	collection.Truncated = max(0, total-len(collection.Entries))
	return collection, nil
}

func fullTrackCandidate(track *spotify.FullTrack) ports.Candidate {
	return simpleTrackCandidate(&track.SimpleTrack, largestImage(track.Album.Images))
}

func simpleTrackCandidate(track *spotify.SimpleTrack, artworkURL string) ports.Candidate {
	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	trackURL := track.ExternalURLs["spotify"]
	if trackURL == "" {
		trackURL = "https://open.spotify.com/track/" + string(track.ID)
	}

	return ports.Candidate{
		ID:         string(track.ID),
		Title:      track.Name,
		Artist:     strings.Join(artists, ", "),
		Duration:   time.Duration(track.Duration) * time.Millisecond,
		URL:        trackURL,
		ArtworkURL: artworkURL,
	}
}

// largestImage returns the URL of the widest image. The API lists images widest first
// but does not promise it.
func largestImage(images []spotify.Image) string {
	var (
		best  string
		width int
	)
	for _, img := range images {
		if best == "" || int(img.Width) > width {
			best = img.URL
			width = int(img.Width)
		}
	}
	return best
}

// classifySpotifyError maps Web API failures onto error kinds.
func classifySpotifyError(err error) error {
	var (
		de     *domain.Error
		apiErr spotify.Error
		netErr net.Error
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, "Spotify took too long to respond.", err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &apiErr):
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusNotFound:
			return domain.NewError(domain.KindNotFound, "Spotify could not find that item.", err)
		default:
			return classifyStatusCode(apiErr.Status, err)
		}
	case errors.As(err, &netErr):
		return domain.NewError(domain.KindUpstreamUnavailable, "Spotify could not be reached.", err)
	default:
		return domain.NewError(domain.KindInternal, "", err)
	}
}

var _ ports.MetadataSource = (*SpotifySource)(nil)
