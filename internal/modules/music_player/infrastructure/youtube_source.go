package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
	"golang.org/x/net/proxy"
)

const (
	youtubeWatchURL = "https://www.youtube.com/watch?v="
	opusItag        = 251

	youtubeHTTPTimeout = 15 * time.Second
)

// YouTubeConfig contains YouTube backend configuration.
type YouTubeConfig struct {
	// Proxy is an optional http, https or socks5 proxy URL used for every request.
	Proxy string

	// DisableYtdlp turns off the yt-dlp fallbacks.
	DisableYtdlp bool
}

// YouTubeSource is the direct-audio source backed by YouTube.
// Videos and playlists are read with kkdai/youtube, searches go through ytsearch and
// YouTube Music, and yt-dlp is used when the native clients fail.
type YouTubeSource struct {
	client *youtube.Client
	search *ytsearch.Client
	proxy  string
	ytdlp  bool
}

// NewYouTubeSource creates a new YouTubeSource.
func NewYouTubeSource(cfg YouTubeConfig) (*YouTubeSource, error) {
	httpClient, err := newHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	return &YouTubeSource{
		client: &youtube.Client{HTTPClient: httpClient},
		search: ytsearch.NewClient(httpClient),
		proxy:  cfg.Proxy,
		ytdlp:  !cfg.DisableYtdlp,
	}, nil
}

// newHTTPClient returns an HTTP client that routes through proxyStr when set.
func newHTTPClient(proxyStr string) (*http.Client, error) {
	if proxyStr == "" {
		return &http.Client{Timeout: youtubeHTTPTimeout}, nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		transport = &http.Transport{DialContext: contextDialer.DialContext}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}

	slog.Info("using proxy for YouTube requests", "scheme", proxyURL.Scheme, "host", proxyURL.Host)
	return &http.Client{Timeout: youtubeHTTPTimeout, Transport: transport}, nil
}

// Search returns up to limit videos matching query.
func (s *YouTubeSource) Search(ctx context.Context, query string, limit int) ([]ports.Candidate, error) {
	res, err := s.search.Search(ctx, query)
	if err == nil {
		candidates := make([]ports.Candidate, 0, min(limit, len(res.Results)))
		for _, v := range res.Results {
			if len(candidates) >= limit {
				break
			}
			if v.VideoID == "" {
				continue
			}
			candidates = append(candidates, ports.Candidate{
				ID:         v.VideoID,
				Title:      v.Title,
				Artist:     v.Channel,
				Duration:   parseClockDuration(v.Duration),
				URL:        youtubeWatchURL + v.VideoID,
				ArtworkURL: thumbnailURL(v.VideoID),
				IsStream:   v.Duration == "",
			})
		}
		return candidates, nil
	}

	if !s.ytdlp {
		return nil, classifyYouTubeError(err)
	}
	slog.Debug("native search failed, falling back to yt-dlp", "query", query, "error", err)

	entries, _, fallbackErr := s.ytdlpList(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query), limit)
	if fallbackErr != nil {
		return nil, classifyYouTubeError(err)
	}
	return entries, nil
}

// SearchMusic searches the YouTube Music catalog.
func (s *YouTubeSource) SearchMusic(ctx context.Context, query string, limit int) ([]ports.Candidate, error) {
	type result struct {
		candidates []ports.Candidate
		err        error
	}
	done := make(chan result, 1)
	go func() {
		res, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			done <- result{err: err}
			return
		}

		candidates := make([]ports.Candidate, 0, limit)
		for _, t := range res.Tracks {
			if len(candidates) >= limit {
				break
			}
			if t.VideoID == "" {
				continue
			}
			artists := make([]string, 0, len(t.Artists))
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			candidates = append(candidates, ports.Candidate{
				ID:         t.VideoID,
				Title:      t.Title,
				Artist:     strings.Join(artists, ", "),
				Duration:   time.Duration(t.Duration) * time.Second,
				URL:        youtubeWatchURL + t.VideoID,
				ArtworkURL: thumbnailURL(t.VideoID),
			})
		}
		done <- result{candidates: candidates}
	}()

	// The YouTube Music client takes no context.
	select {
	case <-ctx.Done():
		return nil, classifyYouTubeError(ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, classifyYouTubeError(r.err)
		}
		return r.candidates, nil
	}
}

// FetchMetadata returns the video with the given ID.
func (s *YouTubeSource) FetchMetadata(ctx context.Context, id string) (ports.Candidate, error) {
	video, err := s.client.GetVideoContext(ctx, id)
	if err != nil {
		return ports.Candidate{}, classifyYouTubeError(err)
	}

	artwork := thumbnailURL(video.ID)
	if n := len(video.Thumbnails); n > 0 {
		artwork = video.Thumbnails[n-1].URL
	}

	return ports.Candidate{
		ID:         video.ID,
		Title:      video.Title,
		Artist:     video.Author,
		Duration:   video.Duration,
		URL:        youtubeWatchURL + video.ID,
		ArtworkURL: artwork,
		IsStream:   video.Duration == 0,
	}, nil
}

// FetchPlaylist returns up to limit entries of the playlist with the given ID.
func (s *YouTubeSource) FetchPlaylist(ctx context.Context, id string, limit int) (ports.Collection, error) {
	playlist, err := s.client.GetPlaylistContext(ctx, "https://www.youtube.com/playlist?list="+id)
	if err != nil {
		if !s.ytdlp || errors.Is(err, youtube.ErrInvalidPlaylist) {
			return ports.Collection{}, classifyYouTubeError(err)
		}
		slog.Debug("native playlist fetch failed, falling back to yt-dlp", "playlist", id, "error", err)
		return s.ytdlpPlaylist(ctx, id, limit, err)
	}

	collection := ports.Collection{ID: playlist.ID, Name: playlist.Title}
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" || isUnavailableTitle(entry.Title) {
			collection.Skipped++
			continue
		}
		if len(collection.Entries) >= limit {
			collection.Truncated++
			continue
		}
		collection.Entries = append(collection.Entries, ports.Candidate{
			ID:         entry.ID,
			Title:      entry.Title,
			Artist:     entry.Author,
			Duration:   entry.Duration,
			URL:        youtubeWatchURL + entry.ID,
			ArtworkURL: thumbnailURL(entry.ID),
		})
	}
	return collection, nil
}

// OpenStream returns a direct audio URL for the video, preferring Opus.
func (s *YouTubeSource) OpenStream(ctx context.Context, id string) (ports.StreamHandle, error) {
	video, err := s.client.GetVideoContext(ctx, id)
	if err == nil {
		format := bestAudioFormat(video.Formats)
		if format == nil {
			err = domain.NewError(domain.KindNotFound, "The video has no audio stream.", nil)
		} else {
			streamURL, urlErr := s.client.GetStreamURLContext(ctx, video, format)
			if urlErr == nil {
				return ports.StreamHandle(streamURL), nil
			}
			err = urlErr
		}
	}

	// Restricted videos fail the same way through yt-dlp.
	if !s.ytdlp || domain.KindOf(classifyYouTubeError(err)) == domain.KindPermissionDenied {
		return "", classifyYouTubeError(err)
	}
	slog.Debug("native stream lookup failed, falling back to yt-dlp", "track", id, "error", err)

	res, fallbackErr := s.newYtdlp().
		Format("bestaudio[acodec=opus]/bestaudio").
		Print("%(url)s").
		NoCheckFormats().
		Run(ctx, youtubeWatchURL+id)
	if fallbackErr != nil {
		return "", classifyYouTubeError(err)
	}
	streamURL := strings.TrimSpace(res.Stdout)
	if streamURL == "" {
		return "", classifyYouTubeError(err)
	}
	return ports.StreamHandle(streamURL), nil
}

// bestAudioFormat picks itag 251, then any Opus format, then the best remaining audio.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	audio := formats.WithAudioChannels().Type("audio")
	if len(audio) == 0 {
		audio = formats.WithAudioChannels()
	}
	if len(audio) == 0 {
		return nil
	}

	for i := range audio {
		if audio[i].ItagNo == opusItag {
			return &audio[i]
		}
	}
	for i := range audio {
		if strings.Contains(audio[i].MimeType, "opus") {
			return &audio[i]
		}
	}
	audio.Sort()
	return &audio[0]
}

func (s *YouTubeSource) newYtdlp() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if s.proxy != "" {
		cmd.Proxy(s.proxy)
	}
	return cmd
}

// ytdlpFields is the flat-playlist output template parsed by parseYtdlpEntries.
const ytdlpFields = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(playlist_title)s"

// ytdlpList lists up to limit entries of target without resolving each video.
func (s *YouTubeSource) ytdlpList(ctx context.Context, target string, limit int) ([]ports.Candidate, string, error) {
	res, err := s.newYtdlp().
		FlatPlaylist().
		Print(ytdlpFields).
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Run(ctx, target)
	if err != nil {
		return nil, "", err
	}
	entries, title := parseYtdlpEntries(res.Stdout)
	return entries, title, nil
}

func (s *YouTubeSource) ytdlpPlaylist(ctx context.Context, id string, limit int, cause error) (ports.Collection, error) {
	// One extra entry tells whether the playlist was cut off.
	entries, title, err := s.ytdlpList(ctx, "https://www.youtube.com/playlist?list="+id, limit+1)
	if err != nil {
		return ports.Collection{}, classifyYouTubeError(cause)
	}

	collection := ports.Collection{ID: id, Name: title}
	for _, entry := range entries {
		if isUnavailableTitle(entry.Title) {
			collection.Skipped++
			continue
		}
		if len(collection.Entries) >= limit {
			collection.Truncated++
			continue
		}
		collection.Entries = append(collection.Entries, entry)
	}
	return collection, nil
}

// parseYtdlpEntries parses lines printed with ytdlpFields. It returns the entries and
// the playlist title, if any.
func parseYtdlpEntries(stdout string) ([]ports.Candidate, string) {
	var (
		entries []ports.Candidate
		title   string
	)
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 4 || !isVideoID(fields[0]) {
			continue
		}
		if title == "" && len(fields) > 4 && fields[4] != "NA" {
			title = fields[4]
		}

		duration, _ := time.ParseDuration(fields[3] + "s")
		artist := fields[2]
		if artist == "NA" {
			artist = ""
		}
		entries = append(entries, ports.Candidate{
			ID:         fields[0],
			Title:      fields[1],
			Artist:     artist,
			Duration:   duration,
			URL:        youtubeWatchURL + fields[0],
			ArtworkURL: thumbnailURL(fields[0]),
			IsStream:   duration == 0,
		})
	}
	return entries, title
}

func isVideoID(id string) bool {
	if len(id) != 11 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

func isUnavailableTitle(title string) bool {
	return title == "[Deleted video]" || title == "[Private video]"
}

func thumbnailURL(id string) string {
	return "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"
}

// parseClockDuration parses durations like "3:20" or "1:05:20". Invalid input gives zero.
func parseClockDuration(s string) time.Duration {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}

	var total time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + time.Duration(n)
	}
	return total * time.Second
}

// classifyYouTubeError maps YouTube client failures onto error kinds.
func classifyYouTubeError(err error) error {
	var (
		de     *domain.Error
		status youtube.ErrUnexpectedStatusCode
		netErr net.Error
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, "YouTube took too long to respond.", err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, youtube.ErrVideoPrivate):
		return domain.NewError(domain.KindPermissionDenied, "This video is private.", err)
	case errors.Is(err, youtube.ErrLoginRequired):
		return domain.NewError(domain.KindPermissionDenied, "This video is age restricted.", err)
	case errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return domain.NewError(domain.KindPermissionDenied, "This video cannot be played outside YouTube.", err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID), errors.Is(err, youtube.ErrVideoIDMinLength):
		return domain.NewError(domain.KindInvalidInput, "That is not a valid YouTube video ID.", err)
	case errors.Is(err, youtube.ErrInvalidPlaylist):
		return domain.NewError(domain.KindNotFound, "The playlist does not exist or is private.", err)
	case errors.As(err, &status):
		return classifyStatusCode(int(status), err)
	case errors.As(err, &netErr):
		return domain.NewError(domain.KindUpstreamUnavailable, "YouTube could not be reached.", err)
	case strings.Contains(err.Error(), "status: ERROR"), strings.Contains(err.Error(), "Video unavailable"):
		return domain.NewError(domain.KindNotFound, "The video is unavailable.", err)
	default:
		return domain.NewError(domain.KindInternal, "", err)
	}
}

// classifyStatusCode maps an HTTP status returned by a backend onto an error kind.
func classifyStatusCode(code int, err error) error {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.RateLimited(0, err)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return domain.NewError(domain.KindPermissionDenied, "The source refused access to this item.", err)
	case code == http.StatusNotFound:
		return domain.NewError(domain.KindNotFound, "The item does not exist.", err)
	case code >= 500:
		return domain.NewError(domain.KindUpstreamUnavailable, "The source is temporarily unavailable.", err)
	default:
		return domain.NewError(domain.KindInternal, "", err)
	}
}

var (
	_ ports.AudioSource   = (*YouTubeSource)(nil)
	_ ports.MusicSearcher = (*YouTubeSource)(nil)
)
