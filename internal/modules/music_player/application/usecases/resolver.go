package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// ResolverConfig contains limits applied while resolving requests.
type ResolverConfig struct {
	Timeout       time.Duration // whole request
	EntryTimeout  time.Duration // one playlist entry
	PlaylistLimit int
	SearchLimit   int
	Concurrency   int // playlist entries matched in parallel
}

// DefaultResolverConfig returns the configuration used when none is given.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Timeout:       20 * time.Second,
		EntryTimeout:  8 * time.Second,
		PlaylistLimit: 50,
		SearchLimit:   5,
		Concurrency:   4,
	}
}

// Resolution is the outcome of resolving one request.
type Resolution struct {
	Kind           domain.QueryKind
	Tracks         []*domain.Track
	Failures       domain.FailureReport
	CollectionName string
	Truncated      int // collection entries beyond the playlist limit
}

// ResolverService turns track requests into playable tracks.
type ResolverService struct {
	audio    ports.AudioSource
	metadata ports.MetadataSource // nil disables metadata-only links
	matcher  Matcher
	retry    RetryPolicy
	cfg      ResolverConfig
}

// NewResolverService creates a new ResolverService. metadata may be nil.
func NewResolverService(
	audio ports.AudioSource,
	metadata ports.MetadataSource,
	matcher Matcher,
	retry RetryPolicy,
	cfg ResolverConfig,
) *ResolverService {
	def := DefaultResolverConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.EntryTimeout <= 0 {
		cfg.EntryTimeout = def.EntryTimeout
	}
	if cfg.PlaylistLimit <= 0 {
		cfg.PlaylistLimit = def.PlaylistLimit
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = def.SearchLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &ResolverService{
		audio:    audio,
		metadata: metadata,
		matcher:  matcher,
		retry:    retry,
		cfg:      cfg,
	}
}

// Resolve classifies the request and resolves it into one or more tracks.
// Collections drop unresolvable entries and report them in Failures; a collection
// without any playable entry fails with NotFound.
func (r *ResolverService) Resolve(ctx context.Context, req domain.TrackRequest) (*Resolution, error) {
	q, err := domain.ParseQuery(req.Input, req.SourceHint)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	slog.Debug("resolving request", "guild", req.GuildID, "query", req.Input, "kind", q.Kind)

	res := &Resolution{Kind: q.Kind}
	switch q.Kind {
	case domain.QueryDirectTrack:
		var track *domain.Track
		track, err = r.resolveDirectTrack(ctx, q, req.RequesterID)
		if err == nil {
			res.Tracks = []*domain.Track{track}
		}
	case domain.QueryDirectPlaylist:
		err = r.resolveDirectPlaylist(ctx, q, req.RequesterID, res)
	case domain.QueryMetadataTrack:
		var track *domain.Track
		track, err = r.resolveMetadataTrack(ctx, q, req.RequesterID)
		if err == nil {
			res.Tracks = []*domain.Track{track}
		}
	case domain.QueryMetadataPlaylist, domain.QueryMetadataAlbum:
		err = r.resolveMetadataCollection(ctx, q, req.RequesterID, res)
	default:
		var track *domain.Track
		track, err = r.resolveSearch(ctx, q, req.RequesterID)
		if err == nil {
			res.Tracks = []*domain.Track{track}
		}
	}
	if err != nil {
		return nil, classify(err)
	}

	if q.Kind.IsCollection() && len(res.Tracks) == 0 {
		return nil, domain.NewError(domain.KindNotFound, "No playable tracks were found in that collection.", nil)
	}

	slog.Debug("resolved request",
		"guild", req.GuildID, "query", req.Input, "count", len(res.Tracks), "failed", res.Failures.Count())
	return res, nil
}

// Suggest returns search candidates for free text. Links yield no suggestions.
func (r *ResolverService) Suggest(ctx context.Context, input string, hint domain.TrackSource) ([]ports.Candidate, error) {
	q, err := domain.ParseQuery(input, hint)
	if err != nil || q.Kind != domain.QueryFreeText {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.EntryTimeout)
	defer cancel()

	var candidates []ports.Candidate
	if q.Source == domain.TrackSourceSpotify && r.metadata != nil {
		candidates, err = retryValue(ctx, r.retry, "metadata search", func(ctx context.Context) ([]ports.Candidate, error) {
			return r.metadata.Search(ctx, q.Text, r.cfg.SearchLimit)
		})
	} else {
		candidates, err = r.searchAudio(ctx, q.Text, q.Source, r.cfg.SearchLimit)
	}
	if err != nil {
		return nil, classify(err)
	}
	return candidates, nil
}

// OpenStream opens an audio stream for a resolved track.
func (r *ResolverService) OpenStream(ctx context.Context, track *domain.Track) (ports.StreamHandle, error) {
	if !track.IsPlayable() {
		return "", domain.NewError(domain.KindNotFound, "The track has no playable source.", nil)
	}
	handle, err := retryValue(ctx, r.retry, "open stream", func(ctx context.Context) (ports.StreamHandle, error) {
		return r.audio.OpenStream(ctx, track.Handle())
	})
	if err != nil {
		return "", classify(err)
	}
	return handle, nil
}

func (r *ResolverService) resolveSearch(ctx context.Context, q domain.Query, requester snowflake.ID) (*domain.Track, error) {
	if q.Source == domain.TrackSourceSpotify {
		if r.metadata == nil {
			// Without a metadata source the music catalog gives the closest results.
			q.Source = domain.TrackSourceYouTubeMusic
		} else {
			return r.resolveMetadataSearch(ctx, q, requester)
		}
	}

	candidates, err := r.searchAudio(ctx, q.Text, q.Source, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, noResults(q.Text)
	}
	return newTrack(candidates[0], q.Source, domain.SourceKindSearch, requester), nil
}

func (r *ResolverService) resolveMetadataSearch(ctx context.Context, q domain.Query, requester snowflake.ID) (*domain.Track, error) {
	results, err := retryValue(ctx, r.retry, "metadata search", func(ctx context.Context) ([]ports.Candidate, error) {
		return r.metadata.Search(ctx, q.Text, 1)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, noResults(q.Text)
	}
	return r.matchTrack(ctx, results[0], requester)
}

func (r *ResolverService) resolveDirectTrack(ctx context.Context, q domain.Query, requester snowflake.ID) (*domain.Track, error) {
	c, err := retryValue(ctx, r.retry, "fetch metadata", func(ctx context.Context) (ports.Candidate, error) {
		return r.audio.FetchMetadata(ctx, q.ID)
	})
	if err != nil {
		return nil, err
	}
	return newTrack(c, q.Source, domain.SourceKindDirect, requester), nil
}

func (r *ResolverService) resolveDirectPlaylist(
	ctx context.Context,
	q domain.Query,
	requester snowflake.ID,
	res *Resolution,
) error {
	col, err := retryValue(ctx, r.retry, "fetch playlist", func(ctx context.Context) (ports.Collection, error) {
		return r.audio.FetchPlaylist(ctx, q.ID, r.cfg.PlaylistLimit)
	})
	if err != nil {
		return err
	}

	res.CollectionName = col.Name
	res.Truncated = col.Truncated
	for _, entry := range col.Entries {
		if entry.ID == "" {
			res.Failures.Add(entryLabel(entry), nil, domain.NewError(domain.KindNotFound, "The video is unavailable.", nil))
			continue
		}
		res.Tracks = append(res.Tracks, newTrack(entry, q.Source, domain.SourceKindDirect, requester))
	}
	for range col.Skipped {
		res.Failures.Add("Unavailable video", nil, domain.NewError(domain.KindPermissionDenied, "The video is private or deleted.", nil))
	}
	return nil
}

func (r *ResolverService) resolveMetadataTrack(ctx context.Context, q domain.Query, requester snowflake.ID) (*domain.Track, error) {
	if r.metadata == nil {
		return nil, ErrSpotifyDisabled
	}
	target, err := retryValue(ctx, r.retry, "fetch metadata", func(ctx context.Context) (ports.Candidate, error) {
		return r.metadata.FetchMetadata(ctx, q.ID)
	})
	if err != nil {
		return nil, err
	}
	if target.URL == "" {
		target.URL = q.URL
	}
	return r.matchTrack(ctx, target, requester)
}

func (r *ResolverService) resolveMetadataCollection(
	ctx context.Context,
	q domain.Query,
	requester snowflake.ID,
	res *Resolution,
) error {
	if r.metadata == nil {
		return ErrSpotifyDisabled
	}

	col, err := retryValue(ctx, r.retry, "fetch collection", func(ctx context.Context) (ports.Collection, error) {
		if q.Kind == domain.QueryMetadataAlbum {
			return r.metadata.FetchAlbum(ctx, q.ID, r.cfg.PlaylistLimit)
		}
		return r.metadata.FetchPlaylist(ctx, q.ID, r.cfg.PlaylistLimit)
	})
	if err != nil {
		return err
	}

	res.CollectionName = col.Name
	res.Truncated = col.Truncated
	for range col.Skipped {
		res.Failures.Add("Unavailable track", nil, domain.NewError(domain.KindNotFound, "The track is unavailable.", nil))
	}

	tracks, failures, err := r.matchEntries(ctx, col.Entries, requester)
	if err != nil {
		return err
	}
	res.Tracks = tracks
	res.Failures.Merge(failures)
	return nil
}

type entryResult struct {
	track *domain.Track
	err   error
}

// matchEntries cross-resolves metadata entries in parallel and returns the matched
// tracks in source order. Entries are bounded by the entry timeout; only cancellation
// of ctx itself fails the whole call.
func (r *ResolverService) matchEntries(
	ctx context.Context,
	entries []ports.Candidate,
	requester snowflake.ID,
) ([]*domain.Track, domain.FailureReport, error) {
	results := make([]entryResult, len(entries))
	sem := make(chan struct{}, r.cfg.Concurrency)

	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].err = ctx.Err()
				return
			}

			entryCtx, cancel := context.WithTimeout(ctx, r.cfg.EntryTimeout)
			defer cancel()
			results[i].track, results[i].err = r.matchTrack(entryCtx, entry, requester)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return nil, domain.FailureReport{}, err
	}

	var failures domain.FailureReport
	tracks := make([]*domain.Track, 0, len(entries))
	for i, res := range results {
		if res.err != nil {
			slog.Debug("dropping unresolvable entry", "track", entryLabel(entries[i]), "error", res.err)
			failures.Add(entryLabel(entries[i]), nil, classify(res.err))
			continue
		}
		tracks = append(tracks, res.track)
	}
	// The request deadline, not the entries, is what failed.
	if len(tracks) == 0 && len(entries) > 0 && ctx.Err() != nil {
		return nil, domain.FailureReport{}, contextError(ctx.Err(), nil)
	}
	return tracks, failures, nil
}

// matchTrack finds the direct-source track that best represents a metadata-only one.
// The music catalog is tried first, then the general video search.
func (r *ResolverService) matchTrack(ctx context.Context, target ports.Candidate, requester snowflake.ID) (*domain.Track, error) {
	query := BuildMatchQuery(target.Title, target.Artist)

	var lastErr error
	for _, source := range []domain.TrackSource{domain.TrackSourceYouTubeMusic, domain.TrackSourceYouTube} {
		if source == domain.TrackSourceYouTubeMusic {
			if _, ok := r.audio.(ports.MusicSearcher); !ok {
				continue
			}
		}

		candidates, err := r.searchAudio(ctx, query, source, r.cfg.SearchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		// A search that answered makes an earlier failure irrelevant.
		lastErr = nil

		if i, score := r.matcher.Best(target, candidates); i >= 0 {
			slog.Debug("matched metadata track",
				"track", target.Title, "candidate", candidates[i].Title, "score", score)
			return newMatchedTrack(target, candidates[i], source, requester), nil
		}
	}

	if lastErr != nil && domain.KindOf(lastErr) != domain.KindNotFound {
		return nil, lastErr
	}
	return nil, domain.NewError(domain.KindNotFound, fmt.Sprintf("No playable match was found for %q.", entryLabel(target)), nil)
}

func (r *ResolverService) searchAudio(ctx context.Context, text string, source domain.TrackSource, limit int) ([]ports.Candidate, error) {
	if source == domain.TrackSourceYouTubeMusic {
		if ms, ok := r.audio.(ports.MusicSearcher); ok {
			return retryValue(ctx, r.retry, "music search", func(ctx context.Context) ([]ports.Candidate, error) {
				return ms.SearchMusic(ctx, text, limit)
			})
		}
	}
	return retryValue(ctx, r.retry, "search", func(ctx context.Context) ([]ports.Candidate, error) {
		return r.audio.Search(ctx, text, limit)
	})
}

func trackParams(
	c ports.Candidate,
	source domain.TrackSource,
	kind domain.SourceKind,
	requester snowflake.ID,
) domain.TrackParams {
	return domain.TrackParams{
		Title:       c.Title,
		Artist:      c.Artist,
		Duration:    c.Duration,
		URI:         c.URL,
		ArtworkURL:  c.ArtworkURL,
		Handle:      c.ID,
		Source:      source,
		Kind:        kind,
		IsStream:    c.IsStream,
		RequesterID: requester,
	}
}

func newTrack(c ports.Candidate, source domain.TrackSource, kind domain.SourceKind, requester snowflake.ID) *domain.Track {
	return domain.NewTrack(trackParams(c, source, kind, requester))
}

// newMatchedTrack streams from match but displays the metadata source's title and
// artist, which are cleaner than upload titles.
func newMatchedTrack(target, match ports.Candidate, source domain.TrackSource, requester snowflake.ID) *domain.Track {
	p := trackParams(match, source, domain.SourceKindMetadata, requester)
	p.MatchedFrom = target.URL
	if target.Title != "" {
		p.Title = target.Title
	}
	if target.Artist != "" {
		p.Artist = target.Artist
	}
	if target.ArtworkURL != "" {
		p.ArtworkURL = target.ArtworkURL
	}
	return domain.NewTrack(p)
}

func entryLabel(c ports.Candidate) string {
	switch {
	case c.Title != "" && c.Artist != "":
		return c.Artist + " - " + c.Title
	case c.Title != "":
		return c.Title
	case c.ID != "":
		return c.ID
	default:
		return domain.UnknownTitle
	}
}

func noResults(query string) error {
	return domain.NewError(domain.KindNotFound, fmt.Sprintf("No results found for %q.", query), nil)
}

// classify makes sure err carries a kind and a user-facing reason.
func classify(err error) error {
	var de *domain.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, "The source took too long to respond.", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return domain.NewError(domain.KindInternal, "", err)
	}
}
