package usecases

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

const waitTimeout = 2 * time.Second

var (
	testGuildID        = snowflake.ID(1)
	testVoiceChannelID = snowflake.ID(10)
	testTextChannelID  = snowflake.ID(20)
	testUserID         = snowflake.ID(100)
)

// Compile-time checks that the mocks implement the ports.
var (
	_ ports.AudioSource     = (*mockAudioSource)(nil)
	_ ports.MusicSearcher   = (*mockMusicSource)(nil)
	_ ports.MetadataSource  = (*mockMetadataSource)(nil)
	_ ports.AudioTransport  = (*mockTransport)(nil)
	_ ports.VoiceConnection = (*mockVoiceConnection)(nil)
	_ ports.EventPublisher  = (*mockPublisher)(nil)
)

type mockRepository struct {
	mu      sync.Mutex
	states  map[snowflake.ID]*domain.GuildState
	deleted []snowflake.ID
}

func newMockRepository() *mockRepository {
	return &mockRepository{states: make(map[snowflake.ID]*domain.GuildState)}
}

func (m *mockRepository) Get(guildID snowflake.ID) *domain.GuildState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[guildID]
}

func (m *mockRepository) GetOrCreate(guildID snowflake.ID) (*domain.GuildState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[guildID]; ok {
		return state, false
	}
	state := domain.NewGuildState(guildID)
	m.states[guildID] = state
	return state, true
}

func (m *mockRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *mockRepository) Delete(guildID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, guildID)
	delete(m.states, guildID)
}

func (m *mockRepository) deletedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deleted)
}

// mockAudioSource serves videos from a fixed catalog. Search matches catalog titles
// containing the query's words; IDs starting with "bad" fail to open.
type mockAudioSource struct {
	mu        sync.Mutex
	catalog   map[string]ports.Candidate
	playlists map[string]ports.Collection

	searchFunc func(ctx context.Context, query string, limit int) ([]ports.Candidate, error)
	openFunc   func(ctx context.Context, id string) (ports.StreamHandle, error)

	searches []string
	opened   []string
}

func newMockAudioSource(videos ...ports.Candidate) *mockAudioSource {
	m := &mockAudioSource{
		catalog:   make(map[string]ports.Candidate),
		playlists: make(map[string]ports.Collection),
	}
	for _, v := range videos {
		m.catalog[v.ID] = v
	}
	return m
}

func (m *mockAudioSource) Search(ctx context.Context, query string, limit int) ([]ports.Candidate, error) {
	m.mu.Lock()
	m.searches = append(m.searches, query)
	searchFunc := m.searchFunc
	m.mu.Unlock()

	if searchFunc != nil {
		return searchFunc(ctx, query, limit)
	}

	var out []ports.Candidate
	words := strings.Fields(strings.ToLower(query))
	for _, id := range m.sortedIDs() {
		c := m.catalog[id]
		hay := strings.ToLower(c.Artist + " " + c.Title)
		all := true
		for _, w := range words {
			if !strings.Contains(hay, w) {
				all = false
				break
			}
		}
		if all {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockAudioSource) sortedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.catalog))
	for id := range m.catalog {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *mockAudioSource) FetchMetadata(_ context.Context, id string) (ports.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.catalog[id]
	if !ok {
		return ports.Candidate{}, domain.NewError(domain.KindNotFound, "The video does not exist.", nil)
	}
	return c, nil
}

func (m *mockAudioSource) FetchPlaylist(_ context.Context, id string, limit int) (ports.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.playlists[id]
	if !ok {
		return ports.Collection{}, domain.NewError(domain.KindNotFound, "The playlist does not exist.", nil)
	}
	if len(col.Entries) > limit {
		col.Truncated = len(col.Entries) - limit
		col.Entries = col.Entries[:limit]
	}
	return col, nil
}

func (m *mockAudioSource) OpenStream(ctx context.Context, id string) (ports.StreamHandle, error) {
	m.mu.Lock()
	m.opened = append(m.opened, id)
	openFunc := m.openFunc
	m.mu.Unlock()

	if openFunc != nil {
		return openFunc(ctx, id)
	}
	if strings.HasPrefix(id, "bad") {
		return "", domain.NewError(domain.KindPermissionDenied, "The video is private.", nil)
	}
	return ports.StreamHandle("stream:" + id), nil
}

func (m *mockAudioSource) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches)
}

// mockMusicSource adds a music catalog search.
type mockMusicSource struct {
	*mockAudioSource
	musicFunc func(ctx context.Context, query string, limit int) ([]ports.Candidate, error)
}

func (m *mockMusicSource) SearchMusic(ctx context.Context, query string, limit int) ([]ports.Candidate, error) {
	if m.musicFunc != nil {
		return m.musicFunc(ctx, query, limit)
	}
	return m.Search(ctx, query, limit)
}

type mockMetadataSource struct {
	tracks    map[string]ports.Candidate
	playlists map[string]ports.Collection
	searchErr error
}

func (m *mockMetadataSource) Search(_ context.Context, query string, _ int) ([]ports.Candidate, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	for _, c := range m.tracks {
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(query)) {
			return []ports.Candidate{c}, nil
		}
	}
	return nil, nil
}

func (m *mockMetadataSource) FetchMetadata(_ context.Context, id string) (ports.Candidate, error) {
	c, ok := m.tracks[id]
	if !ok {
		return ports.Candidate{}, domain.NewError(domain.KindNotFound, "The track does not exist.", nil)
	}
	return c, nil
}

func (m *mockMetadataSource) FetchPlaylist(_ context.Context, id string, _ int) (ports.Collection, error) {
	col, ok := m.playlists[id]
	if !ok {
		return ports.Collection{}, domain.NewError(domain.KindNotFound, "The playlist does not exist.", nil)
	}
	return col, nil
}

func (m *mockMetadataSource) FetchAlbum(ctx context.Context, id string, limit int) (ports.Collection, error) {
	return m.FetchPlaylist(ctx, id, limit)
}

type mockTransport struct {
	mu       sync.Mutex
	seq      int
	begun    []ports.StreamHandle
	beginErr error
	stops    int
	pauses   int
	resumes  int
}

func (m *mockTransport) BeginStream(_ context.Context, _ snowflake.ID, handle ports.StreamHandle) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return "", m.beginErr
	}
	m.seq++
	m.begun = append(m.begun, handle)
	return fmt.Sprintf("stream-%d", m.seq), nil
}

func (m *mockTransport) StopStream(_ context.Context, _ snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *mockTransport) Pause(_ context.Context, _ snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	return nil
}

func (m *mockTransport) Resume(_ context.Context, _ snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	return nil
}

func (m *mockTransport) lastStreamID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("stream-%d", m.seq)
}

func (m *mockTransport) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

type mockVoiceConnection struct {
	mu      sync.Mutex
	joinErr error
	joined  []snowflake.ID
	left    int
	flags   []ports.VoiceFlags

	// joinStarted, when set, makes JoinChannel close it and block until ctx is done.
	joinStarted chan struct{}
}

func (m *mockVoiceConnection) JoinChannel(ctx context.Context, _, channelID snowflake.ID, _ ports.VoiceFlags) error {
	m.mu.Lock()
	started := m.joinStarted
	m.joinStarted = nil
	m.mu.Unlock()
	if started != nil {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinErr != nil {
		return m.joinErr
	}
	m.joined = append(m.joined, channelID)
	return nil
}

func (m *mockVoiceConnection) LeaveChannel(_ context.Context, _ snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.left++
	return nil
}

func (m *mockVoiceConnection) UpdateVoiceFlags(_ context.Context, _, _ snowflake.ID, flags ports.VoiceFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = append(m.flags, flags)
	return nil
}

func (m *mockVoiceConnection) leftCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.left
}

type mockPublisher struct {
	started chan domain.PlaybackStartedEvent
	failed  chan domain.TrackFailedEvent
	stopped chan domain.PlaybackStoppedEvent
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{
		started: make(chan domain.PlaybackStartedEvent, 100),
		failed:  make(chan domain.TrackFailedEvent, 100),
		stopped: make(chan domain.PlaybackStoppedEvent, 100),
	}
}

func (m *mockPublisher) PublishPlaybackStarted(event domain.PlaybackStartedEvent) { m.started <- event }
func (m *mockPublisher) PublishTrackFailed(event domain.TrackFailedEvent)         { m.failed <- event }
func (m *mockPublisher) PublishPlaybackStopped(event domain.PlaybackStoppedEvent) { m.stopped <- event }

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

// waitForGuilds waits until the player holds state for exactly n guilds.
func waitForGuilds(t *testing.T, p *PlayerService, n int) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for p.ActiveGuilds() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d active guilds, got %d", n, p.ActiveGuilds())
		}
		time.Sleep(time.Millisecond)
	}
}

func video(id, title, artist string, d time.Duration) ports.Candidate {
	return ports.Candidate{
		ID:       id,
		Title:    title,
		Artist:   artist,
		Duration: d,
		URL:      "https://www.youtube.com/watch?v=" + id,
	}
}

// videoID pads s to a valid 11 character video ID.
func videoID(s string) string {
	return (s + "___________")[:11]
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// noRetry is a retry policy without delays.
func noRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

type playerFixture struct {
	repo      *mockRepository
	source    *mockAudioSource
	transport *mockTransport
	voice     *mockVoiceConnection
	publisher *mockPublisher
	resolver  *ResolverService
	player    *PlayerService
}

func newPlayerFixture(t *testing.T, videos ...ports.Candidate) *playerFixture {
	t.Helper()
	f := &playerFixture{
		repo:      newMockRepository(),
		source:    newMockAudioSource(videos...),
		transport: &mockTransport{},
		voice:     &mockVoiceConnection{},
		publisher: newMockPublisher(),
	}
	f.resolver = NewResolverService(f.source, nil, DefaultMatcher(), noRetry(), DefaultResolverConfig())
	f.player = NewPlayerService(f.repo, f.resolver, f.transport, f.voice, f.publisher, PlayerConfig{
		OpenTimeout:      time.Second,
		TransportTimeout: time.Second,
	})
	t.Cleanup(func() { f.player.Close(context.Background()) })
	return f
}

func (f *playerFixture) join(t *testing.T) *JoinOutput {
	t.Helper()
	out, err := f.player.Join(context.Background(), JoinInput{
		GuildID:               testGuildID,
		VoiceChannelID:        testVoiceChannelID,
		NotificationChannelID: testTextChannelID,
	})
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	return out
}

func (f *playerFixture) enqueue(t *testing.T, query string) *EnqueueOutput {
	t.Helper()
	out, err := f.player.Enqueue(context.Background(), EnqueueInput{
		GuildID:     testGuildID,
		RequesterID: testUserID,
		Query:       query,
	})
	if err != nil {
		t.Fatalf("enqueue %q failed: %v", query, err)
	}
	return out
}

func (f *playerFixture) list(t *testing.T) *ListQueueOutput {
	t.Helper()
	out, err := f.player.ListQueue(context.Background(), testGuildID)
	if err != nil {
		t.Fatalf("list queue failed: %v", err)
	}
	return out
}

func pendingTitles(out *ListQueueOutput) []string {
	titles := make([]string, len(out.Pending))
	for i, t := range out.Pending {
		titles[i] = t.Title()
	}
	return titles
}
