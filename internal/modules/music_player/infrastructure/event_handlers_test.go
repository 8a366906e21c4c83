package infrastructure

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

const eventTimeout = time.Second

// mockNotifier is a test double for ports.NotificationSender.
type mockNotifier struct {
	mu              sync.Mutex
	sentNowPlaying  []*ports.NowPlayingInfo
	sentErrors      []string
	sentInfos       []string
	deletedMessages []snowflake.ID
	lastMessageID   snowflake.ID

	sendNowPlayingErr error

	// calls receives the name of every method call.
	calls chan string
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{calls: make(chan string, 100)}
}

func (m *mockNotifier) SendNowPlaying(
	_ snowflake.ID,
	info *ports.NowPlayingInfo,
) (snowflake.ID, error) {
	m.mu.Lock()
	defer func() { m.calls <- "now_playing" }()
	defer m.mu.Unlock()
	if m.sendNowPlayingErr != nil {
		return 0, m.sendNowPlayingErr
	}
	m.sentNowPlaying = append(m.sentNowPlaying, info)
	m.lastMessageID++
	return m.lastMessageID, nil
}

func (m *mockNotifier) DeleteMessage(_ snowflake.ID, messageID snowflake.ID) error {
	m.mu.Lock()
	defer func() { m.calls <- "delete" }()
	defer m.mu.Unlock()
	m.deletedMessages = append(m.deletedMessages, messageID)
	return nil
}

func (m *mockNotifier) SendError(_ snowflake.ID, message string) error {
	m.mu.Lock()
	defer func() { m.calls <- "error" }()
	defer m.mu.Unlock()
	m.sentErrors = append(m.sentErrors, message)
	return nil
}

func (m *mockNotifier) SendInfo(_ snowflake.ID, message string) error {
	m.mu.Lock()
	defer func() { m.calls <- "info" }()
	defer m.mu.Unlock()
	m.sentInfos = append(m.sentInfos, message)
	return nil
}

// expectCalls waits for the given sequence of notifier calls.
func (m *mockNotifier) expectCalls(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-m.calls:
			if got != w {
				t.Fatalf("expected call %q, got %q", w, got)
			}
		case <-time.After(eventTimeout):
			t.Fatalf("timed out waiting for call %q", w)
		}
	}
}

type mockMembers struct{}

func (mockMembers) Member(_, userID snowflake.ID) (*ports.MemberInfo, error) {
	if userID == 999 {
		return nil, errors.New("unknown member")
	}
	return &ports.MemberInfo{DisplayName: "Listener", AvatarURL: "https://cdn.example/avatar.png"}, nil
}

func (mockMembers) UserVoiceChannel(_, _ snowflake.ID) (snowflake.ID, bool, error) {
	return 0, false, nil
}

func mockTrack(title string, requester snowflake.ID) *domain.Track {
	return domain.NewTrack(domain.TrackParams{
		Title:       title,
		Artist:      "Artist",
		Duration:    3 * time.Minute,
		Handle:      "dQw4w9WgXcQ",
		Source:      domain.TrackSourceYouTube,
		RequesterID: requester,
	})
}

func startNotificationHandler(t *testing.T) (*ChannelEventBus, *mockNotifier) {
	t.Helper()
	bus := NewChannelEventBus(10)
	t.Cleanup(bus.Close)

	notifier := newMockNotifier()
	NewNotificationEventHandler(notifier, bus, mockMembers{}).Start()
	return bus, notifier
}

func TestNotificationEventHandler_PlaybackStarted_SendsNowPlaying(t *testing.T) {
	bus, notifier := startNotificationHandler(t)

	bus.PublishPlaybackStarted(domain.PlaybackStartedEvent{
		GuildID:               1,
		Track:                 mockTrack("Song", 123),
		NotificationChannelID: 200,
	})
	notifier.expectCalls(t, "now_playing")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	sent := notifier.sentNowPlaying[0]
	if sent.Title != "Song" {
		t.Errorf("expected title %q, got %q", "Song", sent.Title)
	}
	if sent.RequesterName != "Listener" {
		t.Errorf("expected requester name Listener, got %q", sent.RequesterName)
	}
	if sent.SourceName != "YouTube" || sent.Duration != "03:00" {
		t.Errorf("unexpected source %q or duration %q", sent.SourceName, sent.Duration)
	}
}

func TestNotificationEventHandler_PlaybackStarted_UnknownRequester(t *testing.T) {
	bus, notifier := startNotificationHandler(t)

	bus.PublishPlaybackStarted(domain.PlaybackStartedEvent{
		GuildID:               1,
		Track:                 mockTrack("Song", 999),
		NotificationChannelID: 200,
	})
	notifier.expectCalls(t, "now_playing")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if name := notifier.sentNowPlaying[0].RequesterName; name != "Unknown" {
		t.Errorf("expected Unknown requester, got %q", name)
	}
}

func TestNotificationEventHandler_ReplacesPreviousMessage(t *testing.T) {
	bus, notifier := startNotificationHandler(t)

	for _, title := range []string{"First", "Second"} {
		bus.PublishPlaybackStarted(domain.PlaybackStartedEvent{
			GuildID:               1,
			Track:                 mockTrack(title, 123),
			NotificationChannelID: 200,
		})
	}
	notifier.expectCalls(t, "now_playing", "delete", "now_playing")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.deletedMessages) != 1 || notifier.deletedMessages[0] != 1 {
		t.Errorf("expected message 1 to be deleted, got %v", notifier.deletedMessages)
	}
}

func TestNotificationEventHandler_TrackFailed_SendsError(t *testing.T) {
	bus, notifier := startNotificationHandler(t)

	bus.PublishTrackFailed(domain.TrackFailedEvent{
		GuildID:               1,
		Track:                 mockTrack("Broken", 123),
		NotificationChannelID: 200,
		Err:                   domain.NewError(domain.KindPermissionDenied, "The video is private.", nil),
	})
	notifier.expectCalls(t, "error")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	msg := notifier.sentErrors[0]
	if !strings.Contains(msg, "Broken") || !strings.Contains(msg, "The video is private.") {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestNotificationEventHandler_PlaybackStopped(t *testing.T) {
	tests := []struct {
		reason   domain.StopReason
		wantInfo bool
	}{
		{domain.StopReasonExhausted, true},
		{domain.StopReasonDisconnected, true},
		{domain.StopReasonIdle, true},
		{domain.StopReasonStopped, false},
		{domain.StopReasonLeft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			bus, notifier := startNotificationHandler(t)

			bus.PublishPlaybackStarted(domain.PlaybackStartedEvent{
				GuildID:               1,
				Track:                 mockTrack("Song", 123),
				NotificationChannelID: 200,
			})
			notifier.expectCalls(t, "now_playing")

			bus.PublishPlaybackStopped(domain.PlaybackStoppedEvent{
				GuildID:               1,
				NotificationChannelID: 200,
				Reason:                tt.reason,
			})
			if tt.wantInfo {
				notifier.expectCalls(t, "delete", "info")
			} else {
				notifier.expectCalls(t, "delete")
			}
		})
	}
}

func TestNotificationEventHandler_NoChannel(t *testing.T) {
	bus, notifier := startNotificationHandler(t)

	bus.PublishTrackFailed(domain.TrackFailedEvent{GuildID: 1, Err: domain.ErrNotFound})
	bus.PublishPlaybackStopped(domain.PlaybackStoppedEvent{GuildID: 1, Reason: domain.StopReasonExhausted})

	select {
	case call := <-notifier.calls:
		t.Errorf("expected no notifications, got %q", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannelEventBus_DeliversToAllHandlers(t *testing.T) {
	bus := NewChannelEventBus(0)
	defer bus.Close()

	got := make(chan string, 4)
	bus.OnPlaybackStopped(func(_ context.Context, e domain.PlaybackStoppedEvent) { got <- "a:" + string(e.Reason) })
	bus.OnPlaybackStopped(func(_ context.Context, e domain.PlaybackStoppedEvent) { got <- "b:" + string(e.Reason) })

	bus.PublishPlaybackStopped(domain.PlaybackStoppedEvent{Reason: domain.StopReasonIdle})

	for _, want := range []string{"a:idle", "b:idle"} {
		select {
		case g := <-got:
			if g != want {
				t.Errorf("expected %q, got %q", want, g)
			}
		case <-time.After(eventTimeout):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestChannelEventBus_PublishAfterClose(t *testing.T) {
	bus := NewChannelEventBus(1)
	called := make(chan struct{}, 1)
	bus.OnTrackFailed(func(context.Context, domain.TrackFailedEvent) { called <- struct{}{} })
	bus.Close()
	bus.Close()

	bus.PublishTrackFailed(domain.TrackFailedEvent{})

	select {
	case <-called:
		t.Error("expected no delivery after close")
	case <-time.After(50 * time.Millisecond):
	}
}
