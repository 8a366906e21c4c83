package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

type nowPlayingMessage struct {
	channelID snowflake.ID
	messageID snowflake.ID
}

// NotificationEventHandler handles events related to Discord notifications.
// It subscribes to playback events to send and delete messages in the guild's
// notification channel.
type NotificationEventHandler struct {
	notifier     ports.NotificationSender
	subscriber   ports.EventSubscriber
	members    ports.MemberDirectory

	mu         sync.Mutex
	nowPlaying map[snowflake.ID]nowPlayingMessage
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
// members may be nil, in which case requesters are not shown.
func NewNotificationEventHandler(
	notifier ports.NotificationSender,
	subscriber ports.EventSubscriber,
	members ports.MemberDirectory,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		notifier:   notifier,
		subscriber: subscriber,
		members:    members,
		nowPlaying: make(map[snowflake.ID]nowPlayingMessage),
	}
}

// Start registers event handlers with the subscriber.
func (h *NotificationEventHandler) Start() {
	h.subscriber.OnPlaybackStarted(h.handlePlaybackStarted)
	h.subscriber.OnTrackFailed(h.handleTrackFailed)
	h.subscriber.OnPlaybackStopped(h.handlePlaybackStopped)

	slog.Debug("notification event handler started")
}

func (h *NotificationEventHandler) handlePlaybackStarted(
	_ context.Context,
	event domain.PlaybackStartedEvent,
) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.deleteNowPlaying(event.GuildID)
	if event.NotificationChannelID == 0 || event.Track == nil {
		return
	}

	track := event.Track
	slog.Debug("sending now playing notification",
		"guild", event.GuildID,
		"track", track.Title(),
	)

	var requesterName, requesterAvatarURL string
	if h.members != nil && track.RequesterID() != 0 {
		member, err := h.members.Member(event.GuildID, track.RequesterID())
		if err != nil {
			slog.Warn("failed to fetch requester info for now playing",
				"guild", event.GuildID,
				"requester", track.RequesterID(),
				"error", err,
			)
			requesterName = "Unknown"
		} else {
			requesterName = member.DisplayName
			requesterAvatarURL = member.AvatarURL
		}
	}

	messageID, err := h.notifier.SendNowPlaying(event.NotificationChannelID, &ports.NowPlayingInfo{
		Identifier:         track.Handle(),
		Title:              track.Title(),
		Artist:             track.Artist(),
		Duration:           track.FormattedDuration(),
		URI:                track.URI(),
		ArtworkURL:         track.ArtworkURL(),
		SourceName:         track.Source().DisplayName(),
		SourceColor:        track.Source().Color(),
		MatchedFrom:        track.MatchedFrom(),
		IsStream:           track.IsStream(),
		RequesterID:        track.RequesterID(),
		RequesterName:      requesterName,
		RequesterAvatarURL: requesterAvatarURL,
		EnqueuedAt:         track.EnqueuedAt(),
	})
	if err != nil {
		slog.Error("failed to send now playing notification",
			"guild", event.GuildID,
			"error", err,
		)
		return
	}

	h.nowPlaying[event.GuildID] = nowPlayingMessage{
		channelID: event.NotificationChannelID,
		messageID: messageID,
	}
}

func (h *NotificationEventHandler) handleTrackFailed(
	_ context.Context,
	event domain.TrackFailedEvent,
) {
	if event.NotificationChannelID == 0 {
		return
	}

	title := domain.UnknownTitle
	if event.Track != nil {
		title = event.Track.Title()
	}
	msg := fmt.Sprintf("Could not play **%s**: %s", title, domain.ReasonOf(event.Err))

	if err := h.notifier.SendError(event.NotificationChannelID, msg); err != nil {
		slog.Warn("failed to send track failure notification",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) handlePlaybackStopped(
	_ context.Context,
	event domain.PlaybackStoppedEvent,
) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.deleteNowPlaying(event.GuildID)
	if event.NotificationChannelID == 0 {
		return
	}

	var msg string
	switch event.Reason {
	case domain.StopReasonExhausted:
		msg = "The queue has ended."
	case domain.StopReasonDisconnected:
		msg = "Disconnected from the voice channel. Use `/join` to continue the queue."
	case domain.StopReasonIdle:
		msg = "Left the voice channel after being idle."
	default:
		// Stop and leave are answered by the command itself.
		return
	}

	if err := h.notifier.SendInfo(event.NotificationChannelID, msg); err != nil {
		slog.Warn("failed to send playback stopped notification",
			"guild", event.GuildID,
			"reason", event.Reason,
			"error", err,
		)
	}
}

// deleteNowPlaying deletes the guild's "Now Playing" message if one was sent.
// h.mu must be held.
func (h *NotificationEventHandler) deleteNowPlaying(guildID snowflake.ID) {
	msg, ok := h.nowPlaying[guildID]
	if !ok {
		return
	}
	delete(h.nowPlaying, guildID)

	slog.Debug("deleting now playing message",
		"guild", guildID,
		"message_id", msg.messageID,
	)
	if err := h.notifier.DeleteMessage(msg.channelID, msg.messageID); err != nil {
		slog.Warn("failed to delete now playing message",
			"guild", guildID,
			"error", err,
		)
	}
}
