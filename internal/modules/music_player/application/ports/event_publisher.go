package ports

import "github.com/sglre6355/jukebot/internal/modules/music_player/domain"

// EventPublisher defines the interface for publishing events asynchronously.
// Implementations must not block the caller.
type EventPublisher interface {
	PublishPlaybackStarted(event domain.PlaybackStartedEvent)
	PublishTrackFailed(event domain.TrackFailedEvent)
	PublishPlaybackStopped(event domain.PlaybackStoppedEvent)
}
