package usecases

import "github.com/sglre6355/jukebot/internal/modules/music_player/domain"

// Errors for the music player module. All of them classify as StateConflict
// or InvalidInput so callers can branch on the kind.
var (
	// ErrNotConnected is returned when an operation requires the bot to be in a voice channel.
	ErrNotConnected = domain.NewError(domain.KindStateConflict, "Not connected to a voice channel.", nil)

	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = domain.NewError(domain.KindInvalidInput, "You must be in a voice channel.", nil)

	// ErrNotPlaying is returned when no track is currently playing.
	ErrNotPlaying = domain.NewError(domain.KindStateConflict, "Nothing is currently playing.", nil)

	// ErrAlreadyPaused is returned when trying to pause while already paused.
	ErrAlreadyPaused = domain.NewError(domain.KindStateConflict, "Playback is already paused.", nil)

	// ErrNotPaused is returned when trying to resume while not paused.
	ErrNotPaused = domain.NewError(domain.KindStateConflict, "Playback is not paused.", nil)

	// ErrQueueEmpty is returned when the queue is empty.
	ErrQueueEmpty = domain.NewError(domain.KindStateConflict, "The queue is empty.", nil)

	// ErrTrackLoading is returned when the current track is still being opened.
	ErrTrackLoading = domain.NewError(domain.KindStateConflict, "The track is still loading, try again in a moment.", nil)

	// ErrSessionClosed is returned when the guild was torn down while a command was pending.
	ErrSessionClosed = domain.NewError(domain.KindStateConflict, "The player was shut down.", nil)

	// ErrRequestCancelled is returned when stop or leave superseded a pending request.
	ErrRequestCancelled = domain.NewError(domain.KindStateConflict, "The request was cancelled by stop or leave.", nil)

	// ErrSpotifyDisabled is returned for metadata links when no metadata source is configured.
	ErrSpotifyDisabled = domain.NewError(domain.KindInvalidInput, "Spotify links are not supported.", nil)
)
