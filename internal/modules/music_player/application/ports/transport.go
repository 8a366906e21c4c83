package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// AudioTransport defines the interface for streaming audio into a voice connection.
type AudioTransport interface {
	// BeginStream starts streaming handle and returns an identifier for the stream.
	// Events for the stream carry the same identifier.
	BeginStream(ctx context.Context, guildID snowflake.ID, handle StreamHandle) (streamID string, err error)

	// StopStream halts the current stream.
	StopStream(ctx context.Context, guildID snowflake.ID) error

	// Pause pauses the current stream.
	Pause(ctx context.Context, guildID snowflake.ID) error

	// Resume resumes the paused stream.
	Resume(ctx context.Context, guildID snowflake.ID) error
}

// StreamEvent is delivered by the transport when a stream ends.
type StreamEvent struct {
	GuildID  snowflake.ID
	StreamID string
	Reason   domain.TrackEndReason

	// Failed is set when the stream ended because of an error rather than completion.
	Failed  bool
	Message string
}

// StreamEventHandler receives transport events.
type StreamEventHandler interface {
	HandleStreamEvent(event StreamEvent)
}
