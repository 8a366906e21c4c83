package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// TrackEndReason represents why a track ended.
type TrackEndReason string

const (
	// TrackEndFinished means the track finished normally.
	TrackEndFinished TrackEndReason = "finished"
	// TrackEndLoadFailed means the track failed to load.
	TrackEndLoadFailed TrackEndReason = "load_failed"
	// TrackEndStopped means the track was stopped by the user.
	TrackEndStopped TrackEndReason = "stopped"
	// TrackEndReplaced means the track was replaced by another.
	TrackEndReplaced TrackEndReason = "replaced"
	// TrackEndCleanup means the track was cleaned up.
	TrackEndCleanup TrackEndReason = "cleanup"
)

// ShouldAdvanceQueue returns true if this end reason should advance the queue.
func (r TrackEndReason) ShouldAdvanceQueue() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}

// PlaybackStartedEvent is published when a track starts playing.
type PlaybackStartedEvent struct {
	GuildID               snowflake.ID
	Track                 *Track
	NotificationChannelID snowflake.ID
}

// TrackFailedEvent is published when a dequeued track could not be streamed.
type TrackFailedEvent struct {
	GuildID               snowflake.ID
	Track                 *Track
	NotificationChannelID snowflake.ID
	Err                   error
}

// StopReason represents why playback settled at Idle.
type StopReason string

const (
	// StopReasonExhausted means the queue ran out.
	StopReasonExhausted StopReason = "exhausted"
	// StopReasonStopped means a user stopped playback.
	StopReasonStopped StopReason = "stopped"
	// StopReasonDisconnected means the voice connection was lost.
	StopReasonDisconnected StopReason = "disconnected"
	// StopReasonIdle means the bot left after being idle too long.
	StopReasonIdle StopReason = "idle"
	// StopReasonLeft means a user made the bot leave.
	StopReasonLeft StopReason = "left"
)

// PlaybackStoppedEvent is published when playback settles at Idle or the guild is torn down.
// Failures holds the tracks dropped since the last successful start.
type PlaybackStoppedEvent struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Reason                StopReason
	Failures              FailureReport
}
