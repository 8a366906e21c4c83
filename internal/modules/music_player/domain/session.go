package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// PlaybackStatus represents the state of a guild's playback session.
type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusJoining
	StatusPlaying
	StatusPaused
	StatusStopping
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusJoining:
		return "joining"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// IsActive returns true if a track is loaded in the transport (playing or paused).
func (s PlaybackStatus) IsActive() bool {
	return s == StatusPlaying || s == StatusPaused
}

// PlaybackSession is the voice-side state of a guild.
type PlaybackSession struct {
	guildID               snowflake.ID
	voiceChannelID        snowflake.ID
	notificationChannelID snowflake.ID
	status                PlaybackStatus
	connected             bool
	muted                 bool
	deafened              bool
	streamID              string // transport stream of the current track
}

// NewPlaybackSession creates a session that is joining the given voice channel.
func NewPlaybackSession(guildID, voiceChannelID, notificationChannelID snowflake.ID) *PlaybackSession {
	return &PlaybackSession{
		guildID:               guildID,
		voiceChannelID:        voiceChannelID,
		notificationChannelID: notificationChannelID,
		status:                StatusJoining,
	}
}

func (s *PlaybackSession) GuildID() snowflake.ID        { return s.guildID }
func (s *PlaybackSession) VoiceChannelID() snowflake.ID { return s.voiceChannelID }
func (s *PlaybackSession) Status() PlaybackStatus       { return s.status }
func (s *PlaybackSession) IsConnected() bool            { return s.connected }
func (s *PlaybackSession) IsMuted() bool                { return s.muted }
func (s *PlaybackSession) IsDeafened() bool             { return s.deafened }
func (s *PlaybackSession) StreamID() string             { return s.streamID }

// NotificationChannelID returns the text channel notifications are sent to.
func (s *PlaybackSession) NotificationChannelID() snowflake.ID {
	return s.notificationChannelID
}

// SetNotificationChannelID updates the notification channel.
func (s *PlaybackSession) SetNotificationChannelID(channelID snowflake.ID) {
	s.notificationChannelID = channelID
}

// SetVoiceChannelID updates the voice channel, e.g. after the bot was moved.
func (s *PlaybackSession) SetVoiceChannelID(channelID snowflake.ID) {
	s.voiceChannelID = channelID
}

// BeginJoin marks the session as joining voiceChannelID.
func (s *PlaybackSession) BeginJoin(voiceChannelID snowflake.ID) {
	s.voiceChannelID = voiceChannelID
	s.status = StatusJoining
}

// MarkConnected records an established voice connection and settles at Idle.
func (s *PlaybackSession) MarkConnected() {
	s.connected = true
	s.status = StatusIdle
	s.streamID = ""
}

// MarkDisconnected records a lost voice connection. Nothing can stream afterwards.
func (s *PlaybackSession) MarkDisconnected() {
	s.connected = false
	s.status = StatusIdle
	s.streamID = ""
}

// StartPlaying records that streamID is now streaming. An empty streamID marks a
// track whose stream is still being opened. It fails unless the session is connected
// and past joining.
func (s *PlaybackSession) StartPlaying(streamID string) error {
	if !s.connected || s.status == StatusJoining {
		return NewError(KindStateConflict, "Not connected to a voice channel.", nil)
	}
	s.status = StatusPlaying
	s.streamID = streamID
	return nil
}

// Pause suspends playback. It fails unless the session is playing.
func (s *PlaybackSession) Pause() error {
	switch s.status {
	case StatusPlaying:
		s.status = StatusPaused
		return nil
	case StatusPaused:
		return NewError(KindStateConflict, "Playback is already paused.", nil)
	default:
		return NewError(KindStateConflict, "Nothing is playing.", nil)
	}
}

// Resume resumes paused playback.
func (s *PlaybackSession) Resume() error {
	if s.status != StatusPaused {
		return NewError(KindStateConflict, "Playback is not paused.", nil)
	}
	s.status = StatusPlaying
	return nil
}

// BeginStopping marks the current stream as being torn down. Only a playing or
// paused session has a stream to stop.
func (s *PlaybackSession) BeginStopping() error {
	switch s.status {
	case StatusPlaying, StatusPaused, StatusStopping:
		s.status = StatusStopping
		return nil
	default:
		return NewError(KindStateConflict, "Nothing is playing.", nil)
	}
}

// SettleIdle marks the session as connected with nothing streaming.
func (s *PlaybackSession) SettleIdle() {
	s.status = StatusIdle
	s.streamID = ""
}

// SetMuted sets the self-mute flag.
func (s *PlaybackSession) SetMuted(muted bool) {
	s.muted = muted
}

// SetDeafened sets the self-deafen flag.
func (s *PlaybackSession) SetDeafened(deafened bool) {
	s.deafened = deafened
}

// GuildState groups everything the bot keeps for one guild.
// Session is nil until the first join.
type GuildState struct {
	GuildID snowflake.ID
	Queue   *Queue
	Session *PlaybackSession
}

// NewGuildState creates the state of a guild with an empty queue and no session.
func NewGuildState(guildID snowflake.ID) *GuildState {
	return &GuildState{GuildID: guildID, Queue: NewQueue()}
}

// Status returns the playback status, Idle when there is no session.
func (g *GuildState) Status() PlaybackStatus {
	if g.Session == nil {
		return StatusIdle
	}
	return g.Session.Status()
}

// IsConnected returns true if the guild has a live voice connection.
func (g *GuildState) IsConnected() bool {
	return g.Session != nil && g.Session.IsConnected()
}
