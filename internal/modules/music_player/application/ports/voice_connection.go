package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// VoiceFlags are the self-mute and self-deafen flags sent with a voice state update.
type VoiceFlags struct {
	Mute bool
	Deaf bool
}

// VoiceConnection defines the interface for voice channel connection operations.
type VoiceConnection interface {
	// JoinChannel connects the bot to the specified voice channel and returns once
	// the transport can stream to it.
	JoinChannel(ctx context.Context, guildID, channelID snowflake.ID, flags VoiceFlags) error

	// LeaveChannel disconnects the bot from the voice channel.
	LeaveChannel(ctx context.Context, guildID snowflake.ID) error

	// UpdateVoiceFlags changes the self-mute and self-deafen flags of the connection.
	UpdateVoiceFlags(ctx context.Context, guildID, channelID snowflake.ID, flags VoiceFlags) error
}
