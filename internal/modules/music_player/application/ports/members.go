package ports

import (
	"github.com/disgoorg/snowflake/v2"
)

// MemberInfo is how a guild member is shown in notifications.
type MemberInfo struct {
	DisplayName string
	AvatarURL   string
}

// MemberDirectory looks up guild members.
type MemberDirectory interface {
	// Member returns display info for userID in guildID.
	Member(guildID, userID snowflake.ID) (*MemberInfo, error)

	// UserVoiceChannel returns the voice channel userID is connected to.
	// ok is false when the user is not in a voice channel of the guild.
	UserVoiceChannel(guildID, userID snowflake.ID) (channelID snowflake.ID, ok bool, err error)
}
