package infrastructure

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
)

var _ ports.MemberDirectory = (*DiscordMembers)(nil)

// DiscordMembers answers member and voice state lookups from a Discord session.
// Members are read from the state cache before falling back to the API.
type DiscordMembers struct {
	session *discordgo.Session
}

// NewDiscordMembers creates a DiscordMembers for session.
func NewDiscordMembers(session *discordgo.Session) *DiscordMembers {
	return &DiscordMembers{session: session}
}

// Member returns display info for a guild member.
func (d *DiscordMembers) Member(guildID, userID snowflake.ID) (*ports.MemberInfo, error) {
	member, err := d.session.State.Member(guildID.String(), userID.String())
	if err != nil {
		member, err = d.session.GuildMember(guildID.String(), userID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch guild member: %w", err)
		}
	}
	return memberInfo(member), nil
}

// UserVoiceChannel returns the voice channel the user is in. Voice states are
// only kept in the state cache, so there is no API fallback.
func (d *DiscordMembers) UserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, bool, error) {
	vs, err := d.session.State.VoiceState(guildID.String(), userID.String())
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return voiceChannelOf(vs)
}

func voiceChannelOf(vs *discordgo.VoiceState) (snowflake.ID, bool, error) {
	if vs == nil || vs.ChannelID == "" {
		return 0, false, nil
	}
	channelID, err := snowflake.Parse(vs.ChannelID)
	if err != nil {
		return 0, false, fmt.Errorf("invalid voice channel ID %q: %w", vs.ChannelID, err)
	}
	return channelID, true, nil
}

func memberInfo(member *discordgo.Member) *ports.MemberInfo {
	info := &ports.MemberInfo{DisplayName: displayName(member)}
	if member.User != nil {
		info.AvatarURL = member.AvatarURL("")
	}
	return info
}

// displayName prefers the guild nickname, then the global display name, then the username.
func displayName(member *discordgo.Member) string {
	switch {
	case member.Nick != "":
		return member.Nick
	case member.User == nil:
		return "Unknown"
	case member.User.GlobalName != "":
		return member.User.GlobalName
	default:
		return member.User.Username
	}
}
