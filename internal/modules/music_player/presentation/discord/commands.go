package discord

import "github.com/bwmarrin/discordgo"

// sourceOption lets users pick where free-text queries are searched.
func sourceOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "source",
		Description: "Where to search when the query is not a link (defaults to YouTube)",
		Required:    false,
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "YouTube", Value: "youtube"},
			{Name: "YouTube Music", Value: "music"},
			{Name: "Spotify", Value: "spotify"},
		},
	}
}

func queryOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "query",
		Description:  "URL or search term",
		Required:     true,
		Autocomplete: true,
	}
}

// Commands returns all slash commands for the music player module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "join",
			Description: "Join a voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Voice channel to join (defaults to your current channel)",
					Required:    false,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildVoice,
						discordgo.ChannelTypeGuildStageVoice,
					},
				},
			},
		},
		{
			Name:        "leave",
			Description: "Leave the voice channel and forget the queue",
		},
		{
			Name:        "play",
			Description: "Add a track, playlist or album to the end of the queue",
			Options:     []*discordgo.ApplicationCommandOption{queryOption(), sourceOption()},
		},
		{
			Name:        "playnext",
			Description: "Add a track, playlist or album to the front of the queue",
			Options:     []*discordgo.ApplicationCommandOption{queryOption(), sourceOption()},
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "stop",
			Description: "Stop playback and clear the queue",
		},
		{
			Name:        "pause",
			Description: "Pause playback",
		},
		{
			Name:        "resume",
			Description: "Resume playback",
		},
		{
			Name:        "queue",
			Description: "Manage the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Show the current queue",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "page",
							Description: "Page number",
							Required:    false,
							MinValue:    floatPtr(1),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a track from the queue",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionInteger,
							Name:         "position",
							Description:  "Position of the track to remove (as shown in queue list)",
							Required:     true,
							MinValue:     floatPtr(1),
							Autocomplete: true,
						},
					},
				},
			},
		},
		{
			Name:        "shuffle",
			Description: "Shuffle the upcoming tracks",
		},
		{
			Name:        "mute",
			Description: "Mute the bot",
		},
		{
			Name:        "unmute",
			Description: "Unmute the bot",
		},
		{
			Name:        "deafen",
			Description: "Deafen the bot",
		},
		{
			Name:        "undeafen",
			Description: "Undeafen the bot",
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
