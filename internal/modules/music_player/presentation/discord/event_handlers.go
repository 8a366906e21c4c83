package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// VoiceEvents receives changes of the bot's own voice state.
type VoiceEvents interface {
	HandleConnectionLost(guildID snowflake.ID)
	HandleVoiceChannelMoved(guildID, channelID snowflake.ID)
}

// EventHandlers handles Discord gateway events for the music player.
type EventHandlers struct {
	botID  snowflake.ID
	events VoiceEvents
}

// NewEventHandlers creates a new EventHandlers.
func NewEventHandlers(botID snowflake.ID, events VoiceEvents) *EventHandlers {
	return &EventHandlers{
		botID:  botID,
		events: events,
	}
}

// HandleVoiceStateUpdate handles VoiceStateUpdate events for the bot.
func (h *EventHandlers) HandleVoiceStateUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	// Only handle updates for the bot itself
	if event.VoiceState == nil || event.UserID != h.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	if event.ChannelID == "" {
		h.events.HandleConnectionLost(guildID)
		return
	}

	channelID, err := snowflake.Parse(event.ChannelID)
	if err != nil {
		slog.Error("failed to parse channel ID in voice state update", "error", err)
		return
	}
	if event.BeforeUpdate != nil && event.BeforeUpdate.ChannelID == event.ChannelID {
		// Mute, deafen or suppress changes.
		return
	}
	h.events.HandleVoiceChannelMoved(guildID, channelID)
}
