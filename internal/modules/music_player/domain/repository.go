package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// GuildStateRepository holds the state of every guild the bot is active in.
// Implementations only guard the mapping; a GuildState is owned by its guild's worker.
type GuildStateRepository interface {
	// Get returns the state of guildID, or nil if the guild has none.
	Get(guildID snowflake.ID) *GuildState

	// GetOrCreate returns the state of guildID, creating an empty one if needed.
	// created reports whether this call created it.
	GetOrCreate(guildID snowflake.ID) (state *GuildState, created bool)

	// Delete drops the state of guildID. Deleting a missing guild does nothing.
	Delete(guildID snowflake.ID)

	// Len returns the number of guilds with state.
	Len() int
}
