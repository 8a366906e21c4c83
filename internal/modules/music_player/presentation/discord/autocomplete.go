package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// maxChoices is the number of autocomplete choices Discord accepts.
const maxChoices = 25

// Suggester returns search candidates for a partially typed query.
type Suggester interface {
	Suggest(ctx context.Context, input string, hint domain.TrackSource) ([]ports.Candidate, error)
}

var _ Suggester = (*usecases.ResolverService)(nil)

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	player    Player
	suggester Suggester
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(player Player, suggester Suggester) *AutocompleteHandler {
	return &AutocompleteHandler{
		player:    player,
		suggester: suggester,
	}
}

// HandlePlay returns search suggestions for the query option of /play and /playnext.
func (h *AutocompleteHandler) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
) []*discordgo.ApplicationCommandOptionChoice {
	ctx := context.Background()

	var query, source string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "query":
			if opt.Focused {
				query = opt.StringValue()
			}
		case "source":
			source = opt.StringValue()
		}
	}

	// Don't search for very short queries
	if len([]rune(query)) < 2 {
		return nil
	}

	candidates, err := h.suggester.Suggest(ctx, query, domain.ParseTrackSource(source))
	if err != nil {
		slog.Debug("autocomplete search failed", "query", query, "error", err)
		return nil
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(candidates), maxChoices))
	for _, c := range candidates {
		if len(choices) == maxChoices {
			break
		}
		// Choice values are limited to 100 characters; fall back to the typed text.
		value := c.URL
		if value == "" || len([]rune(value)) > 100 {
			value = truncate(query, 100)
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(candidateLabel(c), 100),
			Value: value,
		})
	}
	return choices
}

func candidateLabel(c ports.Candidate) string {
	label := c.Title
	if c.Artist != "" {
		label += " - " + c.Artist
	}
	switch {
	case c.IsStream:
		label += " (LIVE)"
	case c.Duration > 0:
		label += " (" + domain.FormatDuration(c.Duration) + ")"
	}
	return label
}

// HandleQueueRemove returns the pending tracks as choices for /queue remove.
func (h *AutocompleteHandler) HandleQueueRemove(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
) []*discordgo.ApplicationCommandOptionChoice {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		slog.Warn("failed to parse guild ID in autocomplete", "error", err, "guild", i.GuildID)
		return nil
	}

	output, err := h.player.ListQueue(ctx, guildID)
	if err != nil {
		return nil
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(output.Pending), maxChoices))
	for idx, track := range output.Pending {
		if idx == maxChoices {
			break
		}
		// Use 1-indexed positions to match queue list display
		displayPos := idx + 1
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%d. %s", displayPos, truncate(track.Title(), 90)),
			Value: displayPos,
		})
	}
	return choices
}

// HandleQueue dispatches autocomplete for /queue subcommands.
func (h *AutocompleteHandler) HandleQueue(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) []*discordgo.ApplicationCommandOptionChoice {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Name == "remove" {
		return h.HandleQueueRemove(s, i)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
