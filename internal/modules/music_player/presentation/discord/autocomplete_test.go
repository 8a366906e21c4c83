package discord

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

func playAutocomplete(query string, extra ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	opt := stringOption("query", query)
	opt.Focused = true
	return newCommand(discordgo.InteractionApplicationCommandAutocomplete, "play", append([]*discordgo.ApplicationCommandInteractionDataOption{opt}, extra...)...)
}

func TestAutocomplete_HandlePlay(t *testing.T) {
	suggester := &mockSuggester{candidates: []ports.Candidate{
		{Title: "Song", Artist: "Band", Duration: 3 * time.Minute, URL: "https://youtu.be/dQw4w9WgXcQ"},
		{Title: "Radio", IsStream: true, URL: "https://youtu.be/" + strings.Repeat("x", 100)},
	}}
	h := NewAutocompleteHandler(&mockPlayer{}, suggester)

	choices := h.HandlePlay(nil, playAutocomplete("song", stringOption("source", "spotify")))

	if suggester.gotQuery != "song" || suggester.gotHint != domain.TrackSourceSpotify {
		t.Errorf("unexpected suggest call %q %q", suggester.gotQuery, suggester.gotHint)
	}
	if len(choices) != 2 {
		t.Fatalf("expected 2 choices, got %d", len(choices))
	}
	if choices[0].Name != "Song - Band (03:00)" || choices[0].Value != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("unexpected first choice %+v", choices[0])
	}
	if choices[1].Name != "Radio (LIVE)" || choices[1].Value != "song" {
		t.Errorf("expected long URL to fall back to the query, got %+v", choices[1])
	}
}

func TestAutocomplete_HandlePlay_ShortOrFailed(t *testing.T) {
	h := NewAutocompleteHandler(&mockPlayer{}, &mockSuggester{err: errors.New("down")})

	if choices := h.HandlePlay(nil, playAutocomplete("a")); len(choices) != 0 {
		t.Errorf("expected no choices for a short query, got %d", len(choices))
	}
	if choices := h.HandlePlay(nil, playAutocomplete("some song")); len(choices) != 0 {
		t.Errorf("expected no choices when search fails, got %d", len(choices))
	}
}

func TestAutocomplete_HandleQueueRemove(t *testing.T) {
	player := &mockPlayer{listOutput: &usecases.ListQueueOutput{
		QueueSnapshot: domain.QueueSnapshot{Pending: newTracks(30)},
	}}
	h := NewAutocompleteHandler(player, &mockSuggester{})

	i := newCommand(discordgo.InteractionApplicationCommandAutocomplete, "queue", subcommand("remove", intOption("position", 0)))
	choices := h.HandleQueue(nil, i)

	if len(choices) != maxChoices {
		t.Fatalf("expected %d choices, got %d", maxChoices, len(choices))
	}
	if choices[0].Name != "1. Song A" || choices[0].Value != 1 {
		t.Errorf("unexpected first choice %+v", choices[0])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	if got := truncate("ああああああ", 5); got != "ああ..." {
		t.Errorf("expected rune-aware truncation, got %q", got)
	}
}
