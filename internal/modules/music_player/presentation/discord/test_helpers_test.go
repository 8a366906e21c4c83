package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

const (
	testGuildID   snowflake.ID = 1
	testChannelID snowflake.ID = 2
	testUserID    snowflake.ID = 3
)

// mockPlayer is a test double for Player. Calls are recorded by name.
type mockPlayer struct {
	calls []string

	joinInput    usecases.JoinInput
	joinOutput   *usecases.JoinOutput
	enqueueInput usecases.EnqueueInput
	enqueueOut   *usecases.EnqueueOutput
	skipOutput   *usecases.SkipOutput
	stopOutput   *usecases.StopOutput
	listOutput   *usecases.ListQueueOutput
	removed      *domain.Track
	removedAt    int
	shuffled     int
	muted        *bool
	deafened     *bool

	err error
}

func (m *mockPlayer) Join(_ context.Context, input usecases.JoinInput) (*usecases.JoinOutput, error) {
	m.calls = append(m.calls, "join")
	m.joinInput = input
	if m.err != nil {
		return nil, m.err
	}
	if m.joinOutput != nil {
		return m.joinOutput, nil
	}
	return &usecases.JoinOutput{VoiceChannelID: input.VoiceChannelID}, nil
}

func (m *mockPlayer) Leave(context.Context, snowflake.ID) error {
	m.calls = append(m.calls, "leave")
	return m.err
}

func (m *mockPlayer) Enqueue(_ context.Context, input usecases.EnqueueInput) (*usecases.EnqueueOutput, error) {
	m.calls = append(m.calls, "enqueue")
	m.enqueueInput = input
	if m.err != nil {
		return nil, m.err
	}
	return m.enqueueOut, nil
}

func (m *mockPlayer) Skip(context.Context, snowflake.ID) (*usecases.SkipOutput, error) {
	m.calls = append(m.calls, "skip")
	if m.err != nil {
		return nil, m.err
	}
	return m.skipOutput, nil
}

func (m *mockPlayer) Stop(context.Context, snowflake.ID) (*usecases.StopOutput, error) {
	m.calls = append(m.calls, "stop")
	if m.err != nil {
		return nil, m.err
	}
	return m.stopOutput, nil
}

func (m *mockPlayer) Pause(context.Context, snowflake.ID) error {
	m.calls = append(m.calls, "pause")
	return m.err
}

func (m *mockPlayer) Resume(context.Context, snowflake.ID) error {
	m.calls = append(m.calls, "resume")
	return m.err
}

func (m *mockPlayer) ListQueue(context.Context, snowflake.ID) (*usecases.ListQueueOutput, error) {
	m.calls = append(m.calls, "list")
	if m.listOutput != nil {
		return m.listOutput, nil
	}
	return &usecases.ListQueueOutput{
		QueueSnapshot: domain.QueueSnapshot{Pending: []*domain.Track{}},
	}, nil
}

func (m *mockPlayer) Shuffle(context.Context, snowflake.ID) (int, error) {
	m.calls = append(m.calls, "shuffle")
	return m.shuffled, m.err
}

func (m *mockPlayer) RemoveAt(_ context.Context, _ snowflake.ID, position int) (*domain.Track, error) {
	m.calls = append(m.calls, "remove")
	m.removedAt = position
	if m.err != nil {
		return nil, m.err
	}
	return m.removed, nil
}

func (m *mockPlayer) SetMute(_ context.Context, _ snowflake.ID, muted bool) error {
	m.calls = append(m.calls, "mute")
	m.muted = &muted
	return m.err
}

func (m *mockPlayer) SetDeafen(_ context.Context, _ snowflake.ID, deafened bool) error {
	m.calls = append(m.calls, "deafen")
	m.deafened = &deafened
	return m.err
}

// mockVoiceState is a test double for ports.MemberDirectory.
type mockVoiceState struct {
	channelID snowflake.ID
	err       error
}

func (m *mockVoiceState) Member(_, _ snowflake.ID) (*ports.MemberInfo, error) {
	return &ports.MemberInfo{DisplayName: "Listener"}, nil
}

func (m *mockVoiceState) UserVoiceChannel(_, _ snowflake.ID) (snowflake.ID, bool, error) {
	return m.channelID, m.channelID != 0, m.err
}

func inVoice(id snowflake.ID) *mockVoiceState {
	return &mockVoiceState{channelID: id}
}

// mockSuggester is a test double for Suggester.
type mockSuggester struct {
	candidates []ports.Candidate
	err        error

	gotQuery string
	gotHint  domain.TrackSource
}

func (m *mockSuggester) Suggest(_ context.Context, input string, hint domain.TrackSource) ([]ports.Candidate, error) {
	m.gotQuery, m.gotHint = input, hint
	return m.candidates, m.err
}

// mockVoiceEvents is a test double for VoiceEvents.
type mockVoiceEvents struct {
	lost  []snowflake.ID
	moved []snowflake.ID
}

func (m *mockVoiceEvents) HandleConnectionLost(guildID snowflake.ID) {
	m.lost = append(m.lost, guildID)
}

func (m *mockVoiceEvents) HandleVoiceChannelMoved(_, channelID snowflake.ID) {
	m.moved = append(m.moved, channelID)
}

func newCommand(
	t discordgo.InteractionType,
	name string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      t,
			GuildID:   testGuildID.String(),
			ChannelID: testChannelID.String(),
			Member:    &discordgo.Member{User: &discordgo.User{ID: testUserID.String()}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func newInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return newCommand(discordgo.InteractionApplicationCommand, name, options...)
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func subcommand(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: options,
	}
}

func newTrack(title string) *domain.Track {
	return domain.NewTrack(domain.TrackParams{
		Title:       title,
		Artist:      "Artist",
		Duration:    3 * time.Minute,
		URI:         "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Handle:      "dQw4w9WgXcQ",
		Source:      domain.TrackSourceYouTube,
		RequesterID: testUserID,
	})
}

func newTracks(n int) []*domain.Track {
	tracks := make([]*domain.Track, n)
	for i := range tracks {
		tracks[i] = newTrack("Song " + string(rune('A'+i%26)))
	}
	return tracks
}
