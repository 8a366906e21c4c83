package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dustin/go-humanize"
	"github.com/sglre6355/jukebot/internal/bot"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// queuePageSize is the number of pending tracks shown per /queue list page.
const queuePageSize = 10

// Player is the playback API the command handlers drive.
type Player interface {
	Join(ctx context.Context, input usecases.JoinInput) (*usecases.JoinOutput, error)
	Leave(ctx context.Context, guildID snowflake.ID) error
	Enqueue(ctx context.Context, input usecases.EnqueueInput) (*usecases.EnqueueOutput, error)
	Skip(ctx context.Context, guildID snowflake.ID) (*usecases.SkipOutput, error)
	Stop(ctx context.Context, guildID snowflake.ID) (*usecases.StopOutput, error)
	Pause(ctx context.Context, guildID snowflake.ID) error
	Resume(ctx context.Context, guildID snowflake.ID) error
	ListQueue(ctx context.Context, guildID snowflake.ID) (*usecases.ListQueueOutput, error)
	Shuffle(ctx context.Context, guildID snowflake.ID) (int, error)
	RemoveAt(ctx context.Context, guildID snowflake.ID, position int) (*domain.Track, error)
	SetMute(ctx context.Context, guildID snowflake.ID, muted bool) error
	SetDeafen(ctx context.Context, guildID snowflake.ID, deafened bool) error
}

var _ Player = (*usecases.PlayerService)(nil)

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	player  Player
	members ports.MemberDirectory
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(player Player, members ports.MemberDirectory) *CommandHandlers {
	return &CommandHandlers{
		player:  player,
		members: members,
	}
}

// invocation holds the IDs every command needs.
type invocation struct {
	guildID   snowflake.ID
	userID    snowflake.ID
	channelID snowflake.ID
}

func parseInvocation(i *discordgo.InteractionCreate) (invocation, string) {
	var inv invocation

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return inv, "This command can only be used in a server."
	}
	inv.guildID = guildID

	if i.Member == nil || i.Member.User == nil {
		return inv, "Invalid user"
	}
	if inv.userID, err = snowflake.Parse(i.Member.User.ID); err != nil {
		return inv, "Invalid user"
	}

	if inv.channelID, err = snowflake.Parse(i.ChannelID); err != nil {
		return inv, "Invalid notification channel"
	}
	return inv, ""
}

// HandleJoin handles the /join command.
func (h *CommandHandlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	var voiceChannelID snowflake.ID
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "channel" {
			id, err := snowflake.Parse(opt.ChannelValue(s).ID)
			if err != nil {
				return respondError(r, "Invalid voice channel")
			}
			voiceChannelID = id
		}
	}
	if voiceChannelID == 0 {
		id, err := h.userVoiceChannel(inv)
		if err != nil {
			return respondFailure(r, err)
		}
		voiceChannelID = id
	}

	// Joining may start the first pending track, which can take a while.
	if err := r.Defer(); err != nil {
		return err
	}

	output, err := h.player.Join(ctx, usecases.JoinInput{
		GuildID:               inv.guildID,
		VoiceChannelID:        voiceChannelID,
		NotificationChannelID: inv.channelID,
	})
	if err != nil {
		return editFailure(r, err)
	}

	verb := "Connected to"
	if output.Moved {
		verb = "Moved to"
	}
	embeds := []*discordgo.MessageEmbed{successEmbed(fmt.Sprintf("%s <#%d>.", verb, output.VoiceChannelID))}
	embeds = appendFailures(embeds, output.Failures)
	return editEmbeds(r, embeds...)
}

// HandleLeave handles the /leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	if err := h.player.Leave(ctx, inv.guildID); err != nil {
		return respondFailure(r, err)
	}
	return respondSuccess(r, "Disconnected.")
}

// HandlePlay handles the /play command.
func (h *CommandHandlers) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.enqueue(i, r, false)
}

// HandlePlayNext handles the /playnext command.
func (h *CommandHandlers) HandlePlayNext(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.enqueue(i, r, true)
}

func (h *CommandHandlers) enqueue(i *discordgo.InteractionCreate, r bot.Responder, front bool) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	var query, source string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "query":
			query = strings.TrimSpace(opt.StringValue())
		case "source":
			source = opt.StringValue()
		}
	}
	if query == "" {
		return respondError(r, "Please provide a URL or search term.")
	}

	state, err := h.player.ListQueue(ctx, inv.guildID)
	if err != nil {
		return respondFailure(r, err)
	}
	var joinTo snowflake.ID
	if !state.Connected {
		if joinTo, err = h.userVoiceChannel(inv); err != nil {
			return respondFailure(r, err)
		}
	}

	// Resolution can exceed Discord's three second window.
	if err := r.Defer(); err != nil {
		return err
	}

	var embeds []*discordgo.MessageEmbed
	if joinTo != 0 {
		joined, err := h.player.Join(ctx, usecases.JoinInput{
			GuildID:               inv.guildID,
			VoiceChannelID:        joinTo,
			NotificationChannelID: inv.channelID,
		})
		if err != nil {
			return editFailure(r, err)
		}
		embeds = appendFailures(embeds, joined.Failures)
	}

	output, err := h.player.Enqueue(ctx, usecases.EnqueueInput{
		GuildID:               inv.guildID,
		RequesterID:           inv.userID,
		Query:                 query,
		Source:                domain.ParseTrackSource(source),
		NotificationChannelID: inv.channelID,
		Front:                 front,
	})
	if err != nil {
		return editFailure(r, err)
	}

	embeds = append([]*discordgo.MessageEmbed{enqueuedEmbed(output, front)}, embeds...)
	embeds = appendFailures(embeds, output.Failures)
	embeds = appendFailures(embeds, output.StartFailures)
	return editEmbeds(r, embeds...)
}

func enqueuedEmbed(output *usecases.EnqueueOutput, front bool) *discordgo.MessageEmbed {
	where := "the queue"
	if front {
		where = "the front of the queue"
	}

	var sb strings.Builder
	switch {
	case output.CollectionName != "" || len(output.Tracks) != 1:
		name := output.CollectionName
		if name == "" {
			name = "the playlist"
		} else {
			name = "**" + name + "**"
		}
		fmt.Fprintf(&sb, "Added **%d tracks** from %s to %s.", len(output.Tracks), name, where)
	default:
		fmt.Fprintf(&sb, "Added %s to %s", trackLink(output.Tracks[0]), where)
		if output.Started == nil || output.Started.ID() != output.Tracks[0].ID() {
			fmt.Fprintf(&sb, " at position %d", output.Position)
		}
		sb.WriteString(".")
	}
	if output.Truncated > 0 {
		fmt.Fprintf(&sb, "\n-# %s more tracks were left out.", humanize.Comma(int64(output.Truncated)))
	}
	return successEmbed(sb.String())
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	// Opening the next track can take a while.
	if err := r.Defer(); err != nil {
		return err
	}

	output, err := h.player.Skip(ctx, inv.guildID)
	if err != nil {
		return editFailure(r, err)
	}

	description := fmt.Sprintf("Skipped %s.", trackLink(output.Skipped))
	if output.Next == nil {
		description += " Nothing left in the queue."
	}
	embeds := []*discordgo.MessageEmbed{successEmbed(description)}
	embeds = appendFailures(embeds, output.Failures)
	return editEmbeds(r, embeds...)
}

// HandleStop handles the /stop command.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	output, err := h.player.Stop(ctx, inv.guildID)
	if err != nil {
		return respondFailure(r, err)
	}

	description := "Stopped playback."
	if output.Cleared > 0 {
		description = fmt.Sprintf("Stopped playback and cleared %s from the queue.",
			pluralTracks(output.Cleared))
	}
	return respondSuccess(r, description)
}

// HandlePause handles the /pause command.
func (h *CommandHandlers) HandlePause(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	if err := h.player.Pause(ctx, inv.guildID); err != nil {
		return respondFailure(r, err)
	}
	return respondSuccess(r, "Paused playback.")
}

// HandleResume handles the /resume command.
func (h *CommandHandlers) HandleResume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	if err := h.player.Resume(ctx, inv.guildID); err != nil {
		return respondFailure(r, err)
	}
	return respondSuccess(r, "Resumed playback.")
}

// HandleQueue handles the /queue command.
func (h *CommandHandlers) HandleQueue(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Invalid subcommand")
	}

	subCmd := options[0]
	switch subCmd.Name {
	case "list":
		return h.handleQueueList(s, i, r, subCmd.Options)
	case "remove":
		return h.handleQueueRemove(s, i, r, subCmd.Options)
	default:
		return respondError(r, "Unknown subcommand")
	}
}

func (h *CommandHandlers) handleQueueList(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	page := 1
	for _, opt := range options {
		if opt.Name == "page" {
			page = int(opt.IntValue())
		}
	}

	output, err := h.player.ListQueue(ctx, inv.guildID)
	if err != nil {
		return respondFailure(r, err)
	}
	return respondEmbeds(r, queueEmbed(output, page))
}

// queueEmbed renders one page of the queue. Out of range pages are clamped.
func queueEmbed(output *usecases.ListQueueOutput, page int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "Queue"}
	if output.Status == domain.StatusPaused {
		embed.Title = "Queue (paused)"
	}

	totalPages := max(1, (len(output.Pending)+queuePageSize-1)/queuePageSize)
	page = min(max(page, 1), totalPages)

	if output.NowPlaying == nil && len(output.Pending) == 0 {
		embed.Description = "Queue is empty."
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Page 1/1"}
		return embed
	}

	var sb strings.Builder
	if t := output.NowPlaying; t != nil {
		sb.WriteString("### Now Playing\n")
		fmt.Fprintf(&sb, "%s - %s `%s`\n", trackLink(t), t.Artist(), t.FormattedDuration())
		if t.RequesterID() != 0 {
			fmt.Fprintf(&sb, "-# Requested by <@%d> %s\n", t.RequesterID(), humanize.Time(t.EnqueuedAt()))
		}
	}

	start := (page - 1) * queuePageSize
	end := min(start+queuePageSize, len(output.Pending))
	if start < end {
		sb.WriteString("### Up Next\n")
		for idx, t := range output.Pending[start:end] {
			writeTrackLine(&sb, start+idx+1, t)
		}
	}
	embed.Description = sb.String()

	footer := fmt.Sprintf("Page %d/%d", page, totalPages)
	if n := len(output.Pending); n > 0 {
		footer += fmt.Sprintf(" • %s up next • %s", pluralTracks(n), domain.FormatDuration(output.TotalDuration()))
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	return embed
}

func (h *CommandHandlers) handleQueueRemove(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	var position int
	for _, opt := range options {
		if opt.Name == "position" {
			position = int(opt.IntValue())
		}
	}

	removed, err := h.player.RemoveAt(ctx, inv.guildID, position)
	if err != nil {
		return respondFailure(r, err)
	}
	return respondSuccess(r, fmt.Sprintf("Removed %s.", trackLink(removed)))
}

// HandleShuffle handles the /shuffle command.
func (h *CommandHandlers) HandleShuffle(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	n, err := h.player.Shuffle(ctx, inv.guildID)
	if err != nil {
		return respondFailure(r, err)
	}
	return respondSuccess(r, fmt.Sprintf("Shuffled %s.", pluralTracks(n)))
}

// HandleMute handles the /mute command.
func (h *CommandHandlers) HandleMute(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	return h.setVoiceFlag(i, r, h.player.SetMute, true, "Muted.")
}

// HandleUnmute handles the /unmute command.
func (h *CommandHandlers) HandleUnmute(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	return h.setVoiceFlag(i, r, h.player.SetMute, false, "Unmuted.")
}

// HandleDeafen handles the /deafen command.
func (h *CommandHandlers) HandleDeafen(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	return h.setVoiceFlag(i, r, h.player.SetDeafen, true, "Deafened.")
}

// HandleUndeafen handles the /undeafen command.
func (h *CommandHandlers) HandleUndeafen(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	return h.setVoiceFlag(i, r, h.player.SetDeafen, false, "Undeafened.")
}

func (h *CommandHandlers) setVoiceFlag(
	i *discordgo.InteractionCreate,
	r bot.Responder,
	set func(ctx context.Context, guildID snowflake.ID, on bool) error,
	on bool,
	done string,
) error {
	ctx := context.Background()

	inv, msg := parseInvocation(i)
	if msg != "" {
		return respondError(r, msg)
	}

	if err := set(ctx, inv.guildID, on); err != nil {
		return respondFailure(r, err)
	}
	return respondSuccess(r, done)
}

// userVoiceChannel returns the voice channel the invoking user is in.
func (h *CommandHandlers) userVoiceChannel(inv invocation) (snowflake.ID, error) {
	channelID, ok, err := h.members.UserVoiceChannel(inv.guildID, inv.userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user voice channel: %w", err)
	}
	if !ok {
		return 0, usecases.ErrUserNotInVoice
	}
	return channelID, nil
}

// Response helpers.

// failureMessage returns the user-facing text for err. Internal errors are logged
// with their detail and shown generically.
func failureMessage(err error) string {
	if domain.KindOf(err) == domain.KindInternal {
		slog.Error("command failed", "error", err)
	}
	return domain.ReasonOf(err)
}

func successEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: description, Color: colorSuccess}
}

func errorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "Error", Description: description, Color: colorError}
}

// appendFailures adds an error embed summarizing report, if anything failed.
func appendFailures(embeds []*discordgo.MessageEmbed, report domain.FailureReport) []*discordgo.MessageEmbed {
	if report.Empty() {
		return embeds
	}
	return append(embeds, &discordgo.MessageEmbed{
		Description: report.Summary(),
		Color:       colorError,
	})
}

func respondEmbeds(r bot.Responder, embeds ...*discordgo.MessageEmbed) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: embeds,
		},
	})
}

func respondSuccess(r bot.Responder, description string) error {
	return respondEmbeds(r, successEmbed(description))
}

func respondError(r bot.Responder, message string) error {
	return respondEmbeds(r, errorEmbed(message))
}

func respondFailure(r bot.Responder, err error) error {
	return respondError(r, failureMessage(err))
}

// editEmbeds replaces a deferred response.
func editEmbeds(r bot.Responder, embeds ...*discordgo.MessageEmbed) error {
	return r.EditResponse(&discordgo.WebhookEdit{Embeds: &embeds})
}

func editFailure(r bot.Responder, err error) error {
	return editEmbeds(r, errorEmbed(failureMessage(err)))
}

func trackLink(t *domain.Track) string {
	if t == nil {
		return "**" + domain.UnknownTitle + "**"
	}
	if t.URI() != "" {
		return fmt.Sprintf("[%s](%s)", t.Title(), t.URI())
	}
	return fmt.Sprintf("**%s**", t.Title())
}

func pluralTracks(n int) string {
	if n == 1 {
		return "1 track"
	}
	return humanize.Comma(int64(n)) + " tracks"
}

// writeTrackLine writes a single track line to the string builder.
// Escapes period to prevent Discord markdown list formatting.
func writeTrackLine(sb *strings.Builder, displayIndex int, track *domain.Track) {
	fmt.Fprintf(sb, "%d\\. %s - %s `%s`\n",
		displayIndex,
		trackLink(track),
		track.Artist(),
		track.FormattedDuration(),
	)
}
