package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
const voiceConnectionTimeout = 10 * time.Second

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	needsServer    bool
	ready          chan struct{}
}

func newPendingVoiceConnection(needsServer bool) *pendingVoiceConnection {
	return &pendingVoiceConnection{
		needsServer: needsServer,
		ready:       make(chan struct{}),
	}
}

// onEvent marks an event as received and signals ready once every required event
// is present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && (p.hasVoiceServer || !p.needsServer) {
		select {
		case <-p.ready:
			// Already closed
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer buffers voice events to ensure both VoiceStateUpdate and
// VoiceServerUpdate are received before forwarding to Lavalink.
// This prevents "Partial Lavalink voice state" errors when events arrive out of order.
type voiceEventBuffer struct {
	mu sync.Mutex

	// From VoiceStateUpdate
	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	// From VoiceServerUpdate
	hasVoiceServer bool
	token          string
	endpoint       string
}

// setVoiceState stores voice state data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.hasVoiceState && b.hasVoiceServer
}

// setVoiceServer stores voice server data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.hasVoiceState && b.hasVoiceServer
}

// getData returns the buffered data and resets the buffer.
func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""

	return
}

// activeStream is the stream a guild's player was last told to play.
type activeStream struct {
	id      string
	encoded string
	failure string // exception message reported before the track ended
}

// streamTracker maps Lavalink tracks to the stream identifiers handed out by
// BeginStream so events of replaced tracks can be told apart from current ones.
type streamTracker struct {
	mu      sync.Mutex
	seq     atomic.Uint64
	streams map[snowflake.ID]*activeStream
}

func newStreamTracker() *streamTracker {
	return &streamTracker{streams: make(map[snowflake.ID]*activeStream)}
}

// begin records encoded as the guild's current track and returns its stream ID.
func (t *streamTracker) begin(guildID snowflake.ID, encoded string) string {
	id := guildID.String() + "-" + strconv.FormatUint(t.seq.Add(1), 10)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams[guildID] = &activeStream{id: id, encoded: encoded}
	return id
}

func (t *streamTracker) clear(guildID snowflake.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, guildID)
}

// fail remembers an exception message for the guild's current track.
func (t *streamTracker) fail(guildID snowflake.ID, encoded, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.streams[guildID]; s != nil && s.encoded == encoded {
		s.failure = message
	}
}

// end resolves the stream a track event belongs to. Events for tracks that are no
// longer current get an empty stream ID. When done is set the stream is forgotten.
func (t *streamTracker) end(guildID snowflake.ID, encoded string, done bool) (id, failure string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.streams[guildID]
	if s == nil || s.encoded != encoded {
		return "", ""
	}
	if done {
		delete(t.streams, guildID)
	}
	return s.id, s.failure
}

// LavalinkAdapter wraps DisGoLink to implement the audio transport and voice
// connection ports.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	// voiceBuffers holds buffered voice events per guild to handle out-of-order events
	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	connectedMu sync.Mutex
	connected   map[snowflake.ID]snowflake.ID

	streams *streamTracker

	handlerMu sync.RWMutex
	handler   ports.StreamEventHandler
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
	Secure   bool
}

// NewLavalinkAdapter creates a new LavalinkAdapter and connects to the node.
func NewLavalinkAdapter(
	ctx context.Context,
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := newLavalinkAdapter(session, botID)

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
	)
	adapter.link = link

	node, err := link.AddNode(ctx, disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

func newLavalinkAdapter(session *discordgo.Session, botID snowflake.ID) *LavalinkAdapter {
	return &LavalinkAdapter{
		session:      session,
		botID:        botID,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
		connected:    make(map[snowflake.ID]snowflake.ID),
		streams:      newStreamTracker(),
	}
}

// SetStreamEventHandler sets the receiver of stream end events.
func (c *LavalinkAdapter) SetStreamEventHandler(handler ports.StreamEventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handler = handler
}

// Close disconnects from every Lavalink node.
func (c *LavalinkAdapter) Close() {
	if c.link != nil {
		c.link.Close()
	}
}

// JoinChannel connects to a voice channel.
// It waits for both VoiceStateUpdate and VoiceServerUpdate events before returning.
// Moving within a guild only waits for the voice state.
func (c *LavalinkAdapter) JoinChannel(
	ctx context.Context,
	guildID, channelID snowflake.ID,
	flags ports.VoiceFlags,
) error {
	c.connectedMu.Lock()
	_, moving := c.connected[guildID]
	c.connectedMu.Unlock()

	pending := newPendingVoiceConnection(!moving)

	c.pendingMu.Lock()
	c.pending[guildID] = pending
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		if c.pending[guildID] == pending {
			delete(c.pending, guildID)
		}
		c.pendingMu.Unlock()
	}()

	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), flags.Mute, flags.Deaf)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	timer := time.NewTimer(voiceConnectionTimeout)
	defer timer.Stop()

	select {
	case <-pending.ready:
		c.connectedMu.Lock()
		c.connected[guildID] = channelID
		c.connectedMu.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-timer.C:
		return domain.NewError(domain.KindTimeout, "Timed out connecting to the voice channel.", nil)
	}
}

// LeaveChannel disconnects from the voice channel.
func (c *LavalinkAdapter) LeaveChannel(ctx context.Context, guildID snowflake.ID) error {
	c.streams.clear(guildID)
	c.connectedMu.Lock()
	delete(c.connected, guildID)
	c.connectedMu.Unlock()

	if player := c.link.ExistingPlayer(guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// UpdateVoiceFlags resends the bot's voice state with new self-mute and
// self-deafen flags.
func (c *LavalinkAdapter) UpdateVoiceFlags(
	_ context.Context,
	guildID, channelID snowflake.ID,
	flags ports.VoiceFlags,
) error {
	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), flags.Mute, flags.Deaf)
	if err != nil {
		return fmt.Errorf("failed to update voice state: %w", err)
	}
	return nil
}

// BeginStream loads handle on the best node and plays it on the guild's player.
func (c *LavalinkAdapter) BeginStream(
	ctx context.Context,
	guildID snowflake.ID,
	handle ports.StreamHandle,
) (string, error) {
	node := c.link.BestNode()
	if node == nil {
		return "", domain.NewError(domain.KindUpstreamUnavailable, "No audio node is available.", nil)
	}

	result, err := node.LoadTracks(ctx, string(handle))
	if err != nil {
		return "", fmt.Errorf("failed to load stream: %w", err)
	}
	track, err := loadedTrack(result)
	if err != nil {
		return "", err
	}

	streamID := c.streams.begin(guildID, track.Encoded)

	player := c.link.Player(guildID)
	// Use WithEncodedTrack to avoid userData:null issue
	if err := player.Update(ctx, lavalink.WithEncodedTrack(track.Encoded)); err != nil {
		c.streams.clear(guildID)
		return "", fmt.Errorf("failed to play track: %w", err)
	}

	return streamID, nil
}

// loadedTrack extracts the single playable track from a load result.
func loadedTrack(result *lavalink.LoadResult) (lavalink.Track, error) {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return data, nil
	case lavalink.Search:
		if len(data) > 0 {
			return data[0], nil
		}
	case lavalink.Playlist:
		if len(data.Tracks) > 0 {
			return data.Tracks[0], nil
		}
	case lavalink.Exception:
		return lavalink.Track{}, domain.NewError(
			domain.KindUpstreamUnavailable, "The audio node could not load the stream.", errors.New(data.Message))
	}
	return lavalink.Track{}, domain.NewError(domain.KindNotFound, "The audio node found nothing to play.", nil)
}

// StopStream stops the current playback.
func (c *LavalinkAdapter) StopStream(ctx context.Context, guildID snowflake.ID) error {
	c.streams.clear(guildID)

	player := c.link.ExistingPlayer(guildID)
	if player == nil {
		return nil
	}
	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}

	return nil
}

// Pause pauses the current playback.
func (c *LavalinkAdapter) Pause(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPaused(true)); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}

	return nil
}

// Resume resumes the current playback.
func (c *LavalinkAdapter) Resume(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPaused(false)); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}

	return nil
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	buffer := c.getOrCreateVoiceBuffer(guildID)
	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	c.signalPending(guildID, false)
}

// OnVoiceStateUpdate handles Discord voice state updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	sessionID := event.SessionID

	// Parse the channel ID - if empty, the bot is disconnecting
	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// Handle disconnect immediately (no need to wait for VoiceServerUpdate)
	if channelID == nil {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, sessionID)
		c.clearVoiceBuffer(guildID)
		c.streams.clear(guildID)
		c.connectedMu.Lock()
		delete(c.connected, guildID)
		c.connectedMu.Unlock()
		return
	}

	buffer := c.getOrCreateVoiceBuffer(guildID)
	if buffer.setVoiceState(channelID, sessionID) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	} else {
		c.connectedMu.Lock()
		_, connected := c.connected[guildID]
		c.connectedMu.Unlock()
		if connected {
			// Channel moves and flag changes need no new voice server.
			c.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
		}
	}

	c.signalPending(guildID, true)
}

func (c *LavalinkAdapter) signalPending(guildID snowflake.ID, isVoiceState bool) {
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(isVoiceState)
	}
}

// getOrCreateVoiceBuffer returns the voice buffer for a guild, creating one if needed.
func (c *LavalinkAdapter) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()

	buffer, exists := c.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		c.voiceBuffers[guildID] = buffer
	}
	return buffer
}

// clearVoiceBuffer removes the voice buffer for a guild.
func (c *LavalinkAdapter) clearVoiceBuffer(guildID snowflake.ID) {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()
	delete(c.voiceBuffers, guildID)
}

// forwardBufferedVoiceEvents sends the buffered voice events to Lavalink.
func (c *LavalinkAdapter) forwardBufferedVoiceEvents(
	guildID snowflake.ID,
	buffer *voiceEventBuffer,
) {
	channelID, sessionID, token, endpoint := buffer.getData()

	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", channelID,
		"hasSessionID", sessionID != "",
	)

	c.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}

func (c *LavalinkAdapter) emit(event ports.StreamEvent) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	if handler != nil {
		handler.HandleStreamEvent(event)
	}
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	reason := convertEndReason(event.Reason)
	streamID, failure := c.streams.end(player.GuildID(), event.Track.Encoded, reason != domain.TrackEndReplaced)

	c.emit(ports.StreamEvent{
		GuildID:  player.GuildID(),
		StreamID: streamID,
		Reason:   reason,
		Failed:   reason == domain.TrackEndLoadFailed || failure != "",
		Message:  failure,
	})
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
	c.streams.fail(player.GuildID(), event.Track.Encoded, event.Exception.Message)
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)

	streamID, _ := c.streams.end(player.GuildID(), event.Track.Encoded, true)
	c.emit(ports.StreamEvent{
		GuildID:  player.GuildID(),
		StreamID: streamID,
		Reason:   domain.TrackEndLoadFailed,
		Failed:   true,
		Message:  "The stream stopped responding.",
	})
}

func convertEndReason(reason lavalink.TrackEndReason) domain.TrackEndReason {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return domain.TrackEndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return domain.TrackEndLoadFailed
	case lavalink.TrackEndReasonStopped:
		return domain.TrackEndStopped
	case lavalink.TrackEndReasonReplaced:
		return domain.TrackEndReplaced
	case lavalink.TrackEndReasonCleanup:
		return domain.TrackEndCleanup
	default:
		return domain.TrackEndStopped
	}
}

// Ensure LavalinkAdapter implements port interfaces.
var (
	_ ports.AudioTransport  = (*LavalinkAdapter)(nil)
	_ ports.VoiceConnection = (*LavalinkAdapter)(nil)
)
