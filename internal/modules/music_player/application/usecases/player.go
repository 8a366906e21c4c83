package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// Resolver resolves requests and opens streams for resolved tracks.
// It is implemented by *ResolverService.
type Resolver interface {
	Resolve(ctx context.Context, req domain.TrackRequest) (*Resolution, error)
	OpenStream(ctx context.Context, track *domain.Track) (ports.StreamHandle, error)
}

var _ Resolver = (*ResolverService)(nil)

// PlayerConfig contains timings of the player.
type PlayerConfig struct {
	OpenTimeout      time.Duration // opening the stream of a dequeued track
	TransportTimeout time.Duration // one transport or voice call
	IdleTimeout      time.Duration // 0 disables idle auto-leave
	InboxSize        int
}

// DefaultPlayerConfig returns the configuration used when none is given.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		OpenTimeout:      15 * time.Second,
		TransportTimeout: 10 * time.Second,
		IdleTimeout:      5 * time.Minute,
		InboxSize:        DefaultInboxSize,
	}
}

// JoinInput contains the input for the Join use case.
type JoinInput struct {
	GuildID               snowflake.ID
	VoiceChannelID        snowflake.ID
	NotificationChannelID snowflake.ID
}

// JoinOutput contains the result of the Join use case.
type JoinOutput struct {
	VoiceChannelID snowflake.ID
	Moved          bool          // the bot was already connected elsewhere in the guild
	Started        *domain.Track // nil if nothing was queued
	Failures       domain.FailureReport
}

// EnqueueInput contains the input for the Enqueue use case.
type EnqueueInput struct {
	GuildID               snowflake.ID
	RequesterID           snowflake.ID
	Query                 string
	Source                domain.TrackSource
	NotificationChannelID snowflake.ID // Optional: updates notification channel if non-zero
	Front                 bool         // insert ahead of pending tracks
}

// EnqueueOutput contains the result of the Enqueue use case.
type EnqueueOutput struct {
	Tracks         []*domain.Track
	Position       int // 1-based position of the first added track
	CollectionName string
	Truncated      int
	Failures       domain.FailureReport // entries dropped during resolution

	// Started is set when the enqueue started playback of an idle session.
	Started       *domain.Track
	StartFailures domain.FailureReport
}

// SkipOutput contains the result of the Skip use case.
type SkipOutput struct {
	Skipped  *domain.Track
	Next     *domain.Track // nil if the queue ran out
	Failures domain.FailureReport
}

// StopOutput contains the result of the Stop use case.
type StopOutput struct {
	Cleared int // pending tracks removed, not counting the current one
}

// ListQueueOutput contains the result of the ListQueue use case.
type ListQueueOutput struct {
	domain.QueueSnapshot
	Status         domain.PlaybackStatus
	Connected      bool
	VoiceChannelID snowflake.ID // zero when there is no session
}

// PlayerService is the per-guild queue and playback controller.
type PlayerService struct {
	repo      domain.GuildStateRepository
	resolver  Resolver
	transport ports.AudioTransport
	voice     ports.VoiceConnection
	publisher ports.EventPublisher
	cfg       PlayerConfig

	workers *workerRegistry
}

var _ ports.StreamEventHandler = (*PlayerService)(nil)

// NewPlayerService creates a new PlayerService.
func NewPlayerService(
	repo domain.GuildStateRepository,
	resolver Resolver,
	transport ports.AudioTransport,
	voice ports.VoiceConnection,
	publisher ports.EventPublisher,
	cfg PlayerConfig,
) *PlayerService {
	def := DefaultPlayerConfig()
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.TransportTimeout <= 0 {
		cfg.TransportTimeout = def.TransportTimeout
	}
	return &PlayerService{
		repo:      repo,
		resolver:  resolver,
		transport: transport,
		voice:     voice,
		publisher: publisher,
		cfg:       cfg,
		workers:   newWorkerRegistry(),
	}
}

// acquire returns the worker of a guild, creating the guild state on first use.
func (p *PlayerService) acquire(guildID snowflake.ID) *guildWorker {
	return p.workers.acquire(guildID, func() *guildWorker {
		state, _ := p.repo.GetOrCreate(guildID)
		slog.Debug("created guild worker", "guild", guildID)
		return newGuildWorker(state, p.cfg.InboxSize)
	})
}

// withWorker runs fn on the guild's worker, creating it if needed. A worker that was
// torn down between lookup and submission is replaced once.
func (p *PlayerService) withWorker(ctx context.Context, guildID snowflake.ID, fn func(w *guildWorker) error) error {
	for attempt := 0; ; attempt++ {
		w := p.acquire(guildID)
		err := w.do(ctx, func() error { return fn(w) })
		if errors.Is(err, ErrSessionClosed) && attempt == 0 {
			select {
			case <-w.done:
				continue
			default:
			}
		}
		return err
	}
}

// existing runs fn on the guild's worker. It returns missing if the guild has none.
func (p *PlayerService) existing(
	ctx context.Context,
	guildID snowflake.ID,
	missing error,
	fn func(w *guildWorker) error,
) error {
	w := p.workers.lookup(guildID)
	if w == nil {
		return missing
	}
	err := w.do(ctx, func() error { return fn(w) })
	if errors.Is(err, ErrSessionClosed) {
		return missing
	}
	return err
}

func (p *PlayerService) transportContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.cfg.TransportTimeout)
}

// Join connects to a voice channel. If tracks are pending and nothing is playing,
// the head of the queue starts playing.
func (p *PlayerService) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	out := &JoinOutput{VoiceChannelID: input.VoiceChannelID}
	var wait <-chan advanceResult
	var worker *guildWorker

	err := p.withWorker(ctx, input.GuildID, func(w *guildWorker) error {
		worker = w
		state := w.state

		created := false
		if state.Session == nil {
			state.Session = domain.NewPlaybackSession(input.GuildID, input.VoiceChannelID, input.NotificationChannelID)
			created = true
		}
		session := state.Session
		if input.NotificationChannelID != 0 {
			session.SetNotificationChannelID(input.NotificationChannelID)
		}

		flags := ports.VoiceFlags{Mute: session.IsMuted(), Deaf: session.IsDeafened()}

		if session.IsConnected() {
			if session.VoiceChannelID() == input.VoiceChannelID {
				return domain.NewError(domain.KindStateConflict, "Already connected to that voice channel.", nil)
			}
			if err := p.joinChannel(ctx, w, input.VoiceChannelID, flags); err != nil {
				return err
			}
			session.SetVoiceChannelID(input.VoiceChannelID)
			out.Moved = true
			return nil
		}

		session.BeginJoin(input.VoiceChannelID)
		if err := p.joinChannel(ctx, w, input.VoiceChannelID, flags); err != nil {
			if created {
				state.Session = nil
				p.reclaim(w)
			} else {
				session.MarkDisconnected()
				p.armIdle(w)
			}
			return err
		}
		session.MarkConnected()
		slog.Info("joined voice channel", "guild", input.GuildID, "channel", input.VoiceChannelID)

		if w.isIdle() && !state.Queue.IsEmpty() {
			wait = w.addWaiter()
			p.advance(w)
		} else if w.isIdle() {
			p.armIdle(w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if wait != nil {
		res := worker.wait(ctx, wait)
		out.Started = res.started
		out.Failures = res.failures
	}
	return out, nil
}

// Leave cancels everything in flight for the guild, disconnects and destroys its state.
func (p *PlayerService) Leave(ctx context.Context, guildID snowflake.ID) error {
	p.interruptJoin(guildID)
	return p.existing(ctx, guildID, ErrNotConnected, func(w *guildWorker) error {
		// A guild that only has pending tracks is torn down as well.
		connected := w.state.Session != nil
		p.teardown(w, domain.StopReasonLeft)
		if !connected {
			return ErrNotConnected
		}
		return nil
	})
}

// Enqueue resolves a request and adds the resulting tracks to the guild's queue.
// Resolution runs outside the guild's worker; only the commit is serialized.
// If the session is connected and idle, playback starts and Enqueue waits for it.
func (p *PlayerService) Enqueue(ctx context.Context, input EnqueueInput) (*EnqueueOutput, error) {
	var (
		scope  context.Context
		epoch  uint64
		worker *guildWorker
	)
	err := p.withWorker(ctx, input.GuildID, func(w *guildWorker) error {
		worker, scope, epoch = w, w.scope, w.epoch
		w.resolving++
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Runs after the commit, so a guild left empty by a failed first request is reclaimed.
	defer worker.post(func() {
		worker.resolving--
		p.reclaim(worker)
	})

	resolveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(scope, cancel)
	defer stop()

	res, err := p.resolver.Resolve(resolveCtx, domain.TrackRequest{
		GuildID:     input.GuildID,
		RequesterID: input.RequesterID,
		Input:       input.Query,
		SourceHint:  input.Source,
	})
	if err != nil {
		if scope.Err() != nil {
			return nil, ErrRequestCancelled
		}
		return nil, err
	}

	out := &EnqueueOutput{
		Tracks:         res.Tracks,
		CollectionName: res.CollectionName,
		Truncated:      res.Truncated,
		Failures:       res.Failures,
	}

	var wait <-chan advanceResult
	err = worker.do(ctx, func() error {
		if worker.epoch != epoch {
			return ErrRequestCancelled
		}

		state := worker.state
		if input.Front {
			out.Position = state.Queue.EnqueueFront(res.Tracks...)
		} else {
			out.Position = state.Queue.Enqueue(res.Tracks...)
		}
		slog.Debug("enqueued tracks",
			"guild", input.GuildID, "count", len(res.Tracks), "position", out.Position, "front", input.Front)

		if state.Session != nil && input.NotificationChannelID != 0 {
			state.Session.SetNotificationChannelID(input.NotificationChannelID)
		}
		switch {
		case state.IsConnected() && worker.isIdle():
			wait = worker.addWaiter()
			p.advance(worker)
		case !state.IsConnected():
			p.armIdle(worker)
		}
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil, ErrRequestCancelled
	}
	if err != nil {
		return nil, err
	}

	if wait != nil {
		r := worker.wait(ctx, wait)
		out.Started = r.started
		out.StartFailures = r.failures
	}
	return out, nil
}

// Skip discards the current track and starts the next playable one. Tracks that fail
// to stream are dropped until one plays or the queue runs out.
func (p *PlayerService) Skip(ctx context.Context, guildID snowflake.ID) (*SkipOutput, error) {
	out := &SkipOutput{}
	var wait <-chan advanceResult
	var worker *guildWorker

	err := p.existing(ctx, guildID, ErrNotPlaying, func(w *guildWorker) error {
		worker = w
		current := w.state.Queue.Current()
		if current == nil || w.state.Session == nil {
			return ErrNotPlaying
		}
		out.Skipped = current

		p.stopStream(w)
		wait = w.addWaiter()
		p.advance(w)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := worker.wait(ctx, wait)
	if res.err != nil {
		return nil, res.err
	}
	out.Next = res.started
	out.Failures = res.failures
	return out, nil
}

// Stop clears the queue, discards the current track and halts the stream.
// The voice connection is kept.
func (p *PlayerService) Stop(ctx context.Context, guildID snowflake.ID) (*StopOutput, error) {
	out := &StopOutput{}
	p.interruptJoin(guildID)
	err := p.existing(ctx, guildID, ErrNotConnected, func(w *guildWorker) error {
		session := w.state.Session
		if session == nil {
			return ErrNotConnected
		}

		w.resetScope()
		w.supersede()
		out.Cleared = w.state.Queue.Clear()
		p.stopStream(w)
		w.state.Queue.ClearCurrent()
		session.SettleIdle()
		w.takeFailures()
		w.settle(advanceResult{err: ErrRequestCancelled})

		p.publishStopped(w, domain.StopReasonStopped, domain.FailureReport{})
		p.armIdle(w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pause pauses the current stream.
func (p *PlayerService) Pause(ctx context.Context, guildID snowflake.ID) error {
	return p.existing(ctx, guildID, ErrNotConnected, func(w *guildWorker) error {
		session := w.state.Session
		if session == nil || !session.IsConnected() {
			return ErrNotConnected
		}
		if w.opening != nil {
			return ErrTrackLoading
		}
		switch session.Status() {
		case domain.StatusPaused:
			return ErrAlreadyPaused
		case domain.StatusPlaying:
		default:
			return ErrNotPlaying
		}

		tctx, cancel := p.transportContext()
		defer cancel()
		if err := p.transport.Pause(tctx, w.guildID); err != nil {
			return classifyTransport(err)
		}
		return session.Pause()
	})
}

// Resume resumes the paused stream.
func (p *PlayerService) Resume(ctx context.Context, guildID snowflake.ID) error {
	return p.existing(ctx, guildID, ErrNotConnected, func(w *guildWorker) error {
		session := w.state.Session
		if session == nil || !session.IsConnected() {
			return ErrNotConnected
		}
		if session.Status() != domain.StatusPaused {
			return ErrNotPaused
		}

		tctx, cancel := p.transportContext()
		defer cancel()
		if err := p.transport.Resume(tctx, w.guildID); err != nil {
			return classifyTransport(err)
		}
		return session.Resume()
	})
}

// ListQueue returns a snapshot of the guild's queue. A guild without state has an
// empty queue.
func (p *PlayerService) ListQueue(ctx context.Context, guildID snowflake.ID) (*ListQueueOutput, error) {
	out := &ListQueueOutput{Status: domain.StatusIdle}
	err := p.existing(ctx, guildID, nil, func(w *guildWorker) error {
		out.QueueSnapshot = w.state.Queue.Snapshot()
		out.Status = w.state.Status()
		out.Connected = w.state.IsConnected()
		if w.state.Session != nil {
			out.VoiceChannelID = w.state.Session.VoiceChannelID()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Pending == nil {
		out.Pending = []*domain.Track{}
	}
	return out, nil
}

// Shuffle randomly reorders the pending tracks.
func (p *PlayerService) Shuffle(ctx context.Context, guildID snowflake.ID) (int, error) {
	var n int
	err := p.existing(ctx, guildID, ErrQueueEmpty, func(w *guildWorker) error {
		if w.state.Queue.IsEmpty() {
			return ErrQueueEmpty
		}
		w.state.Queue.Shuffle()
		n = w.state.Queue.Len()
		return nil
	})
	return n, err
}

// RemoveAt removes the pending track at the 1-based position.
func (p *PlayerService) RemoveAt(ctx context.Context, guildID snowflake.ID, position int) (*domain.Track, error) {
	var removed *domain.Track
	err := p.existing(ctx, guildID, domain.ErrOutOfRange, func(w *guildWorker) error {
		var err error
		removed, err = w.state.Queue.RemoveAt(position - 1)
		return err
	})
	return removed, err
}

// SetMute sets the bot's self-mute flag.
func (p *PlayerService) SetMute(ctx context.Context, guildID snowflake.ID, muted bool) error {
	return p.setVoiceFlags(ctx, guildID,
		func(f *ports.VoiceFlags) { f.Mute = muted },
		func(s *domain.PlaybackSession) { s.SetMuted(muted) },
	)
}

// SetDeafen sets the bot's self-deafen flag.
func (p *PlayerService) SetDeafen(ctx context.Context, guildID snowflake.ID, deafened bool) error {
	return p.setVoiceFlags(ctx, guildID,
		func(f *ports.VoiceFlags) { f.Deaf = deafened },
		func(s *domain.PlaybackSession) { s.SetDeafened(deafened) },
	)
}

func (p *PlayerService) setVoiceFlags(
	ctx context.Context,
	guildID snowflake.ID,
	change func(*ports.VoiceFlags),
	commit func(*domain.PlaybackSession),
) error {
	return p.existing(ctx, guildID, ErrNotConnected, func(w *guildWorker) error {
		session := w.state.Session
		if session == nil || !session.IsConnected() {
			return ErrNotConnected
		}

		flags := ports.VoiceFlags{Mute: session.IsMuted(), Deaf: session.IsDeafened()}
		change(&flags)

		tctx, cancel := p.transportContext()
		defer cancel()
		if err := p.voice.UpdateVoiceFlags(tctx, guildID, session.VoiceChannelID(), flags); err != nil {
			return classifyTransport(err)
		}
		commit(session)
		return nil
	})
}

// HandleStreamEvent advances the queue when the current stream finished or failed.
// Events for streams that are no longer current are ignored.
func (p *PlayerService) HandleStreamEvent(event ports.StreamEvent) {
	w := p.workers.lookup(event.GuildID)
	if w == nil {
		return
	}
	w.post(func() {
		session := w.state.Session
		if session == nil || event.StreamID == "" || session.StreamID() != event.StreamID {
			slog.Debug("ignoring stale stream event",
				"guild", event.GuildID, "stream", event.StreamID, "reason", event.Reason)
			return
		}

		failed := event.Failed || event.Reason == domain.TrackEndLoadFailed
		if !failed && !event.Reason.ShouldAdvanceQueue() {
			return
		}

		if failed {
			msg := event.Message
			if msg == "" {
				msg = "The stream failed."
			}
			err := domain.NewError(domain.KindUpstreamUnavailable, msg, nil)
			p.recordFailure(w, w.state.Queue.Current(), err)
		}

		session.SettleIdle()
		p.advance(w)
	})
}

// HandleConnectionLost settles the guild at Idle after its voice connection dropped.
// Pending tracks are kept for the next join.
func (p *PlayerService) HandleConnectionLost(guildID snowflake.ID) {
	w := p.workers.lookup(guildID)
	if w == nil {
		return
	}
	w.post(func() {
		session := w.state.Session
		if session == nil || !session.IsConnected() {
			return
		}
		slog.Warn("voice connection lost", "guild", guildID)

		w.supersede()
		w.state.Queue.ClearCurrent()
		session.MarkDisconnected()
		w.settle(advanceResult{err: ErrNotConnected})

		p.publishStopped(w, domain.StopReasonDisconnected, w.takeFailures())
		p.armIdle(w)
	})
}

// HandleVoiceChannelMoved records that the bot was moved to another voice channel.
func (p *PlayerService) HandleVoiceChannelMoved(guildID, channelID snowflake.ID) {
	w := p.workers.lookup(guildID)
	if w == nil {
		return
	}
	w.post(func() {
		if w.state.Session != nil {
			w.state.Session.SetVoiceChannelID(channelID)
		}
	})
}

// ActiveGuilds returns the number of guilds with state.
func (p *PlayerService) ActiveGuilds() int {
	return p.workers.len()
}

// Close tears down every guild.
func (p *PlayerService) Close(ctx context.Context) {
	p.workers.mu.Lock()
	workers := make([]*guildWorker, 0, len(p.workers.workers))
	for _, w := range p.workers.workers {
		workers = append(workers, w)
	}
	p.workers.mu.Unlock()

	for _, w := range workers {
		_ = w.do(ctx, func() error {
			p.teardown(w, domain.StopReasonLeft)
			return nil
		})
	}
}

// The methods below run on the guild's worker.

// advance dequeues the next track and opens its stream in the background. When the
// queue is empty the session settles at Idle and waiters are released.
func (p *PlayerService) advance(w *guildWorker) {
	w.supersede()
	w.disarmIdle()

	session := w.state.Session
	if session == nil || !session.IsConnected() {
		w.state.Queue.ClearCurrent()
		w.settle(advanceResult{err: ErrNotConnected})
		return
	}

	track, ok := w.state.Queue.DequeueNext()
	if !ok {
		w.state.Queue.ClearCurrent()
		session.SettleIdle()
		failures := w.takeFailures()
		slog.Debug("queue exhausted", "guild", w.guildID, "failed", failures.Count())
		p.publishStopped(w, domain.StopReasonExhausted, failures)
		w.settle(advanceResult{failures: failures})
		p.armIdle(w)
		return
	}

	if err := session.StartPlaying(""); err != nil {
		w.state.Queue.EnqueueFront(track)
		w.settle(advanceResult{err: err})
		return
	}
	w.state.Queue.SetCurrent(track)
	w.opening = track

	gen := w.gen
	ctx, cancel := context.WithTimeout(w.scope, p.cfg.OpenTimeout)
	w.cancelOpen = cancel

	go func() {
		handle, err := p.resolver.OpenStream(ctx, track)
		w.post(func() { p.onStreamOpened(w, gen, track, handle, err) })
	}()
}

func (p *PlayerService) onStreamOpened(
	w *guildWorker,
	gen uint64,
	track *domain.Track,
	handle ports.StreamHandle,
	err error,
) {
	if gen != w.gen || w.closing {
		slog.Debug("discarding superseded stream", "guild", w.guildID, "track", track.Title())
		return
	}
	if w.cancelOpen != nil {
		w.cancelOpen()
		w.cancelOpen = nil
	}
	w.opening = nil

	var streamID string
	if err == nil {
		tctx, cancel := p.transportContext()
		streamID, err = p.transport.BeginStream(tctx, w.guildID, handle)
		cancel()
		if err != nil {
			err = classifyTransport(err)
		}
	}
	if err != nil {
		slog.Warn("failed to start track", "guild", w.guildID, "track", track.Title(), "error", err)
		p.recordFailure(w, track, err)
		p.advance(w)
		return
	}

	if err := w.state.Session.StartPlaying(streamID); err != nil {
		slog.Warn("discarding stream of an unusable session", "guild", w.guildID, "error", err)
		w.state.Queue.ClearCurrent()
		w.settle(advanceResult{err: err})
		return
	}
	slog.Info("track started", "guild", w.guildID, "track", track.Title())

	if p.publisher != nil {
		p.publisher.PublishPlaybackStarted(domain.PlaybackStartedEvent{
			GuildID:               w.guildID,
			Track:                 track,
			NotificationChannelID: w.state.Session.NotificationChannelID(),
		})
	}
	w.settle(advanceResult{started: track, failures: w.takeFailures()})
}

func (p *PlayerService) recordFailure(w *guildWorker, track *domain.Track, err error) {
	title := domain.UnknownTitle
	if track != nil {
		title = track.Title()
	}
	w.failures.Add(title, track, err)

	if p.publisher != nil && w.state.Session != nil {
		p.publisher.PublishTrackFailed(domain.TrackFailedEvent{
			GuildID:               w.guildID,
			Track:                 track,
			NotificationChannelID: w.state.Session.NotificationChannelID(),
			Err:                   err,
		})
	}
}

// stopStream halts the transport stream of the session, if any.
func (p *PlayerService) stopStream(w *guildWorker) {
	session := w.state.Session
	if session == nil || session.StreamID() == "" || session.BeginStopping() != nil {
		return
	}

	tctx, cancel := p.transportContext()
	defer cancel()
	if err := p.transport.StopStream(tctx, w.guildID); err != nil {
		slog.Warn("failed to stop stream", "guild", w.guildID, "error", err)
	}
}

// teardown cancels everything, leaves the voice channel and destroys the guild.
func (p *PlayerService) teardown(w *guildWorker, reason domain.StopReason) {
	w.cancelScope()
	w.supersede()
	w.disarmIdle()
	w.settle(advanceResult{err: ErrSessionClosed})

	if session := w.state.Session; session != nil {
		if session.IsConnected() {
			p.stopStream(w)
			tctx, cancel := p.transportContext()
			if err := p.voice.LeaveChannel(tctx, w.guildID); err != nil {
				slog.Warn("failed to leave voice channel", "guild", w.guildID, "error", err)
			}
			cancel()
		}
		p.publishStopped(w, reason, w.takeFailures())
	}

	w.closing = true
	p.repo.Delete(w.guildID)
	p.workers.remove(w)
	slog.Info("guild torn down", "guild", w.guildID, "reason", reason)
}

// joinChannel connects the guild's voice connection. The call may be interrupted by
// stop and leave, which otherwise would queue behind it.
func (p *PlayerService) joinChannel(
	ctx context.Context,
	w *guildWorker,
	channelID snowflake.ID,
	flags ports.VoiceFlags,
) error {
	jctx, cancel := w.joinContext(ctx, p.cfg.TransportTimeout)
	defer cancel()
	err := p.voice.JoinChannel(jctx, w.guildID, channelID, flags)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return ErrRequestCancelled
	}
	if err != nil {
		return classifyTransport(err)
	}
	return nil
}

// interruptJoin aborts a voice join the guild's worker is blocked on.
func (p *PlayerService) interruptJoin(guildID snowflake.ID) {
	if w := p.workers.lookup(guildID); w != nil {
		w.interruptJoin()
	}
}

// reclaim tears down a guild that holds no session, tracks or pending requests.
func (p *PlayerService) reclaim(w *guildWorker) {
	if w.unused() {
		p.teardown(w, domain.StopReasonIdle)
	}
}

func (p *PlayerService) armIdle(w *guildWorker) {
	w.armIdle(p.cfg.IdleTimeout, func() {
		slog.Info("leaving idle guild", "guild", w.guildID)
		p.teardown(w, domain.StopReasonIdle)
	})
}

func (p *PlayerService) publishStopped(w *guildWorker, reason domain.StopReason, failures domain.FailureReport) {
	if p.publisher == nil || w.state.Session == nil {
		return
	}
	p.publisher.PublishPlaybackStopped(domain.PlaybackStoppedEvent{
		GuildID:               w.guildID,
		NotificationChannelID: w.state.Session.NotificationChannelID(),
		Reason:                reason,
		Failures:              failures,
	})
}

// classifyTransport classifies errors of the transport and voice adapters.
func classifyTransport(err error) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, "The voice server took too long to respond.", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return domain.NewError(domain.KindUpstreamUnavailable, "The voice server is unavailable.", err)
	}
}
