package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time checks that ChannelEventBus implements ports interfaces.
var (
	_ ports.EventPublisher  = (*ChannelEventBus)(nil)
	_ ports.EventSubscriber = (*ChannelEventBus)(nil)
)

// ChannelEventBus provides a channel-based event bus for async event handling.
// It implements both EventPublisher and EventSubscriber interfaces.
// Events of one type are delivered in publish order.
type ChannelEventBus struct {
	playbackStarted chan domain.PlaybackStartedEvent
	trackFailed     chan domain.TrackFailedEvent
	playbackStopped chan domain.PlaybackStoppedEvent

	playbackStartedHandlers []func(context.Context, domain.PlaybackStartedEvent)
	trackFailedHandlers     []func(context.Context, domain.TrackFailedEvent)
	playbackStoppedHandlers []func(context.Context, domain.PlaybackStoppedEvent)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventBus creates a new ChannelEventBus with the given buffer size.
func NewChannelEventBus(bufferSize int) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &ChannelEventBus{
		playbackStarted: make(chan domain.PlaybackStartedEvent, bufferSize),
		trackFailed:     make(chan domain.TrackFailedEvent, bufferSize),
		playbackStopped: make(chan domain.PlaybackStoppedEvent, bufferSize),
		ctx:             ctx,
		cancel:          cancel,
	}

	bus.wg.Add(3)
	go dispatch(bus, bus.playbackStarted, func() []func(context.Context, domain.PlaybackStartedEvent) {
		return bus.playbackStartedHandlers
	})
	go dispatch(bus, bus.trackFailed, func() []func(context.Context, domain.TrackFailedEvent) {
		return bus.trackFailedHandlers
	})
	go dispatch(bus, bus.playbackStopped, func() []func(context.Context, domain.PlaybackStoppedEvent) {
		return bus.playbackStoppedHandlers
	})

	return bus
}

// dispatch delivers events from ch to the handlers returned by handlers until the
// bus is closed.
func dispatch[E any](b *ChannelEventBus, ch <-chan E, handlers func() []func(context.Context, E)) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			b.mu.RLock()
			hs := handlers()
			b.mu.RUnlock()
			for _, handler := range hs {
				handler(b.ctx, event)
			}
		}
	}
}

// publish sends event to ch without blocking.
// If the channel buffer is full, the event is dropped with a warning.
func publish[E any](b *ChannelEventBus, ch chan<- E, event E, eventType string, attrs ...any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", eventType)
		return
	}

	select {
	case ch <- event:
		slog.Debug("published event", append([]any{"type", eventType}, attrs...)...)
	default:
		slog.Warn("event buffer full, dropping event", "type", eventType)
	}
}

// --- EventPublisher interface ---

// PublishPlaybackStarted publishes a PlaybackStartedEvent.
func (b *ChannelEventBus) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	publish(b, b.playbackStarted, event, "PlaybackStarted", "guild", event.GuildID)
}

// PublishTrackFailed publishes a TrackFailedEvent.
func (b *ChannelEventBus) PublishTrackFailed(event domain.TrackFailedEvent) {
	publish(b, b.trackFailed, event, "TrackFailed", "guild", event.GuildID)
}

// PublishPlaybackStopped publishes a PlaybackStoppedEvent.
func (b *ChannelEventBus) PublishPlaybackStopped(event domain.PlaybackStoppedEvent) {
	publish(b, b.playbackStopped, event, "PlaybackStopped", "guild", event.GuildID, "reason", event.Reason)
}

// --- EventSubscriber interface ---

// OnPlaybackStarted registers a handler for PlaybackStartedEvent.
func (b *ChannelEventBus) OnPlaybackStarted(
	handler func(context.Context, domain.PlaybackStartedEvent),
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbackStartedHandlers = append(b.playbackStartedHandlers, handler)
}

// OnTrackFailed registers a handler for TrackFailedEvent.
func (b *ChannelEventBus) OnTrackFailed(handler func(context.Context, domain.TrackFailedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackFailedHandlers = append(b.trackFailedHandlers, handler)
}

// OnPlaybackStopped registers a handler for PlaybackStoppedEvent.
func (b *ChannelEventBus) OnPlaybackStopped(
	handler func(context.Context, domain.PlaybackStoppedEvent),
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbackStoppedHandlers = append(b.playbackStoppedHandlers, handler)
}

// Close closes all event channels and stops dispatchers.
// After calling Close, publishing will no longer send events.
func (b *ChannelEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()

	close(b.playbackStarted)
	close(b.trackFailed)
	close(b.playbackStopped)

	b.wg.Wait()

	slog.Debug("channel event bus closed")
}
