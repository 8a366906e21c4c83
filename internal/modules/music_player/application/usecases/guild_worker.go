package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// DefaultInboxSize is the default buffer size of a guild worker's inbox.
const DefaultInboxSize = 64

// advanceResult is delivered to callers waiting for the queue to settle after an
// advance: either a track started or the queue ran out.
type advanceResult struct {
	started  *domain.Track
	failures domain.FailureReport
	err      error
}

// guildWorker is the serialization point of one guild. Every mutation of the guild's
// queue and session runs on its goroutine, in the order it was submitted.
// Fields below inbox are owned by that goroutine.
type guildWorker struct {
	guildID snowflake.ID
	inbox   chan func()
	done    chan struct{}

	state   *domain.GuildState
	closing bool

	// scope is cancelled by stop and leave to abort in-flight resolutions.
	scope       context.Context
	cancelScope context.CancelFunc
	epoch       uint64

	// gen identifies the current advance; stream results of older advances are ignored.
	gen        uint64
	cancelOpen context.CancelFunc
	opening    *domain.Track

	waiters  []chan advanceResult
	failures domain.FailureReport

	// resolving counts enqueues that hold this worker while resolving outside it.
	resolving int

	idleTimer *time.Timer
	idleGen   uint64

	// joinMu guards cancelJoin, which callers outside the worker may invoke.
	joinMu     sync.Mutex
	cancelJoin context.CancelFunc
}

func newGuildWorker(state *domain.GuildState, inboxSize int) *guildWorker {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	w := &guildWorker{
		guildID: state.GuildID,
		inbox:   make(chan func(), inboxSize),
		done:    make(chan struct{}),
		state:   state,
	}
	w.scope, w.cancelScope = context.WithCancel(context.Background())
	go w.run()
	return w
}

func (w *guildWorker) run() {
	defer close(w.done)
	for fn := range w.inbox {
		fn()
		if w.closing {
			return
		}
	}
}

// do runs fn on the worker and returns its error. It fails with ErrSessionClosed if
// the worker stopped before fn could run.
func (w *guildWorker) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case w.inbox <- func() { errCh <- fn() }:
	case <-w.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-w.done:
		select {
		case err := <-errCh:
			return err
		default:
			return ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post submits fn without waiting for it. It returns false if the worker stopped.
func (w *guildWorker) post(fn func()) bool {
	select {
	case w.inbox <- fn:
		return true
	case <-w.done:
		return false
	}
}

// wait blocks until the advance that ch was registered for settles.
func (w *guildWorker) wait(ctx context.Context, ch <-chan advanceResult) advanceResult {
	select {
	case res := <-ch:
		return res
	case <-w.done:
		select {
		case res := <-ch:
			return res
		default:
			return advanceResult{err: ErrSessionClosed}
		}
	case <-ctx.Done():
		return advanceResult{err: ctx.Err()}
	}
}

// The methods below must only be called on the worker goroutine.

func (w *guildWorker) addWaiter() chan advanceResult {
	ch := make(chan advanceResult, 1)
	w.waiters = append(w.waiters, ch)
	return ch
}

func (w *guildWorker) settle(res advanceResult) {
	for _, ch := range w.waiters {
		ch <- res
	}
	w.waiters = nil
}

func (w *guildWorker) takeFailures() domain.FailureReport {
	f := w.failures
	w.failures = domain.FailureReport{}
	return f
}

// isIdle returns true if nothing is playing or being opened.
func (w *guildWorker) isIdle() bool {
	return w.state.Queue.Current() == nil && w.opening == nil
}

// joinContext returns the context of a voice join running on the worker.
// interruptJoin cancels it from any goroutine.
func (w *guildWorker) joinContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	w.joinMu.Lock()
	w.cancelJoin = cancel
	w.joinMu.Unlock()
	return ctx, func() {
		w.joinMu.Lock()
		w.cancelJoin = nil
		w.joinMu.Unlock()
		cancel()
	}
}

func (w *guildWorker) interruptJoin() {
	w.joinMu.Lock()
	defer w.joinMu.Unlock()
	if w.cancelJoin != nil {
		w.cancelJoin()
	}
}

// unused reports whether the worker holds nothing worth keeping.
func (w *guildWorker) unused() bool {
	return !w.closing && w.state.Session == nil && w.state.Queue.IsEmpty() &&
		w.isIdle() && w.resolving == 0
}

// resetScope cancels everything started under the current scope and opens a new one.
func (w *guildWorker) resetScope() {
	w.cancelScope()
	w.scope, w.cancelScope = context.WithCancel(context.Background())
	w.epoch++
}

// supersede invalidates the in-flight advance, if any.
func (w *guildWorker) supersede() {
	w.gen++
	if w.cancelOpen != nil {
		w.cancelOpen()
		w.cancelOpen = nil
	}
	w.opening = nil
}

func (w *guildWorker) armIdle(d time.Duration, onExpire func()) {
	w.disarmIdle()
	if d <= 0 || w.closing {
		return
	}
	gen := w.idleGen
	w.idleTimer = time.AfterFunc(d, func() {
		w.post(func() {
			if gen == w.idleGen && w.isIdle() {
				onExpire()
			}
		})
	})
}

func (w *guildWorker) disarmIdle() {
	w.idleGen++
	if w.idleTimer != nil {
		w.idleTimer.Stop()
		w.idleTimer = nil
	}
}

// workerRegistry maps guilds to their workers. Its lock only guards the map.
type workerRegistry struct {
	mu      sync.Mutex
	workers map[snowflake.ID]*guildWorker
}

func newWorkerRegistry() *workerRegistry {
	return &workerRegistry{workers: make(map[snowflake.ID]*guildWorker)}
}

// lookup returns the worker of a guild, or nil.
func (r *workerRegistry) lookup(guildID snowflake.ID) *guildWorker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workers[guildID]
}

// acquire returns the worker of a guild, creating it with create if missing.
func (r *workerRegistry) acquire(guildID snowflake.ID, create func() *guildWorker) *guildWorker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[guildID]; ok {
		return w
	}
	w := create()
	r.workers[guildID] = w
	return w
}

// remove deletes w if it is still the registered worker of its guild.
func (r *workerRegistry) remove(w *guildWorker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workers[w.guildID] == w {
		delete(r.workers, w.guildID)
	}
}

func (r *workerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}
