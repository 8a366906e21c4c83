package domain

import (
	"math/rand/v2"
	"time"
)

// ErrOutOfRange is returned when a queue position does not exist.
var ErrOutOfRange = NewError(KindInvalidInput, "There is no track at that position.", nil)

// Queue holds the pending sequence of a guild and the track that was last dequeued
// for playback. The current track is never part of the pending sequence.
// Queue is not safe for concurrent use; callers serialize access per guild.
type Queue struct {
	pending []*Track
	current *Track
}

// NewQueue creates a new empty Queue.
func NewQueue() *Queue {
	return &Queue{pending: make([]*Track, 0)}
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	return len(q.pending)
}

// IsEmpty returns true if nothing is pending.
func (q *Queue) IsEmpty() bool {
	return len(q.pending) == 0
}

// Enqueue appends tracks to the tail and returns the 1-based position of the first one.
func (q *Queue) Enqueue(tracks ...*Track) int {
	pos := len(q.pending) + 1
	q.pending = append(q.pending, tracks...)
	return pos
}

// EnqueueFront inserts tracks at the head of the pending sequence, keeping their
// relative order. It returns the position of the first one, which is always 1.
func (q *Queue) EnqueueFront(tracks ...*Track) int {
	q.pending = append(append(make([]*Track, 0, len(tracks)+len(q.pending)), tracks...), q.pending...)
	return 1
}

// DequeueNext removes and returns the head of the pending sequence.
// It returns false when the queue is empty.
func (q *Queue) DequeueNext() (*Track, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return t, true
}

// RemoveAt removes the pending track at the 0-based index.
func (q *Queue) RemoveAt(index int) (*Track, error) {
	if index < 0 || index >= len(q.pending) {
		return nil, ErrOutOfRange
	}
	t := q.pending[index]
	q.pending = append(q.pending[:index], q.pending[index+1:]...)
	return t, nil
}

// Shuffle applies a uniform random permutation to the pending sequence.
func (q *Queue) Shuffle() {
	rand.Shuffle(len(q.pending), func(i, j int) {
		q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
	})
}

// ShuffleWith is Shuffle with an explicit random source.
func (q *Queue) ShuffleWith(r *rand.Rand) {
	r.Shuffle(len(q.pending), func(i, j int) {
		q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
	})
}

// Clear empties the pending sequence and returns how many tracks were removed.
func (q *Queue) Clear() int {
	n := len(q.pending)
	q.pending = make([]*Track, 0)
	return n
}

// Current returns the now-playing marker, or nil.
func (q *Queue) Current() *Track {
	return q.current
}

// SetCurrent sets the now-playing marker.
func (q *Queue) SetCurrent(t *Track) {
	q.current = t
}

// ClearCurrent removes the now-playing marker.
func (q *Queue) ClearCurrent() {
	q.current = nil
}

// QueueSnapshot is a point-in-time view of a queue.
type QueueSnapshot struct {
	NowPlaying *Track
	Pending    []*Track
}

// Snapshot returns a copy of the queue that later mutations do not affect.
func (q *Queue) Snapshot() QueueSnapshot {
	pending := make([]*Track, len(q.pending))
	copy(pending, q.pending)
	return QueueSnapshot{NowPlaying: q.current, Pending: pending}
}

// TotalDuration returns the summed duration of pending tracks with a known length.
func (s QueueSnapshot) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range s.Pending {
		if !t.IsStream() {
			total += t.Duration()
		}
	}
	return total
}
