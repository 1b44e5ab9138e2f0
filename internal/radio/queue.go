// internal/radio/queue.go
package radio

import (
	"sync"
	"sync/atomic"

	"github.com/tamzrod/ecomanager-rx/internal/clock"
)

// DefaultQueueCapacity is used when NewQueue is given a capacity <= 0.
const DefaultQueueCapacity = 8

// Raw is one completed frame as captured from the air.
type Raw struct {
	Bytes    []byte
	Timecode clock.Millis // capture time of byte 0
}

// QueueStats is a point-in-time copy of the queue counters.
type QueueStats struct {
	Capacity int
	Pending  int
	Received uint64
	Dropped  uint64
}

// Queue hands completed frames from the single producer (the link reader)
// to the single consumer (the scheduler).
//
// Push never blocks. When full, the oldest pending frame is discarded and
// counted in Dropped.
type Queue struct {
	mu   sync.Mutex
	buf  []Raw
	head int
	n    int

	received atomic.Uint64
	dropped  atomic.Uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{buf: make([]Raw, capacity)}
}

// Push appends r, evicting the oldest frame if the queue is full.
// It reports whether a frame was evicted.
func (q *Queue) Push(r Raw) bool {
	q.received.Add(1)

	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if q.n == len(q.buf) {
		q.buf[q.head] = Raw{}
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		q.dropped.Add(1)
		evicted = true
	}

	q.buf[(q.head+q.n)%len(q.buf)] = r
	q.n++
	return evicted
}

// Drain removes every pending frame and passes each to fn in arrival
// order. fn runs outside the lock so it may take its time.
func (q *Queue) Drain(fn func(Raw)) int {
	q.mu.Lock()
	if q.n == 0 {
		q.mu.Unlock()
		return 0
	}
	out := make([]Raw, 0, q.n)
	for q.n > 0 {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = Raw{}
		q.head = (q.head + 1) % len(q.buf)
		q.n--
	}
	q.mu.Unlock()

	for _, r := range out {
		fn(r)
	}
	return len(out)
}

// Len is the number of frames waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Capacity: len(q.buf),
		Pending:  q.Len(),
		Received: q.received.Load(),
		Dropped:  q.dropped.Load(),
	}
}
