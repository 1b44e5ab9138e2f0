// internal/radio/receiver.go
package radio

import (
	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
)

// Receiver assembles bytes into frames.
// Byte 0 decides the frame kind and so the expected length; once that many
// bytes have arrived the frame is pushed to the queue.
//
// AppendByte and Abort must be called from one goroutine only.
type Receiver struct {
	clock clock.Clock
	queue *Queue

	cur   [frame.MaxLen]byte
	n     int
	want  int
	start clock.Millis
}

func NewReceiver(c clock.Clock, q *Queue) *Receiver {
	return &Receiver{clock: c, queue: q}
}

// Queue returns the queue completed frames are handed to.
func (r *Receiver) Queue() *Queue { return r.queue }

// AppendByte adds b to the frame in progress and reports whether it
// completed the frame.
func (r *Receiver) AppendByte(b byte) bool {
	if r.n == 0 {
		r.start = r.clock.Now()
		r.want = frame.ExpectedLen(frame.KindOf(b))
	}

	r.cur[r.n] = b
	r.n++

	if r.n < r.want {
		return false
	}

	out := make([]byte, r.n)
	copy(out, r.cur[:r.n])
	r.queue.Push(Raw{Bytes: out, Timecode: r.start})

	r.n = 0
	r.want = 0
	return true
}

// InProgress reports whether a partial frame is buffered.
func (r *Receiver) InProgress() bool { return r.n > 0 }

// Abort drops the partial frame so the next byte starts a new one.
func (r *Receiver) Abort() {
	r.n = 0
	r.want = 0
}
