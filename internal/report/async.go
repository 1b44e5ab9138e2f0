// internal/report/async.go
package report

import (
	"context"
	"sync/atomic"
)

// Async decouples a slow reporter from the scheduler.
// Report never blocks: when the buffer is full the event is dropped and
// counted.
type Async struct {
	next    Reporter
	ch      chan Event
	dropped atomic.Uint64
}

func NewAsync(next Reporter, size int) *Async {
	if size <= 0 {
		size = 64
	}
	return &Async{next: next, ch: make(chan Event, size)}
}

func (a *Async) Report(e Event) {
	select {
	case a.ch <- e:
	default:
		a.dropped.Add(1)
	}
}

// Dropped is the number of events lost to a full buffer.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Run delivers buffered events until ctx is done.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-a.ch:
			a.next.Report(e)
		}
	}
}
