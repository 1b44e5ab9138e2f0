// internal/report/event.go
package report

import (
	"time"

	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
)

// Type classifies an Event.
type Type string

const (
	TypeReading        Type = "reading"
	TypeUnknown        Type = "unknown"
	TypeBroken         Type = "broken"
	TypePairingRequest Type = "pairing_request"
	TypePaired         Type = "paired"
	TypeMiss           Type = "miss"
	TypeRemoved        Type = "removed"
)

// Event is one outward notification from the scheduler.
// Fields not relevant to Type are left zero.
type Event struct {
	Type     Type
	Kind     frame.Kind
	ID       uint32
	Timecode clock.Millis
	At       time.Time

	Watts    [frame.NumChannels]uint16
	HasState bool
	State    bool

	Misses uint8
	Active bool

	Err string
}

// Reporter receives events. Implementations must not block for long:
// the scheduler calls Report from its timing loop.
type Reporter interface {
	Report(e Event)
}

// Func adapts a function to Reporter.
type Func func(e Event)

func (f Func) Report(e Event) { f(e) }

// Multi fans an event out to every reporter in order.
type Multi []Reporter

func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

// Discard drops every event.
var Discard Reporter = Func(func(Event) {})
