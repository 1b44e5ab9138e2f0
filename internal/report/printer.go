// internal/report/printer.go
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/tamzrod/ecomanager-rx/internal/frame"
)

// Printer writes events as one line each, readings as JSON objects:
//
//	{"type":"tx","id":77,"t":1234,"sensors":{"1":180}}
//
// Channel keys are 1-based; absent channels are omitted.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

type readingLine struct {
	Type    string            `json:"type"`
	ID      uint32            `json:"id"`
	T       uint32            `json:"t"`
	Sensors map[string]uint16 `json:"sensors"`
	State   *int              `json:"state,omitempty"`
}

func (p *Printer) Report(e Event) {
	line := p.format(e)
	if line == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, line+"\n")
}

func (p *Printer) format(e Event) string {
	switch e.Type {
	case TypeReading:
		return ReadingJSON(e)
	case TypeUnknown:
		return fmt.Sprintf("unknown %s id=%d t=%d %s", e.Kind, e.ID, e.Timecode, ReadingJSON(e))
	case TypeBroken:
		return fmt.Sprintf("broken packet t=%d: %s", e.Timecode, e.Err)
	case TypePairingRequest:
		return fmt.Sprintf("pairing request from %s id=%d (use 'pair %d' to accept)", e.Kind, e.ID, e.ID)
	case TypePaired:
		return fmt.Sprintf("paired %s id=%d", e.Kind, e.ID)
	case TypeMiss:
		return fmt.Sprintf("missed %s id=%d misses=%d active=%v", e.Kind, e.ID, e.Misses, e.Active)
	case TypeRemoved:
		return fmt.Sprintf("removed %s id=%d", e.Kind, e.ID)
	default:
		return ""
	}
}

// ReadingJSON renders the reading carried by e.
func ReadingJSON(e Event) string {
	l := readingLine{
		Type:    e.Kind.String(),
		ID:      e.ID,
		T:       uint32(e.Timecode),
		Sensors: make(map[string]uint16, frame.NumChannels),
	}
	for c, w := range e.Watts {
		if w != frame.Invalid {
			l.Sensors[strconv.Itoa(c+1)] = w
		}
	}
	if e.HasState {
		s := 0
		if e.State {
			s = 1
		}
		l.State = &s
	}

	b, err := json.Marshal(l)
	if err != nil {
		return ""
	}
	return string(b)
}
