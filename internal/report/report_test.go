// internal/report/report_test.go
package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tamzrod/ecomanager-rx/internal/frame"
)

func TestReadingJSON(t *testing.T) {
	e := Event{
		Type:     TypeReading,
		Kind:     frame.TransmitOnly,
		ID:       3455,
		Timecode: 1000,
		Watts:    [frame.NumChannels]uint16{180, frame.Invalid, 7},
	}

	want := `{"type":"tx","id":3455,"t":1000,"sensors":{"1":180,"3":7}}`
	if got := ReadingJSON(e); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	e.Kind = frame.Transceiver
	e.HasState = true
	e.State = true
	e.Watts = [frame.NumChannels]uint16{25, frame.Invalid, frame.Invalid}
	want = `{"type":"trx","id":3455,"t":1000,"sensors":{"1":25},"state":1}`
	if got := ReadingJSON(e); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestPrinter_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Report(Event{Type: TypePairingRequest, Kind: frame.Transceiver, ID: 42})
	p.Report(Event{Type: TypeBroken, Timecode: 9, Err: "frame: checksum mismatch"})
	p.Report(Event{Type: "bogus"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%q", lines)
	}
	if !strings.Contains(lines[0], "pairing request from trx id=42") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "broken packet t=9") {
		t.Fatalf("line 1 = %q", lines[1])
	}
}

func TestMulti(t *testing.T) {
	var n int
	count := Func(func(Event) { n++ })
	Multi{count, nil, count}.Report(Event{})
	if n != 2 {
		t.Fatalf("n=%d", n)
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	got := make(chan Event, 4)
	a := NewAsync(Func(func(e Event) { got <- e }), 1)

	a.Report(Event{ID: 1})
	a.Report(Event{ID: 2}) // buffer full, nobody draining yet
	if a.Dropped() != 1 {
		t.Fatalf("dropped=%d", a.Dropped())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.Run(ctx)
		close(done)
	}()

	select {
	case e := <-got:
		if e.ID != 1 {
			t.Fatalf("delivered id=%d", e.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}

	cancel()
	<-done
}
