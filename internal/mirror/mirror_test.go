// internal/mirror/mirror_test.go
package mirror

import (
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/report"
	"github.com/tamzrod/ecomanager-rx/internal/status"
)

// ---- fake endpoint client ----

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeEndpointClient struct {
	writes []writeCall
	fail   bool
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail {
		return errors.New("connection reset")
	}
	cp := append([]uint16(nil), regs...)
	f.writes = append(f.writes, writeCall{unitID: unitID, addr: addr, regs: cp})
	return nil
}

func (f *fakeEndpointClient) Close() error { return nil }

func (f *fakeEndpointClient) last() writeCall { return f.writes[len(f.writes)-1] }

// ---- block writer ----

func TestBlockWriter_NameOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	w := newBlockWriter(cli, 1, 2, "TX-77")

	first := status.Unknown()
	first.Health = status.HealthOK
	if err := w.write(first); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	got := cli.last()
	if len(got.regs) != status.SlotsPerSensor || got.addr != 2*status.SlotsPerSensor {
		t.Fatalf("expected full block at %d, got %d regs at %d", 2*status.SlotsPerSensor, len(got.regs), got.addr)
	}
	name := status.EncodeName("TX-77")
	for i := 0; i < status.SlotNameSlots; i++ {
		if got.regs[status.SlotNameStart+i] != name[i] {
			t.Fatalf("name slot %d mismatch", i)
		}
	}

	second := first
	second.Watts[0] = 180
	if err := w.write(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}
	got = cli.last()
	if got.addr != 2*status.SlotsPerSensor+status.SlotWattsStart || len(got.regs) != status.NumWattSlots {
		t.Fatalf("unexpected incremental write %+v", got)
	}
	if got.regs[0] != 180 {
		t.Fatalf("watts=%v", got.regs)
	}

	// no change, no write
	n := len(cli.writes)
	_ = w.write(second)
	if len(cli.writes) != n {
		t.Fatalf("unchanged snapshot was written")
	}
}

func TestBlockWriter_ReassertAfterFailure(t *testing.T) {
	cli := &fakeEndpointClient{}
	w := newBlockWriter(cli, 1, 0, "x")

	s := status.Unknown()
	_ = w.write(s)

	cli.fail = true
	s.Health = status.HealthMissing
	if err := w.write(s); err == nil {
		t.Fatalf("expected error")
	}

	cli.fail = false
	s.Misses = 1
	if err := w.write(s); err != nil {
		t.Fatalf("write err=%v", err)
	}
	if len(cli.last().regs) != status.SlotsPerSensor {
		t.Fatalf("expected full re-assert after failure")
	}
}

// ---- mirror ----

func newTestMirror(t *testing.T) (*Mirror, *fakeEndpointClient, *time.Time) {
	t.Helper()
	cli := &fakeEndpointClient{}
	m, err := New(Config{
		UnitID: 3,
		Sensors: []Sensor{
			{Kind: frame.TransmitOnly, ID: 77, Slot: 0, Name: "boiler"},
			{Kind: frame.Transceiver, ID: 9, Slot: 1, Name: "pump"},
		},
	}, cli)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	return m, cli, &now
}

func TestNew_Validation(t *testing.T) {
	cli := &fakeEndpointClient{}
	if _, err := New(Config{Sensors: []Sensor{{ID: 1}}}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := New(Config{}, cli); err == nil {
		t.Fatalf("expected error for no sensors")
	}
	if _, err := New(Config{Sensors: []Sensor{{ID: 1, Slot: 0}, {ID: 2, Slot: 0}}}, cli); err == nil {
		t.Fatalf("expected slot conflict")
	}
	if _, err := New(Config{Sensors: []Sensor{{ID: 1, Slot: 0}, {ID: 1, Slot: 1}}}, cli); err == nil {
		t.Fatalf("expected duplicate sensor")
	}
}

func TestMirror_ReadingThenMiss(t *testing.T) {
	m, cli, now := newTestMirror(t)

	m.Report(report.Event{
		Type:     report.TypeReading,
		Kind:     frame.Transceiver,
		ID:       9,
		At:       *now,
		Watts:    [frame.NumChannels]uint16{25, frame.Invalid, frame.Invalid},
		HasState: true,
		State:    true,
	})

	full := cli.last()
	if full.unitID != 3 || full.addr != status.SlotsPerSensor || len(full.regs) != status.SlotsPerSensor {
		t.Fatalf("first write %+v", full)
	}
	if full.regs[status.SlotHealthCode] != status.HealthOK ||
		full.regs[status.SlotWattsStart] != 25 ||
		full.regs[status.SlotTrxState] != 1 {
		t.Fatalf("block=%v", full.regs)
	}

	m.Report(report.Event{Type: report.TypeMiss, Kind: frame.Transceiver, ID: 9, Misses: 6, Active: false})
	if len(cli.writes) != 3 {
		t.Fatalf("writes=%d want 3 (health, misses)", len(cli.writes))
	}
	if cli.writes[1].regs[0] != status.HealthInactive || cli.writes[2].regs[0] != 6 {
		t.Fatalf("writes=%+v", cli.writes[1:])
	}
}

func TestMirror_IgnoresUnmapped(t *testing.T) {
	m, cli, _ := newTestMirror(t)
	m.Report(report.Event{Type: report.TypeReading, Kind: frame.TransmitOnly, ID: 5})
	m.Report(report.Event{Type: report.TypeBroken})
	m.Report(report.Event{Type: report.TypePairingRequest, Kind: frame.TransmitOnly, ID: 77})
	if len(cli.writes) != 0 {
		t.Fatalf("writes=%+v", cli.writes)
	}
}

func TestMirror_RefreshSeconds(t *testing.T) {
	m, cli, now := newTestMirror(t)

	m.Report(report.Event{Type: report.TypeReading, Kind: frame.TransmitOnly, ID: 77, At: *now})
	*now = now.Add(5 * time.Second)
	m.Refresh()

	var seconds []uint16
	for _, w := range cli.writes {
		if w.addr == status.SlotSecondsSinceSeen && len(w.regs) == 1 {
			seconds = append(seconds, w.regs[0])
		}
	}
	if len(seconds) != 1 || seconds[0] != 5 {
		t.Fatalf("seconds writes=%v", seconds)
	}

	// never-seen sensor got its initial full block on refresh
	found := false
	for _, w := range cli.writes {
		if w.addr == status.SlotsPerSensor && len(w.regs) == status.SlotsPerSensor {
			found = w.regs[status.SlotHealthCode] == status.HealthUnknown
		}
	}
	if !found {
		t.Fatalf("unknown block for trx 9 not written")
	}
}

func TestSecondsSince_Saturates(t *testing.T) {
	m, _, now := newTestMirror(t)
	ent := &entry{seen: true, lastSeen: now.Add(-100000 * time.Second)}
	if got := m.secondsSince(ent, *now); got != status.MaxSeconds {
		t.Fatalf("got %d", got)
	}
	if got := m.secondsSince(&entry{}, *now); got != 0 {
		t.Fatalf("never seen = %d", got)
	}
}

func TestNewClient_UnknownTransport(t *testing.T) {
	if _, err := NewClient("carrier-pigeon", "x:1", time.Second); err == nil {
		t.Fatalf("expected error")
	}
}
