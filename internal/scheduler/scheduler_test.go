// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/console"
	"github.com/tamzrod/ecomanager-rx/internal/directory"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/radio"
	"github.com/tamzrod/ecomanager-rx/internal/report"
)

// ---- helpers ----

func txFrame(id uint32, pairing bool, watts ...uint16) []byte {
	p := make([]byte, 8)
	p[0] = byte(id>>8) & 0x0F
	if pairing {
		p[0] |= 0x80
	}
	p[1] = byte(id)
	for c, w := range watts {
		p[2+2*c] = 0x80 | byte(w>>8)
		p[3+2*c] = byte(w)
	}
	return frame.ManchesterEncode(p)
}

func trxFrame(id uint32, pairing bool, watts uint16, on bool) []byte {
	b := make([]byte, frame.TransceiverLen)
	b[0] = frame.TransceiverMarker
	b[1], b[2], b[3], b[4] = byte(id>>24), byte(id>>16), byte(id>>8), byte(id)
	if pairing {
		b[6], b[7] = 0x43, 0x4F
	}
	b[8], b[9] = byte(watts>>8), byte(watts)
	if on {
		b[10] = 0x53
	}
	b[11] = frame.ModularSum(b[:11])
	return b
}

type fakeRadio struct {
	q     *radio.Queue
	clk   *clock.Fake
	reply map[uint32]bool

	polls  []uint32
	acks   []uint32
	states []bool
}

func (f *fakeRadio) SendPoll(id uint32) error {
	f.polls = append(f.polls, id)
	if f.reply[id] {
		f.q.Push(radio.Raw{Bytes: trxFrame(id, false, 25, true), Timecode: f.clk.Now()})
	}
	return nil
}

func (f *fakeRadio) SendAck(id uint32) error {
	f.acks = append(f.acks, id)
	return nil
}

func (f *fakeRadio) SendStateChange(id uint32, on bool) error {
	f.states = append(f.states, on)
	return nil
}

type recorder struct {
	events []report.Event
}

func (r *recorder) Report(e report.Event) { r.events = append(r.events, e) }

func (r *recorder) count(t report.Type) int {
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type harness struct {
	s   *Scheduler
	clk *clock.Fake
	q   *radio.Queue
	rf  *fakeRadio
	rec *recorder
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	clk := clock.NewFake(1000)
	q := radio.NewQueue(16)
	rf := &fakeRadio{q: q, clk: clk, reply: map[uint32]bool{}}
	rec := &recorder{}

	s, err := New(cfg, clk, q, rf, rec)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return &harness{s: s, clk: clk, q: q, rf: rf, rec: rec}
}

func (h *harness) push(b []byte) {
	h.q.Push(radio.Raw{Bytes: b, Timecode: h.clk.Now()})
}

// ---- construction ----

func TestNew_Validation(t *testing.T) {
	clk := clock.NewFake(1)
	q := radio.NewQueue(1)
	rf := &fakeRadio{q: q, clk: clk}

	if _, err := New(Config{}, nil, q, rf, nil); err == nil {
		t.Fatalf("expected error for nil clock")
	}
	if _, err := New(Config{}, clk, nil, rf, nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := New(Config{}, clk, q, nil, nil); err == nil {
		t.Fatalf("expected error for nil transmitter")
	}
	if _, err := New(Config{Strategy: "median"}, clk, q, rf, nil); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}

	s, err := New(Config{}, clk, q, rf, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if s.cfg.TxWindow != DefaultTxWindow || s.cfg.TrxTimeout != DefaultTrxTimeout {
		t.Fatalf("defaults not applied: %+v", s.cfg)
	}
}

// ---- state selection ----

func TestTick_EmptyTransmittersPolls(t *testing.T) {
	h := newHarness(t, Config{})
	if got := h.s.Tick(); got != PollingTransceivers {
		t.Fatalf("state=%s", got)
	}
	if len(h.rf.polls) != 0 {
		t.Fatalf("polled %v with empty directory", h.rf.polls)
	}
}

func TestHasSlack_Wraparound(t *testing.T) {
	h := newHarness(t, Config{TxWindow: 500 * time.Millisecond})
	if err := h.s.Add(frame.TransmitOnly, 77); err != nil {
		t.Fatalf("Add err=%v", err)
	}
	rec := h.s.Transmitters().Get(77)

	rec.ETA = 0x00001000
	if !h.s.hasSlack(rec, 0xFFFFFF00) {
		t.Fatalf("expected slack across wraparound")
	}
	if h.s.hasSlack(rec, 0x00001000-200) {
		t.Fatalf("inside half window must not have slack")
	}
}

// ---- roll call ----

func TestPoll_ReplyMarksSeen(t *testing.T) {
	h := newHarness(t, Config{})
	_ = h.s.Add(frame.Transceiver, 9)
	h.rf.reply[9] = true

	if got := h.s.Tick(); got != PollingTransceivers {
		t.Fatalf("state=%s", got)
	}

	rec := h.s.Transceivers().Get(9)
	if len(h.rf.polls) != 1 || h.rf.polls[0] != 9 {
		t.Fatalf("polls=%v", h.rf.polls)
	}
	if rec.LastSeen != 1000 || !rec.Active || !rec.State || rec.Watts[0] != 25 {
		t.Fatalf("record=%+v", rec)
	}
	if h.rec.count(report.TypeReading) != 1 || !h.rec.events[0].HasState {
		t.Fatalf("events=%+v", h.rec.events)
	}

	// next roll call waits for the sample period
	h.s.Tick()
	if len(h.rf.polls) != 1 {
		t.Fatalf("roll call not gated: polls=%v", h.rf.polls)
	}

	h.clk.Advance(6000)
	h.s.Tick()
	if len(h.rf.polls) != 2 {
		t.Fatalf("second roll call missing: polls=%v", h.rf.polls)
	}
}

func TestPoll_RoundRobin(t *testing.T) {
	h := newHarness(t, Config{})
	for _, id := range []uint32{10, 20, 30} {
		_ = h.s.Add(frame.Transceiver, id)
		h.rf.reply[id] = true
	}

	for i := 0; i < 3; i++ {
		h.s.Tick()
	}

	want := []uint32{10, 20, 30}
	if len(h.rf.polls) != len(want) {
		t.Fatalf("polls=%v", h.rf.polls)
	}
	for i := range want {
		if h.rf.polls[i] != want[i] {
			t.Fatalf("polls=%v want %v", h.rf.polls, want)
		}
	}
	if h.s.Transceivers().Cursor() != 0 {
		t.Fatalf("cursor=%d", h.s.Transceivers().Cursor())
	}
}

func TestPoll_RetriesThenInactive(t *testing.T) {
	h := newHarness(t, Config{MaxRetries: 2})
	_ = h.s.Add(frame.Transceiver, 9)
	rec := h.s.Transceivers().Get(9)

	for i := 0; i < 3; i++ {
		h.s.Tick()
	}
	if len(h.rf.polls) != 3 {
		t.Fatalf("polls=%d want 3", len(h.rf.polls))
	}
	if rec.Active {
		t.Fatalf("record still active after retries")
	}
	if h.rec.count(report.TypeMiss) != 1 {
		t.Fatalf("miss events=%d", h.rec.count(report.TypeMiss))
	}

	// gated until the next roll call
	h.s.Tick()
	if len(h.rf.polls) != 3 {
		t.Fatalf("polled inside sample period")
	}

	// an inactive transceiver gets a single attempt per roll call
	h.clk.Advance(6000)
	h.s.Tick()
	h.s.Tick()
	if len(h.rf.polls) != 4 {
		t.Fatalf("polls=%d want 4", len(h.rf.polls))
	}

	// and recovers when it answers again
	h.rf.reply[9] = true
	h.clk.Advance(6000)
	h.s.Tick()
	if !rec.Active || rec.Misses != 0 {
		t.Fatalf("record=%+v", rec)
	}
}

func TestPoll_WaitIsBounded(t *testing.T) {
	h := newHarness(t, Config{TrxTimeout: 90 * time.Millisecond})
	_ = h.s.Add(frame.Transceiver, 9)

	start := h.clk.Now()
	h.s.Tick()
	elapsed := h.clk.Now().Sub(start)
	if elapsed < 90 || elapsed > 95 {
		t.Fatalf("wait took %dms", elapsed)
	}
}

// ---- listening ----

func listenHarness(t *testing.T) (*harness, func() uint32) {
	h := newHarness(t, Config{})
	_ = h.s.Add(frame.TransmitOnly, 77)
	h.s.Transmitters().Get(77).OnReception(1000) // ETA 7000
	return h, func() uint32 { return uint32(h.s.Transmitters().Get(77).ETA) }
}

func TestTick_SlackBeforeETAPolls(t *testing.T) {
	h, _ := listenHarness(t)
	if got := h.s.Tick(); got != PollingTransceivers {
		t.Fatalf("state=%s", got)
	}
}

func TestListen_Reception(t *testing.T) {
	h, eta := listenHarness(t)

	h.clk.Set(6800)
	h.clk.OnSleep = func(now clock.Millis) {
		if now == 7000 {
			h.q.Push(radio.Raw{Bytes: txFrame(77, false, 180), Timecode: now})
		}
	}

	if got := h.s.Tick(); got != ListeningForTransmitter {
		t.Fatalf("state=%s", got)
	}

	rec := h.s.Transmitters().Get(77)
	if rec.LastSeen != 7000 || rec.Misses != 0 {
		t.Fatalf("record=%+v", rec)
	}
	if eta() != 13000 {
		t.Fatalf("eta=%d want 13000", eta())
	}
	if rec.Watts[0] != 180 || rec.Watts[1] != frame.Invalid {
		t.Fatalf("watts=%v", rec.Watts)
	}
	if h.clk.Now() != 7000 {
		t.Fatalf("wait did not end on reception: now=%d", h.clk.Now())
	}
}

func TestListen_MissRollsETA(t *testing.T) {
	h, eta := listenHarness(t)
	h.clk.Set(6800)

	if got := h.s.Tick(); got != ListeningForTransmitter {
		t.Fatalf("state=%s", got)
	}

	rec := h.s.Transmitters().Get(77)
	if rec.Misses != 1 || !rec.Active {
		t.Fatalf("record=%+v", rec)
	}
	if eta() != 13000 {
		t.Fatalf("eta=%d want 13000", eta())
	}
	if h.rec.count(report.TypeMiss) != 1 {
		t.Fatalf("events=%+v", h.rec.events)
	}
	if h.clk.Now() != 7300 {
		t.Fatalf("window end=%d want 7300", h.clk.Now())
	}
}

func TestNextTransmitter_StaleChargedMiss(t *testing.T) {
	h, eta := listenHarness(t)
	h.clk.Set(9000)

	if got := h.s.Tick(); got != PollingTransceivers {
		t.Fatalf("state=%s", got)
	}
	rec := h.s.Transmitters().Get(77)
	if rec.Misses != 1 || eta() != 13000 {
		t.Fatalf("record=%+v", rec)
	}
}

func TestNextTransmitter_SkipsInactiveAndUnheard(t *testing.T) {
	h := newHarness(t, Config{})
	_ = h.s.Add(frame.TransmitOnly, 1) // never heard
	_ = h.s.Add(frame.TransmitOnly, 2)
	_ = h.s.Add(frame.TransmitOnly, 3)

	h.s.Transmitters().Get(2).OnReception(1000)
	h.s.Transmitters().Get(2).Active = false
	h.s.Transmitters().Get(3).OnReception(1000)

	rec := h.s.nextTransmitter(h.clk.Now())
	if rec == nil || rec.ID != 3 {
		t.Fatalf("got %+v want id 3", rec)
	}
}

// ---- learning ----

func TestLearning_DefersPolling(t *testing.T) {
	h := newHarness(t, Config{LearnPeriod: time.Second})
	_ = h.s.Add(frame.Transceiver, 9)
	h.rf.reply[9] = true

	h.push(txFrame(77, false, 5))
	if got := h.s.Tick(); got != Learning {
		t.Fatalf("state=%s", got)
	}
	if len(h.rf.polls) != 0 {
		t.Fatalf("polled while learning")
	}

	h.clk.Advance(1000)
	if got := h.s.Tick(); got != PollingTransceivers {
		t.Fatalf("state=%s", got)
	}
	if len(h.rf.polls) != 1 {
		t.Fatalf("polls=%v", h.rf.polls)
	}
}

// ---- dispatch ----

func TestPairing_Auto(t *testing.T) {
	h := newHarness(t, Config{Mode: PairAuto})

	h.push(txFrame(2425, true))
	h.push(trxFrame(0x55100003, true, 0, false))
	h.s.drain(nil)

	if !h.s.Transmitters().Contains(2425) {
		t.Fatalf("tx not paired")
	}
	trx := h.s.Transceivers().Get(0x55100003)
	if trx == nil || !trx.PairPending {
		t.Fatalf("trx not paired: %+v", trx)
	}
	if len(h.rf.acks) != 1 {
		t.Fatalf("acks=%v", h.rf.acks)
	}
	if h.rec.count(report.TypePaired) != 2 {
		t.Fatalf("events=%+v", h.rec.events)
	}

	// TX pairing doubles as the first sighting
	if h.s.Transmitters().Get(2425).ETA != 7000 {
		t.Fatalf("tx eta=%d", h.s.Transmitters().Get(2425).ETA)
	}

	// a repeated request means the ack was lost
	h.push(trxFrame(0x55100003, true, 0, false))
	h.push(txFrame(2425, true))
	h.s.drain(nil)
	if len(h.rf.acks) != 2 || h.s.Transceivers().Len() != 1 || h.s.Transmitters().Len() != 1 {
		t.Fatalf("acks=%v trx=%d tx=%d", h.rf.acks, h.s.Transceivers().Len(), h.s.Transmitters().Len())
	}

	// an ordinary reply confirms the handshake
	h.push(trxFrame(0x55100003, false, 12, true))
	h.s.drain(nil)
	if trx.PairPending || !trx.State || trx.Watts[0] != 12 {
		t.Fatalf("trx=%+v", trx)
	}
}

func TestPairing_ManualArmed(t *testing.T) {
	h := newHarness(t, Config{Mode: PairManual})

	h.push(trxFrame(42, true, 0, false))
	h.s.drain(nil)
	if h.s.Transceivers().Contains(42) {
		t.Fatalf("paired without arming")
	}
	if h.rec.count(report.TypePairingRequest) != 1 {
		t.Fatalf("events=%+v", h.rec.events)
	}

	if _, err := h.s.Apply(console.Command{Op: console.OpPair, ID: 42}); err != nil {
		t.Fatalf("arm err=%v", err)
	}
	h.push(trxFrame(42, true, 0, false))
	h.s.drain(nil)
	if !h.s.Transceivers().Contains(42) {
		t.Fatalf("armed id not paired")
	}
	if h.s.armedSet {
		t.Fatalf("arming not consumed")
	}

	h.push(txFrame(43, true))
	h.s.drain(nil)
	if h.s.Transmitters().Contains(43) {
		t.Fatalf("paired after disarm")
	}
}

func TestDispatch_Verbosity(t *testing.T) {
	bad := trxFrame(5, false, 0, false)
	bad[11]++

	cases := []struct {
		v       Verbosity
		unknown int
		broken  int
	}{
		{OnlyKnown, 0, 0},
		{AllValid, 2, 0},
		{All, 2, 1},
	}

	for _, c := range cases {
		h := newHarness(t, Config{Verbosity: c.v})
		h.push(txFrame(77, false, 1))
		h.push(trxFrame(6, false, 1, false))
		h.push(bad)
		h.s.drain(nil)

		if got := h.rec.count(report.TypeUnknown); got != c.unknown {
			t.Fatalf("%s: unknown=%d want %d", c.v, got, c.unknown)
		}
		if got := h.rec.count(report.TypeBroken); got != c.broken {
			t.Fatalf("%s: broken=%d want %d", c.v, got, c.broken)
		}
	}
}

func TestDispatch_KnownTransmitter(t *testing.T) {
	h := newHarness(t, Config{})
	_ = h.s.Add(frame.TransmitOnly, 3455)

	h.push(txFrame(3455, false, 180))
	h.s.drain(nil)

	if len(h.rec.events) != 1 {
		t.Fatalf("events=%+v", h.rec.events)
	}
	e := h.rec.events[0]
	if e.Type != report.TypeReading || e.ID != 3455 || e.Watts[0] != 180 || e.HasState {
		t.Fatalf("event=%+v", e)
	}
	if got := report.ReadingJSON(e); got != `{"type":"tx","id":3455,"t":1000,"sensors":{"1":180}}` {
		t.Fatalf("json=%s", got)
	}
}

// ---- console ----

func TestApply_Directories(t *testing.T) {
	h := newHarness(t, Config{})

	if _, err := h.s.Apply(console.Command{Op: console.OpAdd, Target: console.TargetTX, ID: 5}); err != nil {
		t.Fatalf("add err=%v", err)
	}
	_, err := h.s.Apply(console.Command{Op: console.OpAdd, Target: console.TargetTX, ID: 5})
	if !errors.Is(err, directory.ErrAlreadyPresent) {
		t.Fatalf("duplicate add err=%v", err)
	}
	_, err = h.s.Apply(console.Command{Op: console.OpRemove, Target: console.TargetTRX, ID: 5})
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("remove err=%v", err)
	}
	if _, err := h.s.Apply(console.Command{Op: console.OpAdd, Target: console.TargetTRX, ID: 9}); err != nil {
		t.Fatalf("add err=%v", err)
	}

	out, err := h.s.Apply(console.Command{Op: console.OpList, Target: console.TargetAll})
	if err != nil {
		t.Fatalf("list err=%v", err)
	}
	want := `tx=[{"id":5,"active":true,"misses":0,"period_ms":6000}] trx=[{"id":9,"active":true,"misses":0,"state":0}]`
	if out != want {
		t.Fatalf("list\n got %s\nwant %s", out, want)
	}

	if _, err := h.s.Apply(console.Command{Op: console.OpClear, Target: console.TargetTRX}); err != nil {
		t.Fatalf("clear err=%v", err)
	}
	if h.s.Transceivers().Len() != 0 || h.rec.count(report.TypeRemoved) != 1 {
		t.Fatalf("clear left %d records", h.s.Transceivers().Len())
	}

	if _, err := h.s.Apply(console.Command{Op: console.OpRemove, Target: console.TargetTX, ID: 5}); err != nil {
		t.Fatalf("remove err=%v", err)
	}
	if _, err := h.s.Apply(console.Command{Op: console.OpClear}); err == nil {
		t.Fatalf("clear without kind must fail")
	}
}

func TestApply_Settings(t *testing.T) {
	lv := new(slog.LevelVar)
	h := newHarness(t, Config{LogLevel: lv})

	if out, _ := h.s.Apply(console.Command{Op: console.OpVerbosity}); out != "only_known" {
		t.Fatalf("verbosity=%q", out)
	}
	if out, _ := h.s.Apply(console.Command{Op: console.OpVerbosity, Arg: "all"}); out != "all" || h.s.verbosity != All {
		t.Fatalf("verbosity=%q", out)
	}
	if _, err := h.s.Apply(console.Command{Op: console.OpVerbosity, Arg: "loud"}); err == nil {
		t.Fatalf("expected verbosity error")
	}

	if out, err := h.s.Apply(console.Command{Op: console.OpLevel, Arg: "debug"}); err != nil || out != "debug" {
		t.Fatalf("level=%q err=%v", out, err)
	}
	if lv.Level() != slog.LevelDebug {
		t.Fatalf("level var not updated")
	}

	if out, _ := h.s.Apply(console.Command{Op: console.OpAuto}); out != "pairing mode auto" || h.s.mode != PairAuto {
		t.Fatalf("auto=%q", out)
	}
	_, _ = h.s.Apply(console.Command{Op: console.OpManual})
	if h.s.mode != PairManual {
		t.Fatalf("mode=%s", h.s.mode)
	}

	out, err := h.s.Apply(console.Command{Op: console.OpStats})
	if err != nil || !strings.Contains(out, "dropped=0") {
		t.Fatalf("stats=%q err=%v", out, err)
	}
}

func TestApply_StateChange(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.s.Apply(console.Command{Op: console.OpOn, ID: 9})
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}

	_ = h.s.Add(frame.Transceiver, 9)
	if _, err := h.s.Apply(console.Command{Op: console.OpOn, ID: 9}); err != nil {
		t.Fatalf("on err=%v", err)
	}
	if _, err := h.s.Apply(console.Command{Op: console.OpOff, ID: 9}); err != nil {
		t.Fatalf("off err=%v", err)
	}
	if len(h.rf.states) != 2 || !h.rf.states[0] || h.rf.states[1] {
		t.Fatalf("states=%v", h.rf.states)
	}
}

func TestExecute_ThroughRun(t *testing.T) {
	h := newHarness(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.s.Run(ctx)
		close(done)
	}()

	tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tcancel()

	out, err := h.s.Execute(tctx, console.Command{Op: console.OpAuto})
	if err != nil || out != "pairing mode auto" {
		t.Fatalf("out=%q err=%v", out, err)
	}

	cancel()
	<-done
}

func TestExecute_NotRunning(t *testing.T) {
	h := newHarness(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := h.s.Execute(ctx, console.Command{Op: console.OpAuto}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
}
