// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/directory"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/report"
	"github.com/tamzrod/ecomanager-rx/internal/sensor"
)

// ---- DEFAULTS ----

const (
	DefaultTxWindow     = 500 * time.Millisecond
	DefaultTrxTimeout   = 90 * time.Millisecond
	DefaultMaxRetries   = 5
	DefaultSamplePeriod = 6000 * time.Millisecond
)

// idle is how long a tick with nothing to do, or a wait loop, yields.
const idle = time.Millisecond

// Config is the runtime configuration of one scheduler.
type Config struct {
	// TxWindow is how long to listen for a transmit-only sensor around
	// its predicted arrival.
	TxWindow time.Duration
	// TrxTimeout bounds the wait for a transceiver reply to a poll.
	TrxTimeout time.Duration
	// MaxRetries is the number of extra polls before a transceiver is
	// marked inactive.
	MaxRetries int
	// SamplePeriod is the minimum time between two roll calls.
	SamplePeriod time.Duration
	// LearnPeriod is a passive startup window. Zero disables it.
	LearnPeriod time.Duration

	Strategy    sensor.Strategy
	TxCapacity  int
	TrxCapacity int

	Mode      PairingMode
	Verbosity Verbosity

	// LogLevel, when set, can be changed from the console.
	LogLevel *slog.LevelVar
}

func (c *Config) normalize() {
	if c.TxWindow <= 0 {
		c.TxWindow = DefaultTxWindow
	}
	if c.TrxTimeout <= 0 {
		c.TrxTimeout = DefaultTrxTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.SamplePeriod <= 0 {
		c.SamplePeriod = DefaultSamplePeriod
	}
}

// Scheduler owns both directories and decides, tick by tick, whether to
// poll transceivers or listen for a transmit-only sensor.
//
// All state is owned by the goroutine calling Tick/Run. Other goroutines
// talk to it through Execute.
type Scheduler struct {
	cfg   Config
	clock clock.Clock
	src   Source
	tx    Transmitter
	rep   report.Reporter
	log   *slog.Logger

	txs  *directory.Directory
	trxs *directory.Directory

	mode      PairingMode
	armed     uint32
	armedSet  bool
	verbosity Verbosity

	// roll call
	retries     int
	rollStart   clock.Millis
	rollStarted bool

	learnUntil clock.Millis
	learning   bool

	state   State
	mailbox chan request
}

type request struct {
	cmd   commandFunc
	reply chan response
}

type response struct {
	text string
	err  error
}

type commandFunc func(s *Scheduler) (string, error)

// New builds a scheduler. rep may be nil.
func New(cfg Config, c clock.Clock, src Source, tx Transmitter, rep report.Reporter) (*Scheduler, error) {
	if c == nil {
		return nil, errors.New("scheduler: clock required")
	}
	if src == nil {
		return nil, errors.New("scheduler: source required")
	}
	if tx == nil {
		return nil, errors.New("scheduler: transmitter required")
	}
	if rep == nil {
		rep = report.Discard
	}
	cfg.normalize()

	txs, err := directory.New(frame.TransmitOnly.String(), cfg.TxCapacity, cfg.Strategy)
	if err != nil {
		return nil, err
	}
	trxs, err := directory.New(frame.Transceiver.String(), cfg.TrxCapacity, cfg.Strategy)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:       cfg,
		clock:     c,
		src:       src,
		tx:        tx,
		rep:       rep,
		log:       slog.Default().With("component", "scheduler"),
		txs:       txs,
		trxs:      trxs,
		mode:      cfg.Mode,
		verbosity: cfg.Verbosity,
		mailbox:   make(chan request),
	}

	if cfg.LearnPeriod > 0 {
		s.learning = true
		s.learnUntil = c.Now().Add(millis(cfg.LearnPeriod))
	}

	return s, nil
}

// Add pre-provisions a known sensor.
func (s *Scheduler) Add(kind frame.Kind, id uint32) error {
	_, err := s.directory(kind).Insert(id)
	return err
}

// Transmitters returns the transmit-only directory.
// Only the scheduler goroutine may touch it while Run is active.
func (s *Scheduler) Transmitters() *directory.Directory { return s.txs }

// Transceivers returns the transceiver directory.
func (s *Scheduler) Transceivers() *directory.Directory { return s.trxs }

// State is the state chosen by the last tick.
func (s *Scheduler) State() State { return s.state }

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started",
		"mode", s.mode,
		"verbosity", s.verbosity,
		"tx", s.txs.Len(),
		"trx", s.trxs.Len(),
		"learn", s.cfg.LearnPeriod,
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		default:
		}
		s.Tick()
	}
}

// Tick runs one scheduling step: pending console commands, then all
// completed frames, then at most one poll or listen window.
func (s *Scheduler) Tick() State {
	s.serveMailbox()
	s.drain(nil)

	now := s.clock.Now()

	if s.learning {
		if now.Before(s.learnUntil) {
			s.state = Learning
			s.clock.Sleep(idle)
			return s.state
		}
		s.learning = false
		s.log.Info("learning window over", "tx", s.txs.Len(), "trx", s.trxs.Len())
	}

	rec := s.nextTransmitter(now)
	if rec == nil || s.hasSlack(rec, now) {
		s.state = PollingTransceivers
		if !s.pollNextTransceiver() {
			s.clock.Sleep(idle)
		}
		return s.state
	}

	s.state = ListeningForTransmitter
	s.listenForTransmitter(rec)
	return s.state
}

// hasSlack reports whether now is more than half a window before rec's ETA.
func (s *Scheduler) hasSlack(rec *sensor.Record, now clock.Millis) bool {
	half := millis(s.cfg.TxWindow) / 2
	return now.Before(rec.ETA - clock.Millis(half))
}

// nextTransmitter returns the transmit-only record under the cursor, moving
// past records that are inactive or have no prediction. A record whose
// listen window has already closed is charged a miss and moved past.
// It returns nil when no record is worth listening for.
func (s *Scheduler) nextTransmitter(now clock.Millis) *sensor.Record {
	half := millis(s.cfg.TxWindow) / 2

	for i := 0; i < s.txs.Len(); i++ {
		rec, err := s.txs.Current()
		if err != nil {
			return nil
		}

		if rec.Active && rec.Stale(now-clock.Millis(half)) {
			rec.OnMiss()
			s.missed(frame.TransmitOnly, rec)
		} else if rec.Active && rec.ETA != clock.FarFuture {
			return rec
		}

		s.txs.Advance()
	}
	return nil
}

// pollNextTransceiver polls the transceiver under the cursor.
// It returns false when there was nothing to do.
func (s *Scheduler) pollNextTransceiver() bool {
	if s.trxs.Len() == 0 {
		return false
	}

	now := s.clock.Now()

	if s.trxs.Cursor() == 0 && s.retries == 0 {
		if s.rollStarted && now.Before(s.rollStart.Add(millis(s.cfg.SamplePeriod))) {
			return false
		}
		s.rollStart = now
		s.rollStarted = true
	}

	rec, err := s.trxs.Current()
	if err != nil {
		return false
	}
	wasActive := rec.Active

	ok := false
	if err := s.tx.SendPoll(rec.ID); err != nil {
		s.log.Warn("poll send failed", "id", rec.ID, "error", err)
	} else {
		ok = s.waitFor(frame.Transceiver, rec.ID, now.Add(millis(s.cfg.TrxTimeout)))
	}

	if ok {
		s.trxs.Advance()
		s.retries = 0
		return true
	}

	// one attempt per roll call for a transceiver that is already down
	if !wasActive {
		s.trxs.Advance()
		s.retries = 0
		return true
	}

	s.retries++
	if s.retries > s.cfg.MaxRetries {
		rec.Active = false
		if rec.Misses < 0xFF {
			rec.Misses++
		}
		s.missed(frame.Transceiver, rec)
		s.trxs.Advance()
		s.retries = 0
	}
	return true
}

// listenForTransmitter waits one window for rec.
func (s *Scheduler) listenForTransmitter(rec *sensor.Record) {
	deadline := s.clock.Now().Add(millis(s.cfg.TxWindow))

	if !s.waitFor(frame.TransmitOnly, rec.ID, deadline) {
		rec.OnMiss()
		s.missed(frame.TransmitOnly, rec)
	}
	s.txs.Advance()
}

// waitFor drains and dispatches frames until one of kind bearing id shows
// up or the deadline passes.
func (s *Scheduler) waitFor(kind frame.Kind, id uint32, deadline clock.Millis) bool {
	match := func(f *frame.Frame) bool {
		return f.Kind == kind && f.ID == id
	}

	for {
		if s.drain(match) {
			return true
		}
		if !s.clock.Now().Before(deadline) {
			return false
		}
		s.clock.Sleep(idle)
	}
}

func (s *Scheduler) directory(kind frame.Kind) *directory.Directory {
	if kind == frame.Transceiver {
		return s.trxs
	}
	return s.txs
}

func (s *Scheduler) missed(kind frame.Kind, rec *sensor.Record) {
	if rec.Active {
		s.log.Debug("sensor missed", "kind", kind, "id", rec.ID, "misses", rec.Misses)
	} else {
		s.log.Warn("sensor inactive", "kind", kind, "id", rec.ID, "misses", rec.Misses)
	}
	s.emit(report.Event{
		Type:   report.TypeMiss,
		Kind:   kind,
		ID:     rec.ID,
		Misses: rec.Misses,
		Active: rec.Active,
	})
}

func (s *Scheduler) emit(e report.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.rep.Report(e)
}

func millis(d time.Duration) uint32 {
	return uint32(d / time.Millisecond)
}
