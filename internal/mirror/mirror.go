// internal/mirror/mirror.go
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/report"
	"github.com/tamzrod/ecomanager-rx/internal/status"
)

// Sensor maps one sensor to a status block.
type Sensor struct {
	Kind frame.Kind
	ID   uint32
	Slot uint16
	Name string
}

type Config struct {
	UnitID  uint8
	Sensors []Sensor
	// Refresh is the period of the seconds-since-seen update.
	Refresh time.Duration
}

type key struct {
	kind frame.Kind
	id   uint32
}

type entry struct {
	w        *blockWriter
	snap     status.Snapshot
	lastSeen time.Time
	seen     bool
}

// Mirror keeps a register block per configured sensor in step with the
// scheduler's events. It implements report.Reporter.
type Mirror struct {
	cli     Client
	refresh time.Duration
	now     func() time.Time

	mu      sync.Mutex
	sensors map[key]*entry
}

func New(cfg Config, cli Client) (*Mirror, error) {
	if cli == nil {
		return nil, errors.New("mirror: client required")
	}
	if len(cfg.Sensors) == 0 {
		return nil, errors.New("mirror: no sensors mapped")
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = time.Second
	}

	m := &Mirror{
		cli:     cli,
		refresh: cfg.Refresh,
		now:     time.Now,
		sensors: make(map[key]*entry, len(cfg.Sensors)),
	}

	slots := make(map[uint16]Sensor, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		k := key{s.Kind, s.ID}
		if _, dup := m.sensors[k]; dup {
			return nil, fmt.Errorf("mirror: %s %d mapped twice", s.Kind, s.ID)
		}
		if other, dup := slots[s.Slot]; dup {
			return nil, fmt.Errorf("mirror: slot %d used by %s %d and %s %d", s.Slot, other.Kind, other.ID, s.Kind, s.ID)
		}
		slots[s.Slot] = s

		m.sensors[k] = &entry{
			w:    newBlockWriter(cli, cfg.UnitID, s.Slot, s.Name),
			snap: status.Unknown(),
		}
	}

	return m, nil
}

// Report folds e into the mapped sensor's block and writes the change.
func (m *Mirror) Report(e report.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent := m.sensors[key{e.Kind, e.ID}]
	if ent == nil {
		return
	}

	at := e.At
	if at.IsZero() {
		at = m.now()
	}

	switch e.Type {
	case report.TypeReading:
		ent.snap.Health = status.HealthOK
		ent.snap.Misses = 0
		for c := 0; c < status.NumWattSlots && c < frame.NumChannels; c++ {
			ent.snap.Watts[c] = e.Watts[c]
		}
		if e.HasState {
			ent.snap.TrxState = boolReg(e.State)
		}
		ent.seen, ent.lastSeen = true, at

	case report.TypePaired:
		ent.snap.Health = status.HealthOK
		ent.snap.Misses = 0
		ent.seen, ent.lastSeen = true, at

	case report.TypeMiss:
		ent.snap.Misses = uint16(e.Misses)
		if e.Active {
			ent.snap.Health = status.HealthMissing
		} else {
			ent.snap.Health = status.HealthInactive
		}

	case report.TypeRemoved:
		ent.snap.Health = status.HealthRemoved

	default:
		return
	}

	ent.snap.SecondsSinceSeen = m.secondsSince(ent, at)
	m.flush(ent)
}

// Run refreshes seconds-since-seen until ctx is done. Blocks that failed
// to write are retried on every refresh.
func (m *Mirror) Run(ctx context.Context) error {
	m.mu.Lock()
	for _, ent := range m.sensors {
		m.flush(ent)
	}
	m.mu.Unlock()

	ticker := time.NewTicker(m.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Refresh()
		}
	}
}

// Refresh recomputes the seconds counters and writes what changed.
func (m *Mirror) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, ent := range m.sensors {
		ent.snap.SecondsSinceSeen = m.secondsSince(ent, now)
		m.flush(ent)
	}
}

// Close closes the endpoint client.
func (m *Mirror) Close() error { return m.cli.Close() }

func (m *Mirror) flush(ent *entry) {
	if err := ent.w.write(ent.snap); err != nil {
		slog.Warn("mirror write failed", "base", ent.w.base, "error", err)
	}
}

func (m *Mirror) secondsSince(ent *entry, now time.Time) uint16 {
	if !ent.seen {
		return 0
	}
	d := now.Sub(ent.lastSeen)
	if d < 0 {
		return 0
	}
	s := d / time.Second
	if s > status.MaxSeconds {
		return status.MaxSeconds
	}
	return uint16(s)
}

func boolReg(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
