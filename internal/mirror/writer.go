// internal/mirror/writer.go
package mirror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/ecomanager-rx/internal/status"
)

// Client is the exact contract the mirror uses for a register endpoint.
type Client interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
	Close() error
}

// blockWriter delivers one sensor's status block.
// The first write, and the first write after any failure, re-asserts the
// full block including the name; later writes only touch changed slots.
type blockWriter struct {
	cli      Client
	unitID   uint8
	base     uint16
	nameRegs []uint16

	needFull bool
	last     status.Snapshot
}

func newBlockWriter(cli Client, unitID uint8, slot uint16, name string) *blockWriter {
	return &blockWriter{
		cli:      cli,
		unitID:   unitID,
		base:     slot * status.SlotsPerSensor,
		nameRegs: status.EncodeName(name),
		needFull: true,
		last:     status.Unknown(),
	}
}

func (w *blockWriter) write(s status.Snapshot) error {
	if w.cli == nil {
		return errors.New("mirror: missing client")
	}

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if w.needFull {
		if err := w.cli.WriteRegisters(w.unitID, w.base, status.Encode(s, w.nameRegs)); err != nil {
			return fmt.Errorf("mirror: full block write at %d failed: %w", w.base, err)
		}
		w.needFull = false
		w.last = s
		return nil
	}

	var errs []string

	put := func(slot int, regs []uint16, what string) bool {
		if err := w.cli.WriteRegisters(w.unitID, w.base+uint16(slot), regs); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", slot, what, err))
			return false
		}
		return true
	}

	if w.last.Health != s.Health && put(status.SlotHealthCode, []uint16{s.Health}, "health") {
		w.last.Health = s.Health
	}
	if w.last.Misses != s.Misses && put(status.SlotMisses, []uint16{s.Misses}, "misses") {
		w.last.Misses = s.Misses
	}
	if w.last.SecondsSinceSeen != s.SecondsSinceSeen && put(status.SlotSecondsSinceSeen, []uint16{s.SecondsSinceSeen}, "seconds") {
		w.last.SecondsSinceSeen = s.SecondsSinceSeen
	}
	if w.last.Watts != s.Watts && put(status.SlotWattsStart, s.Watts[:], "watts") {
		w.last.Watts = s.Watts
	}
	if w.last.TrxState != s.TrxState && put(status.SlotTrxState, []uint16{s.TrxState}, "state") {
		w.last.TrxState = s.TrxState
	}

	if len(errs) > 0 {
		// any partial failure introduces doubt: re-assert on next success
		w.needFull = true
		return errors.New("mirror: " + strings.Join(errs, " | "))
	}
	return nil
}
