// internal/scheduler/dispatch.go
package scheduler

import (
	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/radio"
	"github.com/tamzrod/ecomanager-rx/internal/report"
)

// drain decodes and dispatches every completed frame in queue order.
// It reports whether any healthy frame satisfied match.
func (s *Scheduler) drain(match func(*frame.Frame) bool) bool {
	hit := false
	s.src.Drain(func(r radio.Raw) {
		f := frame.Decode(r.Bytes, r.Timecode)
		s.dispatch(&f)
		if match != nil && f.Health == frame.OK && match(&f) {
			hit = true
		}
	})
	return hit
}

func (s *Scheduler) dispatch(f *frame.Frame) {
	if f.Health != frame.OK {
		s.log.Debug("broken frame", "kind", f.Kind, "t", f.Timecode, "error", f.Err)
		if s.verbosity >= All {
			e := report.Event{Type: report.TypeBroken, Kind: f.Kind, Timecode: f.Timecode}
			if f.Err != nil {
				e.Err = f.Err.Error()
			}
			s.emit(e)
		}
		return
	}

	if f.Pairing {
		s.onPairingRequest(f)
		return
	}

	switch f.Kind {
	case frame.TransmitOnly:
		rec := s.txs.Get(f.ID)
		if rec == nil {
			s.onUnknown(f)
			return
		}
		rec.OnReception(f.Timecode)
		rec.Watts = f.Watts
		s.emit(reading(f, false))

	case frame.Transceiver:
		rec := s.trxs.Get(f.ID)
		if rec == nil {
			s.onUnknown(f)
			return
		}
		rec.MarkSeen(f.Timecode)
		rec.PairPending = false
		rec.State = f.State
		rec.Watts = f.Watts
		s.emit(reading(f, true))
	}
}

func (s *Scheduler) onUnknown(f *frame.Frame) {
	if s.verbosity < AllValid {
		return
	}
	e := reading(f, f.Kind == frame.Transceiver)
	e.Type = report.TypeUnknown
	s.emit(e)
}

// onPairingRequest handles a device asking to be paired.
// A transceiver that is already known did not see our acknowledgment, so it
// is sent again.
func (s *Scheduler) onPairingRequest(f *frame.Frame) {
	if rec := s.directory(f.Kind).Get(f.ID); rec != nil {
		if f.Kind == frame.Transceiver {
			rec.PairPending = true
			s.log.Info("re-sending pairing ack", "id", f.ID)
			s.ack(f.ID)
		}
		return
	}

	if s.mode != PairAuto && !(s.armedSet && s.armed == f.ID) {
		s.log.Info("pairing request", "kind", f.Kind, "id", f.ID)
		s.emit(report.Event{
			Type:     report.TypePairingRequest,
			Kind:     f.Kind,
			ID:       f.ID,
			Timecode: f.Timecode,
		})
		return
	}

	if err := s.pair(f.Kind, f.ID, f.Timecode); err != nil {
		s.log.Warn("pairing failed", "kind", f.Kind, "id", f.ID, "error", err)
	}
}

// pair inserts id and, for a transceiver, acknowledges it.
// The insert is optimistic: a lost ack shows up as a repeated request.
func (s *Scheduler) pair(kind frame.Kind, id uint32, now clock.Millis) error {
	rec, err := s.directory(kind).Insert(id)
	if err != nil {
		return err
	}
	if s.armedSet && s.armed == id {
		s.armedSet = false
	}

	switch kind {
	case frame.TransmitOnly:
		rec.OnReception(now)
	case frame.Transceiver:
		rec.MarkSeen(now)
		rec.PairPending = true
		s.ack(id)
	}

	s.log.Info("paired", "kind", kind, "id", id)
	s.emit(report.Event{Type: report.TypePaired, Kind: kind, ID: id, Timecode: now})
	return nil
}

func (s *Scheduler) ack(id uint32) {
	if err := s.tx.SendAck(id); err != nil {
		s.log.Warn("ack send failed", "id", id, "error", err)
	}
}

func reading(f *frame.Frame, hasState bool) report.Event {
	return report.Event{
		Type:     report.TypeReading,
		Kind:     f.Kind,
		ID:       f.ID,
		Timecode: f.Timecode,
		Watts:    f.Watts,
		HasState: hasState,
		State:    f.State,
	}
}
