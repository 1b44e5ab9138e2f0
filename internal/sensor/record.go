// internal/sensor/record.go
package sensor

import (
	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
)

// ---- PERIOD LIMITS (ms) ----

// NominalPeriod seeds every estimator.
const NominalPeriod uint32 = 6000

// Intervals outside [MinPeriod, MaxPeriod] are discarded.
const (
	MinPeriod uint32 = 5700
	MaxPeriod uint32 = 6300
)

// MaxMisses is the number of consecutive misses tolerated before a record
// goes inactive.
const MaxMisses = 5

// Record is the state kept for one known sensor.
type Record struct {
	ID uint32

	ETA      clock.Millis
	LastSeen clock.Millis // 0 = never
	Misses   uint8
	Active   bool

	// Transceiver only.
	PairPending bool
	State       bool

	// Watts is the last reported reading.
	Watts [frame.NumChannels]uint16

	period Estimator
}

// NewRecord returns an active record with no prediction yet.
// A nil estimator falls back to Scalar.
func NewRecord(id uint32, est Estimator) *Record {
	if est == nil {
		est = NewScalar(NominalPeriod)
	}
	return &Record{
		ID:     id,
		ETA:    clock.FarFuture,
		Active: true,
		Watts:  [frame.NumChannels]uint16{frame.Invalid, frame.Invalid, frame.Invalid},
		period: est,
	}
}

// Period is the current inter-arrival estimate in ms.
func (r *Record) Period() uint32 { return r.period.Estimate() }

// OnReception records a successful reception at now.
func (r *Record) OnReception(now clock.Millis) {
	if r.LastSeen != 0 {
		interval := uint32(now - r.LastSeen)
		if interval >= MinPeriod && interval <= MaxPeriod {
			r.period.Add(interval)
		}
	}

	r.ETA = predict(now, r.period.Estimate())
	r.LastSeen = now
	r.Misses = 0
	r.Active = true
}

// MarkSeen records a reply from a polled device.
// Polled devices answer on demand, so the period estimate is left alone.
func (r *Record) MarkSeen(now clock.Millis) {
	r.LastSeen = now
	r.Misses = 0
	r.Active = true
}

// OnMiss records that the sensor did not show up in its window.
func (r *Record) OnMiss() {
	if r.ETA != clock.FarFuture {
		r.ETA = predict(r.ETA, r.period.Estimate())
	}
	if r.Misses < 0xFF {
		r.Misses++
	}
	if r.Misses > MaxMisses {
		r.Active = false
	}
}

// PredictedETA returns ETA, or FarFuture when there is no prediction or it
// has already passed.
func (r *Record) PredictedETA(now clock.Millis) clock.Millis {
	if r.ETA == clock.FarFuture {
		return clock.FarFuture
	}
	if r.ETA.Before(now) {
		return clock.FarFuture
	}
	return r.ETA
}

// Stale reports whether a prediction exists but now is already past it.
func (r *Record) Stale(now clock.Millis) bool {
	return r.ETA != clock.FarFuture && r.ETA.Before(now)
}

func predict(from clock.Millis, period uint32) clock.Millis {
	eta := from.Add(period)
	if eta == clock.FarFuture {
		eta--
	}
	return eta
}
