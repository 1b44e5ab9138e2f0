// internal/scheduler/types.go
package scheduler

import (
	"fmt"

	"github.com/tamzrod/ecomanager-rx/internal/radio"
)

// State is what the scheduler did on a tick.
type State int

const (
	PollingTransceivers State = iota
	ListeningForTransmitter
	Learning
)

func (s State) String() string {
	switch s {
	case PollingTransceivers:
		return "polling"
	case ListeningForTransmitter:
		return "listening"
	case Learning:
		return "learning"
	default:
		return "unknown"
	}
}

// PairingMode decides who may pair.
type PairingMode int

const (
	// PairManual pairs only an ID the operator armed beforehand.
	PairManual PairingMode = iota
	// PairAuto pairs with any device that asks.
	PairAuto
)

func (m PairingMode) String() string {
	if m == PairAuto {
		return "auto"
	}
	return "manual"
}

func ParsePairingMode(s string) (PairingMode, error) {
	switch s {
	case "", "manual":
		return PairManual, nil
	case "auto":
		return PairAuto, nil
	}
	return PairManual, fmt.Errorf("scheduler: unknown pairing mode %q", s)
}

// Verbosity selects which received frames are reported.
type Verbosity int

const (
	// OnlyKnown reports readings from paired sensors only.
	OnlyKnown Verbosity = iota
	// AllValid adds healthy frames from unknown sensors.
	AllValid
	// All adds broken frames.
	All
)

func (v Verbosity) String() string {
	switch v {
	case OnlyKnown:
		return "only_known"
	case AllValid:
		return "all_valid"
	case All:
		return "all"
	default:
		return "unknown"
	}
}

func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "only_known", "known":
		return OnlyKnown, nil
	case "all_valid", "valid", "":
		return AllValid, nil
	case "all":
		return All, nil
	}
	return OnlyKnown, fmt.Errorf("scheduler: unknown verbosity %q", s)
}

// Transmitter sends commands to transceivers.
type Transmitter interface {
	SendPoll(id uint32) error
	SendAck(id uint32) error
	SendStateChange(id uint32, on bool) error
}

// Source yields completed raw frames.
type Source interface {
	Drain(fn func(radio.Raw)) int
	Stats() radio.QueueStats
}
