// internal/status/snapshot.go
package status

// Snapshot is exactly what the mirror is allowed to deliver for one sensor.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health           uint16
	Misses           uint16
	SecondsSinceSeen uint16
	Watts            [NumWattSlots]uint16
	TrxState         uint16
}

// Unknown is the snapshot of a sensor with no news yet.
func Unknown() Snapshot {
	return Snapshot{
		Health: HealthUnknown,
		Watts:  [NumWattSlots]uint16{0xFFFF, 0xFFFF, 0xFFFF},
	}
}
