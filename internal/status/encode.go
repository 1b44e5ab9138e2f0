// internal/status/encode.go
package status

// Encode converts a Snapshot into a full sensor status block.
// nameRegs comes from EncodeName. Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot, nameRegs []uint16) []uint16 {
	regs := make([]uint16, SlotsPerSensor)

	regs[SlotHealthCode] = s.Health
	regs[SlotMisses] = s.Misses
	regs[SlotSecondsSinceSeen] = s.SecondsSinceSeen
	copy(regs[SlotWattsStart:SlotWattsStart+NumWattSlots], s.Watts[:])
	regs[SlotTrxState] = s.TrxState

	// reserved slots stay zero

	for i := 0; i < SlotNameSlots && i < len(nameRegs); i++ {
		regs[SlotNameStart+i] = nameRegs[i]
	}

	return regs
}

// EncodeName packs up to 16 ASCII characters into 8 registers, two
// characters per register, big-endian. Non-printable bytes become '?'.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotNameSlots)

	b := []byte(name)
	if len(b) > NameMaxChars {
		b = b[:NameMaxChars]
	}

	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < NameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
