// internal/frame/manchester.go
package frame

import "golang.org/x/xerrors"

// ManchesterDecode maps each 2-bit window of src to one data bit
// (10 -> 1, 01 -> 0), so two source bytes yield one output byte.
//
// Illegal windows (00, 11) make the result an error, but decoding runs to
// the end and the partial output is returned alongside the error.
func ManchesterDecode(src []byte) ([]byte, error) {
	if len(src)%2 != 0 {
		return nil, xerrors.Errorf("frame: manchester input has odd length %d: %w", len(src), ErrLength)
	}

	out := make([]byte, len(src)/2)
	illegal := -1 // bit offset of the first illegal pair

	for i := range out {
		var v byte
		for j := 0; j < 2; j++ {
			in := src[2*i+j]
			for shift := 6; shift >= 0; shift -= 2 {
				v <<= 1
				switch (in >> uint(shift)) & 0x03 {
				case 0x02:
					v |= 1
				case 0x01:
				default:
					if illegal < 0 {
						illegal = (2*i+j)*8 + (6 - shift)
					}
				}
			}
		}
		out[i] = v
	}

	if illegal >= 0 {
		return out, xerrors.Errorf("frame: illegal pair at bit %d: %w", illegal, ErrManchester)
	}
	return out, nil
}

// ManchesterEncode is the inverse of ManchesterDecode.
func ManchesterEncode(src []byte) []byte {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		var hi, lo byte
		for bit := 7; bit >= 0; bit-- {
			pair := byte(0x01)
			if b&(1<<uint(bit)) != 0 {
				pair = 0x02
			}
			if bit >= 4 {
				hi = hi<<2 | pair
			} else {
				lo = lo<<2 | pair
			}
		}
		out[2*i] = hi
		out[2*i+1] = lo
	}
	return out
}
