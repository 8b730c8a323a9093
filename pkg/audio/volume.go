package audio

import "math"

// volumeToPower maps linear volume (0..1) to beep's base-2 exponent.
// Unity gain at 1.0; anything at or below 0.01 is silenced via the
// Silent flag, the -10 here is just a floor.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
