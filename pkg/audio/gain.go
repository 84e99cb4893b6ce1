package audio

import "math"

// minAudible is the overlay level below which a clip is muted outright.
const minAudible = 0.01

// levelToGain converts a linear overlay level into the exponent and mute
// flag of a base-2 effects.Volume. 4.0 gives +2, 0.5 gives -1.
func levelToGain(level float64) (exp float64, silent bool) {
	if level < minAudible {
		return 0, true
	}
	return math.Log2(level), false
}
