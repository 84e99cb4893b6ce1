package beat

import "math"

const (
	minBPM = 30.0
	maxBPM = 300.0
	// Autocorrelation horizon in seconds.
	acSeconds = 8.0
	// Width of the log-normal tempo prior, in octaves.
	priorOctaves = 1.0
)

// estimateTempo picks the autocorrelation lag with the best prior-weighted
// score and returns it in BPM. fps is onset frames per second.
func estimateTempo(env []float64, fps, startBPM float64) float64 {
	maxLag := int(math.Round(acSeconds * fps))
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if maxLag < 1 {
		return startBPM
	}

	ac := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		var s float64
		for i := lag; i < len(env); i++ {
			s += env[i] * env[i-lag]
		}
		ac[lag] = s
	}
	if ac[0] <= 0 {
		return startBPM
	}

	best := startBPM
	bestScore := math.Inf(-1)
	for lag := 1; lag <= maxLag; lag++ {
		bpm := 60 * fps / float64(lag)
		if bpm < minBPM || bpm > maxBPM {
			continue
		}
		norm := math.Max(ac[lag]/ac[0], 0)
		z := (math.Log2(bpm) - math.Log2(startBPM)) / priorOctaves
		score := math.Log1p(1e6*norm) - 0.5*z*z
		if score > bestScore {
			bestScore = score
			best = bpm
		}
	}
	return best
}
