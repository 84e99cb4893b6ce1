package beat

import (
	"math"
	"sort"
)

// localScore smooths the onset envelope with a Gaussian spanning one period.
func localScore(env []float64, period int) []float64 {
	g := make([]float64, 2*period+1)
	for k := -period; k <= period; k++ {
		x := float64(k) * 32 / float64(period)
		g[k+period] = math.Exp(-0.5 * x * x)
	}

	out := make([]float64, len(env))
	for i := range env {
		var s float64
		for k := -period; k <= period; k++ {
			j := i + k
			if j < 0 || j >= len(env) {
				continue
			}
			s += env[j] * g[k+period]
		}
		out[i] = s
	}
	return out
}

// trackBeats runs the dynamic program that trades onset strength against
// deviation from the expected period, then backtracks from the best ending.
// Returned frames are strictly increasing.
func trackBeats(score []float64, period int, tightness float64) []int {
	n := len(score)
	if n == 0 || period < 1 {
		return nil
	}

	// Candidate predecessors lie between half and twice a period back
	minOff := int(math.Round(float64(period) / 2))
	if minOff < 1 {
		minOff = 1
	}
	maxOff := 2 * period
	txwt := make([]float64, maxOff+1)
	for d := minOff; d <= maxOff; d++ {
		l := math.Log(float64(d) / float64(period))
		txwt[d] = -tightness * l * l
	}

	maxScore := 0.0
	for _, v := range score {
		maxScore = math.Max(maxScore, v)
	}

	cum := make([]float64, n)
	back := make([]int, n)
	firstBeat := true
	for i := 0; i < n; i++ {
		bestVal := math.Inf(-1)
		bestPrev := -1
		// Farthest candidate first so ties favour the longer gap
		for d := maxOff; d >= minOff; d-- {
			v := txwt[d]
			prev := i - d
			if prev >= 0 {
				v += cum[prev]
			}
			if v > bestVal {
				bestVal = v
				bestPrev = prev
			}
		}
		cum[i] = score[i] + bestVal

		if firstBeat && score[i] < 0.01*maxScore {
			back[i] = -1
		} else {
			back[i] = bestPrev
			firstBeat = false
		}
	}

	last := lastBeat(cum)
	if last < 0 {
		return nil
	}
	beats := []int{last}
	for b := back[last]; b >= 0; b = back[b] {
		beats = append(beats, b)
	}
	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}
	return trimBeats(score, beats)
}

// lastBeat returns the final local maximum of the cumulative score that
// reaches half the median peak.
func lastBeat(cum []float64) int {
	n := len(cum)
	isMax := make([]bool, n)
	var peaks []float64
	for i := 0; i < n; i++ {
		left := i > 0 && cum[i] > cum[i-1]
		right := i == n-1 || cum[i] >= cum[i+1]
		if left && right {
			isMax[i] = true
			peaks = append(peaks, cum[i])
		}
	}
	if len(peaks) == 0 {
		return -1
	}
	sort.Float64s(peaks)
	var med float64
	if m := len(peaks); m%2 == 1 {
		med = peaks[m/2]
	} else {
		med = (peaks[m/2-1] + peaks[m/2]) / 2
	}

	for i := n - 1; i >= 0; i-- {
		if isMax[i] && 2*cum[i] > med {
			return i
		}
	}
	return -1
}

// trimBeats drops weak beats from both ends. A beat is weak when its smoothed
// onset score falls below half the RMS of all beat scores.
func trimBeats(score []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}
	w := [5]float64{0, 0.5, 1, 0.5, 0}

	smooth := make([]float64, len(beats))
	var ms float64
	for i := range beats {
		var s float64
		for k := -2; k <= 2; k++ {
			j := i + k
			if j < 0 || j >= len(beats) {
				continue
			}
			s += score[beats[j]] * w[k+2]
		}
		smooth[i] = s
		ms += s * s
	}
	threshold := 0.5 * math.Sqrt(ms/float64(len(beats)))

	lo, hi := -1, -1
	for i, s := range smooth {
		if s > threshold {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return nil
	}
	return beats[lo : hi+1]
}
