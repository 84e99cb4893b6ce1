package beat

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Floor for the log spectrum, in dB. Bins quieter than this count as silence.
const minDB = -100.0

// onsetEnvelope returns the spectral flux of the log-magnitude STFT, one value
// per hop. Frames are centred: frame t covers samples around t*hop.
func onsetEnvelope(ctx context.Context, samples []float64, nfft, hop int) ([]float64, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	half := nfft / 2
	nFrames := 1 + len(samples)/hop
	bins := half + 1
	win := window.Hann(nfft)

	env := make([]float64, nFrames)
	prev := make([]float64, bins)
	cur := make([]float64, bins)
	frame := make([]float64, nfft)

	for t := 0; t < nFrames; t++ {
		if t%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		start := t*hop - half
		for i := range frame {
			j := start + i
			if j < 0 || j >= len(samples) {
				frame[i] = 0
				continue
			}
			frame[i] = samples[j] * win[i]
		}

		spec := fft.FFTReal(frame)
		for k := 0; k < bins; k++ {
			mag := cmplx.Abs(spec[k])
			if mag > 0 {
				cur[k] = math.Max(20*math.Log10(mag), minDB)
			} else {
				cur[k] = minDB
			}
		}

		if t > 0 {
			var flux float64
			for k := 0; k < bins; k++ {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
			env[t] = flux / float64(bins)
		}
		prev, cur = cur, prev
	}
	return env, nil
}

// normalize scales env to unit sample standard deviation in place.
// It reports false when env carries no energy.
func normalize(env []float64) bool {
	if len(env) < 2 {
		return false
	}
	var sum float64
	for _, v := range env {
		sum += v
	}
	mean := sum / float64(len(env))
	var ss float64
	for _, v := range env {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(env)-1))
	if std == 0 || math.IsNaN(std) {
		return false
	}
	for i := range env {
		env[i] /= std
	}
	return true
}
