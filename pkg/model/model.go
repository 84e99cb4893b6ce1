package model

import (
	"fmt"
)

// Waveform is a mono sequence of samples paired with its sample rate.
type Waveform struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sample_rate"` // samples per second
}

// Len returns the number of sample frames.
func (w *Waveform) Len() int {
	return len(w.Samples)
}

// Duration returns the length of the waveform in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// BeatMap holds the tempo estimate and the beat positions of a waveform.
type BeatMap struct {
	Tempo     float64   `json:"tempo"`      // beats per minute
	Beats     []int     `json:"beats"`      // sample-frame index of each beat
	BeatTimes []float64 `json:"beat_times"` // seconds, strictly increasing
}

// Validate checks the structural invariants of the beat map.
func (b *BeatMap) Validate() error {
	if b.Tempo <= 0 {
		return fmt.Errorf("tempo must be positive, got %v", b.Tempo)
	}
	if len(b.Beats) != len(b.BeatTimes) {
		return fmt.Errorf("beats/beat_times length mismatch: %d != %d", len(b.Beats), len(b.BeatTimes))
	}
	for i := 1; i < len(b.BeatTimes); i++ {
		if b.BeatTimes[i] <= b.BeatTimes[i-1] {
			return fmt.Errorf("beat_times not strictly increasing at index %d", i)
		}
	}
	return nil
}

// Track is the analysis record for one source file. It is the unit that gets
// cached: read wholesale on hit, written wholesale on miss.
type Track struct {
	Source   string   `json:"source"`
	Waveform Waveform `json:"waveform"`
	BeatMap  BeatMap  `json:"beat_map"`
}
