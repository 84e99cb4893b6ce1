// Package beat estimates tempo and beat positions and caches the result.
package beat

import (
	"context"
	"log/slog"
	"math"

	"salsatempo/pkg/config"
	"salsatempo/pkg/model"
)

// Track estimates the tempo and beat positions of w. Beat positions are
// sample-frame indices aligned to the onset hop. A waveform without energy
// yields the prior tempo and no beats.
func Track(ctx context.Context, w *model.Waveform, cfg config.AnalyzerConfig) (model.BeatMap, error) {
	silent := model.BeatMap{Tempo: cfg.StartBPM, Beats: []int{}, BeatTimes: []float64{}}
	if w == nil || w.Len() == 0 || w.SampleRate <= 0 {
		return silent, nil
	}

	env, err := onsetEnvelope(ctx, w.Samples, cfg.FFTSize, cfg.HopLength)
	if err != nil {
		return model.BeatMap{}, err
	}
	if !normalize(env) {
		return silent, nil
	}

	fps := float64(w.SampleRate) / float64(cfg.HopLength)
	tempo := estimateTempo(env, fps, cfg.StartBPM)
	period := int(math.Round(60 * fps / tempo))

	frames := trackBeats(localScore(env, period), period, cfg.Tightness)

	bm := model.BeatMap{
		Tempo:     tempo,
		Beats:     make([]int, len(frames)),
		BeatTimes: make([]float64, len(frames)),
	}
	for i, f := range frames {
		idx := f * cfg.HopLength
		bm.Beats[i] = idx
		bm.BeatTimes[i] = float64(idx) / float64(w.SampleRate)
	}

	slog.Debug("Beat: tracked",
		"tempo", tempo,
		"period_frames", period,
		"beats", len(frames),
		"onset_frames", len(env))
	return bm, nil
}
