// Package engine renders the looping track and drives the figure state
// machine from detected beats.
package engine

import (
	"math"
	"math/rand/v2"

	"salsatempo/pkg/catalog"
	"salsatempo/pkg/config"
	"salsatempo/pkg/logging"
	"salsatempo/pkg/model"
)

// Announcer accepts figure names without blocking.
type Announcer interface {
	Announce(name string) bool
}

// RenderResult describes what happened during one render call.
type RenderResult struct {
	Time          float64 // playback position after the call, seconds
	BeatDetected  bool
	Beat          int           // 1..8 number of the detected beat, 0 if none
	StartedFigure *model.Figure // copy of the figure entered on this beat
	Switched      bool          // StartedFigure is a group transition
	Group         string
}

// Scheduler renders audio blocks for one session. Render must be called from
// one goroutine at a time; the speaker guarantees that when streaming.
type Scheduler struct {
	session   *Session
	samples   []float64
	rate      int
	beatMap   model.BeatMap
	catalog   *catalog.Catalog
	announcer Announcer
	rng       *rand.Rand
	cfg       config.EngineConfig
	ticks     chan<- RenderResult

	block []float64
	pos   int
}

// New creates a scheduler over track. announcer may be nil.
func New(track *model.Track, cat *catalog.Catalog, announcer Announcer, rng *rand.Rand, cfg config.EngineConfig) *Scheduler {
	size := cfg.BlockSize
	if size <= 0 {
		size = 2048
	}
	return &Scheduler{
		session:   NewSession(cfg.StartGroup),
		samples:   track.Waveform.Samples,
		rate:      track.Waveform.SampleRate,
		beatMap:   track.BeatMap,
		catalog:   cat,
		announcer: announcer,
		rng:       rng,
		cfg:       cfg,
		block:     make([]float64, size),
		pos:       size,
	}
}

// Session exposes the live state. Not safe to read while the scheduler is
// streaming.
func (s *Scheduler) Session() *Session {
	return s.session
}

// SetTicks sets a channel that receives a RenderResult for every detected
// beat. Sends never block; ticks are dropped when the reader lags.
func (s *Scheduler) SetTicks(ch chan<- RenderResult) {
	s.ticks = ch
}

// Render fills out with the next len(out) frames and advances the session.
func (s *Scheduler) Render(out []float64) RenderResult {
	sess := s.session
	n := len(out)

	if sess.CurrentIndex+n <= len(s.samples) {
		src := s.samples[sess.CurrentIndex : sess.CurrentIndex+n]
		for i, v := range src {
			out[i] = v * s.cfg.Attenuation
		}
	} else {
		// No wraparound inside a block
		clear(out)
	}

	sess.CurrentIndex += n
	if sess.CurrentIndex >= len(s.samples) {
		sess.CurrentIndex = 0
	}

	res := RenderResult{Group: sess.CurrentGroup}
	if s.rate > 0 {
		res.Time = float64(sess.CurrentIndex) / float64(s.rate)
	}

	if !s.beatAt(res.Time) {
		return res
	}

	res.BeatDetected = true
	res.Beat = sess.BeatCounter
	sess.BeatCounter = sess.BeatCounter%8 + 1
	sess.BeatsSinceLastFigure++

	s.advanceFigure(&res)
	res.Group = sess.CurrentGroup

	logging.Trace("Engine: beat",
		"session", sess.ID,
		"beat", res.Beat,
		"time", res.Time,
		"since_figure", sess.BeatsSinceLastFigure)

	if s.ticks != nil {
		select {
		case s.ticks <- res:
		default:
		}
	}
	return res
}

// advanceFigure runs the figure state machine for one detected beat.
func (s *Scheduler) advanceFigure(res *RenderResult) {
	sess := s.session

	if f := sess.FigureInProgress; f != nil {
		f.Count--
		if f.Count <= 0 {
			sess.FigureInProgress = nil
			sess.BeatsSinceLastFigure = 0
		}
		return
	}
	if sess.BeatsSinceLastFigure < s.cfg.IdleBeats {
		return
	}

	p := s.cfg.GuapeaSwitchProb
	if sess.CurrentGroup == model.GroupArriba {
		p = s.cfg.ArribaSwitchProb
	}

	var next model.Figure
	if s.rng.Float64() < p {
		next, sess.CurrentGroup = catalog.SwitchGroup(sess.CurrentGroup)
		res.Switched = true
	} else {
		f, ok := s.catalog.Pick(sess.CurrentGroup, s.rng)
		if !ok {
			// Group has no figures; stay idle and retry next beat
			return
		}
		next = f
	}

	sess.FigureInProgress = &next
	started := next
	res.StartedFigure = &started

	if s.announcer != nil {
		s.announcer.Announce(next.Name)
	}
}

// beatAt reports whether any beat time lies within the detection threshold
// of t. The threshold is 5% of the gap between the beat nearest t and the
// first later beat. Cached beat maps are not validated, so nothing here
// assumes the times are sorted.
func (s *Scheduler) beatAt(t float64) bool {
	bt := s.beatMap.BeatTimes
	if len(bt) == 0 {
		return false
	}

	// Earliest index wins ties
	closest := bt[0]
	for _, b := range bt[1:] {
		if math.Abs(b-t) < math.Abs(closest-t) {
			closest = b
		}
	}

	interval := 60 / s.beatMap.Tempo
	for _, b := range bt {
		if b > closest {
			interval = b - closest
			break
		}
	}
	threshold := 0.05 * interval

	for _, b := range bt {
		if math.Abs(b-t) < threshold {
			return true
		}
	}
	return false
}

// Stream implements beep.Streamer. Frames come from an internal block so that
// Render runs at a fixed size whatever chunking the mixer uses. The mono
// signal is written to both channels.
func (s *Scheduler) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		if s.pos >= len(s.block) {
			s.Render(s.block)
			s.pos = 0
		}
		c := min(len(s.block)-s.pos, len(samples)-n)
		for i := 0; i < c; i++ {
			v := s.block[s.pos+i]
			samples[n+i] = [2]float64{v, v}
		}
		s.pos += c
		n += c
	}
	return n, true
}

// Err implements beep.Streamer.
func (s *Scheduler) Err() error {
	return nil
}
