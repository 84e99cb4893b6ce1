// Package playback owns the lifecycle of the single active render stream.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"salsatempo/pkg/catalog"
	"salsatempo/pkg/config"
	"salsatempo/pkg/engine"
	"salsatempo/pkg/model"
)

// Analyzer resolves the analysed track for a source file.
type Analyzer interface {
	Analyze(ctx context.Context, path, cacheKey string) (*model.Track, error)
}

// Device is the audio output a scheduler streams into.
type Device interface {
	Open(sampleRate int) error
	Play(s beep.Streamer) error
	// Stop halts all streaming. No Stream call may be in progress or
	// start after it returns.
	Stop()
}

// tickBuffer holds beat ticks for a slow reader before they are dropped.
const tickBuffer = 64

// Controller starts and stops sessions. At most one is active at a time.
type Controller struct {
	mu        sync.Mutex
	analyzer  Analyzer
	device    Device
	catalog   *catalog.Catalog
	announcer engine.Announcer
	cfg       config.EngineConfig
	active    *Handle
}

// NewController wires the collaborators. announcer may be nil.
func NewController(a Analyzer, dev Device, cat *catalog.Catalog, ann engine.Announcer, cfg config.EngineConfig) *Controller {
	return &Controller{
		analyzer:  a,
		device:    dev,
		catalog:   cat,
		announcer: ann,
		cfg:       cfg,
	}
}

// Start stops any active session, analyses path and streams it. Decode and
// device errors abort the start and are returned.
func (c *Controller) Start(ctx context.Context, path, cacheKey string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked(c.active)

	track, err := c.analyzer.Analyze(ctx, path, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	sched := engine.New(track, c.catalog, c.announcer, c.newRand(), c.cfg)
	h := &Handle{
		source:    path,
		session:   sched.Session(),
		tempo:     track.BeatMap.Tempo,
		beats:     len(track.BeatMap.Beats),
		duration:  track.Waveform.Duration(),
		ticks:     make(chan engine.RenderResult, tickBuffer),
		stopped:   make(chan struct{}),
		startedAt: time.Now(),
	}
	sched.SetTicks(h.ticks)

	if err := c.device.Open(track.Waveform.SampleRate); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	if err := c.device.Play(sched); err != nil {
		c.device.Stop()
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	c.active = h
	slog.Info("Playback: started",
		"session", h.ID(),
		"path", path,
		"tempo", fmt.Sprintf("%.1f", h.tempo),
		"beats", h.beats,
		"sample_rate", track.Waveform.SampleRate)
	return h, nil
}

// Stop halts h. Stopping nil or an already stopped handle does nothing.
func (c *Controller) Stop(h *Handle) {
	if h == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(h)
}

// Active returns the running session's handle, or nil.
func (c *Controller) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) stopLocked(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if c.active == h {
			c.device.Stop()
			c.active = nil
		}
		// Render can no longer run, so nobody sends on ticks
		close(h.ticks)
		close(h.stopped)
		slog.Info("Playback: stopped", "session", h.ID(), "played", time.Since(h.startedAt).Round(time.Second))
	})
}

func (c *Controller) newRand() *rand.Rand {
	if c.cfg.Seed != 0 {
		s := uint64(c.cfg.Seed)
		return rand.New(rand.NewPCG(s, s))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Handle identifies one started session.
type Handle struct {
	source    string
	session   *engine.Session
	tempo     float64
	beats     int
	duration  float64
	ticks     chan engine.RenderResult
	stopped   chan struct{}
	startedAt time.Time
	once      sync.Once
}

// ID returns the session ID.
func (h *Handle) ID() string { return h.session.ID }

// Source returns the path the session plays.
func (h *Handle) Source() string { return h.source }

// Tempo returns the analysed tempo in BPM.
func (h *Handle) Tempo() float64 { return h.tempo }

// BeatCount returns the number of beats in the beat map.
func (h *Handle) BeatCount() int { return h.beats }

// Duration returns the track length in seconds.
func (h *Handle) Duration() float64 { return h.duration }

// Ticks delivers a result per detected beat. Closed on stop.
func (h *Handle) Ticks() <-chan engine.RenderResult { return h.ticks }

// Stopped is closed once the session has been stopped.
func (h *Handle) Stopped() <-chan struct{} { return h.stopped }
