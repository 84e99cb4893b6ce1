// Package announcer speaks figure names over the music without ever
// blocking the audio path.
package announcer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"salsatempo/pkg/config"
	"salsatempo/pkg/tracker"
	"salsatempo/pkg/tts"
)

// ErrAnnouncement marks a figure name that could not be spoken.
var ErrAnnouncement = errors.New("announcement failed")

const statsName = "announcer"

// Output is the overlay channel announcements play on.
type Output interface {
	Volume() float64
	SetVolume(v float64)
	PlayOverlay(path string) error
}

// Announcer resolves and plays clips on a single background worker.
type Announcer struct {
	cache   *ClipCache
	out     Output
	voice   string
	volume  float64
	timeout time.Duration
	tracker *tracker.Tracker
	backoff *tts.Backoff

	mu          sync.Mutex
	primary     tts.Provider
	fallback    tts.Provider
	useFallback bool

	queue     chan string
	dropped   atomic.Int64 // since the worker last reported
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts an announcer. fallback may be nil. Clips are synthesized in
// cfg.Language and played at cfg.Volume.
func New(cfg config.AnnouncerConfig, primary, fallback tts.Provider, out Output, tr *tracker.Tracker) *Announcer {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base, maxDelay := cfg.RetryBase.Std(), cfg.RetryMax.Std()
	if base <= 0 {
		base = 2 * time.Second
	}
	if maxDelay < base {
		maxDelay = base
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{
		cache:    NewClipCache(cfg.ClipDir, cfg.Language),
		out:      out,
		voice:    cfg.Language,
		volume:   cfg.Volume,
		timeout:  timeout,
		tracker:  tr,
		backoff:  tts.NewBackoff(base, maxDelay),
		primary:  primary,
		fallback: fallback,
		queue:    make(chan string, size),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.wg.Add(1)
	go a.run()
	return a
}

// Cache returns the clip cache.
func (a *Announcer) Cache() *ClipCache {
	return a.cache
}

// Announce queues name for playback and returns immediately. It reports
// false when the request was dropped. It runs on the audio callback, so
// drops are only counted here; the worker logs them.
func (a *Announcer) Announce(name string) bool {
	if a.ctx.Err() != nil {
		return false
	}
	select {
	case a.queue <- name:
		return true
	default:
		a.dropped.Add(1)
		if a.tracker != nil {
			a.tracker.TrackDropped(statsName)
		}
		return false
	}
}

func (a *Announcer) reportDropped() {
	if n := a.dropped.Swap(0); n > 0 {
		slog.Warn("Announcer: queue full, dropped announcements", "count", n)
	}
}

// Close stops the worker. Pending requests are discarded and in-flight
// synthesis is cancelled.
func (a *Announcer) Close() {
	a.closeOnce.Do(func() {
		a.cancel()
		a.wg.Wait()
	})
}

func (a *Announcer) run() {
	defer a.wg.Done()
	defer a.reportDropped()
	for {
		select {
		case <-a.ctx.Done():
			return
		case name := <-a.queue:
			err := a.speak(name)
			a.reportDropped()
			if err != nil {
				slog.Warn("Announcer: skipped", "figure", name, "error", err)
				if a.tracker != nil {
					a.tracker.TrackFailure(statsName)
				}
			}
		}
	}
}

func (a *Announcer) speak(name string) error {
	ctx, cancel := context.WithTimeout(a.ctx, a.timeout)
	defer cancel()

	path, err := a.clip(ctx, name, true)
	if err != nil {
		return err
	}

	// Boost only for the clip; the overlay captures the level at start
	prev := a.out.Volume()
	a.out.SetVolume(a.volume)
	err = a.out.PlayOverlay(path)
	a.out.SetVolume(prev)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrAnnouncement, name, err)
	}

	if a.tracker != nil {
		a.tracker.TrackSuccess(statsName)
	}
	slog.Debug("Announcer: played", "figure", name, "clip", path)
	return nil
}

// Clip returns the cached clip for name, synthesizing it on a miss.
func (a *Announcer) Clip(ctx context.Context, name string) (string, error) {
	return a.clip(ctx, name, false)
}

// clip with live set gives up at once while the engine is backing off;
// a late announcement is worse than none.
func (a *Announcer) clip(ctx context.Context, name string, live bool) (string, error) {
	if p, ok := a.cache.Lookup(name); ok {
		if a.tracker != nil {
			a.tracker.TrackCacheHit(statsName)
		}
		return p, nil
	}
	if a.tracker != nil {
		a.tracker.TrackCacheMiss(statsName)
	}
	if live {
		if key, _ := a.engine(); a.backoff.Remaining(key) > 0 {
			return "", fmt.Errorf("%w: %q: %s engine backing off", ErrAnnouncement, name, key)
		}
	}

	if err := os.MkdirAll(a.cache.Dir(), 0o755); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrAnnouncement, name, err)
	}
	tmp, err := os.CreateTemp(a.cache.Dir(), ".clip-*.mp3")
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrAnnouncement, name, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := a.synthesize(ctx, name, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %q: %w", ErrAnnouncement, name, err)
	}
	if err := tts.VerifyAudioFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %q: %w", ErrAnnouncement, name, err)
	}

	final, err := a.cache.store(name, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %q: %w", ErrAnnouncement, name, err)
	}
	slog.Info("Announcer: clip cached", "figure", name, "path", final)
	return final, nil
}

// engine returns the provider in use and its backoff key.
func (a *Announcer) engine() (string, tts.Provider) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.useFallback {
		return "fallback", a.fallback
	}
	return "primary", a.primary
}

// synthesize switches to the fallback engine for good once the primary
// reports a fatal error.
func (a *Announcer) synthesize(ctx context.Context, name, path string) error {
	key, p := a.engine()
	err := a.call(ctx, key, p, name, path)
	if err == nil || key == "fallback" || a.fallback == nil || !tts.IsFatalError(err) {
		return err
	}

	slog.Warn("Announcer: primary TTS failed, switching to fallback", "error", err)
	a.mu.Lock()
	a.useFallback = true
	a.mu.Unlock()

	return a.call(ctx, "fallback", a.fallback, name, path)
}

func (a *Announcer) call(ctx context.Context, key string, p tts.Provider, name, path string) error {
	_, err := p.Synthesize(ctx, name, a.voice, path)
	switch {
	case err == nil:
		a.backoff.RecordSuccess(key)
	case ctx.Err() == nil:
		a.backoff.RecordFailure(key)
	}
	return err
}

// Prewarm synthesizes any missing clips for names. Failures are collected
// and do not stop the remaining names.
func (a *Announcer) Prewarm(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		key, _ := a.engine()
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := a.backoff.Wait(ctx, key); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := a.Clip(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
