// Package tracker counts cache and synthesis outcomes per component.
package tracker

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Tracker holds usage statistics keyed by component name,
// e.g. "beatmap", "tts.gtts", "announcer".
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*Stats
}

// Stats holds counters for one component.
// Fields are accessed atomically.
type Stats struct {
	CacheHits   int64
	CacheMisses int64
	Successes   int64
	Failures    int64
	Dropped     int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*Stats),
	}
}

func (t *Tracker) get(name string) *Stats {
	t.mu.RLock()
	s, ok := t.stats[name]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[name]; ok {
		return s
	}
	s = &Stats{}
	t.stats[name] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(name string) {
	atomic.AddInt64(&t.get(name).CacheHits, 1)
}

func (t *Tracker) TrackCacheMiss(name string) {
	atomic.AddInt64(&t.get(name).CacheMisses, 1)
}

func (t *Tracker) TrackSuccess(name string) {
	atomic.AddInt64(&t.get(name).Successes, 1)
}

func (t *Tracker) TrackFailure(name string) {
	atomic.AddInt64(&t.get(name).Failures, 1)
}

// TrackDropped counts work discarded because a queue was full.
func (t *Tracker) TrackDropped(name string) {
	atomic.AddInt64(&t.get(name).Dropped, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]Stats, len(t.stats))
	for k, v := range t.stats {
		result[k] = Stats{
			CacheHits:   atomic.LoadInt64(&v.CacheHits),
			CacheMisses: atomic.LoadInt64(&v.CacheMisses),
			Successes:   atomic.LoadInt64(&v.Successes),
			Failures:    atomic.LoadInt64(&v.Failures),
			Dropped:     atomic.LoadInt64(&v.Dropped),
		}
	}
	return result
}

// LogSummary writes one INFO line per component, sorted by name.
func (t *Tracker) LogSummary() {
	snap := t.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		s := snap[name]
		slog.Info("Stats",
			"component", name,
			"cache_hits", s.CacheHits,
			"cache_misses", s.CacheMisses,
			"successes", s.Successes,
			"failures", s.Failures,
			"dropped", s.Dropped)
	}
}
