package beat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"salsatempo/pkg/audio"
	"salsatempo/pkg/config"
	"salsatempo/pkg/model"
	"salsatempo/pkg/store"
	"salsatempo/pkg/tracker"
)

var (
	// ErrCacheRead marks a cached record that could not be read or parsed.
	ErrCacheRead = errors.New("beat map cache read failed")
	// ErrCacheWrite marks a record that could not be persisted.
	ErrCacheWrite = errors.New("beat map cache write failed")
)

// KeyPrefix namespaces beat map records in the shared cache table.
const KeyPrefix = "beatmap:"

const statsName = "beatmap"

// CacheKey returns key when set, otherwise one derived from the file name.
func CacheKey(path, key string) string {
	if key != "" {
		return key
	}
	return KeyPrefix + filepath.Base(path)
}

// Analyzer produces Track records, consulting the cache first.
type Analyzer struct {
	cfg     config.AnalyzerConfig
	cache   store.CacheStore // nil disables caching
	tracker *tracker.Tracker

	// decode is swapped in tests.
	decode func(path string) (*model.Waveform, error)
}

// NewAnalyzer creates an analyzer. cache and tr may be nil.
func NewAnalyzer(cfg config.AnalyzerConfig, cache store.CacheStore, tr *tracker.Tracker) *Analyzer {
	return &Analyzer{
		cfg:     cfg,
		cache:   cache,
		tracker: tr,
		decode:  audio.DecodeFile,
	}
}

// Analyze returns the track for path. A readable cached record is returned
// as stored. Anything else is recomputed and written back.
func (a *Analyzer) Analyze(ctx context.Context, path, cacheKey string) (*model.Track, error) {
	key := CacheKey(path, cacheKey)

	t, err := a.load(ctx, key)
	switch {
	case err != nil:
		slog.Warn("Beat: ignoring unreadable cache entry", "key", key, "error", err)
	case t != nil:
		a.count(func(tr *tracker.Tracker) { tr.TrackCacheHit(statsName) })
		slog.Debug("Beat: cache hit", "key", key)
		return t, nil
	}
	a.count(func(tr *tracker.Tracker) { tr.TrackCacheMiss(statsName) })

	return a.compute(ctx, path, key)
}

// Reanalyze recomputes the track and overwrites any cached record.
func (a *Analyzer) Reanalyze(ctx context.Context, path, cacheKey string) (*model.Track, error) {
	return a.compute(ctx, path, CacheKey(path, cacheKey))
}

// Forget drops the cached record for path, reporting whether one existed.
func (a *Analyzer) Forget(ctx context.Context, path, cacheKey string) (bool, error) {
	if a.cache == nil {
		return false, nil
	}
	key := CacheKey(path, cacheKey)
	ok, err := a.cache.HasCache(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := a.cache.DeleteCache(ctx, key); err != nil {
		return false, fmt.Errorf("forget %s: %w", key, err)
	}
	return true, nil
}

// CachedKeys lists the keys of all cached beat maps.
func (a *Analyzer) CachedKeys(ctx context.Context) ([]string, error) {
	if a.cache == nil {
		return nil, nil
	}
	return a.cache.ListCacheKeys(ctx, KeyPrefix)
}

func (a *Analyzer) compute(ctx context.Context, path, key string) (*model.Track, error) {
	start := time.Now()
	w, err := a.decode(path)
	if err != nil {
		return nil, err
	}

	bm, err := Track(ctx, w, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("beat tracking %s: %w", path, err)
	}
	// Never cache a map the scheduler cannot use
	if err := bm.Validate(); err != nil {
		return nil, fmt.Errorf("beat tracking %s: %w", path, err)
	}

	t := &model.Track{Source: path, Waveform: *w, BeatMap: bm}
	slog.Info("Beat: analyzed",
		"path", path,
		"tempo", fmt.Sprintf("%.1f", bm.Tempo),
		"beats", len(bm.Beats),
		"duration", fmt.Sprintf("%.1fs", w.Duration()),
		"took", time.Since(start).Round(time.Millisecond))

	if err := a.save(ctx, key, t); err != nil {
		a.count(func(tr *tracker.Tracker) { tr.TrackFailure(statsName) })
		slog.Warn("Beat: result not cached", "key", key, "error", err)
	}
	return t, nil
}

// load returns (nil, nil) on a plain miss.
func (a *Analyzer) load(ctx context.Context, key string) (*model.Track, error) {
	if a.cache == nil {
		return nil, nil
	}
	data, ok := a.cache.GetCache(ctx, key)
	if !ok {
		return nil, nil
	}
	var t model.Track
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheRead, key, err)
	}
	return &t, nil
}

func (a *Analyzer) save(ctx context.Context, key string, t *model.Track) error {
	if a.cache == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCacheWrite, key, err)
	}
	if err := a.cache.SetCache(ctx, key, data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCacheWrite, key, err)
	}
	return nil
}

func (a *Analyzer) count(fn func(*tracker.Tracker)) {
	if a.tracker != nil {
		fn(a.tracker)
	}
}
