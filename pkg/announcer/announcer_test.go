package announcer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salsatempo/pkg/config"
	"salsatempo/pkg/tracker"
	"salsatempo/pkg/tts"
)

// fakeProvider writes size bytes, or fails with err.
type fakeProvider struct {
	mu    sync.Mutex
	size  int
	err   error
	block chan struct{} // when set, Synthesize waits on it or ctx
	texts []string
	langs []string
}

func (p *fakeProvider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.langs = append(p.langs, voice)
	block, err, size := p.block, p.err, p.size
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "mp3", os.WriteFile(outputPath, bytes.Repeat([]byte{0xff}, size), 0o644)
}

func (p *fakeProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// fakeOutput records the call order and the level in force at overlay start.
type fakeOutput struct {
	mu       sync.Mutex
	volume   float64
	calls    []string
	overlays []float64
	played   chan string
	playErr  error
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{volume: 1.0, played: make(chan string, 16)}
}

func (o *fakeOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, "Volume")
	return o.volume
}

func (o *fakeOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("SetVolume(%g)", v))
	o.volume = v
}

func (o *fakeOutput) PlayOverlay(path string) error {
	o.mu.Lock()
	o.calls = append(o.calls, "PlayOverlay")
	o.overlays = append(o.overlays, o.volume)
	err := o.playErr
	o.mu.Unlock()
	o.played <- path
	return err
}

func testConfig(t *testing.T) config.AnnouncerConfig {
	cfg := config.DefaultConfig().Announcer
	cfg.ClipDir = t.TempDir()
	cfg.Timeout = config.Duration(5 * time.Second)
	return cfg
}

func waitPlayed(t *testing.T, o *fakeOutput) string {
	t.Helper()
	select {
	case p := <-o.played:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for overlay playback")
		return ""
	}
}

func TestAnnounce_VolumeRestoreOrdering(t *testing.T) {
	cfg := testConfig(t)
	prov := &fakeProvider{size: tts.MinAudioSize}
	out := newFakeOutput()
	out.volume = 0.8
	a := New(cfg, prov, nil, out, tracker.New())
	defer a.Close()

	require.True(t, a.Announce("Dile que no"))
	path := waitPlayed(t, out)

	assert.Equal(t, a.Cache().Path("Dile que no"), path)
	require.Eventually(t, func() bool {
		out.mu.Lock()
		defer out.mu.Unlock()
		return len(out.calls) == 4
	}, 2*time.Second, 10*time.Millisecond)

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Equal(t, []string{"Volume", "SetVolume(4)", "PlayOverlay", "SetVolume(0.8)"}, out.calls)
	assert.Equal(t, []float64{4.0}, out.overlays, "clip must start at the boosted level")
	assert.Equal(t, 0.8, out.volume, "prior level restored")
	assert.Equal(t, []string{"es"}, prov.langs)
}

func TestAnnounce_ReusesCachedClip(t *testing.T) {
	cfg := testConfig(t)
	prov := &fakeProvider{size: tts.MinAudioSize}
	out := newFakeOutput()
	tr := tracker.New()
	a := New(cfg, prov, nil, out, tr)
	defer a.Close()

	a.Announce("Enchufla")
	waitPlayed(t, out)
	a.Announce("Enchufla")
	waitPlayed(t, out)

	assert.Equal(t, []string{"Enchufla"}, prov.calls(), "second announcement should hit the cache")
	stats := tr.Snapshot()[statsName]
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
}

func TestAnnounce_NeverBlocks(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueueSize = 1
	prov := &fakeProvider{size: tts.MinAudioSize, block: make(chan struct{})}
	tr := tracker.New()
	a := New(cfg, prov, nil, newFakeOutput(), tr)
	defer a.Close()

	start := time.Now()
	accepted := 0
	for i := 0; i < 50; i++ {
		if a.Announce(fmt.Sprintf("Figure %d", i)) {
			accepted++
		}
	}
	assert.Less(t, time.Since(start), time.Second)
	// One in flight plus one queued at most
	assert.LessOrEqual(t, accepted, 2)
	assert.GreaterOrEqual(t, tr.Snapshot()[statsName].Dropped, int64(48))
}

// slowHandler stands in for a log file on a stalled disk.
type slowHandler struct {
	delay time.Duration
	mu    sync.Mutex
	msgs  []string
}

func (h *slowHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *slowHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *slowHandler) WithGroup(string) slog.Handler            { return h }

func (h *slowHandler) Handle(_ context.Context, r slog.Record) error {
	time.Sleep(h.delay)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, r.Message)
	return nil
}

func (h *slowHandler) logged(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func TestAnnounce_DropDoesNotLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueueSize = 1
	prov := &fakeProvider{size: tts.MinAudioSize, block: make(chan struct{})}
	out := newFakeOutput()
	a := New(cfg, prov, nil, out, tracker.New())
	defer a.Close()

	// One request in flight, one queued
	require.True(t, a.Announce("Enchufla"))
	require.Eventually(t, func() bool { return len(prov.calls()) == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, a.Announce("Dame"))

	h := &slowHandler{delay: 200 * time.Millisecond}
	prev := slog.Default()
	slog.SetDefault(slog.New(h))
	defer slog.SetDefault(prev)

	start := time.Now()
	assert.False(t, a.Announce("Setenta"))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "a drop must not wait on the log")

	close(prov.block)
	assert.Eventually(t, func() bool { return h.logged("Announcer: queue full, dropped announcements") },
		5*time.Second, 10*time.Millisecond, "the worker reports the drop")
}

func TestAnnounce_FailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name string
		prov *fakeProvider
	}{
		{"Provider Error", &fakeProvider{err: errors.New("network down")}},
		{"Clip Too Small", &fakeProvider{size: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tr := tracker.New()
			out := newFakeOutput()
			a := New(cfg, tt.prov, nil, out, tr)
			defer a.Close()

			a.Announce("Prima")
			require.Eventually(t, func() bool {
				return tr.Snapshot()[statsName].Failures == 1
			}, 5*time.Second, 10*time.Millisecond)

			_, ok := a.Cache().Lookup("Prima")
			assert.False(t, ok)
			entries, _ := os.ReadDir(a.Cache().Dir())
			assert.Empty(t, entries, "temp files must be cleaned up")
			assert.Empty(t, out.played)
		})
	}
}

func TestClip_ErrorKind(t *testing.T) {
	a := New(testConfig(t), &fakeProvider{err: errors.New("boom")}, nil, newFakeOutput(), nil)
	defer a.Close()

	_, err := a.Clip(context.Background(), "Adiós")
	assert.True(t, errors.Is(err, ErrAnnouncement))
}

func TestAnnounce_OverlayErrorRestoresVolume(t *testing.T) {
	out := newFakeOutput()
	out.playErr = errors.New("device gone")
	tr := tracker.New()
	a := New(testConfig(t), &fakeProvider{size: tts.MinAudioSize}, nil, out, tr)
	defer a.Close()

	a.Announce("Kentucky")
	waitPlayed(t, out)
	require.Eventually(t, func() bool {
		return tr.Snapshot()[statsName].Failures == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, out.Volume())
}

func TestSynthesize_FallbackOnFatal(t *testing.T) {
	primary := &fakeProvider{err: tts.NewFatalError(429, "quota")}
	fallback := &fakeProvider{size: tts.MinAudioSize}
	a := New(testConfig(t), primary, fallback, newFakeOutput(), nil)
	defer a.Close()

	_, err := a.Clip(context.Background(), "Setenta")
	require.NoError(t, err)
	_, err = a.Clip(context.Background(), "Sombrero")
	require.NoError(t, err)

	assert.Equal(t, []string{"Setenta"}, primary.calls(), "primary abandoned after fatal error")
	assert.Equal(t, []string{"Setenta", "Sombrero"}, fallback.calls())
}

func TestAnnounce_BacksOffAfterFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.RetryBase = config.Duration(time.Minute)
	prov := &fakeProvider{err: errors.New("network down")}
	tr := tracker.New()
	a := New(cfg, prov, nil, newFakeOutput(), tr)
	defer a.Close()

	a.Announce("Vacílala")
	require.Eventually(t, func() bool {
		return tr.Snapshot()[statsName].Failures == 1
	}, 5*time.Second, 10*time.Millisecond)

	a.Announce("Sombrero")
	require.Eventually(t, func() bool {
		return tr.Snapshot()[statsName].Failures == 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"Vacílala"}, prov.calls(), "engine is not called again while backing off")

	// Explicit clip requests are not subject to the live backoff
	_, err := a.Clip(context.Background(), "Sombrero")
	assert.True(t, errors.Is(err, ErrAnnouncement))
	assert.Len(t, prov.calls(), 2)
}

func TestSynthesize_NoFallbackOnOrdinaryError(t *testing.T) {
	primary := &fakeProvider{err: errors.New("bad text")}
	fallback := &fakeProvider{size: tts.MinAudioSize}
	a := New(testConfig(t), primary, fallback, newFakeOutput(), nil)
	defer a.Close()

	_, err := a.Clip(context.Background(), "Dame")
	assert.Error(t, err)
	assert.Empty(t, fallback.calls())
}

func TestPrewarm(t *testing.T) {
	cfg := testConfig(t)
	prov := &fakeProvider{size: tts.MinAudioSize}
	a := New(cfg, prov, nil, newFakeOutput(), nil)
	defer a.Close()

	names := []string{"Guapea", "Exhíbela", "Al medio"}
	require.NoError(t, a.Prewarm(context.Background(), names))
	for _, n := range names {
		_, ok := a.Cache().Lookup(n)
		assert.True(t, ok, n)
	}

	// Already cached: no further synthesis
	require.NoError(t, a.Prewarm(context.Background(), names))
	assert.Len(t, prov.calls(), 3)

	failCfg := testConfig(t)
	failCfg.RetryBase = config.Duration(10 * time.Millisecond)
	failing := New(failCfg, &fakeProvider{err: errors.New("offline")}, nil, newFakeOutput(), nil)
	defer failing.Close()
	err := failing.Prewarm(context.Background(), []string{"A", "B"})
	assert.True(t, errors.Is(err, ErrAnnouncement))
	assert.Len(t, failing.primary.(*fakeProvider).calls(), 2, "one failure must not stop the rest")
}

func TestClose(t *testing.T) {
	prov := &fakeProvider{size: tts.MinAudioSize, block: make(chan struct{})}
	a := New(testConfig(t), prov, nil, newFakeOutput(), nil)

	a.Announce("Paséala")
	require.Eventually(t, func() bool { return len(prov.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		a.Close()
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel in-flight synthesis")
	}
	assert.False(t, a.Announce("Guapea"))
}

func TestClipCache_Path(t *testing.T) {
	c := NewClipCache(filepath.Join("data", "clips"), "es")
	tests := []struct {
		name string
		want string
	}{
		{"Dile que no", "Dile_que_no.mp3"},
		{"Exhíbela", "Exhíbela.mp3"},
		{"../../etc/passwd", "etcpasswd.mp3"},
		{"  ", "_.mp3"},
	}
	for _, tt := range tests {
		got := c.Path(tt.name)
		assert.Equal(t, filepath.Join("data", "clips", "es", tt.want), got, tt.name)
	}
}
