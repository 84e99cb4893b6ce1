package tts

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff tracks exponential retry delays per engine. Ordinary failures
// push the next allowed attempt out; successes recover one step at a time.
type Backoff struct {
	mu      sync.Mutex
	engines map[string]*backoffState
	base    time.Duration
	max     time.Duration
}

type backoffState struct {
	failures    int
	nextAllowed time.Time
}

// NewBackoff returns a Backoff starting at base and capped at max, plus jitter.
func NewBackoff(base, maxDelay time.Duration) *Backoff {
	return &Backoff{
		engines: make(map[string]*backoffState),
		base:    base,
		max:     maxDelay,
	}
}

// Remaining returns how long engine must still wait, zero when it may go.
func (b *Backoff) Remaining(engine string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.engines[engine]
	if !ok {
		return 0
	}
	return max(time.Until(s.nextAllowed), 0)
}

// Wait blocks until engine may be called again or ctx is done.
func (b *Backoff) Wait(ctx context.Context, engine string) error {
	d := b.Remaining(engine)
	if d == 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure doubles the delay for engine.
func (b *Backoff) RecordFailure(engine string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.engines[engine]
	if !ok {
		s = &backoffState{}
		b.engines[engine] = s
	}
	s.failures++
	s.nextAllowed = time.Now().Add(b.delay(s.failures))
}

// RecordSuccess undoes one failure step; the last one clears the delay.
func (b *Backoff) RecordSuccess(engine string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.engines[engine]
	if !ok {
		return
	}
	if s.failures > 0 {
		s.failures--
	}
	if s.failures == 0 {
		s.nextAllowed = time.Time{}
	}
}

// State returns the failure count and next allowed attempt for engine.
func (b *Backoff) State(engine string) (failures int, nextAllowed time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.engines[engine]; ok {
		return s.failures, s.nextAllowed
	}
	return 0, time.Time{}
}

// delay is base·2^(failures-1), capped, plus up to 10% jitter.
func (b *Backoff) delay(failures int) time.Duration {
	d := time.Duration(float64(b.base) * math.Pow(2, float64(failures-1)))
	if d > b.max {
		d = b.max
	}
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}
