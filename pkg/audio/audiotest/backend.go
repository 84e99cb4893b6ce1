// Package audiotest provides an in-memory mixer for exercising audio.Device
// without sound hardware.
package audiotest

import (
	"errors"
	"sync"

	"github.com/gopxl/beep/v2"
)

// ErrInitTwice mirrors beep's refusal to initialize the speaker again.
var ErrInitTwice = errors.New("speaker cannot be initialized more than once")

// Backend records what the device asks of the mixer. Like the beep speaker,
// Init succeeds once per Backend, even after Close.
type Backend struct {
	mu        sync.Mutex
	inits     int
	rate      beep.SampleRate
	streamers []beep.Streamer
	clears    int
	closed    bool
}

func (b *Backend) Init(sr beep.SampleRate, _ int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inits++
	if b.inits > 1 {
		return ErrInitTwice
	}
	b.rate = sr
	return nil
}

func (b *Backend) Play(s ...beep.Streamer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamers = append(b.streamers, s...)
}

func (b *Backend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
	b.streamers = nil
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Inits returns how often Init was called, including refused calls.
func (b *Backend) Inits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inits
}

// Rate returns the rate of the successful Init.
func (b *Backend) Rate() beep.SampleRate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

// Clears returns how often the mix was cleared.
func (b *Backend) Clears() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clears
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Mix returns the streamers currently playing.
func (b *Backend) Mix() []beep.Streamer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]beep.Streamer(nil), b.streamers...)
}

// Pull reads n frames from every playing streamer, as the speaker would.
func (b *Backend) Pull(n int) {
	buf := make([][2]float64, n)
	for _, s := range b.Mix() {
		s.Stream(buf)
	}
}
