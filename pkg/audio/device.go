package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// ErrDevice is returned when the output device cannot be opened or used.
var ErrDevice = errors.New("audio device unavailable")

// DeviceRate is the rate the speaker runs at. Sources at other rates are
// resampled, since beep allows the speaker to be initialized only once per
// process.
const DeviceRate beep.SampleRate = 44100

// Backend is the process-wide mixer the device drives. The beep speaker is
// the production backend; Init may succeed at most once.
type Backend interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	// Clear drops every streamer while holding the mixer lock.
	Clear()
	Close()
}

type speakerBackend struct{}

func (speakerBackend) Init(sr beep.SampleRate, n int) error { return speaker.Init(sr, n) }
func (speakerBackend) Play(s ...beep.Streamer)              { speaker.Play(s...) }
func (speakerBackend) Clear()                               { speaker.Clear() }
func (speakerBackend) Close()                               { speaker.Close() }

// Device is the process-wide speaker. The main stream and announcement
// overlays are mixed by the speaker; overlays share one volume setting.
type Device struct {
	mu      sync.RWMutex
	backend Backend
	ready   bool            // backend initialized
	source  beep.SampleRate // rate of the stream passed to Play
	volume  float64         // overlay channel level
}

// NewDevice creates a device on the beep speaker with unity overlay volume.
func NewDevice() *Device {
	return NewDeviceWith(speakerBackend{})
}

// NewDeviceWith creates a device on an explicit backend.
func NewDeviceWith(b Backend) *Device {
	return &Device{backend: b, volume: 1.0}
}

// Open prepares the device for a stream at sampleRate. The backend is
// initialized on the first call only; later calls just change the rate
// Play resamples from.
func (d *Device) Open(sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrDevice, sampleRate)
	}
	if !d.ready {
		if err := d.backend.Init(DeviceRate, DeviceRate.N(time.Second/10)); err != nil {
			slog.Error("Failed to initialize speaker", "error", err)
			return fmt.Errorf("%w: %v", ErrDevice, err)
		}
		d.ready = true
		slog.Debug("Audio: speaker initialized", "sample_rate", int(DeviceRate))
	}
	d.source = beep.SampleRate(sampleRate)
	return nil
}

// SampleRate returns the rate the speaker runs at, or 0 before Open.
func (d *Device) SampleRate() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.ready {
		return 0
	}
	return int(DeviceRate)
}

// Play adds s to the mix, resampled from the rate given to Open.
func (d *Device) Play(s beep.Streamer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.ready {
		return fmt.Errorf("%w: not open", ErrDevice)
	}
	if d.source != DeviceRate {
		s = beep.Resample(3, d.source, DeviceRate, s)
	}
	d.backend.Play(s)
	return nil
}

// Stop removes every streamer from the mix. The speaker stays initialized
// for the next Open. Clear takes the speaker lock, so no Stream call is in
// flight once Stop returns.
func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return
	}
	d.backend.Clear()
}

// Close releases the output at process exit. The device cannot be reopened.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return
	}
	d.backend.Clear()
	d.backend.Close()
	d.ready = false
	d.backend = closedBackend{}
}

// closedBackend refuses Init, matching beep after Close.
type closedBackend struct{}

func (closedBackend) Init(beep.SampleRate, int) error { return errors.New("speaker closed") }
func (closedBackend) Play(...beep.Streamer)           {}
func (closedBackend) Clear()                          {}
func (closedBackend) Close()                          {}

// SetVolume sets the overlay level. 1.0 is unity; values above 1.0 amplify.
func (d *Device) SetVolume(vol float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if vol < 0 {
		vol = 0
	}
	d.volume = vol
}

// Volume returns the overlay level.
func (d *Device) Volume() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.volume
}

// PlayOverlay decodes path and mixes it over the main stream at the current
// overlay volume. The level is captured when the clip starts.
func (d *Device) PlayOverlay(path string) error {
	streamer, format, err := DecodeMedia(path)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.ready {
		streamer.Close()
		return fmt.Errorf("%w: not open", ErrDevice)
	}

	resampled := beep.Resample(3, format.SampleRate, DeviceRate, streamer)
	exp, silent := levelToGain(d.volume)
	vol := &effects.Volume{Streamer: resampled, Base: 2, Volume: exp, Silent: silent}

	d.backend.Play(beep.Seq(vol, beep.Callback(func() {
		// Runs on the speaker goroutine
		go streamer.Close()
	})))

	slog.Debug("Audio: overlay started", "path", path, "volume", d.volume)
	return nil
}
