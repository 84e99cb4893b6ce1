package audio

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"

	"salsatempo/pkg/audio/audiotest"
)

func TestDevice_Volume(t *testing.T) {
	d := NewDevice()
	if d.Volume() != 1.0 {
		t.Errorf("default volume = %v, want 1.0", d.Volume())
	}

	tests := []struct {
		name string
		set  float64
		want float64
	}{
		{"Boost Not Clamped", 4.0, 4.0},
		{"Unity", 1.0, 1.0},
		{"Clamped Low", -0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.SetVolume(tt.set)
			if d.Volume() != tt.want {
				t.Errorf("Volume() = %v, want %v", d.Volume(), tt.want)
			}
		})
	}
}

func TestDevice_Closed(t *testing.T) {
	d := NewDeviceWith(&audiotest.Backend{})
	if d.SampleRate() != 0 {
		t.Errorf("closed device should report 0 sample rate")
	}
	if err := d.Play(&sliceStreamer{}); !errors.Is(err, ErrDevice) {
		t.Errorf("Play on closed device: expected ErrDevice, got %v", err)
	}
	if err := d.Open(0); !errors.Is(err, ErrDevice) {
		t.Errorf("Open(0): expected ErrDevice, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	writeWAV(t, path, make([][2]float64, 100), 44100, 1)
	if err := d.PlayOverlay(path); !errors.Is(err, ErrDevice) {
		t.Errorf("PlayOverlay on closed device: expected ErrDevice, got %v", err)
	}

	// Stopping a closed device is a no-op
	d.Stop()
}

func TestDevice_ReopenAfterStop(t *testing.T) {
	b := &audiotest.Backend{}
	d := NewDeviceWith(b)

	for i, rate := range []int{44100, 22050, 48000} {
		if err := d.Open(rate); err != nil {
			t.Fatalf("session %d: Open(%d) = %v", i, rate, err)
		}
		if err := d.Play(&sliceStreamer{samples: make([][2]float64, 10)}); err != nil {
			t.Fatalf("session %d: Play = %v", i, err)
		}
		d.Stop()
		if len(b.Mix()) != 0 {
			t.Fatalf("session %d: stream still mixed after Stop", i)
		}
	}
	if b.Inits() != 1 {
		t.Errorf("speaker initialized %d times, want 1", b.Inits())
	}
	if b.Rate() != DeviceRate {
		t.Errorf("speaker rate = %v, want %v", b.Rate(), DeviceRate)
	}
	if b.Closed() {
		t.Error("Stop must not close the speaker")
	}
	if d.SampleRate() != int(DeviceRate) {
		t.Errorf("SampleRate() = %d", d.SampleRate())
	}

	d.Close()
	if !b.Closed() {
		t.Error("Close should release the speaker")
	}
	if err := d.Open(44100); !errors.Is(err, ErrDevice) {
		t.Errorf("Open after Close: expected ErrDevice, got %v", err)
	}
}

func TestDevice_PlayResamples(t *testing.T) {
	b := &audiotest.Backend{}
	d := NewDeviceWith(b)

	src := &sliceStreamer{samples: make([][2]float64, 2205)}
	if err := d.Open(22050); err != nil {
		t.Fatal(err)
	}
	if err := d.Play(src); err != nil {
		t.Fatal(err)
	}
	mix := b.Mix()
	if len(mix) != 1 || mix[0] == beep.Streamer(src) {
		t.Fatalf("22050 Hz source should be wrapped in a resampler, got %v", mix)
	}

	d.Stop()
	same := &sliceStreamer{samples: make([][2]float64, 10)}
	if err := d.Open(int(DeviceRate)); err != nil {
		t.Fatal(err)
	}
	_ = d.Play(same)
	if mix := b.Mix(); len(mix) != 1 || mix[0] != beep.Streamer(same) {
		t.Error("source at the device rate should be played as is")
	}
}

func TestLevelToGain(t *testing.T) {
	tests := []struct {
		level      float64
		want       float64
		wantSilent bool
	}{
		{4.0, 2, false},
		{1.0, 0, false},
		{0.5, -1, false},
		{0.001, 0, true},
		{0, 0, true},
	}
	for _, tt := range tests {
		got, silent := levelToGain(tt.level)
		if silent != tt.wantSilent || math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("levelToGain(%v) = (%v, %v), want (%v, %v)", tt.level, got, silent, tt.want, tt.wantSilent)
		}
	}
}
