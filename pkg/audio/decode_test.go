package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

type sliceStreamer struct {
	samples [][2]float64
	pos     int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n = copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }

func writeWAV(t *testing.T, path string, frames [][2]float64, sr, channels int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: beep.SampleRate(sr), NumChannels: channels, Precision: 2}
	if err := wav.Encode(f, &sliceStreamer{samples: frames}, format); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestDecodeFile_Stereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	frames := make([][2]float64, 1000)
	for i := range frames {
		frames[i] = [2]float64{0.5, -0.25}
	}
	writeWAV(t, path, frames, 22050, 2)

	w, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if w.SampleRate != 22050 {
		t.Errorf("sample rate = %d, want 22050", w.SampleRate)
	}
	if w.Len() != 1000 {
		t.Fatalf("frames = %d, want 1000", w.Len())
	}
	for i, v := range w.Samples {
		if math.Abs(v-0.125) > 1e-3 {
			t.Fatalf("sample %d = %v, want average 0.125", i, v)
		}
	}
}

func TestDecodeFile_Mono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	frames := make([][2]float64, 441)
	for i := range frames {
		v := math.Sin(2 * math.Pi * float64(i) / 441)
		frames[i] = [2]float64{v, v}
	}
	writeWAV(t, path, frames, 44100, 1)

	w, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if w.Len() != 441 {
		t.Fatalf("frames = %d, want 441", w.Len())
	}
	for i := range frames {
		if math.Abs(w.Samples[i]-frames[i][0]) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, w.Samples[i], frames[i][0])
		}
	}
}

func TestDecodeFile_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	unknown := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(unknown, []byte("still not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"Missing File", filepath.Join(dir, "missing.mp3")},
		{"Corrupt WAV", garbage},
		{"Unknown Extension", unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFile(tt.path)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}
