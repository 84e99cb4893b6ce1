// Package audio decodes source files and drives the output device.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"salsatempo/pkg/model"
)

// ErrDecode is returned when a file cannot be read or is not a supported audio format.
var ErrDecode = errors.New("audio decode failed")

// decodeChunk is the number of frames pulled per Stream call while loading.
const decodeChunk = 4096

// DecodeMedia opens path and returns a streamer for it. The extension picks the
// decoder; unknown extensions try MP3 first, then WAV.
func DecodeMedia(path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWith(path, decodeWAV)
	case ".mp3":
		return decodeWith(path, decodeMP3)
	}

	streamer, format, err := decodeWith(path, decodeMP3)
	if err == nil {
		return streamer, format, nil
	}
	// MP3 failure may leave the reader mid-file, so WAV gets a fresh handle
	return decodeWith(path, decodeWAV)
}

type decoderFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

func decodeMP3(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	return mp3.Decode(f)
}

func decodeWAV(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	// The decoder closes f when it is an io.Closer
	return wav.Decode(f)
}

func decodeWith(path string, dec decoderFunc) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	streamer, format, err := dec(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return streamer, format, nil
}

// DecodeFile loads a whole file into a mono waveform at its native sample rate.
// Stereo frames are averaged.
func DecodeFile(path string) (*model.Waveform, error) {
	streamer, format, err := DecodeMedia(path)
	if err != nil {
		slog.Error("Audio: failed to decode", "path", path, "error", err)
		return nil, err
	}
	defer streamer.Close()

	samples := make([]float64, 0, max(streamer.Len(), 0))
	buf := make([][2]float64, decodeChunk)
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			samples = append(samples, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	slog.Debug("Audio: decoded",
		"path", path,
		"frames", len(samples),
		"sample_rate", int(format.SampleRate),
		"channels", format.NumChannels)

	return &model.Waveform{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}
