package tts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// VerifyAudioFile checks that path exists and is large enough to hold real audio.
func VerifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio file missing: %w", err)
	}
	if info.Size() < MinAudioSize {
		return fmt.Errorf("audio file too small (%d bytes), synthesis likely failed", info.Size())
	}
	return nil
}

// EnsureExt appends .ext to path unless it already ends with it.
func EnsureExt(path, ext string) string {
	if strings.HasSuffix(strings.ToLower(path), "."+ext) {
		return path
	}
	return path + "." + ext
}

// LocaleOf returns the "xx-YY" prefix of a neural voice ID such as
// "es-CU-BelkysNeural", or fallback when the ID has no locale.
func LocaleOf(voiceID, fallback string) string {
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) < 3 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return fallback
	}
	return parts[0] + "-" + parts[1]
}

// WriteAudio streams r into a temp file next to dest and renames it into
// place, so an interrupted download never leaves a truncated clip behind.
func WriteAudio(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".clip-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("download audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}
