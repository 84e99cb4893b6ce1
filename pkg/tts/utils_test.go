package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
)

func TestVerifyAudioFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("FileDoesNotExist", func(t *testing.T) {
		err := VerifyAudioFile(filepath.Join(tmpDir, "missing.mp3"))
		if err == nil {
			t.Error("expected error for missing file, got nil")
		}
	})

	t.Run("FileTooSmall", func(t *testing.T) {
		path := filepath.Join(tmpDir, "small.mp3")
		if err := os.WriteFile(path, make([]byte, 512), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		err := VerifyAudioFile(path)
		if err == nil {
			t.Error("expected error for small file, got nil")
		}
	})

	t.Run("FileValid", func(t *testing.T) {
		path := filepath.Join(tmpDir, "valid.mp3")
		if err := os.WriteFile(path, make([]byte, MinAudioSize+1), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		err := VerifyAudioFile(path)
		if err != nil {
			t.Errorf("expected no error for valid file, got: %v", err)
		}
	})
}

func TestEnsureExt(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"clip", "mp3", "clip.mp3"},
		{"clip.mp3", "mp3", "clip.mp3"},
		{"CLIP.MP3", "mp3", "CLIP.MP3"},
		{"clip.tmp", "mp3", "clip.tmp.mp3"},
	}
	for _, tt := range tests {
		if got := EnsureExt(tt.path, tt.ext); got != tt.want {
			t.Errorf("EnsureExt(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}

func TestLocaleOf(t *testing.T) {
	tests := []struct {
		voice, want string
	}{
		{"es-CU-BelkysNeural", "es-CU"},
		{"en-US-AvaMultilingualNeural", "en-US"},
		{"Belkys", "es"},
		{"", "es"},
	}
	for _, tt := range tests {
		if got := LocaleOf(tt.voice, "es"); got != tt.want {
			t.Errorf("LocaleOf(%q) = %q, want %q", tt.voice, got, tt.want)
		}
	}
}

func TestWriteAudio(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dame.mp3")

	if err := WriteAudio(dest, strings.NewReader("audio")); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "audio" {
		t.Fatalf("got %q, %v", data, err)
	}

	if err := WriteAudio(dest, iotest.ErrReader(errors.New("reset"))); err == nil {
		t.Fatal("expected read error")
	}
	data, _ = os.ReadFile(dest)
	if string(data) != "audio" {
		t.Errorf("failed write clobbered the existing clip: %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}
