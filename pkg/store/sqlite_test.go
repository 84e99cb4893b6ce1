package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"salsatempo/pkg/db"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	s := NewSQLiteStore(d)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCache(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, ok := s.GetCache(ctx, "beatmap:song.wav"); ok {
		t.Fatal("expected miss on empty store")
	}

	payload := bytes.Repeat([]byte(`{"tempo":120}`), 100)
	if err := s.SetCache(ctx, "beatmap:song.wav", payload); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, ok := s.GetCache(ctx, "beatmap:song.wav")
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload changed across round trip")
	}

	// Stored compressed
	var raw []byte
	if err := s.db.QueryRow("SELECT value FROM analysis_cache WHERE key = ?", "beatmap:song.wav").Scan(&raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) >= len(payload) || raw[0] != 0x1f || raw[1] != 0x8b {
		t.Error("expected gzip-compressed storage")
	}

	has, err := s.HasCache(ctx, "beatmap:song.wav")
	if err != nil || !has {
		t.Errorf("HasCache = %v, %v", has, err)
	}

	if err := s.DeleteCache(ctx, "beatmap:song.wav"); err != nil {
		t.Fatalf("DeleteCache failed: %v", err)
	}
	has, _ = s.HasCache(ctx, "beatmap:song.wav")
	if has {
		t.Error("entry should be gone")
	}
}

func TestCache_RawFallback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// A value that merely starts with the gzip magic is returned as-is
	bogus := []byte{0x1f, 0x8b, 0x00, 0x01}
	if _, err := s.db.Exec("INSERT INTO analysis_cache (key, value) VALUES (?, ?)", "k", bogus); err != nil {
		t.Fatal(err)
	}
	got, ok := s.GetCache(ctx, "k")
	if !ok || !bytes.Equal(got, bogus) {
		t.Errorf("expected raw fallback, got %v %v", got, ok)
	}
}

func TestListCacheKeys(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"beatmap:b.wav", "beatmap:a.mp3", "other:x", "beatmapXc.wav", "beat%:d.wav"} {
		if err := s.SetCache(ctx, k, []byte("v")); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.ListCacheKeys(ctx, "beatmap:")
	if err != nil {
		t.Fatalf("ListCacheKeys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "beatmap:a.mp3" || keys[1] != "beatmap:b.wav" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestListCacheKeys_Wildcards(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"beatmap:100%_mix.wav", "beatmap:100xymix.wav"} {
		if err := s.SetCache(ctx, k, []byte("v")); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.ListCacheKeys(ctx, "beatmap:100%_")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "beatmap:100%_mix.wav" {
		t.Errorf("prefix must match literally, got %v", keys)
	}
}

func TestStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	if err != nil || st.Entries != 0 || st.Bytes != 0 {
		t.Fatalf("empty Stats() = %+v, %v", st, err)
	}

	for _, k := range []string{"a", "b"} {
		if err := s.SetCache(ctx, k, bytes.Repeat([]byte("x"), 500)); err != nil {
			t.Fatal(err)
		}
	}
	// Overwrite must not double count
	if err := s.SetCache(ctx, "a", []byte("y")); err != nil {
		t.Fatal(err)
	}

	st, err = s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 2 {
		t.Errorf("Entries = %d, want 2", st.Entries)
	}
	if st.Bytes <= 0 || st.Bytes >= 1000 {
		t.Errorf("Bytes = %d, want compressed size", st.Bytes)
	}
}
