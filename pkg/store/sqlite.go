package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"salsatempo/pkg/db"
)

// SQLiteStore keeps gzip-compressed values in the analysis_cache table.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore wraps an initialized database.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM analysis_cache WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Warn("Store: cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE analysis_cache SET used_at = ? WHERE key = ?", now(), key); err != nil {
		slog.Debug("Store: failed to touch entry", "key", key, "error", err)
	}
	return unpack(val), true
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM analysis_cache WHERE key = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	packed, err := pack(val)
	if err != nil {
		return err
	}
	ts := now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (key, value, size, created_at, used_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, size = excluded.size,
		 created_at = excluded.created_at, used_at = excluded.used_at`,
		key, packed, len(packed), ts, ts)
	return err
}

func (s *SQLiteStore) DeleteCache(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM analysis_cache WHERE key = ?", key)
	return err
}

// ListCacheKeys matches the prefix literally, so file names containing
// LIKE wildcards are safe.
func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM analysis_cache WHERE substr(key, 1, ?) = ? ORDER BY key",
		len([]rune(prefix)), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Stats counts the entries and their stored size.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, "SELECT count(*), coalesce(sum(size), 0) FROM analysis_cache").Scan(&st.Entries, &st.Bytes)
	return st, err
}

func now() string {
	return time.Now().UTC().Format(db.TimeLayout)
}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// pack gzips val. Beat maps carry the whole waveform, so this matters.
func pack(val []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(val); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unpack reverses pack. Values that are not valid gzip are returned as stored.
func unpack(val []byte) []byte {
	if len(val) < 2 || val[0] != 0x1f || val[1] != 0x8b {
		return val
	}
	r, err := gzip.NewReader(bytes.NewReader(val))
	if err != nil {
		return val
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return val
	}
	return out
}
