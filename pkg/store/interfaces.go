// Package store persists derived analysis results.
package store

import "context"

// CacheStore is a byte-oriented key-value cache. A read error is reported
// as a miss; the caller recomputes.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	DeleteCache(ctx context.Context, key string) error
	// ListCacheKeys returns the keys starting with prefix, sorted.
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// Store is the cache plus the lifecycle of its backing connection.
type Store interface {
	CacheStore
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarizes what the cache holds.
type Stats struct {
	Entries int
	Bytes   int64 // stored, after compression
}
