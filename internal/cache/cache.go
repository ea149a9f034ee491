// Package cache implements the engine's cache manager: a TTL key-value
// store with single-flight request coalescing, versioned keys, and
// document-scoped invalidation driven by ingestion events.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Entry is an immutable cached value. Entries are never mutated in
// place; a changed semantic input always hashes to a new key.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry is past its TTL at the given time.
func (e Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Store is a single cache tier. Set is insert-if-absent: a key is never
// overwritten with a different value, only removed by TTL or explicit
// invalidation.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}

// Key derives a deterministic cache key from semantic input parts plus
// a version tag (embedding model version, index snapshot version).
// Upgrading a model or reindexing changes the tag and therefore the
// key, invalidating stale entries without a manual purge.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
