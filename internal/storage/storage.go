// Package storage defines the persistence interface for cached extraction results.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/hyperjump/rmeta/internal/extract"
)

// ErrNotFound is returned when no result is cached under a key.
var ErrNotFound = errors.New("result not found")

// Entry describes a cached result without its body.
type Entry struct {
	Key       string
	Name      string
	Units     int
	Size      int64
	Hits      int64
	CreatedAt time.Time
}

// ResultStore caches serialized record lists keyed by Key.
type ResultStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key, name string, units int, body []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, offset, limit int) ([]*Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Stats
	Count(ctx context.Context) (int64, error)
	Hits(ctx context.Context) (int64, error)

	Close() error
}

// Key derives the cache key for extracting data under cfg. The password only
// contributes its own hash.
func Key(data []byte, cfg extract.Config) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(cfg.Fingerprint()))
	if cfg.Password != "" {
		pw := sha256.Sum256([]byte(cfg.Password))
		h.Write([]byte{0})
		h.Write(pw[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
