// Package cache defines the shared control-plane cache: the only channel
// through which the scheduled tasks exchange state. Every value is a full
// snapshot, every write a full replace, so overlapping task runs converge
// instead of corrupting each other.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when a key has never been written (or
// was deleted).
var ErrNotFound = errors.New("cache: key not found")

// ErrUnavailable wraps failures of the underlying store. A task that sees
// it aborts its whole cycle rather than operating on partial data.
var ErrUnavailable = errors.New("cache: storage unavailable")

// Entry is a stored value with its last-modified timestamp.
type Entry struct {
	Key      string
	Value    []byte
	Modified time.Time
}

// Cache is a durable, addressable key/value store. Implementations must
// be safe for concurrent use; tasks never share process memory, so the
// cache is their only coordination point.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns all entries whose key starts with prefix, ordered by
	// key.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	return c.Put(ctx, key, data)
}

// GetJSON loads key and unmarshals it into v. ErrNotFound passes through
// unwrapped so callers can distinguish absence from store failure.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return nil
}
