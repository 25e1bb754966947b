// Package boltcache backs the shared cache with a local bbolt file. It is
// the backend for development, tests, and single-host deployments; the
// blob backend serves real multi-instance control planes.
package boltcache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/lfo/cache"
)

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")
)

// Store implements cache.Cache on bbolt with an in-memory btree key index
// for ordered prefix scans.
type Store struct {
	mu    sync.RWMutex
	db    *bbolt.DB
	index *btree.BTreeG[string]
}

// Open creates or opens the cache database inside dir.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, "lfo-cache.db")

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", cache.ErrUnavailable, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: init buckets: %v", cache.ErrUnavailable, err)
	}

	s := &Store{
		db: db,
		index: btree.NewG[string](32, func(a, b string) bool {
			return a < b
		}),
	}

	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, _ []byte) error {
			s.index.ReplaceOrInsert(string(k))
			return nil
		})
	})
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketEntries).Get([]byte(key))
		if raw == nil {
			return cache.ErrNotFound
		}
		value = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		if err == cache.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get %s: %v", cache.ErrUnavailable, key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any prior value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Put([]byte(key), value); err != nil {
			return err
		}
		stamp, err := time.Now().UTC().MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(modKey(key), stamp)
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", cache.ErrUnavailable, key, err)
	}

	s.index.ReplaceOrInsert(key)
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Delete(modKey(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", cache.ErrUnavailable, key, err)
	}

	s.index.Delete(key)
	return nil
}

// List returns all entries under prefix in key order.
func (s *Store) List(ctx context.Context, prefix string) ([]cache.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	s.index.AscendGreaterOrEqual(prefix, func(key string) bool {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			return false
		}
		keys = append(keys, key)
		return true
	})

	entries := make([]cache.Entry, 0, len(keys))
	err := s.db.View(func(tx *bbolt.Tx) error {
		values := tx.Bucket(bucketEntries)
		meta := tx.Bucket(bucketMeta)
		for _, key := range keys {
			raw := values.Get([]byte(key))
			if raw == nil {
				continue
			}
			entry := cache.Entry{
				Key:   key,
				Value: append([]byte(nil), raw...),
			}
			if stamp := meta.Get(modKey(key)); stamp != nil {
				_ = entry.Modified.UnmarshalBinary(stamp)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", cache.ErrUnavailable, prefix, err)
	}
	return entries, nil
}

func modKey(key string) []byte {
	return []byte("mod/" + key)
}
