// Package cachetest provides an in-memory cache.Cache with injectable
// failures for task tests.
package cachetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yairfalse/lfo/cache"
)

// Fake is an in-memory cache. Set Unavailable to simulate a store
// outage on every operation.
type Fake struct {
	mu          sync.Mutex
	Data        map[string][]byte
	Unavailable bool
	Puts        int
}

// New creates an empty fake cache.
func New() *Fake {
	return &Fake{Data: make(map[string][]byte)}
}

func (f *Fake) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return nil, cache.ErrUnavailable
	}
	value, ok := f.Data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return value, nil
}

func (f *Fake) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return cache.ErrUnavailable
	}
	f.Data[key] = value
	f.Puts++
	return nil
}

func (f *Fake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return cache.ErrUnavailable
	}
	delete(f.Data, key)
	return nil
}

func (f *Fake) List(_ context.Context, prefix string) ([]cache.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return nil, cache.ErrUnavailable
	}
	var keys []string
	for key := range f.Data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	entries := make([]cache.Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, cache.Entry{Key: key, Value: f.Data[key], Modified: time.Now()})
	}
	return entries, nil
}

func (f *Fake) Close() error { return nil }
