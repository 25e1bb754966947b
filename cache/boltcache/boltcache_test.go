package boltcache

import (
	"context"
	"errors"
	"testing"

	"github.com/yairfalse/lfo/cache"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, "topology", []byte(`{"regions":[]}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "topology")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"regions":[]}` {
		t.Errorf("Get() = %s", got)
	}

	if err := s.Delete(ctx, "topology"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "topology"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := s.Delete(ctx, "topology"); err != nil {
		t.Errorf("Delete() second call error = %v", err)
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "inventory/sub-1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "inventory/sub-1", []byte("v2")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "inventory/sub-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("Get() = %s, want v2", got)
	}
}

func TestListPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	puts := map[string]string{
		"inventory/sub-b":   "b",
		"inventory/sub-a":   "a",
		"diagnostics/sub-a": "d",
		"topology":          "t",
	}
	for k, v := range puts {
		if err := s.Put(ctx, k, []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.List(ctx, "inventory/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].Key != "inventory/sub-a" || entries[1].Key != "inventory/sub-b" {
		t.Errorf("List() keys = %s, %s", entries[0].Key, entries[1].Key)
	}
	if entries[0].Modified.IsZero() {
		t.Error("List() entry has zero Modified timestamp")
	}
}

func TestCanceledContextReportsUnavailable(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancellation mid-cycle is a store failure, not an entity
	// error, so tasks abort the cycle instead of recording it.
	if err := s.Put(ctx, "topology", []byte("t")); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("Put() error = %v, want ErrUnavailable", err)
	}
	if _, err := s.Get(ctx, "topology"); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("Get() error = %v, want ErrUnavailable", err)
	}
	if err := s.Delete(ctx, "topology"); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("Delete() error = %v, want ErrUnavailable", err)
	}
	if _, err := s.List(ctx, "inventory/"); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("List() error = %v, want ErrUnavailable", err)
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "inventory/sub-1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s2.Close() }()

	entries, err := s2.List(ctx, "inventory/")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() after reopen returned %d entries, want 1", len(entries))
	}
}
