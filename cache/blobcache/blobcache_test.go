package blobcache

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yairfalse/lfo/cache"
)

// fakeS3 keeps objects in a map and can inject failures.
type fakeS3 struct {
	objects map[string][]byte
	failAll bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

var errFakeOutage = errors.New("simulated outage")

func (f *fakeS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.failAll {
		return nil, errFakeOutage
	}
	value, ok := f.objects[aws.ToString(input.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(value)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failAll {
		return nil, errFakeOutage
	}
	value, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(input.Key)] = value
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.failAll {
		return nil, errFakeOutage
	}
	delete(f.objects, aws.ToString(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.failAll {
		return nil, errFakeOutage
	}
	prefix := aws.ToString(input.Prefix)
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	now := time.Now()
	contents := make([]s3types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, s3types.Object{Key: aws.String(key), LastModified: &now})
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func TestBlobCacheRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := New(fake, "lfo-bucket", "lfo-cache-abc123def456")
	ctx := context.Background()

	if _, err := store.Get(ctx, "topology"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, "topology", []byte("desired")); err != nil {
		t.Fatal(err)
	}

	// Objects land under the control plane's namespace.
	if _, ok := fake.objects["lfo-cache-abc123def456/topology"]; !ok {
		t.Error("object not stored under namespace prefix")
	}

	got, err := store.Get(ctx, "topology")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "desired" {
		t.Errorf("Get() = %s", got)
	}

	if err := store.Delete(ctx, "topology"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "topology"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
}

func TestBlobCacheList(t *testing.T) {
	fake := newFakeS3()
	store := New(fake, "lfo-bucket", "ns")
	ctx := context.Background()

	for key, value := range map[string]string{
		"inventory/sub-b": "b",
		"inventory/sub-a": "a",
		"topology":        "t",
	} {
		if err := store.Put(ctx, key, []byte(value)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List(ctx, "inventory/")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].Key != "inventory/sub-a" || entries[1].Key != "inventory/sub-b" {
		t.Errorf("List() keys = %s, %s", entries[0].Key, entries[1].Key)
	}
}

func TestBlobCacheUnavailable(t *testing.T) {
	fake := newFakeS3()
	fake.failAll = true
	store := New(fake, "lfo-bucket", "ns")
	ctx := context.Background()

	if _, err := store.Get(ctx, "k"); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("Get() error = %v, want ErrUnavailable", err)
	}
	if err := store.Put(ctx, "k", nil); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("Put() error = %v, want ErrUnavailable", err)
	}
	if _, err := store.List(ctx, ""); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("List() error = %v, want ErrUnavailable", err)
	}
}
