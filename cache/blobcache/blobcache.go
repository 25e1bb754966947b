// Package blobcache backs the shared cache with an S3 bucket. One prefix
// per control-plane identity keeps multiple control planes from colliding
// on shared storage.
package blobcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yairfalse/lfo/cache"
)

// Client is the subset of the S3 API the cache uses.
type Client interface {
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store implements cache.Cache on one S3 bucket under a fixed prefix.
type Store struct {
	client Client
	bucket string
	prefix string
}

// New creates a blob cache. namespace is usually
// identity.ID.CacheNamespace().
func New(client Client, bucket, namespace string) *Store {
	prefix := strings.TrimSuffix(namespace, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Close is a no-op; the S3 client has no lifecycle.
func (s *Store) Close() error { return nil }

// Get returns the object stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %v", cache.ErrUnavailable, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", cache.ErrUnavailable, key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any prior object.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", cache.ErrUnavailable, key, err)
	}
	return nil
}

// Delete removes key. S3 deletes are idempotent, absent keys succeed.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", cache.ErrUnavailable, key, err)
	}
	return nil
}

// List returns all entries under prefix in key order. S3 already returns
// keys in lexicographic order, so pagination preserves it.
func (s *Store) List(ctx context.Context, prefix string) ([]cache.Entry, error) {
	var entries []cache.Entry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", cache.ErrUnavailable, prefix, err)
		}

		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)

			value, err := s.Get(ctx, key)
			if err != nil {
				// Object deleted between list and get.
				if errors.Is(err, cache.ErrNotFound) {
					continue
				}
				return nil, err
			}

			var modified time.Time
			if obj.LastModified != nil {
				modified = *obj.LastModified
			}
			entries = append(entries, cache.Entry{Key: key, Value: value, Modified: modified})
		}
	}
	return entries, nil
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
