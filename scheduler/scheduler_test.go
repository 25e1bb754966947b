package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunsJobsOnIndependentTickers(t *testing.T) {
	var fast, slow atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	s := New([]Job{
		{Name: "fast", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		{Name: "slow", Interval: time.Hour, Run: func(context.Context) error {
			slow.Add(1)
			return nil
		}},
	}, "")

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return fast.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// Both ran immediately; only the fast one ticked again.
	assert.Equal(t, int64(1), slow.Load())
	assert.GreaterOrEqual(t, fast.Load(), int64(3))
}

func TestStartSurvivesFailingJob(t *testing.T) {
	var attempts atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	s := New([]Job{
		{Name: "flaky", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			attempts.Add(1)
			return errors.New("cycle failed")
		}},
	}, "")

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestStartStopsAllJobsOnCancel(t *testing.T) {
	var runs atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	s := New([]Job{
		{Name: "counter", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
	}, "")

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, runs.Load())
}

func TestMetricsEndpointServesWithoutOTELSetup(t *testing.T) {
	// The registry exists from process start, so a scrape must work
	// even when OTEL export was never initialized.
	s := New(nil, ":0")

	rec := httptest.NewRecorder()
	s.metricsMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.metricsMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestInvokeAppliesJobTimeout(t *testing.T) {
	var sawDeadline atomic.Bool

	s := New(nil, "")
	s.invoke(context.Background(), Job{
		Name:     "bounded",
		Interval: time.Hour,
		Timeout:  10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			sawDeadline.Store(true)
			return ctx.Err()
		},
	})

	assert.True(t, sawDeadline.Load())
}
