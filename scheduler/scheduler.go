// Package scheduler drives the control-plane tasks on independent
// intervals inside one process, alongside the metrics endpoint and
// signal handling.
package scheduler

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yairfalse/lfo/telemetry"
)

// Job is one periodically scheduled task. Tasks never talk to each
// other; they coordinate through the shared cache, so jobs run on
// independent tickers with no ordering between them.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one invocation. Zero means the interval is the
	// bound.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler owns the process run group.
type Scheduler struct {
	jobs        []Job
	metricsAddr string
	logger      *telemetry.Logger
}

// New creates a scheduler. metricsAddr may be empty to disable the
// metrics endpoint.
func New(jobs []Job, metricsAddr string) *Scheduler {
	return &Scheduler{
		jobs:        jobs,
		metricsAddr: metricsAddr,
		logger:      telemetry.NewLogger("scheduler"),
	}
}

// Start runs every job until the context is canceled or a termination
// signal arrives. A failing job cycle is logged and retried on its next
// tick; it never takes the process down.
func (s *Scheduler) Start(ctx context.Context) error {
	var group run.Group

	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	if s.metricsAddr != "" {
		server := &http.Server{
			Addr:              s.metricsAddr,
			Handler:           s.metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Add(func() error {
			s.logger.WithContext(ctx).Info().
				Str("addr", s.metricsAddr).
				Msg("starting metrics server")
			return server.ListenAndServe()
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		})
	}

	for _, job := range s.jobs {
		job := job
		jobCtx, cancel := context.WithCancel(ctx)
		group.Add(func() error {
			s.runJob(jobCtx, job)
			return nil
		}, func(error) {
			cancel()
		})
	}

	err := group.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		s.logger.WithContext(ctx).Info().
			Str("signal", sig.Signal.String()).
			Msg("shutting down")
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		telemetry.PrometheusRegistry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// runJob runs the job once immediately, then on every tick.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	s.invoke(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.invoke(ctx, job)
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := job.Run(runCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.WithContext(ctx).Error().
			Err(err).
			Str("task", job.Name).
			Msg("task cycle failed, waiting for next tick")
	}
}
