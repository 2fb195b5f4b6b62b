// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	businessflow "github.com/sellora/engage/business_flow"
	"github.com/sellora/engage/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	segmentRefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_scheduler_segment_refresh_runs_total",
			Help: "Scheduled segment refresh passes partitioned by result",
		},
		[]string{"result"},
	)

	triggerBatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_scheduler_trigger_batch_runs_total",
			Help: "Scheduled trigger batch runs partitioned by result",
		},
		[]string{"result"},
	)

	triggerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engage_scheduler_trigger_batch_duration_seconds",
			Help:    "Wall time of scheduled trigger batch runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

// EngineScheduler periodically refreshes auto-refresh segments and runs the
// trigger batch. The two loops tick independently so a slow batch never
// starves segment refreshes.
type EngineScheduler struct {
	segmentFlow businessflow.SegmentFlow
	triggerFlow businessflow.TriggerFlow
	logger      *log.Logger

	segmentInterval time.Duration
	triggerInterval time.Duration
}

func NewEngineScheduler(
	segmentFlow businessflow.SegmentFlow,
	triggerFlow businessflow.TriggerFlow,
	schedCfg config.SchedulerConfig,
	logCfg config.LoggingConfig,
) *EngineScheduler {
	segmentInterval := schedCfg.SegmentRefreshInterval
	if segmentInterval <= 0 {
		segmentInterval = time.Hour
	}
	triggerInterval := schedCfg.TriggerBatchInterval
	if triggerInterval <= 0 {
		triggerInterval = 15 * time.Minute
	}

	return &EngineScheduler{
		segmentFlow:     segmentFlow,
		triggerFlow:     triggerFlow,
		logger:          newSchedulerLogger(logCfg),
		segmentInterval: segmentInterval,
		triggerInterval: triggerInterval,
	}
}

// newSchedulerLogger writes to stdout and a rotated run log
func newSchedulerLogger(cfg config.LoggingConfig) *log.Logger {
	path := cfg.SchedulerLogPath
	if path == "" {
		return log.New(os.Stdout, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}

	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotated)
	return log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the scheduler loops in background goroutines and returns a
// stop function
func (s *EngineScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.segmentInterval)
		defer ticker.Stop()

		s.refreshSegments(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refreshSegments(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(s.triggerInterval)
		defer ticker.Stop()

		s.runTriggerBatch(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runTriggerBatch(ctx)
			}
		}
	}()

	return cancel
}

func (s *EngineScheduler) refreshSegments(ctx context.Context) {
	result, err := s.segmentFlow.RefreshAutoSegments(ctx)
	if err != nil {
		segmentRefreshRuns.WithLabelValues("error").Inc()
		s.logger.Printf("scheduler: segment refresh failed: %v", err)
		return
	}

	if result.Failed > 0 {
		segmentRefreshRuns.WithLabelValues("partial").Inc()
		for _, msg := range result.Errors {
			s.logger.Printf("scheduler: segment refresh error: %s", msg)
		}
	} else {
		segmentRefreshRuns.WithLabelValues("success").Inc()
	}
	s.logger.Printf("scheduler: refreshed %d segments, %d failed", result.Refreshed, result.Failed)
}

func (s *EngineScheduler) runTriggerBatch(ctx context.Context) {
	start := time.Now()
	result, err := s.triggerFlow.RunTriggerBatch(ctx)
	if err != nil {
		triggerBatchRuns.WithLabelValues("error").Inc()
		s.logger.Printf("scheduler: trigger batch failed: %v", err)
		return
	}
	triggerBatchDuration.Observe(time.Since(start).Seconds())

	if !result.Started {
		// Another run holds the lease; the next tick will try again.
		triggerBatchRuns.WithLabelValues("skipped").Inc()
		s.logger.Printf("scheduler: trigger batch skipped: %s", result.SkippedReason)
		return
	}

	triggerBatchRuns.WithLabelValues("success").Inc()
	s.logger.Printf("scheduler: trigger batch finished triggers=%d skipped=%d matched=%d dispatched=%d succeeded=%d failed=%d in %s",
		result.TriggersEvaluated,
		result.TriggersSkipped,
		result.CustomersMatched,
		result.Dispatched,
		result.Succeeded,
		result.Failed,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	)
}
