// Package scheduler drives the daemon: it periodically fetches a quota
// snapshot, records it, and runs the reset-detection orchestrator.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/wakeguard/wakeguard/internal/detector"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/metrics"
	"github.com/wakeguard/wakeguard/internal/models"
	"github.com/wakeguard/wakeguard/internal/store"
	"github.com/wakeguard/wakeguard/internal/wakeup"
)

// SnapshotSource produces the current quota snapshot.
type SnapshotSource interface {
	Fetch(ctx context.Context) (*models.QuotaSnapshot, error)
}

// Detector runs one reset-detection cycle over a snapshot.
type Detector interface {
	DetectResetAndTrigger(ctx context.Context, snapshot models.QuotaSnapshot) (*wakeup.Outcome, error)
}

// Scheduler runs detection cycles on a fixed interval.
type Scheduler struct {
	mu           sync.Mutex
	interval     time.Duration
	source       SnapshotSource
	orchestrator Detector
	snapshots    *store.SnapshotStore
	metrics      *metrics.Metrics
	logger       *logging.Logger
}

// New creates a scheduler. The snapshot store and metrics are optional.
func New(interval time.Duration, source SnapshotSource, orchestrator Detector, snapshots *store.SnapshotStore, m *metrics.Metrics, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		interval:     interval,
		source:       source,
		orchestrator: orchestrator,
		snapshots:    snapshots,
		metrics:      m,
		logger:       logger,
	}
}

// SetInterval updates the cycle interval for the next tick. Called from the
// config watcher goroutine, so access is synchronized with Run.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d < time.Minute {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Interval returns the current cycle interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Run blocks until ctx is cancelled, executing one cycle immediately and then
// one per interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.Interval().String())
	s.RunCycle(ctx)

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
			ticker.Reset(s.Interval())
		}
	}
}

// RunCycle executes a single fetch-record-detect cycle. Failures are logged,
// never fatal; the next tick retries from scratch.
func (s *Scheduler) RunCycle(ctx context.Context) {
	started := time.Now()

	snapshot, err := s.source.Fetch(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SnapshotFetchErrors.Inc()
		}
		s.logger.Error("snapshot fetch failed", "error", err.Error())
		return
	}
	if err := snapshot.Validate(); err != nil {
		s.logger.Error("snapshot rejected", "error", err.Error())
		return
	}

	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(snapshot); err != nil {
			s.logger.Warn("failed to record snapshot", "error", err.Error())
		}
	}

	if s.metrics != nil {
		remaining := make(map[string]float64, len(snapshot.Models))
		for _, m := range snapshot.Models {
			if m.RemainingPercentage != nil {
				remaining[m.ModelID] = *m.RemainingPercentage
			}
		}
		s.metrics.ObserveSnapshot(remaining, len(detector.FindUnusedModels(*snapshot)))
	}

	outcome, err := s.orchestrator.DetectResetAndTrigger(ctx, *snapshot)
	if err != nil {
		s.logger.Error("detection cycle failed", "error", err.Error())
	} else if outcome.Triggered {
		s.logger.Info("detection cycle triggered models",
			"models", outcome.TriggeredModels, "count", len(outcome.TriggeredModels))
	}

	if s.metrics != nil {
		s.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}
}
