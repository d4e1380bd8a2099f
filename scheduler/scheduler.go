// Package scheduler runs the periodic upstream probe for the PBS
// authority API. The probe resolves the latest catalog schedule and
// records the outcome in the status container so the health endpoint
// can report upstream reachability. Probe results never serve lookup
// requests: every search re-resolves the schedule itself.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/pbs-authority-api/interfaces"
	"github.com/giygas/pbs-authority-api/logging"
	"github.com/go-co-op/gocron"
)

// probeInterval is how often the upstream catalog is probed.
const probeInterval = 30 * time.Minute

// staleThreshold is how old the last successful probe may get before
// the monitor starts warning.
const staleThreshold = 2 * time.Hour

// Scheduler probes the catalog on a fixed interval using dependency
// injection for the catalog client and the status store.
type Scheduler struct {
	catalog      interfaces.CatalogAPI
	statusStore  interfaces.StatusStore
	scheduler    *gocron.Scheduler
	probeTimeout time.Duration
	monitorStop  chan struct{}
}

// NewScheduler creates a scheduler with injected dependencies.
func NewScheduler(catalog interfaces.CatalogAPI, statusStore interfaces.StatusStore, probeTimeout time.Duration) *Scheduler {
	return &Scheduler{
		catalog:      catalog,
		statusStore:  statusStore,
		scheduler:    gocron.NewScheduler(time.Local),
		probeTimeout: probeTimeout,
		monitorStop:  make(chan struct{}),
	}
}

// Start runs one immediate probe (non-fatal on failure, the upstream
// may simply be down) and schedules the recurring ones, then starts the
// staleness monitor.
func (s *Scheduler) Start() error {
	s.probe()

	_, err := s.scheduler.Every(probeInterval).Do(s.probe)
	if err != nil {
		logging.Error("Failed to schedule upstream probes", "error", err)
		return fmt.Errorf("failed to schedule upstream probes: %w", err)
	}

	s.scheduler.StartAsync()
	s.startStalenessMonitor()

	return nil
}

// Stop stops the scheduler and the staleness monitor.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	close(s.monitorStop)
}

// probe resolves the latest schedule once and records the outcome.
func (s *Scheduler) probe() {
	// Prevent overlapping probes
	if !s.statusStore.BeginProbe() {
		logging.Info("Probe already in progress, skipping...")
		return
	}
	defer s.statusStore.EndProbe()

	ctx, cancel := context.WithTimeout(context.Background(), s.probeTimeout)
	defer cancel()

	start := time.Now()
	schedule, err := s.catalog.ResolveLatestSchedule(ctx)
	latency := time.Since(start)

	snapshot := interfaces.ProbeSnapshot{
		Schedule:  schedule,
		CheckedAt: time.Now(),
		Latency:   latency,
	}

	if err != nil {
		snapshot.Error = err.Error()
		logging.Warn("Upstream probe failed", "error", err, "latency", latency.String())
	} else {
		logging.Info("Upstream probe completed",
			"schedule_code", schedule.Code,
			"effective_date", schedule.EffectiveDate,
			"latency", latency.String())
	}

	s.statusStore.RecordProbe(snapshot)
}

// startStalenessMonitor warns when the catalog has been unreachable for
// longer than the staleness threshold.
func (s *Scheduler) startStalenessMonitor() {
	go func() {
		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.monitorStop:
				return
			case <-ticker.C:
				lastSuccess := s.statusStore.GetLastSuccess()
				if lastSuccess.IsZero() || time.Since(lastSuccess) > staleThreshold {
					logging.Warn("No successful upstream probe recently",
						"last_success", lastSuccess.Format(time.RFC3339))
				}
			}
		}
	}()
}
