// Package scheduler runs cache maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/logging"
	"github.com/robfig/cron/v3"
)

// Warmable is the part of the content cache the scheduler drives.
type Warmable interface {
	WarmCache(ctx context.Context) (contentcache.WarmReport, error)
}

// Scheduler manages cron-scheduled cache warm runs.
type Scheduler struct {
	cron    *cron.Cron
	cache   Warmable
	timeout time.Duration
	entries map[string]cron.EntryID // job name -> cron entry ID
	mu      sync.Mutex
	running atomic.Bool
}

// New creates a new Scheduler. timeout bounds each warm run.
func New(cache Warmable, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		cache:   cache,
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	logging.Op().Info("scheduler started", "jobs", n)
}

// Stop stops the cron scheduler and waits for a running job to finish or ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Op().Warn("scheduler stop timed out with a job still running")
	}
}

// AddWarm registers a warm job under name. An existing job with the same
// name is replaced.
func (s *Scheduler) AddWarm(name, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove existing entry if present
	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.warm(name)
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}

	s.entries[name] = entryID
	return nil
}

// Next returns the next run time of a job. The time is zero until Start.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(entryID).Next, true
}

// WarmNow runs one warm synchronously, e.g. on start. Overlapping runs are
// skipped.
func (s *Scheduler) WarmNow(ctx context.Context) (contentcache.WarmReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		logging.Op().Debug("cache warm already running, skipped")
		return contentcache.WarmReport{}, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.cache.WarmCache(ctx)
}

func (s *Scheduler) warm(name string) {
	report, err := s.WarmNow(context.Background())
	if err != nil {
		logging.Op().Error("scheduled cache warm failed", "job", name, "error", err)
		return
	}
	logging.Op().Debug("scheduled cache warm finished", "job", name, "warmed", len(report.Warmed), "failed", len(report.Failed))
}
