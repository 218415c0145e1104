// Package scheduler runs the sentinel's periodic jobs — subscriber digests,
// retention, the open-interest surge scan, and the ingest connection
// refresh signal — on cron expressions, each guarded against overlapping
// ticks.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// Store is the subset of persist.Store the scheduler's jobs read and write.
type Store interface {
	ActiveSubscribers(ctx context.Context) ([]model.Subscriber, error)
	DeleteLiquidationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReportSender builds and delivers a single subscriber's digest.
type ReportSender interface {
	SendReport(ctx context.Context, sub model.Subscriber, scheduled bool) error
}

// SurgeScanner runs the open-interest surge scan across the tracked symbol universe.
type SurgeScanner interface {
	ScanAll(ctx context.Context)
}

// Scheduler wires the cron-driven job bodies to their dependencies.
type Scheduler struct {
	store     Store
	reports   ReportSender
	surges    SurgeScanner
	retention time.Duration
	onRefresh func()

	cron *cron.Cron

	digestGuard    jobGuard
	retentionGuard jobGuard
	surgeGuard     jobGuard
	refreshGuard   jobGuard
}

// jobGuard skips an overlapping tick instead of queuing it, logging once
// when that happens.
type jobGuard struct {
	mu   sync.Mutex
	name string
}

func (g *jobGuard) run(fn func()) {
	if !g.mu.TryLock() {
		log.Printf("scheduler: %s tick skipped, previous run still in progress", g.name)
		return
	}
	defer g.mu.Unlock()
	fn()
}

// New creates a Scheduler. onRefresh is invoked on the connection-refresh
// cadence and should signal the ingest manager to cycle its connections;
// it may be nil.
func New(store Store, reports ReportSender, surges SurgeScanner, retention time.Duration, onRefresh func()) *Scheduler {
	return &Scheduler{
		store:          store,
		reports:        reports,
		surges:         surges,
		retention:      retention,
		onRefresh:      onRefresh,
		cron:           cron.New(),
		digestGuard:    jobGuard{name: "digest"},
		retentionGuard: jobGuard{name: "retention"},
		surgeGuard:     jobGuard{name: "oi-scan"},
		refreshGuard:   jobGuard{name: "connection-refresh"},
	}
}

// Start registers every job on its documented cron cadence and starts the
// cron scheduler's own goroutine. It does not block.
func (s *Scheduler) Start(ctx context.Context, retentionTick, oiScanInterval, connectionRefresh time.Duration) error {
	if _, err := s.cron.AddFunc("@hourly", func() {
		s.digestGuard.run(func() { s.runDigests(ctx) })
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(everySpec(retentionTick), func() {
		s.retentionGuard.run(func() { s.runRetention(ctx) })
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(everySpec(oiScanInterval), func() {
		s.surgeGuard.run(func() { s.surges.ScanAll(ctx) })
	}); err != nil {
		return err
	}

	if s.onRefresh != nil {
		if _, err := s.cron.AddFunc(everySpec(connectionRefresh), func() {
			s.refreshGuard.run(s.onRefresh)
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDigests(ctx context.Context) {
	s.runDigestsAt(ctx, time.Now().UTC())
}

func (s *Scheduler) runDigestsAt(ctx context.Context, now time.Time) {
	subs, err := s.store.ActiveSubscribers(ctx)
	if err != nil {
		log.Printf("scheduler: list active subscribers: %v", err)
		return
	}

	for _, sub := range subs {
		if !dueForDigest(sub, now) {
			continue
		}
		if err := s.reports.SendReport(ctx, sub, true); err != nil {
			log.Printf("scheduler: send digest to %d: %v", sub.ChatID, err)
		}
	}
}

// dueForDigest reports whether the current UTC hour is a multiple of sub's
// report interval. LastReportSentAt is not consulted here: it exists purely
// for diagnostics, never for gating the scheduled digest.
func dueForDigest(sub model.Subscriber, now time.Time) bool {
	if sub.ReportIntervalHours <= 0 {
		return false
	}
	return now.Hour()%sub.ReportIntervalHours == 0
}

func (s *Scheduler) runRetention(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.store.DeleteLiquidationsOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("scheduler: retention sweep: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("scheduler: retention sweep deleted %d liquidations older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}

// everySpec renders a duration as a robfig/cron "@every" spec.
func everySpec(d time.Duration) string {
	return "@every " + d.String()
}
