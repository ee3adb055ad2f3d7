// Package sched runs the two recurring jobs: the per-minute FIDS sync and
// the nightly archive. Schedules are evaluated in the airport timezone, so
// the archive anchor stays at 03:30 local across DST transitions.
package sched

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"paxassist/internal/archive"
	"paxassist/internal/store"
	"paxassist/internal/syncer"
)

// Default schedules.
const (
	SyncSpec    = "* * * * *"
	ArchiveSpec = "30 3 * * *"
)

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	store   store.Store
	engine  *syncer.Engine
	fetcher syncer.Fetcher
	loc     *time.Location

	syncing atomic.Bool
}

// New builds the scheduler. Jobs are registered by Start.
func New(st store.Store, engine *syncer.Engine, fetcher syncer.Fetcher, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		store:   st,
		engine:  engine,
		fetcher: fetcher,
		loc:     loc,
	}
}

// Start registers the jobs and starts the cron loop. Job failures are logged
// and left for the next tick to reconcile.
func (s *Scheduler) Start(syncSpec string) error {
	if syncSpec == "" {
		syncSpec = SyncSpec
	}
	if _, err := s.cron.AddFunc(syncSpec, s.runSync); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(ArchiveSpec, s.runArchive); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("sched: sync %q, archive %q (%s)", syncSpec, ArchiveSpec, s.loc)
	return nil
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// runSync skips the tick if the previous sync is still in flight.
func (s *Scheduler) runSync() {
	if !s.syncing.CompareAndSwap(false, true) {
		log.Print("sched: sync still running, skipping tick")
		return
	}
	defer s.syncing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stats, err := s.engine.SyncFromProvider(ctx, s.fetcher)
	if err != nil {
		log.Printf("sched: sync failed: %v", err)
		return
	}
	if stats.Inserted > 0 || stats.Changed > 0 {
		log.Printf("sched: sync inserted=%d updated=%d changed=%d skipped=%d",
			stats.Inserted, stats.Updated, stats.Changed, stats.Skipped)
	}
}

func (s *Scheduler) runArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := archive.Run(ctx, s.store, s.loc, time.Now()); err != nil {
		log.Printf("sched: archive failed: %v", err)
	}
}
