package schema

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/appforge/platform/internal/app/metrics"
	"github.com/appforge/platform/internal/app/storage"
	"github.com/appforge/platform/pkg/logger"
)

// replaySchedule is how often the sweeper retries deferred RLS scripts.
const replaySchedule = "@every 10m"

// replayTimeout bounds one full sweep.
const replayTimeout = 2 * time.Minute

// ReplaySweeper periodically retries deferred RLS scripts. Applied
// entries are removed from App metadata; the rest stay for the next
// sweep.
type ReplaySweeper struct {
	store storage.AppStore
	sql   SQLRunner
	cron  *cron.Cron
	log   *logger.Logger
}

// NewReplaySweeper creates a sweeper over the app store.
func NewReplaySweeper(store storage.AppStore, sql SQLRunner, log *logger.Logger) *ReplaySweeper {
	return &ReplaySweeper{
		store: store,
		sql:   sql,
		cron:  cron.New(),
		log:   log.Component("rls-replay"),
	}
}

// Start schedules the sweep loop.
func (s *ReplaySweeper) Start() error {
	if _, err := s.cron.AddFunc(replaySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *ReplaySweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep retries every pending RLS entry across all apps and reports how
// many were applied.
func (s *ReplaySweeper) Sweep(ctx context.Context) int {
	apps, err := s.store.ListApps(ctx)
	if err != nil {
		s.log.WithError(err).Error("replay sweep could not list apps")
		return 0
	}

	applied := 0
	for _, a := range apps {
		entries := a.PendingRLSEntries()
		if len(entries) == 0 {
			continue
		}

		kept := entries[:0:0]
		for _, entry := range entries {
			if err := s.sql.ExecSQL(ctx, entry.SQL); err != nil {
				s.log.WithError(err).WithField("table", entry.Table).Warn("deferred rls still failing")
				metrics.RecordPendingRLSReplay(false)
				kept = append(kept, entry)
				continue
			}
			metrics.RecordPendingRLSReplay(true)
			applied++
		}

		if len(kept) == len(entries) {
			continue
		}
		a.SetPendingRLS(kept)
		if _, err := s.store.UpdateApp(ctx, a); err != nil {
			s.log.WithError(err).WithField("app_id", a.ID).Error("replayed rls entries not persisted")
		}
	}

	if applied > 0 {
		s.log.WithField("applied", applied).Info("replay sweep applied deferred rls")
	}
	return applied
}
