package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/saulo-duarte/okr-progress/internal/config"
)

// Refresher recomputes stored key result statuses against the current day.
type Refresher interface {
	RefreshStatuses(ctx context.Context) (int, error)
}

// Scheduler wraps cron-based jobs. Specs carry a seconds field.
type Scheduler struct {
	cron *cron.Cron
}

func New(loc *time.Location) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

func (s *Scheduler) Schedule(spec string, job func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return id, nil
}

// ScheduleRefresh runs the status refresh on spec, bounding each run by timeout.
func (s *Scheduler) ScheduleRefresh(spec string, refresher Refresher, timeout time.Duration) (cron.EntryID, error) {
	return s.Schedule(spec, func() {
		RunRefresh(context.Background(), refresher, timeout)
	})
}

// RunRefresh performs a single refresh run and logs its outcome.
func RunRefresh(ctx context.Context, refresher Refresher, timeout time.Duration) {
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := config.WithContext(jobCtx)
	started := time.Now()
	changed, err := refresher.RefreshStatuses(jobCtx)
	if err != nil {
		log.WithError(err).WithField("changed", changed).Error("Status refresh finished with errors")
		return
	}
	log.WithFields(logrus.Fields{
		"changed":  changed,
		"duration": time.Since(started).String(),
	}).Info("Status refresh finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
