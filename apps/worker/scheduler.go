package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

const settingsRefreshSpec = "@every 10m"

type (
	settingsReader interface {
		GetSettings(ctx context.Context) (roster.Settings, error)
	}

	// scheduler runs the digest job daily at the school's summary notification time.
	// The time is re-read periodically so that settings changes apply without a restart.
	scheduler struct {
		cron     *cron.Cron
		settings settingsReader
		job      func()
		logger   core.Logger

		mu      sync.Mutex
		at      string // HH:MM of the scheduled job
		entryID cron.EntryID
	}
)

func newScheduler(settings settingsReader, job func(), tz *time.Location, cronLogger cron.Logger, logger core.Logger) *scheduler {
	if tz == nil {
		tz = time.UTC
	}
	return &scheduler{
		cron: cron.New(
			cron.WithLocation(tz),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		settings: settings,
		job:      job,
		logger:   logger,
	}
}

// dailySpec turns an HH:MM time of day into a cron spec.
func dailySpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", errors.Wrapf(err, "parsing time of day %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// refresh (re)schedules the job when the summary notification time changed.
func (s *scheduler) refresh(ctx context.Context) error {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return errors.Wrap(err, "reading settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.SummaryNotificationTime == s.at && s.entryID != 0 {
		return nil
	}
	spec, err := dailySpec(settings.SummaryNotificationTime)
	if err != nil {
		return err
	}
	id, err := s.cron.AddFunc(spec, s.job)
	if err != nil {
		return errors.Wrapf(err, "scheduling digest at %q", spec)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	s.entryID, s.at = id, settings.SummaryNotificationTime
	s.logger.Info(fmt.Sprintf("digest scheduled daily at %s", s.at))
	return nil
}

func (s *scheduler) start(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(settingsRefreshSpec, func() {
		if err := s.refresh(ctx); err != nil {
			s.logger.Error(fmt.Sprintf("refreshing digest schedule: %v", err), err)
		}
	}); err != nil {
		return errors.Wrap(err, "scheduling settings refresh")
	}
	s.cron.Start()
	return nil
}

// stop waits for a running job to complete.
func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}

func (s *scheduler) next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entry(s.entryID).Next
}
