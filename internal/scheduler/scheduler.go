// Package scheduler runs the service's housekeeping, such as pruning stored
// bordereau runs, on cron schedules.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of housekeeping the scheduler can run
type Job interface {
	Run() error
	Name() string
}

// Scheduler runs registered jobs on their schedules. A job that panics is
// recovered, and a job still running when its next tick fires is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// cronLogger routes the cron library's own messages through zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// New creates a scheduler. Schedules carry a leading seconds field.
func New(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

// Start begins firing jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.Jobs()).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job under a cron schedule, e.g. "0 0 3 * * *" for 03:00
// daily, "@daily" or "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		jobLog := s.log.With().Str("job", job.Name()).Logger()
		jobLog.Debug().Msg("Running job")
		if err := job.Run(); err != nil {
			jobLog.Error().Err(err).Msg("Job failed")
			return
		}
		jobLog.Debug().Msg("Job completed")
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// Jobs returns how many jobs are registered
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// RunNow runs job synchronously, outside its schedule. The server uses it to
// prune runs once at startup.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
