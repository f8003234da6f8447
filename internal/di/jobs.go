package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/cession/internal/config"
	"github.com/aristath/cession/internal/modules/runs"
	"github.com/aristath/cession/internal/scheduler"
)

// RegisterJobs creates the scheduler and registers background jobs with it.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)
	jobs := &JobInstances{}

	if cfg.RunRetentionDays > 0 {
		cleanup := runs.NewCleanupJob(container.RunRepo, cfg.RunRetentionDays, log)
		if err := container.Scheduler.AddJob(cfg.RunCleanupSchedule, cleanup); err != nil {
			return nil, fmt.Errorf("failed to register run cleanup job: %w", err)
		}
		jobs.RunCleanup = cleanup
	} else {
		log.Info().Msg("Run retention disabled, cleanup job not registered")
	}

	return jobs, nil
}
