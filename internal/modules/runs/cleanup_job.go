package runs

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes stored runs older than the retention period.
// It should be scheduled to run daily.
type CleanupJob struct {
	repo      *Repository
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewCleanupJob creates a new run retention job
func NewCleanupJob(repo *Repository, retentionDays int, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		log:       log.With().Str("job", "run_cleanup").Logger(),
	}
}

// Run deletes expired runs
func (j *CleanupJob) Run() error {
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.repo.DeleteOlderThan(cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired runs")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Expired runs removed")
	}
	return nil
}

// Name returns the job name for scheduling and logging
func (j *CleanupJob) Name() string {
	return "run_cleanup"
}
