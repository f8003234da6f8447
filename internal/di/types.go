// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived dependency of the service and is
// passed to the HTTP server so handlers share one set of instances.
package di

import (
	"github.com/aristath/cession/internal/database"
	"github.com/aristath/cession/internal/modules/application"
	"github.com/aristath/cession/internal/modules/inuring"
	"github.com/aristath/cession/internal/modules/runs"
	"github.com/aristath/cession/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	RunsDB *database.DB

	// Repositories
	RunRepo *runs.Repository

	// Services
	Engine             *inuring.Engine
	ApplicationService *application.Service

	// Background work
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered scheduler jobs
type JobInstances struct {
	RunCleanup scheduler.Job // nil when retention is disabled
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.RunsDB != nil {
		return c.RunsDB.Close()
	}
	return nil
}
