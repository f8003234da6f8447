package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/cession/internal/config"
	"github.com/aristath/cession/internal/modules/application"
	"github.com/aristath/cession/internal/modules/inuring"
	"github.com/aristath/cession/internal/modules/runs"
)

// InitializeRepositories creates repositories on top of the opened databases
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)
}

// InitializeServices creates the cession engine and application service
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.Engine = inuring.NewEngine(log)
	container.ApplicationService = application.NewService(container.Engine, cfg.BordereauWorkers, log)
}
