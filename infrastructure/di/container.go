package di

import (
	"socialgraph/application/commands/bus"
	"socialgraph/application/ports"
	querybus "socialgraph/application/queries/bus"
	"socialgraph/application/services"
	"socialgraph/infrastructure/config"
	pkgerrors "socialgraph/pkg/errors"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Health       ports.HealthChecker
	Directory    *services.UserDirectory
	Engine       *services.GraphQueryEngine
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	ErrorHandler *pkgerrors.ErrorHandler
}
