//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"socialgraph/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideDatastore,
	ProvideUserRepository,
	ProvideConnectionRepository,
	ProvideHealthChecker,
	ProvideCache,
	ProvideEventPublisher,
	ProvideUserDirectory,
	ProvideGraphQueryEngine,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideErrorHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
