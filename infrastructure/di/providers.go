package di

import (
	"context"
	"fmt"

	"socialgraph/application/commands"
	"socialgraph/application/commands/bus"
	commandhandlers "socialgraph/application/commands/handlers"
	"socialgraph/application/ports"
	"socialgraph/application/queries"
	querybus "socialgraph/application/queries/bus"
	queryhandlers "socialgraph/application/queries/handlers"
	"socialgraph/application/services"
	domainconfig "socialgraph/domain/config"
	"socialgraph/infrastructure/config"
	"socialgraph/infrastructure/messaging/eventbridge"
	"socialgraph/infrastructure/messaging/logpub"
	"socialgraph/infrastructure/persistence/dynamodb"
	"socialgraph/infrastructure/persistence/memory"
	"socialgraph/infrastructure/persistence/resilience"
	"socialgraph/infrastructure/persistence/sqlite"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Datastore groups the repositories served by one storage backend
type Datastore struct {
	Users       ports.UserRepository
	Connections ports.ConnectionRepository
	Health      ports.HealthChecker
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = level
	}

	return zcfg.Build()
}

// ProvideDomainConfig derives the business rules from the runtime configuration
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	dc := domainconfig.LoadDomainConfig(cfg.Environment)
	dc.ResolveCacheTTL = cfg.ResolveCacheTTL
	if err := dc.Validate(); err != nil {
		return nil, err
	}
	return dc, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDatastore opens the backend named by STORE_BACKEND and wraps it in a
// circuit breaker. The cleanup releases the backend's resources.
func ProvideDatastore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Datastore, func(), error) {
	var (
		users       ports.UserRepository
		connections ports.ConnectionRepository
		health      ports.HealthChecker
		cleanup     = func() {}
	)

	switch cfg.StoreBackend {
	case config.BackendMemory:
		store := memory.NewStore(logger)
		users, connections, health = store, store, store

	case config.BackendSQLite:
		err := sqlite.Migrate(ctx, sqlite.MigrationConfig{DSN: cfg.SQLiteDSN}, logger)
		if err != nil {
			return nil, nil, err
		}
		var registerer prometheus.Registerer
		if cfg.EnableMetrics {
			registerer = prometheus.DefaultRegisterer
		}
		store, err := sqlite.New(cfg.SQLiteDSN, sqlite.Options{Logger: logger, Registerer: registerer})
		if err != nil {
			return nil, nil, err
		}
		users, connections, health = store, store, store
		cleanup = store.Close

	case config.BackendDynamoDB:
		awsCfg, err := ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
			}
		})
		store := dynamodb.NewStore(client, cfg.DynamoDBTable, cfg.TraversalConcurrency, logger)
		users, connections, health = store, store, store

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	logger.Info("datastore ready", zap.String("backend", cfg.StoreBackend))

	breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig(cfg.StoreBackend), logger)
	return &Datastore{
		Users:       resilience.NewUserRepository(users, breaker),
		Connections: resilience.NewConnectionRepository(connections, breaker),
		Health:      health,
	}, cleanup, nil
}

// ProvideUserRepository exposes the datastore's user repository
func ProvideUserRepository(ds *Datastore) ports.UserRepository {
	return ds.Users
}

// ProvideConnectionRepository exposes the datastore's connection repository
func ProvideConnectionRepository(ds *Datastore) ports.ConnectionRepository {
	return ds.Connections
}

// ProvideHealthChecker exposes the datastore's readiness probe
func ProvideHealthChecker(ds *Datastore) ports.HealthChecker {
	return ds.Health
}

// ProvideCache creates the resolve cache
func ProvideCache(cfg *config.Config) (ports.Cache, func(), error) {
	cache, err := NewTheineCache(cfg.ResolveCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("create resolve cache: %w", err)
	}
	return cache, cache.Close, nil
}

// ProvideEventPublisher publishes to EventBridge when events are enabled and
// to the log otherwise
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	if !cfg.EnableEvents {
		return logpub.NewPublisher(logger), nil
	}

	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger), nil
}

// ProvideUserDirectory creates the user directory service
func ProvideUserDirectory(users ports.UserRepository, cache ports.Cache, dc *domainconfig.DomainConfig, logger *zap.Logger) *services.UserDirectory {
	return services.NewUserDirectory(users, cache, dc, logger)
}

// ProvideGraphQueryEngine creates the query engine
func ProvideGraphQueryEngine(
	directory *services.UserDirectory,
	connections ports.ConnectionRepository,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.GraphQueryEngine {
	return services.NewGraphQueryEngine(directory, connections, dc, logger)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	directory *services.UserDirectory,
	connections ports.ConnectionRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(),
	)

	registrations := []struct {
		command bus.Command
		handler bus.CommandHandler
	}{
		{commands.RegisterUserCommand{}, commandhandlers.NewRegisterUserHandler(directory, publisher, logger)},
		{commands.RenameUserCommand{}, commandhandlers.NewRenameUserHandler(directory, publisher, logger)},
		{commands.AddConnectionCommand{}, commandhandlers.NewAddConnectionHandler(directory, connections, publisher, logger)},
		{commands.RemoveConnectionCommand{}, commandhandlers.NewRemoveConnectionHandler(directory, connections, publisher, logger)},
	}

	for _, r := range registrations {
		if err := commandBus.Register(r.command, r.handler); err != nil {
			return nil, err
		}
	}

	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	directory *services.UserDirectory,
	engine *services.GraphQueryEngine,
	cfg *config.Config,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(
		querybus.NewLoggingMiddleware(logger, cfg.RequestTimeout/2),
		querybus.NewMetricsMiddleware(),
	)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetUserQuery{}, queryhandlers.NewGetUserHandler(directory)},
		{queries.ListFriendsQuery{}, queryhandlers.NewListFriendsHandler(engine)},
		{queries.ListFriendsOfFriendsQuery{}, queryhandlers.NewListFriendsOfFriendsHandler(engine)},
		{queries.DegreeOfSeparationQuery{}, queryhandlers.NewDegreeOfSeparationHandler(engine)},
	}

	for _, r := range registrations {
		if err := queryBus.Register(r.query, r.handler); err != nil {
			return nil, err
		}
	}

	return queryBus, nil
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}
