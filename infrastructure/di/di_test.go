package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"socialgraph/application/commands"
	"socialgraph/application/queries"
	"socialgraph/infrastructure/config"
	"socialgraph/infrastructure/messaging/logpub"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:          "test",
		RequestTimeout:       5 * time.Second,
		StoreBackend:         config.BackendMemory,
		ResolveCacheTTL:      time.Minute,
		ResolveCacheSize:     100,
		TraversalConcurrency: 2,
		LogLevel:             "error",
	}
}

func TestTheineCache(t *testing.T) {
	cache, err := NewTheineCache(100)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "ext:alice", "id-1", time.Minute))
	require.NoError(t, cache.Set(ctx, "ext:bob", "id-2", 0))

	got, ok := cache.Get(ctx, "ext:alice")
	assert.True(t, ok)
	assert.Equal(t, "id-1", got)

	require.NoError(t, cache.Delete(ctx, "ext:alice"))
	_, ok = cache.Get(ctx, "ext:alice")
	assert.False(t, ok)
}

func TestProvideLogger_InvalidLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "loud"

	_, err := ProvideLogger(cfg)

	assert.Error(t, err)
}

func TestProvideEventPublisher_DefaultsToLog(t *testing.T) {
	logger, err := ProvideLogger(testConfig())
	require.NoError(t, err)

	publisher, err := ProvideEventPublisher(context.Background(), testConfig(), logger)

	require.NoError(t, err)
	assert.IsType(t, &logpub.Publisher{}, publisher)
}

func TestProvideDatastore_SQLite(t *testing.T) {
	cfg := testConfig()
	cfg.StoreBackend = config.BackendSQLite
	cfg.SQLiteDSN = "file:" + filepath.Join(t.TempDir(), "graph.db")
	logger, err := ProvideLogger(cfg)
	require.NoError(t, err)

	ds, cleanup, err := ProvideDatastore(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	assert.NoError(t, ds.Health.Ping(context.Background()))
}

func TestInitializeContainer_EndToEnd(t *testing.T) {
	// Arrange
	ctx := context.Background()
	container, cleanup, err := InitializeContainer(ctx, testConfig())
	require.NoError(t, err)
	defer cleanup()

	// Act
	for _, ext := range []string{"alice", "bob", "carol"} {
		err := container.CommandBus.Send(ctx, commands.RegisterUserCommand{
			UserID:      uuid.New().String(),
			ExternalID:  ext,
			DisplayName: ext,
		})
		require.NoError(t, err)
	}
	require.NoError(t, container.CommandBus.Send(ctx, commands.AddConnectionCommand{User1ExternalID: "alice", User2ExternalID: "bob"}))
	require.NoError(t, container.CommandBus.Send(ctx, commands.AddConnectionCommand{User1ExternalID: "carol", User2ExternalID: "bob"}))

	// Assert
	result, err := container.QueryBus.Ask(ctx, queries.DegreeOfSeparationQuery{FromExternalID: "alice", ToExternalID: "carol"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.(*queries.DegreeResult).Separation.Degree)

	result, err = container.QueryBus.Ask(ctx, queries.ListFriendsOfFriendsQuery{ExternalID: "alice"})
	require.NoError(t, err)
	friends := result.(*queries.FriendsResult).Friends
	require.Len(t, friends, 1)
	assert.Equal(t, "carol", friends[0].ExternalID)
}
