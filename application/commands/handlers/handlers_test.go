package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"socialgraph/application/commands"
	"socialgraph/application/services"
	"socialgraph/domain/core/valueobjects"
	"socialgraph/domain/events"
	"socialgraph/infrastructure/persistence/memory"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

type handlerFixture struct {
	store     *memory.Store
	directory *services.UserDirectory
	publisher *MockEventPublisher
	logger    *zap.Logger
}

// MockCache is a mock implementation of ports.Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (interface{}, bool) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Bool(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newHandlerFixture() *handlerFixture {
	store := memory.NewStore(nil)
	return &handlerFixture{
		store:     store,
		directory: services.NewUserDirectory(store, nil, nil, nil),
		publisher: new(MockEventPublisher),
		logger:    zap.NewNop(),
	}
}

func (f *handlerFixture) register(t *testing.T, externalIDs ...string) {
	t.Helper()
	for _, ext := range externalIDs {
		_, err := f.directory.Register(context.Background(), valueobjects.NewUserID(), ext, ext)
		require.NoError(t, err)
	}
}

func eventsOfType(eventType string) interface{} {
	return mock.MatchedBy(func(evts []events.DomainEvent) bool {
		return len(evts) == 1 && evts[0].GetEventType() == eventType
	})
}

func TestRegisterUserHandler_Handle(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	f.publisher.On("PublishBatch", mock.Anything, eventsOfType(events.TypeUserRegistered)).Return(nil)
	handler := NewRegisterUserHandler(f.directory, f.publisher, f.logger)
	id := uuid.New().String()

	// Act
	err := handler.Handle(context.Background(), commands.RegisterUserCommand{
		UserID:      id,
		ExternalID:  "alice",
		DisplayName: "Alice",
	})

	// Assert
	require.NoError(t, err)
	user, err := f.directory.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID().String())
	f.publisher.AssertExpectations(t)
}

func TestRegisterUserHandler_Handle_InvalidUserID(t *testing.T) {
	f := newHandlerFixture()
	handler := NewRegisterUserHandler(f.directory, f.publisher, f.logger)

	err := handler.Handle(context.Background(), commands.RegisterUserCommand{
		UserID:      "not-a-uuid",
		ExternalID:  "alice",
		DisplayName: "Alice",
	})

	assert.True(t, pkgerrors.IsValidation(err))
	f.publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestRegisterUserHandler_Handle_WrongCommand(t *testing.T) {
	f := newHandlerFixture()
	handler := NewRegisterUserHandler(f.directory, f.publisher, f.logger)

	err := handler.Handle(context.Background(), commands.RenameUserCommand{ExternalID: "alice", DisplayName: "A"})

	assert.Error(t, err)
}

func TestRenameUserHandler_Handle(t *testing.T) {
	f := newHandlerFixture()
	f.register(t, "alice")
	f.publisher.On("PublishBatch", mock.Anything, eventsOfType(events.TypeUserRenamed)).Return(nil)
	handler := NewRenameUserHandler(f.directory, f.publisher, f.logger)

	err := handler.Handle(context.Background(), commands.RenameUserCommand{ExternalID: "alice", DisplayName: "Alice L."})

	require.NoError(t, err)
	user, err := f.directory.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", user.DisplayName())
	f.publisher.AssertExpectations(t)
}

func TestRenameUserHandler_Handle_SameNameRaisesNoEvent(t *testing.T) {
	f := newHandlerFixture()
	f.register(t, "alice")
	handler := NewRenameUserHandler(f.directory, f.publisher, f.logger)

	err := handler.Handle(context.Background(), commands.RenameUserCommand{ExternalID: "alice", DisplayName: "alice"})

	require.NoError(t, err)
	f.publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestAddConnectionHandler_Handle(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	f.register(t, "alice", "bob")
	f.publisher.On("PublishBatch", mock.Anything, eventsOfType(events.TypeConnectionAdded)).Return(nil)
	handler := NewAddConnectionHandler(f.directory, f.store, f.publisher, f.logger)
	ctx := context.Background()

	// Act
	err := handler.Handle(ctx, commands.AddConnectionCommand{User1ExternalID: "alice", User2ExternalID: "bob"})

	// Assert
	require.NoError(t, err)
	f.publisher.AssertExpectations(t)

	err = handler.Handle(ctx, commands.AddConnectionCommand{User1ExternalID: "bob", User2ExternalID: "alice"})
	assert.True(t, pkgerrors.IsConflict(err))
	f.publisher.AssertNumberOfCalls(t, "PublishBatch", 1)
}

func TestAddConnectionHandler_Handle_PublishFailureIsSwallowed(t *testing.T) {
	f := newHandlerFixture()
	f.register(t, "alice", "bob")
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(errors.New("bus down"))
	handler := NewAddConnectionHandler(f.directory, f.store, f.publisher, f.logger)

	err := handler.Handle(context.Background(), commands.AddConnectionCommand{User1ExternalID: "alice", User2ExternalID: "bob"})

	require.NoError(t, err)
	alice, err := f.directory.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	neighbors, err := f.store.Neighbors(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, neighbors, 1)
}

func TestAddConnectionHandler_Handle_Errors(t *testing.T) {
	f := newHandlerFixture()
	f.register(t, "alice")
	handler := NewAddConnectionHandler(f.directory, f.store, f.publisher, f.logger)
	ctx := context.Background()

	tests := []struct {
		name    string
		cmd     commands.AddConnectionCommand
		checkFn func(error) bool
	}{
		{
			name:    "unknown second user",
			cmd:     commands.AddConnectionCommand{User1ExternalID: "alice", User2ExternalID: "ghost"},
			checkFn: pkgerrors.IsNotFound,
		},
		{
			name:    "unknown first user",
			cmd:     commands.AddConnectionCommand{User1ExternalID: "ghost", User2ExternalID: "alice"},
			checkFn: pkgerrors.IsNotFound,
		},
		{
			name:    "self connection",
			cmd:     commands.AddConnectionCommand{User1ExternalID: "alice", User2ExternalID: "alice"},
			checkFn: pkgerrors.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler.Handle(ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
	f.publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestAddConnectionHandler_Handle_BothUnknownReportsFirst(t *testing.T) {
	// Arrange
	store := memory.NewStore(nil)
	cache := new(MockCache)
	// The first lookup is held back until its context ends or the second
	// lookup has long failed.
	cache.On("Get", mock.Anything, "ext:ghost-one").Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
	}).Return(nil, false)
	cache.On("Get", mock.Anything, "ext:ghost-two").Return(nil, false)

	directory := services.NewUserDirectory(store, cache, nil, nil)
	publisher := new(MockEventPublisher)
	handler := NewAddConnectionHandler(directory, store, publisher, zap.NewNop())

	// Act
	err := handler.Handle(context.Background(), commands.AddConnectionCommand{
		User1ExternalID: "ghost-one",
		User2ExternalID: "ghost-two",
	})

	// Assert
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeUserNotFound, appErr.Code)
	assert.Equal(t, "ghost-one", appErr.Details["external_id"])
	cache.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestRemoveConnectionHandler_Handle(t *testing.T) {
	f := newHandlerFixture()
	f.register(t, "alice", "bob")
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(nil)
	add := NewAddConnectionHandler(f.directory, f.store, f.publisher, f.logger)
	remove := NewRemoveConnectionHandler(f.directory, f.store, f.publisher, f.logger)
	ctx := context.Background()
	require.NoError(t, add.Handle(ctx, commands.AddConnectionCommand{User1ExternalID: "alice", User2ExternalID: "bob"}))

	// Reverse order names the same pair
	err := remove.Handle(ctx, commands.RemoveConnectionCommand{User1ExternalID: "bob", User2ExternalID: "alice"})
	require.NoError(t, err)

	err = remove.Handle(ctx, commands.RemoveConnectionCommand{User1ExternalID: "alice", User2ExternalID: "bob"})
	assert.Equal(t, pkgerrors.CodeConnectionMissing, pkgerrors.GetAppError(err).Code)
	f.publisher.AssertNumberOfCalls(t, "PublishBatch", 2)
}

func TestRemoveConnectionHandler_Handle_SelfPair(t *testing.T) {
	f := newHandlerFixture()
	f.register(t, "alice")
	remove := NewRemoveConnectionHandler(f.directory, f.store, f.publisher, f.logger)

	err := remove.Handle(context.Background(), commands.RemoveConnectionCommand{User1ExternalID: "alice", User2ExternalID: "alice"})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, pkgerrors.CodeConnectionMissing, pkgerrors.GetAppError(err).Code)
}

func TestRemoveConnectionHandler_Handle_UnknownUser(t *testing.T) {
	f := newHandlerFixture()
	f.register(t, "alice")
	remove := NewRemoveConnectionHandler(f.directory, f.store, f.publisher, f.logger)

	err := remove.Handle(context.Background(), commands.RemoveConnectionCommand{User1ExternalID: "alice", User2ExternalID: "ghost"})

	assert.Equal(t, pkgerrors.CodeUserNotFound, pkgerrors.GetAppError(err).Code)
}
