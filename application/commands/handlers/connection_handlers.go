package handlers

import (
	"context"
	"fmt"
	"time"

	"socialgraph/application/commands"
	"socialgraph/application/commands/bus"
	"socialgraph/application/ports"
	"socialgraph/application/services"
	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AddConnectionHandler handles AddConnectionCommand
type AddConnectionHandler struct {
	directory   *services.UserDirectory
	connections ports.ConnectionRepository
	publisher   ports.EventPublisher
	logger      *zap.Logger
}

// NewAddConnectionHandler creates a new handler instance
func NewAddConnectionHandler(
	directory *services.UserDirectory,
	connections ports.ConnectionRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *AddConnectionHandler {
	return &AddConnectionHandler{
		directory:   directory,
		connections: connections,
		publisher:   publisher,
		logger:      logger,
	}
}

// Handle resolves both users and stores the canonical pair. The store decides
// uniqueness; a concurrent duplicate surfaces as Conflict.
func (h *AddConnectionHandler) Handle(ctx context.Context, command bus.Command) error {
	cmd, ok := command.(commands.AddConnectionCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", command)
	}

	u, v, err := resolvePair(ctx, h.directory, cmd.User1ExternalID, cmd.User2ExternalID)
	if err != nil {
		return err
	}

	conn, err := entities.NewConnection(u, v)
	if err != nil {
		return err
	}
	if err := h.connections.Add(ctx, conn); err != nil {
		return err
	}

	h.logger.Info("Connection added",
		zap.String("user1", cmd.User1ExternalID),
		zap.String("user2", cmd.User2ExternalID),
	)
	publishEvents(ctx, h.publisher, h.logger, conn)
	return nil
}

// RemoveConnectionHandler handles RemoveConnectionCommand
type RemoveConnectionHandler struct {
	directory   *services.UserDirectory
	connections ports.ConnectionRepository
	publisher   ports.EventPublisher
	logger      *zap.Logger
}

// NewRemoveConnectionHandler creates a new handler instance
func NewRemoveConnectionHandler(
	directory *services.UserDirectory,
	connections ports.ConnectionRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *RemoveConnectionHandler {
	return &RemoveConnectionHandler{
		directory:   directory,
		connections: connections,
		publisher:   publisher,
		logger:      logger,
	}
}

// Handle removes the pair named in either order
func (h *RemoveConnectionHandler) Handle(ctx context.Context, command bus.Command) error {
	cmd, ok := command.(commands.RemoveConnectionCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", command)
	}

	u, v, err := resolvePair(ctx, h.directory, cmd.User1ExternalID, cmd.User2ExternalID)
	if err != nil {
		return err
	}

	// A self pair can never have been stored
	if u.Equals(v) {
		return pkgerrors.ConnectionNotFound(u.String(), v.String())
	}
	key, err := valueobjects.NewConnectionKey(u, v)
	if err != nil {
		return err
	}
	if err := h.connections.Remove(ctx, key); err != nil {
		return err
	}

	h.logger.Info("Connection removed",
		zap.String("user1", cmd.User1ExternalID),
		zap.String("user2", cmd.User2ExternalID),
	)
	removed := entities.ReconstructConnection(key, time.Time{})
	removed.MarkRemoved()
	publishEvents(ctx, h.publisher, h.logger, removed)
	return nil
}

// resolvePair resolves both external ids concurrently. Neither lookup cancels
// the other, so when both are unknown the first user's error is reported.
func resolvePair(ctx context.Context, directory *services.UserDirectory, first, second string) (valueobjects.UserID, valueobjects.UserID, error) {
	var (
		u, v       valueobjects.UserID
		errU, errV error
	)

	var g errgroup.Group
	g.Go(func() error {
		u, errU = directory.Resolve(ctx, first)
		return errU
	})
	g.Go(func() error {
		v, errV = directory.Resolve(ctx, second)
		return errV
	})
	_ = g.Wait()

	if errU != nil {
		return u, v, errU
	}
	return u, v, errV
}
