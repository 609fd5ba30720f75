package handlers

import (
	"context"
	"fmt"

	"socialgraph/application/commands"
	"socialgraph/application/commands/bus"
	"socialgraph/application/ports"
	"socialgraph/application/services"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"

	"go.uber.org/zap"
)

// RegisterUserHandler handles RegisterUserCommand
type RegisterUserHandler struct {
	directory *services.UserDirectory
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewRegisterUserHandler creates a new handler instance
func NewRegisterUserHandler(directory *services.UserDirectory, publisher ports.EventPublisher, logger *zap.Logger) *RegisterUserHandler {
	return &RegisterUserHandler{directory: directory, publisher: publisher, logger: logger}
}

// Handle executes the register user command
func (h *RegisterUserHandler) Handle(ctx context.Context, command bus.Command) error {
	cmd, ok := command.(commands.RegisterUserCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", command)
	}

	id, err := valueobjects.NewUserIDFromString(cmd.UserID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	user, err := h.directory.Register(ctx, id, cmd.ExternalID, cmd.DisplayName)
	if err != nil {
		return err
	}

	publishEvents(ctx, h.publisher, h.logger, user)
	return nil
}

// RenameUserHandler handles RenameUserCommand
type RenameUserHandler struct {
	directory *services.UserDirectory
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewRenameUserHandler creates a new handler instance
func NewRenameUserHandler(directory *services.UserDirectory, publisher ports.EventPublisher, logger *zap.Logger) *RenameUserHandler {
	return &RenameUserHandler{directory: directory, publisher: publisher, logger: logger}
}

// Handle executes the rename user command
func (h *RenameUserHandler) Handle(ctx context.Context, command bus.Command) error {
	cmd, ok := command.(commands.RenameUserCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", command)
	}

	user, err := h.directory.Rename(ctx, cmd.ExternalID, cmd.DisplayName)
	if err != nil {
		return err
	}

	publishEvents(ctx, h.publisher, h.logger, user)
	return nil
}
