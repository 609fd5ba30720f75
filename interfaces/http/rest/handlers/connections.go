package handlers

import (
	"net/http"

	"socialgraph/application/commands"
	"socialgraph/application/commands/bus"
	"socialgraph/pkg/common"
	pkgerrors "socialgraph/pkg/errors"

	"go.uber.org/zap"
)

// ConnectionHandler handles connection-related HTTP requests
type ConnectionHandler struct {
	commandBus   *bus.CommandBus
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(commandBus *bus.CommandBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		commandBus:   commandBus,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// ConnectionRequest names an unordered pair of users
type ConnectionRequest struct {
	User1ExternalID string `json:"user1_external_id"`
	User2ExternalID string `json:"user2_external_id"`
}

// StatusResponse reports the outcome of a write
type StatusResponse struct {
	Status string `json:"status"`
}

// AddConnection handles POST /connections
func (h *ConnectionHandler) AddConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	cmd := commands.AddConnectionCommand{
		User1ExternalID: req.User1ExternalID,
		User2ExternalID: req.User2ExternalID,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, StatusResponse{Status: "connection_added"})
}

// RemoveConnection handles DELETE /connections
func (h *ConnectionHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	cmd := commands.RemoveConnectionCommand{
		User1ExternalID: req.User1ExternalID,
		User2ExternalID: req.User2ExternalID,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, StatusResponse{Status: "connection_removed"})
}
