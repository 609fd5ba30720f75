package handlers

import (
	"net/http"
	"net/url"

	"socialgraph/application/commands"
	"socialgraph/application/commands/bus"
	"socialgraph/application/queries"
	querybus "socialgraph/application/queries/bus"
	"socialgraph/pkg/common"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	commandBus   *bus.CommandBus
	queryBus     *querybus.QueryBus
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		commandBus:   commandBus,
		queryBus:     queryBus,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// CreateUserRequest represents the request body for registering a user
type CreateUserRequest struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// CreateUserResponse represents the response for a registered user
type CreateUserResponse struct {
	UserID     string `json:"user_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// RenameUserRequest represents the request body for changing a display name
type RenameUserRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	userID := uuid.New().String()
	cmd := commands.RegisterUserCommand{
		UserID:      userID,
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, CreateUserResponse{
		UserID:     userID,
		ExternalID: req.ExternalID,
		Status:     "created",
	})
}

// GetUser handles GET /users/{externalID}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetUserQuery{ExternalID: externalIDParam(r)})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, result)
}

// RenameUser handles PATCH /users/{externalID}
func (h *UserHandler) RenameUser(w http.ResponseWriter, r *http.Request) {
	var req RenameUserRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	externalID := externalIDParam(r)
	cmd := commands.RenameUserCommand{ExternalID: externalID, DisplayName: req.DisplayName}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetUserQuery{ExternalID: externalID})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, result)
}

// externalIDParam reads the {externalID} route parameter. chi matches on the
// raw path when one is present, so the value may still be escaped.
func externalIDParam(r *http.Request) string {
	raw := chi.URLParam(r, "externalID")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
