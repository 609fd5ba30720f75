package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"socialgraph/application/commands"
	"socialgraph/application/commands/bus"
	"socialgraph/application/queries"
	querybus "socialgraph/application/queries/bus"
	"socialgraph/application/services"
	"socialgraph/pkg/common"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Legacy payloads keep the v1 field names.

type createUserRequest struct {
	UserStrID   string `json:"user_str_id"`
	DisplayName string `json:"display_name"`
}

type createUserResponse struct {
	InternalDBID string `json:"internal_db_id"`
	UserStrID    string `json:"user_str_id"`
	Status       string `json:"status"`
}

type connectionRequest struct {
	User1StrID string `json:"user1_str_id"`
	User2StrID string `json:"user2_str_id"`
}

type friend struct {
	UserStrID   string `json:"user_str_id"`
	DisplayName string `json:"display_name"`
}

type degreeResponse struct {
	Degree  int    `json:"degree"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	logger     *zap.Logger
}

// NewRouter creates the router serving the legacy v1 paths
func NewRouter(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, logger *zap.Logger) *mux.Router {
	h := &handler{commandBus: commandBus, queryBus: queryBus, logger: logger}

	router := mux.NewRouter()
	router.Use(versionHeaders)

	router.HandleFunc("/users", h.createUser).Methods(http.MethodPost)
	router.HandleFunc("/users/{user_str_id}/friends", h.friends).Methods(http.MethodGet)
	router.HandleFunc("/users/{user_str_id}/friends-of-friends", h.friendsOfFriends).Methods(http.MethodGet)
	router.HandleFunc("/connections", h.addConnection).Methods(http.MethodPost)
	router.HandleFunc("/connections", h.removeConnection).Methods(http.MethodDelete)
	router.HandleFunc("/connections/degree", h.degree).Methods(http.MethodGet)

	return router
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil || req.UserStrID == "" || req.DisplayName == "" {
		h.fail(w, r, http.StatusBadRequest, "user_str_id and display_name required")
		return
	}

	id := uuid.New().String()
	cmd := commands.RegisterUserCommand{UserID: id, ExternalID: req.UserStrID, DisplayName: req.DisplayName}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		if pkgerrors.IsConflict(err) {
			h.fail(w, r, http.StatusConflict, "user_str_id already exists")
			return
		}
		h.failWith(w, r, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, createUserResponse{InternalDBID: id, UserStrID: req.UserStrID, Status: "created"})
}

func (h *handler) addConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decode(w, r, &req); err != nil || req.User1StrID == "" || req.User2StrID == "" {
		h.fail(w, r, http.StatusBadRequest, "user1_str_id and user2_str_id required")
		return
	}
	if req.User1StrID == req.User2StrID {
		h.fail(w, r, http.StatusBadRequest, "Cannot connect user to themselves")
		return
	}

	cmd := commands.AddConnectionCommand{User1ExternalID: req.User1StrID, User2ExternalID: req.User2StrID}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		switch {
		case pkgerrors.IsNotFound(err):
			h.fail(w, r, http.StatusNotFound, "One or both users not found")
		case pkgerrors.IsConflict(err):
			h.fail(w, r, http.StatusConflict, "Connection already exists")
		default:
			h.failWith(w, r, err)
		}
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "connection_added"})
}

func (h *handler) removeConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decode(w, r, &req); err != nil || req.User1StrID == "" || req.User2StrID == "" {
		h.fail(w, r, http.StatusBadRequest, "user1_str_id and user2_str_id required")
		return
	}

	cmd := commands.RemoveConnectionCommand{User1ExternalID: req.User1StrID, User2ExternalID: req.User2StrID}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		if appErr := pkgerrors.GetAppError(err); appErr != nil && appErr.Type == pkgerrors.ErrorTypeNotFound {
			message := "One or both users not found"
			if appErr.Code == pkgerrors.CodeConnectionMissing {
				message = "Connection not found"
			}
			h.fail(w, r, http.StatusNotFound, message)
			return
		}
		h.failWith(w, r, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "connection_removed"})
}

func (h *handler) friends(w http.ResponseWriter, r *http.Request) {
	h.listFriends(w, r, queries.ListFriendsQuery{ExternalID: mux.Vars(r)["user_str_id"]})
}

func (h *handler) friendsOfFriends(w http.ResponseWriter, r *http.Request) {
	h.listFriends(w, r, queries.ListFriendsOfFriendsQuery{ExternalID: mux.Vars(r)["user_str_id"]})
}

func (h *handler) listFriends(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			h.fail(w, r, http.StatusNotFound, "User not found")
			return
		}
		h.failWith(w, r, err)
		return
	}

	profiles := result.(*queries.FriendsResult).Friends
	out := make([]friend, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, friend{UserStrID: p.ExternalID, DisplayName: p.DisplayName})
	}
	common.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) degree(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from_user_str_id")
	to := r.URL.Query().Get("to_user_str_id")
	if from == "" || to == "" {
		h.fail(w, r, http.StatusBadRequest, "from_user_str_id and to_user_str_id required")
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.DegreeOfSeparationQuery{FromExternalID: from, ToExternalID: to})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			common.WriteJSON(w, http.StatusNotFound, degreeResponse{Degree: -1, Message: "user_not_found"})
			return
		}
		h.failWith(w, r, err)
		return
	}

	separation := result.(*queries.DegreeResult).Separation
	common.WriteJSON(w, http.StatusOK, renderDegree(separation))
}

func renderDegree(s services.Separation) degreeResponse {
	if s.IsUnreachable() {
		return degreeResponse{Degree: -1, Message: "not_connected"}
	}
	return degreeResponse{Degree: s.Degree}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Warn("legacy request rejected",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)
	common.WriteJSON(w, status, errorResponse{Error: message})
}

// failWith maps errors the handlers do not special-case
func (h *handler) failWith(w http.ResponseWriter, r *http.Request, err error) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil && appErr.HTTPStatus < http.StatusInternalServerError {
		h.fail(w, r, appErr.HTTPStatus, appErr.Message)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		h.logger.Warn("legacy request timed out", zap.String("path", r.URL.Path), zap.Error(err))
		common.WriteJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "Request timed out"})
		return
	}

	h.logger.Error("legacy request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	common.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, common.DefaultMaxBodyBytes)).Decode(v)
}

// versionHeaders adds API version headers to responses
func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		w.Header().Set("X-API-Latest", "v2")
		w.Header().Set("X-API-Deprecated", "true")
		next.ServeHTTP(w, r)
	})
}
