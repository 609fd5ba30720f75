package handlers

import (
	"net/http"

	"socialgraph/application/queries"
	querybus "socialgraph/application/queries/bus"
	"socialgraph/application/services"
	"socialgraph/pkg/common"
	pkgerrors "socialgraph/pkg/errors"

	"go.uber.org/zap"
)

// GraphHandler serves the read-only graph queries
type GraphHandler struct {
	queryBus     *querybus.QueryBus
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		queryBus:     queryBus,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// DegreeResponse is the degree-of-separation payload. Degree is -1 when the
// users are not connected.
type DegreeResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Degree    int    `json:"degree"`
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

// ListFriends handles GET /users/{externalID}/friends
func (h *GraphHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	h.listFriends(w, r, queries.ListFriendsQuery{ExternalID: externalIDParam(r)})
}

// ListFriendsOfFriends handles GET /users/{externalID}/friends-of-friends
func (h *GraphHandler) ListFriendsOfFriends(w http.ResponseWriter, r *http.Request) {
	h.listFriends(w, r, queries.ListFriendsOfFriendsQuery{ExternalID: externalIDParam(r)})
}

func (h *GraphHandler) listFriends(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, result)
}

// Degree handles GET /degree?from=&to=
func (h *GraphHandler) Degree(w http.ResponseWriter, r *http.Request) {
	query := queries.DegreeOfSeparationQuery{
		FromExternalID: r.URL.Query().Get("from"),
		ToExternalID:   r.URL.Query().Get("to"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	separation := result.(*queries.DegreeResult).Separation
	common.RespondJSON(w, r, http.StatusOK, NewDegreeResponse(query.FromExternalID, query.ToExternalID, separation))
}

// NewDegreeResponse renders a separation result
func NewDegreeResponse(from, to string, s services.Separation) DegreeResponse {
	resp := DegreeResponse{From: from, To: to, Degree: s.Degree, Connected: s.Connected}
	if s.IsUnreachable() {
		resp.Degree = -1
		resp.Message = "not_connected"
	}
	return resp
}
