package handlers

import (
	"context"
	"fmt"

	"socialgraph/application/queries"
	"socialgraph/application/queries/bus"
	"socialgraph/application/services"
	"socialgraph/pkg/utils"
)

// GetUserHandler handles GetUserQuery
type GetUserHandler struct {
	directory *services.UserDirectory
}

// NewGetUserHandler creates a new handler instance
func NewGetUserHandler(directory *services.UserDirectory) *GetUserHandler {
	return &GetUserHandler{directory: directory}
}

// Handle executes the query
func (h *GetUserHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetUserQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	user, err := h.directory.Get(ctx, q.ExternalID)
	if err != nil {
		return nil, err
	}
	return &queries.UserResult{
		UserID:      user.ID().String(),
		ExternalID:  user.ExternalID(),
		DisplayName: user.DisplayName(),
		CreatedAt:   utils.FormatTimestamp(user.CreatedAt()),
		UpdatedAt:   utils.FormatTimestamp(user.UpdatedAt()),
	}, nil
}

// ListFriendsHandler handles ListFriendsQuery
type ListFriendsHandler struct {
	engine *services.GraphQueryEngine
}

// NewListFriendsHandler creates a new handler instance
func NewListFriendsHandler(engine *services.GraphQueryEngine) *ListFriendsHandler {
	return &ListFriendsHandler{engine: engine}
}

// Handle executes the query
func (h *ListFriendsHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ListFriendsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	friends, err := h.engine.DirectFriends(ctx, q.ExternalID)
	if err != nil {
		return nil, err
	}
	return &queries.FriendsResult{Friends: friends}, nil
}

// ListFriendsOfFriendsHandler handles ListFriendsOfFriendsQuery
type ListFriendsOfFriendsHandler struct {
	engine *services.GraphQueryEngine
}

// NewListFriendsOfFriendsHandler creates a new handler instance
func NewListFriendsOfFriendsHandler(engine *services.GraphQueryEngine) *ListFriendsOfFriendsHandler {
	return &ListFriendsOfFriendsHandler{engine: engine}
}

// Handle executes the query
func (h *ListFriendsOfFriendsHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ListFriendsOfFriendsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	friends, err := h.engine.FriendsOfFriends(ctx, q.ExternalID)
	if err != nil {
		return nil, err
	}
	return &queries.FriendsResult{Friends: friends}, nil
}

// DegreeOfSeparationHandler handles DegreeOfSeparationQuery
type DegreeOfSeparationHandler struct {
	engine *services.GraphQueryEngine
}

// NewDegreeOfSeparationHandler creates a new handler instance
func NewDegreeOfSeparationHandler(engine *services.GraphQueryEngine) *DegreeOfSeparationHandler {
	return &DegreeOfSeparationHandler{engine: engine}
}

// Handle executes the query
func (h *DegreeOfSeparationHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.DegreeOfSeparationQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	separation, err := h.engine.DegreeOfSeparation(ctx, q.FromExternalID, q.ToExternalID)
	if err != nil {
		return nil, err
	}
	return &queries.DegreeResult{Separation: separation}, nil
}
