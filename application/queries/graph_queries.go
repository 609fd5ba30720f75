package queries

import (
	"socialgraph/application/services"
	"socialgraph/pkg/utils"
)

// GetUserQuery fetches one profile
type GetUserQuery struct {
	ExternalID string `json:"external_id" validate:"required"`
}

func (q GetUserQuery) Validate() error { return utils.ValidateStruct(q) }

// UserResult is the profile returned by GetUserQuery
type UserResult struct {
	UserID      string `json:"user_id"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ListFriendsQuery lists a user's direct friends
type ListFriendsQuery struct {
	ExternalID string `json:"external_id" validate:"required"`
}

func (q ListFriendsQuery) Validate() error { return utils.ValidateStruct(q) }

// ListFriendsOfFriendsQuery lists users exactly two hops away
type ListFriendsOfFriendsQuery struct {
	ExternalID string `json:"external_id" validate:"required"`
}

func (q ListFriendsOfFriendsQuery) Validate() error { return utils.ValidateStruct(q) }

// FriendsResult is the answer to both friend listings, ordered by external id
type FriendsResult struct {
	Friends []services.FriendProfile `json:"friends"`
}

// DegreeOfSeparationQuery asks for the shortest path length between two users
type DegreeOfSeparationQuery struct {
	FromExternalID string `json:"from" validate:"required"`
	ToExternalID   string `json:"to" validate:"required"`
}

func (q DegreeOfSeparationQuery) Validate() error { return utils.ValidateStruct(q) }

// DegreeResult carries the separation outcome
type DegreeResult struct {
	Separation services.Separation
}
