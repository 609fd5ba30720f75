package commands

import (
	"socialgraph/pkg/utils"
)

// AddConnectionCommand connects two users. The pair is unordered.
type AddConnectionCommand struct {
	User1ExternalID string `json:"user1_external_id" validate:"required"`
	User2ExternalID string `json:"user2_external_id" validate:"required,nefield=User1ExternalID"`
}

// Validate checks the command fields
func (c AddConnectionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RemoveConnectionCommand disconnects two users. The pair may be named in
// either order.
type RemoveConnectionCommand struct {
	User1ExternalID string `json:"user1_external_id" validate:"required"`
	User2ExternalID string `json:"user2_external_id" validate:"required"`
}

// Validate checks the command fields
func (c RemoveConnectionCommand) Validate() error {
	return utils.ValidateStruct(c)
}
