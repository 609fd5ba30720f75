package commands

import (
	"socialgraph/pkg/utils"
)

// RegisterUserCommand creates a user. UserID is generated by the caller so
// the response can carry it without a read back.
type RegisterUserCommand struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	ExternalID  string `json:"external_id" validate:"required,max=128"`
	DisplayName string `json:"display_name" validate:"required,max=256"`
}

// Validate checks the command fields
func (c RegisterUserCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RenameUserCommand changes a user's display name
type RenameUserCommand struct {
	ExternalID  string `json:"external_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,max=256"`
}

// Validate checks the command fields
func (c RenameUserCommand) Validate() error {
	return utils.ValidateStruct(c)
}
