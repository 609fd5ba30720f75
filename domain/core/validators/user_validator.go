package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"socialgraph/domain/config"
	"socialgraph/pkg/errors"
)

// UserValidator validates user-related domain rules
type UserValidator struct {
	externalIDMaxLength  int
	displayNameMaxLength int
}

// NewUserValidator creates a validator from the domain limits
func NewUserValidator(cfg *config.DomainConfig) *UserValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &UserValidator{
		externalIDMaxLength:  cfg.MaxExternalIDLength,
		displayNameMaxLength: cfg.MaxDisplayNameLength,
	}
}

// ValidateExternalID checks the caller supplied identifier. It must be
// non-empty, bounded and free of whitespace and control characters.
func (v *UserValidator) ValidateExternalID(externalID string) error {
	if externalID == "" {
		return errors.NewValidationError("external_id is required").
			WithDetail("field", "external_id")
	}
	if utf8.RuneCountInString(externalID) > v.externalIDMaxLength {
		return errors.NewValidationError("external_id is too long").
			WithDetail("field", "external_id").
			WithDetail("max_length", v.externalIDMaxLength)
	}
	for _, r := range externalID {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.NewValidationError("external_id cannot contain whitespace").
				WithDetail("field", "external_id")
		}
	}
	return nil
}

// ValidateDisplayName checks a display name. Surrounding whitespace does not
// count toward emptiness.
func (v *UserValidator) ValidateDisplayName(displayName string) error {
	trimmed := strings.TrimSpace(displayName)
	if trimmed == "" {
		return errors.NewValidationError("display_name is required").
			WithDetail("field", "display_name")
	}
	if utf8.RuneCountInString(trimmed) > v.displayNameMaxLength {
		return errors.NewValidationError("display_name is too long").
			WithDetail("field", "display_name").
			WithDetail("max_length", v.displayNameMaxLength)
	}
	return nil
}
