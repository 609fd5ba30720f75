package entities

import (
	"strings"
	"time"

	"socialgraph/domain/core/valueobjects"
	"socialgraph/domain/events"
	pkgerrors "socialgraph/pkg/errors"
)

// User is a member of the social graph. The identity and external id are
// fixed for the user's lifetime; the display name may change.
type User struct {
	id          valueobjects.UserID
	externalID  string
	displayName string
	createdAt   time.Time
	updatedAt   time.Time

	// Domain events that occurred during this aggregate's lifetime
	events []events.DomainEvent
}

// NewUser creates a user with a caller-provided identity
func NewUser(id valueobjects.UserID, externalID, displayName string) (*User, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("user identity cannot be empty")
	}
	if externalID == "" {
		return nil, pkgerrors.NewValidationError("external_id cannot be empty")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, pkgerrors.NewValidationError("display_name cannot be empty")
	}

	now := time.Now().UTC()
	user := &User{
		id:          id,
		externalID:  externalID,
		displayName: displayName,
		createdAt:   now,
		updatedAt:   now,
	}
	user.addEvent(events.NewUserRegistered(id, externalID, displayName, now))
	return user, nil
}

// ReconstructUser rebuilds a user from stored data with preserved timestamps
func ReconstructUser(id valueobjects.UserID, externalID, displayName string, createdAt, updatedAt time.Time) *User {
	return &User{
		id:          id,
		externalID:  externalID,
		displayName: displayName,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (u *User) ID() valueobjects.UserID { return u.id }
func (u *User) ExternalID() string      { return u.externalID }
func (u *User) DisplayName() string     { return u.displayName }
func (u *User) CreatedAt() time.Time    { return u.createdAt }
func (u *User) UpdatedAt() time.Time    { return u.updatedAt }

// Rename changes the display name. Renaming to the current name is a no-op
// and raises no event.
func (u *User) Rename(displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return pkgerrors.NewValidationError("display_name cannot be empty")
	}
	if displayName == u.displayName {
		return nil
	}

	old := u.displayName
	u.displayName = displayName
	u.updatedAt = time.Now().UTC()
	u.addEvent(events.NewUserRenamed(u.id, old, displayName, u.updatedAt))
	return nil
}

// GetUncommittedEvents returns events raised since the last commit
func (u *User) GetUncommittedEvents() []events.DomainEvent {
	return u.events
}

// MarkEventsAsCommitted clears the pending events
func (u *User) MarkEventsAsCommitted() {
	u.events = nil
}

func (u *User) addEvent(event events.DomainEvent) {
	u.events = append(u.events, event)
}
