package events

import (
	"time"

	"socialgraph/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// Event type names as they appear on the bus
const (
	TypeUserRegistered    = "user.registered"
	TypeUserRenamed       = "user.renamed"
	TypeConnectionAdded   = "connection.added"
	TypeConnectionRemoved = "connection.removed"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// User Events

// UserRegistered is raised when a new user joins the graph
type UserRegistered struct {
	BaseEvent
	UserID      valueobjects.UserID `json:"user_id"`
	ExternalID  string              `json:"external_id"`
	DisplayName string              `json:"display_name"`
}

// NewUserRegistered creates a UserRegistered event
func NewUserRegistered(userID valueobjects.UserID, externalID, displayName string, timestamp time.Time) UserRegistered {
	return UserRegistered{
		BaseEvent: BaseEvent{
			AggregateID: userID.String(),
			EventType:   TypeUserRegistered,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:      userID,
		ExternalID:  externalID,
		DisplayName: displayName,
	}
}

// UserRenamed is raised when a user's display name changes
type UserRenamed struct {
	BaseEvent
	UserID  valueobjects.UserID `json:"user_id"`
	OldName string              `json:"old_name"`
	NewName string              `json:"new_name"`
}

// NewUserRenamed creates a UserRenamed event
func NewUserRenamed(userID valueobjects.UserID, oldName, newName string, timestamp time.Time) UserRenamed {
	return UserRenamed{
		BaseEvent: BaseEvent{
			AggregateID: userID.String(),
			EventType:   TypeUserRenamed,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:  userID,
		OldName: oldName,
		NewName: newName,
	}
}

// Connection Events

// ConnectionAdded is raised when two users become connected
type ConnectionAdded struct {
	BaseEvent
	LowID  valueobjects.UserID `json:"low_id"`
	HighID valueobjects.UserID `json:"high_id"`
}

// NewConnectionAdded creates a ConnectionAdded event
func NewConnectionAdded(key valueobjects.ConnectionKey, timestamp time.Time) ConnectionAdded {
	return ConnectionAdded{
		BaseEvent: BaseEvent{
			AggregateID: key.String(),
			EventType:   TypeConnectionAdded,
			Timestamp:   timestamp,
			Version:     1,
		},
		LowID:  key.Low(),
		HighID: key.High(),
	}
}

// ConnectionRemoved is raised when a connection is deleted
type ConnectionRemoved struct {
	BaseEvent
	LowID  valueobjects.UserID `json:"low_id"`
	HighID valueobjects.UserID `json:"high_id"`
}

// NewConnectionRemoved creates a ConnectionRemoved event
func NewConnectionRemoved(key valueobjects.ConnectionKey, timestamp time.Time) ConnectionRemoved {
	return ConnectionRemoved{
		BaseEvent: BaseEvent{
			AggregateID: key.String(),
			EventType:   TypeConnectionRemoved,
			Timestamp:   timestamp,
			Version:     1,
		},
		LowID:  key.Low(),
		HighID: key.High(),
	}
}
