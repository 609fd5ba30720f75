package entities

import (
	"time"

	"socialgraph/domain/core/valueobjects"
	"socialgraph/domain/events"
)

// Connection is a mutual link between two users, always held in canonical
// order.
type Connection struct {
	key       valueobjects.ConnectionKey
	createdAt time.Time

	events []events.DomainEvent
}

// NewConnection canonicalizes the pair and rejects self loops
func NewConnection(u, v valueobjects.UserID) (*Connection, error) {
	key, err := valueobjects.NewConnectionKey(u, v)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &Connection{key: key, createdAt: now}
	c.events = append(c.events, events.NewConnectionAdded(key, now))
	return c, nil
}

// ReconstructConnection rebuilds a stored connection
func ReconstructConnection(key valueobjects.ConnectionKey, createdAt time.Time) *Connection {
	return &Connection{key: key, createdAt: createdAt}
}

func (c *Connection) Key() valueobjects.ConnectionKey { return c.key }
func (c *Connection) Low() valueobjects.UserID        { return c.key.Low() }
func (c *Connection) High() valueobjects.UserID       { return c.key.High() }
func (c *Connection) CreatedAt() time.Time            { return c.createdAt }

// MarkRemoved records that the pair was deleted from the store
func (c *Connection) MarkRemoved() {
	c.events = append(c.events, events.NewConnectionRemoved(c.key, time.Now().UTC()))
}

// GetUncommittedEvents returns events raised since the last commit
func (c *Connection) GetUncommittedEvents() []events.DomainEvent {
	return c.events
}

// MarkEventsAsCommitted clears the pending events
func (c *Connection) MarkEventsAsCommitted() {
	c.events = nil
}
