package ports

import (
	"context"
	"time"

	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	"socialgraph/domain/events"
)

// UserRepository defines the interface for user persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type UserRepository interface {
	// Create inserts a new user. Returns a Conflict error when the external
	// id is already claimed.
	Create(ctx context.Context, user *entities.User) error

	// GetByExternalID resolves an external id. Returns NotFound if absent.
	GetByExternalID(ctx context.Context, externalID string) (*entities.User, error)

	// GetByID retrieves a user by identity. Returns NotFound if absent.
	GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error)

	// GetByIDs retrieves the users that exist among ids, in no particular order
	GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error)

	// UpdateDisplayName persists a renamed user. Returns NotFound if absent.
	UpdateDisplayName(ctx context.Context, user *entities.User) error
}

// ConnectionRepository defines the interface for the undirected edge set.
// Implementations enforce the canonical pair and uniqueness themselves.
type ConnectionRepository interface {
	// Add stores the connection. Returns Conflict if the pair already exists.
	// The existence check and the insert are one atomic step.
	Add(ctx context.Context, conn *entities.Connection) error

	// Remove deletes the pair. Returns NotFound if it was not stored.
	Remove(ctx context.Context, key valueobjects.ConnectionKey) error

	// Neighbors returns every user connected to id, from either slot
	Neighbors(ctx context.Context, id valueobjects.UserID) ([]valueobjects.UserID, error)

	// NeighborsOf returns the neighbors of each id in one call
	NeighborsOf(ctx context.Context, ids []valueobjects.UserID) (map[valueobjects.UserID][]valueobjects.UserID, error)
}

// HealthChecker is implemented by stores that can report readiness
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with the given TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error
}
