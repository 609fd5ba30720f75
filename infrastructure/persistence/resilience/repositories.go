package resilience

import (
	"context"

	"socialgraph/application/ports"
	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
)

// UserRepository guards a ports.UserRepository with a breaker
type UserRepository struct {
	next    ports.UserRepository
	breaker *Breaker
}

// NewUserRepository wraps next
func NewUserRepository(next ports.UserRepository, breaker *Breaker) *UserRepository {
	return &UserRepository{next: next, breaker: breaker}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	return r.breaker.Do(func() error { return r.next.Create(ctx, user) })
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	return execute(r.breaker, func() (*entities.User, error) {
		return r.next.GetByExternalID(ctx, externalID)
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	return execute(r.breaker, func() (*entities.User, error) {
		return r.next.GetByID(ctx, id)
	})
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	return execute(r.breaker, func() ([]*entities.User, error) {
		return r.next.GetByIDs(ctx, ids)
	})
}

func (r *UserRepository) UpdateDisplayName(ctx context.Context, user *entities.User) error {
	return r.breaker.Do(func() error { return r.next.UpdateDisplayName(ctx, user) })
}

// ConnectionRepository guards a ports.ConnectionRepository with a breaker
type ConnectionRepository struct {
	next    ports.ConnectionRepository
	breaker *Breaker
}

// NewConnectionRepository wraps next
func NewConnectionRepository(next ports.ConnectionRepository, breaker *Breaker) *ConnectionRepository {
	return &ConnectionRepository{next: next, breaker: breaker}
}

func (r *ConnectionRepository) Add(ctx context.Context, conn *entities.Connection) error {
	return r.breaker.Do(func() error { return r.next.Add(ctx, conn) })
}

func (r *ConnectionRepository) Remove(ctx context.Context, key valueobjects.ConnectionKey) error {
	return r.breaker.Do(func() error { return r.next.Remove(ctx, key) })
}

func (r *ConnectionRepository) Neighbors(ctx context.Context, id valueobjects.UserID) ([]valueobjects.UserID, error) {
	return execute(r.breaker, func() ([]valueobjects.UserID, error) {
		return r.next.Neighbors(ctx, id)
	})
}

func (r *ConnectionRepository) NeighborsOf(ctx context.Context, ids []valueobjects.UserID) (map[valueobjects.UserID][]valueobjects.UserID, error) {
	return execute(r.breaker, func() (map[valueobjects.UserID][]valueobjects.UserID, error) {
		return r.next.NeighborsOf(ctx, ids)
	})
}

var (
	_ ports.UserRepository       = (*UserRepository)(nil)
	_ ports.ConnectionRepository = (*ConnectionRepository)(nil)
)
