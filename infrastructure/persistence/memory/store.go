package memory

import (
	"context"
	"sync"
	"time"

	"socialgraph/application/ports"
	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"

	"go.uber.org/zap"
)

type userRecord struct {
	externalID  string
	displayName string
	createdAt   time.Time
	updatedAt   time.Time
}

// Store is a process-local user directory and connection store. One lock
// guards every structure, so a uniqueness check and the insert that follows it
// are a single critical section.
type Store struct {
	mu sync.RWMutex

	users      map[valueobjects.UserID]userRecord
	byExternal map[string]valueobjects.UserID

	connections map[valueobjects.ConnectionKey]time.Time
	adjacency   map[valueobjects.UserID]valueobjects.UserIDSet

	logger *zap.Logger
}

var (
	_ ports.UserRepository       = (*Store)(nil)
	_ ports.ConnectionRepository = (*Store)(nil)
	_ ports.HealthChecker        = (*Store)(nil)
)

// NewStore creates an empty store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		users:       make(map[valueobjects.UserID]userRecord),
		byExternal:  make(map[string]valueobjects.UserID),
		connections: make(map[valueobjects.ConnectionKey]time.Time),
		adjacency:   make(map[valueobjects.UserID]valueobjects.UserIDSet),
		logger:      logger,
	}
}

// Create inserts a user, claiming its external id
func (s *Store) Create(ctx context.Context, user *entities.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byExternal[user.ExternalID()]; taken {
		return pkgerrors.UserExists(user.ExternalID())
	}
	if _, taken := s.users[user.ID()]; taken {
		return pkgerrors.NewConflictError("user identity already in use").
			WithCode(pkgerrors.CodeUserExists)
	}

	s.users[user.ID()] = userRecord{
		externalID:  user.ExternalID(),
		displayName: user.DisplayName(),
		createdAt:   user.CreatedAt(),
		updatedAt:   user.UpdatedAt(),
	}
	s.byExternal[user.ExternalID()] = user.ID()

	s.logger.Debug("user stored",
		zap.String("userID", user.ID().String()),
		zap.String("externalID", user.ExternalID()),
	)
	return nil
}

// GetByExternalID resolves an external id
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, pkgerrors.UserNotFound("external_id", externalID)
	}
	return s.reconstruct(id), nil
}

// GetByID retrieves a user by identity
func (s *Store) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[id]; !ok {
		return nil, pkgerrors.UserNotFound("user_id", id.String())
	}
	return s.reconstruct(id), nil
}

// GetByIDs retrieves the users present among ids
func (s *Store) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*entities.User, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			users = append(users, s.reconstruct(id))
		}
	}
	return users, nil
}

// UpdateDisplayName persists a new display name
func (s *Store) UpdateDisplayName(ctx context.Context, user *entities.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[user.ID()]
	if !ok {
		return pkgerrors.UserNotFound("external_id", user.ExternalID())
	}
	rec.displayName = user.DisplayName()
	rec.updatedAt = user.UpdatedAt()
	s.users[user.ID()] = rec
	return nil
}

// Add stores a connection. The canonical key makes {a,b} and {b,a} collide.
func (s *Store) Add(ctx context.Context, conn *entities.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := conn.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[key]; ok {
		return pkgerrors.ConnectionExists(key.Low().String(), key.High().String())
	}
	for _, id := range []valueobjects.UserID{key.Low(), key.High()} {
		if _, ok := s.users[id]; !ok {
			return pkgerrors.UserNotFound("user_id", id.String())
		}
	}

	s.connections[key] = conn.CreatedAt()
	s.link(key.Low(), key.High())
	s.link(key.High(), key.Low())
	return nil
}

// Remove deletes a connection
func (s *Store) Remove(ctx context.Context, key valueobjects.ConnectionKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[key]; !ok {
		return pkgerrors.ConnectionNotFound(key.Low().String(), key.High().String())
	}
	delete(s.connections, key)
	s.unlink(key.Low(), key.High())
	s.unlink(key.High(), key.Low())
	return nil
}

// Neighbors returns every user connected to id
func (s *Store) Neighbors(ctx context.Context, id valueobjects.UserID) ([]valueobjects.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.adjacency[id].Slice(), nil
}

// NeighborsOf returns the neighbors of each id under one read lock
func (s *Store) NeighborsOf(ctx context.Context, ids []valueobjects.UserID) (map[valueobjects.UserID][]valueobjects.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[valueobjects.UserID][]valueobjects.UserID, len(ids))
	for _, id := range ids {
		out[id] = s.adjacency[id].Slice()
	}
	return out, nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) link(from, to valueobjects.UserID) {
	set, ok := s.adjacency[from]
	if !ok {
		set = valueobjects.NewUserIDSet()
		s.adjacency[from] = set
	}
	set.Add(to)
}

func (s *Store) unlink(from, to valueobjects.UserID) {
	set := s.adjacency[from]
	delete(set, to)
	if len(set) == 0 {
		delete(s.adjacency, from)
	}
}

// reconstruct must be called with the lock held
func (s *Store) reconstruct(id valueobjects.UserID) *entities.User {
	rec := s.users[id]
	return entities.ReconstructUser(id, rec.externalID, rec.displayName, rec.createdAt, rec.updatedAt)
}
