package services

import (
	"context"
	"time"

	"socialgraph/application/ports"
	"socialgraph/domain/config"
	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/validators"
	"socialgraph/domain/core/valueobjects"
	"socialgraph/pkg/observability"

	"go.uber.org/zap"
)

const resolveCachePrefix = "ext:"

// UserDirectory maps external ids to identities and profiles. The mapping is
// immutable once registered, so resolved identities are cached.
type UserDirectory struct {
	users     ports.UserRepository
	cache     ports.Cache
	cacheTTL  time.Duration
	validator *validators.UserValidator
	logger    *zap.Logger
}

// NewUserDirectory creates a directory. cache may be nil.
func NewUserDirectory(
	users ports.UserRepository,
	cache ports.Cache,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *UserDirectory {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserDirectory{
		users:     users,
		cache:     cache,
		cacheTTL:  cfg.ResolveCacheTTL,
		validator: validators.NewUserValidator(cfg),
		logger:    logger,
	}
}

// Register creates a user under a caller supplied identity
func (d *UserDirectory) Register(ctx context.Context, id valueobjects.UserID, externalID, displayName string) (*entities.User, error) {
	if err := d.validator.ValidateExternalID(externalID); err != nil {
		return nil, err
	}
	if err := d.validator.ValidateDisplayName(displayName); err != nil {
		return nil, err
	}

	user, err := entities.NewUser(id, externalID, displayName)
	if err != nil {
		return nil, err
	}
	if err := d.users.Create(ctx, user); err != nil {
		return nil, err
	}

	d.remember(ctx, user.ExternalID(), user.ID())
	d.logger.Info("User registered",
		zap.String("userID", user.ID().String()),
		zap.String("externalID", user.ExternalID()),
	)
	return user, nil
}

// Resolve returns the identity for an external id
func (d *UserDirectory) Resolve(ctx context.Context, externalID string) (valueobjects.UserID, error) {
	if externalID == "" {
		return valueobjects.UserID{}, d.validator.ValidateExternalID(externalID)
	}

	if d.cache != nil {
		if cached, ok := d.cache.Get(ctx, resolveCachePrefix+externalID); ok {
			if id, ok := cached.(valueobjects.UserID); ok {
				observability.ResolveCache.WithLabelValues("hit").Inc()
				return id, nil
			}
		}
		observability.ResolveCache.WithLabelValues("miss").Inc()
	}

	user, err := d.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return valueobjects.UserID{}, err
	}
	d.remember(ctx, externalID, user.ID())
	return user.ID(), nil
}

// Get returns the full profile for an external id
func (d *UserDirectory) Get(ctx context.Context, externalID string) (*entities.User, error) {
	if err := d.validator.ValidateExternalID(externalID); err != nil {
		return nil, err
	}
	return d.users.GetByExternalID(ctx, externalID)
}

// Profiles loads the users among ids. Identities without a profile are
// skipped.
func (d *UserDirectory) Profiles(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	if len(ids) == 0 {
		return []*entities.User{}, nil
	}
	return d.users.GetByIDs(ctx, ids)
}

// Rename changes a user's display name and returns the updated user
func (d *UserDirectory) Rename(ctx context.Context, externalID, displayName string) (*entities.User, error) {
	if err := d.validator.ValidateExternalID(externalID); err != nil {
		return nil, err
	}
	if err := d.validator.ValidateDisplayName(displayName); err != nil {
		return nil, err
	}

	user, err := d.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := user.Rename(displayName); err != nil {
		return nil, err
	}
	if len(user.GetUncommittedEvents()) == 0 {
		return user, nil
	}
	if err := d.users.UpdateDisplayName(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (d *UserDirectory) remember(ctx context.Context, externalID string, id valueobjects.UserID) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, resolveCachePrefix+externalID, id, d.cacheTTL); err != nil {
		d.logger.Warn("Failed to cache resolved identity",
			zap.String("externalID", externalID),
			zap.Error(err),
		)
	}
}
