package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "socialgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lookupQuery struct {
	Key string
}

func (q lookupQuery) Validate() error {
	if q.Key == "" {
		return pkgerrors.NewValidationError("key is required")
	}
	return nil
}

func TestQueryBus_Ask(t *testing.T) {
	// Arrange
	b := NewQueryBus(NewLoggingMiddleware(zap.NewNop(), time.Second), NewMetricsMiddleware())
	err := b.Register(lookupQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return "value:" + q.(lookupQuery).Key, nil
	}))
	require.NoError(t, err)

	// Act
	result, err := b.Ask(context.Background(), lookupQuery{Key: "k"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "value:k", result)
}

func TestQueryBus_Ask_Errors(t *testing.T) {
	b := NewQueryBus(NewLoggingMiddleware(zap.NewNop(), 0))
	require.NoError(t, b.Register(lookupQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return nil, pkgerrors.UserNotFound("external_id", q.(lookupQuery).Key)
	})))

	_, err := b.Ask(context.Background(), lookupQuery{})
	assert.True(t, pkgerrors.IsValidation(err))

	result, err := b.Ask(context.Background(), lookupQuery{Key: "ghost"})
	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestQueryBus_Ask_NoHandler(t *testing.T) {
	b := NewQueryBus()

	_, err := b.Ask(context.Background(), lookupQuery{Key: "k"})

	assert.True(t, errors.Is(err, ErrHandlerNotFound))
}

func TestQueryBus_Ask_PropagatesCancellation(t *testing.T) {
	b := NewQueryBus(NewMetricsMiddleware())
	require.NoError(t, b.Register(lookupQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return nil, ctx.Err()
	})))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Ask(ctx, lookupQuery{Key: "k"})

	assert.ErrorIs(t, err, context.Canceled)
}
