package dynamodb

import (
	"context"
	"fmt"
	"sync"

	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// connectionItem is the canonical row for a pair
type connectionItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	LowID      string `dynamodbav:"LowID"`
	HighID     string `dynamodbav:"HighID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

// friendItem is the adjacency row stored under each endpoint
type friendItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	UserID     string `dynamodbav:"UserID"`
	FriendID   string `dynamodbav:"FriendID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

func connectionKey(key valueobjects.ConnectionKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: connectionPK(key.Low().String(), key.High().String())},
		"SK": &types.AttributeValueMemberS{Value: skConnection},
	}
}

func friendKey(owner, peer string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(owner)},
		"SK": &types.AttributeValueMemberS{Value: friendSK(peer)},
	}
}

// Positions of the items in the Add transaction
const (
	addLowProfile = iota
	addHighProfile
	addCanonical
)

// Add writes the canonical row and both adjacency rows in one transaction.
// Both profiles must exist and the canonical row must not.
func (s *Store) Add(ctx context.Context, conn *entities.Connection) error {
	lo, hi := conn.Low().String(), conn.High().String()
	createdAt := formatTime(conn.CreatedAt())

	canonical, err := attributevalue.MarshalMap(connectionItem{
		PK:         connectionPK(lo, hi),
		SK:         skConnection,
		EntityType: entityConnection,
		LowID:      lo,
		HighID:     hi,
		CreatedAt:  createdAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}
	forward, err := attributevalue.MarshalMap(friendItem{
		PK: userPK(lo), SK: friendSK(hi), EntityType: entityFriend,
		UserID: lo, FriendID: hi, CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal adjacency: %w", err)
	}
	backward, err := attributevalue.MarshalMap(friendItem{
		PK: userPK(hi), SK: friendSK(lo), EntityType: entityFriend,
		UserID: hi, FriendID: lo, CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal adjacency: %w", err)
	}

	exists, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	notExists, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			addLowProfile: {ConditionCheck: &types.ConditionCheck{
				TableName:                aws.String(s.tableName),
				Key:                      userKey(lo),
				ConditionExpression:      exists.Condition(),
				ExpressionAttributeNames: exists.Names(),
			}},
			addHighProfile: {ConditionCheck: &types.ConditionCheck{
				TableName:                aws.String(s.tableName),
				Key:                      userKey(hi),
				ConditionExpression:      exists.Condition(),
				ExpressionAttributeNames: exists.Names(),
			}},
			addCanonical: {Put: &types.Put{
				TableName:                aws.String(s.tableName),
				Item:                     canonical,
				ConditionExpression:      notExists.Condition(),
				ExpressionAttributeNames: notExists.Names(),
			}},
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: forward}},
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: backward}},
		},
	}

	err = s.transact(ctx, input)
	if err == nil {
		s.logger.Debug("Connection saved", zap.String("lowID", lo), zap.String("highID", hi))
		return nil
	}

	codes := cancellationCodes(err)
	if len(codes) == len(input.TransactItems) {
		switch {
		case isConditionFailed(codes[addLowProfile]):
			return pkgerrors.UserNotFound("user_id", lo)
		case isConditionFailed(codes[addHighProfile]):
			return pkgerrors.UserNotFound("user_id", hi)
		case isConditionFailed(codes[addCanonical]):
			return pkgerrors.ConnectionExists(lo, hi)
		}
	}
	return handleError("add connection", err)
}

// Remove deletes the three rows of a pair. The canonical row must exist.
func (s *Store) Remove(ctx context.Context, key valueobjects.ConnectionKey) error {
	lo, hi := key.Low().String(), key.High().String()

	exists, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                aws.String(s.tableName),
				Key:                      connectionKey(key),
				ConditionExpression:      exists.Condition(),
				ExpressionAttributeNames: exists.Names(),
			}},
			{Delete: &types.Delete{TableName: aws.String(s.tableName), Key: friendKey(lo, hi)}},
			{Delete: &types.Delete{TableName: aws.String(s.tableName), Key: friendKey(hi, lo)}},
		},
	}

	err = s.transact(ctx, input)
	if err == nil {
		return nil
	}
	if codes := cancellationCodes(err); len(codes) > 0 && isConditionFailed(codes[0]) {
		return pkgerrors.ConnectionNotFound(lo, hi)
	}
	return handleError("remove connection", err)
}

// Neighbors queries the adjacency rows under USER#<id>
func (s *Store) Neighbors(ctx context.Context, id valueobjects.UserID) ([]valueobjects.UserID, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(userPK(id.String()))).
		And(expression.Key("SK").BeginsWith(friendPrefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var neighbors []valueobjects.UserID
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, handleError("query neighbors", err)
		}
		for _, raw := range page.Items {
			var item friendItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal adjacency: %w", err)
			}
			peer, ok := trimPrefix(item.SK, friendPrefix)
			if !ok {
				continue
			}
			peerID, err := valueobjects.NewUserIDFromString(peer)
			if err != nil {
				return nil, pkgerrors.NewInternalError("corrupt adjacency item").WithCause(err)
			}
			neighbors = append(neighbors, peerID)
		}
	}
	return neighbors, nil
}

// NeighborsOf runs one adjacency query per id on a bounded pool. The first
// failure cancels the rest.
func (s *Store) NeighborsOf(ctx context.Context, ids []valueobjects.UserID) (map[valueobjects.UserID][]valueobjects.UserID, error) {
	var mu sync.Mutex
	out := make(map[valueobjects.UserID][]valueobjects.UserID, len(ids))

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(s.concurrency)

	for _, id := range ids {
		p.Go(func(ctx context.Context) error {
			neighbors, err := s.Neighbors(ctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = neighbors
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
