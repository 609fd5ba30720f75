package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// userItem represents the DynamoDB item structure for a user profile
type userItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	UserID      string `dynamodbav:"UserID"`
	ExternalID  string `dynamodbav:"ExternalID"`
	DisplayName string `dynamodbav:"DisplayName"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
}

// claimItem reserves an external id for exactly one identity
type claimItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	UserID     string `dynamodbav:"UserID"`
}

func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(id)},
		"SK": &types.AttributeValueMemberS{Value: skProfile},
	}
}

func claimKey(externalID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: claimPK(externalID)},
		"SK": &types.AttributeValueMemberS{Value: skClaim},
	}
}

func (item userItem) toEntity() (*entities.User, error) {
	id, err := valueobjects.NewUserIDFromString(item.UserID)
	if err != nil {
		return nil, pkgerrors.NewInternalError("corrupt user item").WithCause(err)
	}
	return entities.ReconstructUser(id, item.ExternalID, item.DisplayName,
		parseTime(item.CreatedAt), parseTime(item.UpdatedAt)), nil
}

// Create writes the profile and the external id claim in one transaction.
// The claim's attribute_not_exists condition makes duplicate registration
// fail atomically.
func (s *Store) Create(ctx context.Context, user *entities.User) error {
	profile, err := attributevalue.MarshalMap(userItem{
		PK:          userPK(user.ID().String()),
		SK:          skProfile,
		EntityType:  entityUser,
		UserID:      user.ID().String(),
		ExternalID:  user.ExternalID(),
		DisplayName: user.DisplayName(),
		CreatedAt:   formatTime(user.CreatedAt()),
		UpdatedAt:   formatTime(user.UpdatedAt()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	claim, err := attributevalue.MarshalMap(claimItem{
		PK:         claimPK(user.ExternalID()),
		SK:         skClaim,
		EntityType: entityClaim,
		UserID:     user.ID().String(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal claim: %w", err)
	}

	notExists, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(s.tableName),
				Item:                     profile,
				ConditionExpression:      notExists.Condition(),
				ExpressionAttributeNames: notExists.Names(),
			}},
			{Put: &types.Put{
				TableName:                aws.String(s.tableName),
				Item:                     claim,
				ConditionExpression:      notExists.Condition(),
				ExpressionAttributeNames: notExists.Names(),
			}},
		},
	}

	err = s.transact(ctx, input)
	if err == nil {
		s.logger.Debug("User saved",
			zap.String("userID", user.ID().String()),
			zap.String("externalID", user.ExternalID()),
		)
		return nil
	}

	codes := cancellationCodes(err)
	if len(codes) == 2 && (isConditionFailed(codes[0]) || isConditionFailed(codes[1])) {
		return pkgerrors.UserExists(user.ExternalID())
	}
	return handleError("create user", err)
}

// GetByExternalID reads the claim then the profile it points at
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            claimKey(externalID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, handleError("get claim", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.UserNotFound("external_id", externalID)
	}

	var claim claimItem
	if err := attributevalue.UnmarshalMap(out.Item, &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim: %w", err)
	}

	id, err := valueobjects.NewUserIDFromString(claim.UserID)
	if err != nil {
		return nil, pkgerrors.NewInternalError("corrupt claim item").WithCause(err)
	}
	user, err := s.GetByID(ctx, id)
	if pkgerrors.IsNotFound(err) {
		return nil, pkgerrors.UserNotFound("external_id", externalID)
	}
	return user, err
}

// GetByID reads one profile
func (s *Store) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            userKey(id.String()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, handleError("get user", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.UserNotFound("user_id", id.String())
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return item.toEntity()
}

// GetByIDs batch reads profiles, retrying unprocessed keys with backoff
func (s *Store) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	users := make([]*entities.User, 0, len(ids))

	for start := 0; start < len(ids); start += maxBatchGetKeys {
		end := start + maxBatchGetKeys
		if end > len(ids) {
			end = len(ids)
		}

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, userKey(id.String()))
		}

		request := map[string]types.KeysAndAttributes{
			s.tableName: {Keys: keys},
		}

		policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		err := backoff.Retry(func() error {
			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return backoff.Permanent(handleError("batch get users", err))
			}

			for _, raw := range out.Responses[s.tableName] {
				var item userItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return backoff.Permanent(fmt.Errorf("failed to unmarshal user: %w", err))
				}
				user, err := item.toEntity()
				if err != nil {
					return backoff.Permanent(err)
				}
				users = append(users, user)
			}

			if pending, ok := out.UnprocessedKeys[s.tableName]; ok && len(pending.Keys) > 0 {
				request = out.UnprocessedKeys
				return fmt.Errorf("%d keys unprocessed", len(pending.Keys))
			}
			return nil
		}, policy)
		if err != nil {
			return nil, err
		}
	}

	return users, nil
}

// UpdateDisplayName updates the profile, failing if it does not exist
func (s *Store) UpdateDisplayName(ctx context.Context, user *entities.User) error {
	update := expression.
		Set(expression.Name("DisplayName"), expression.Value(user.DisplayName())).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(user.UpdatedAt())))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       userKey(user.ID().String()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.UserNotFound("external_id", user.ExternalID())
		}
		return handleError("rename user", err)
	}
	return nil
}
