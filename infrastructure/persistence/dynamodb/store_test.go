package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a single-table DynamoDB stand-in. It understands the
// attribute_exists conditions, begins_with key conditions and SET updates the
// store issues.
type fakeClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// conflicts makes the next n transactions fail with TransactionConflict
	conflicts    int
	transactions int
	describeErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemKey(key map[string]types.AttributeValue) string {
	return str(key["PK"]) + "|" + str(key["SK"])
}

func conditionHolds(condition *string, exists bool) bool {
	switch {
	case condition == nil:
		return true
	case strings.Contains(*condition, "attribute_not_exists"):
		return !exists
	case strings.Contains(*condition, "attribute_exists"):
		return exists
	}
	return true
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("operation error DynamoDB: GetItem, %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeClient) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := make(map[string][]map[string]types.AttributeValue)
	for table, req := range in.RequestItems {
		for _, key := range req.Keys {
			if item, ok := f.items[itemKey(key)]; ok {
				responses[table] = append(responses[table], item)
			}
		}
	}
	return &dynamodb.BatchGetItemOutput{Responses: responses}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, exists := f.items[itemKey(in.Key)]
	if !conditionHolds(in.ConditionExpression, exists) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}

	// SET #0 = :0, #1 = :1
	clause := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	for _, assignment := range strings.Split(clause, ",") {
		parts := strings.SplitN(strings.TrimSpace(assignment), " = ", 2)
		if len(parts) != 2 {
			continue
		}
		item[in.ExpressionAttributeNames[parts[0]]] = in.ExpressionAttributeValues[parts[1]]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("operation error DynamoDB: Query, %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var pk, prefix string
	for _, v := range in.ExpressionAttributeValues {
		if s := str(v); strings.HasPrefix(s, "USER#") {
			pk = s
		} else {
			prefix = s
		}
	}

	var keys []string
	for k, item := range f.items {
		if str(item["PK"]) == pk && strings.HasPrefix(str(item["SK"]), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &dynamodb.QueryOutput{}
	for _, k := range keys {
		out.Items = append(out.Items, f.items[k])
	}
	return out, nil
}

func (f *fakeClient) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions++

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	for i := range reasons {
		reasons[i].Code = aws.String("None")
	}
	if f.conflicts > 0 {
		f.conflicts--
		reasons[0].Code = aws.String("TransactionConflict")
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	failed := false
	for i, ti := range in.TransactItems {
		var key map[string]types.AttributeValue
		var condition *string
		switch {
		case ti.ConditionCheck != nil:
			key, condition = ti.ConditionCheck.Key, ti.ConditionCheck.ConditionExpression
		case ti.Put != nil:
			key, condition = ti.Put.Item, ti.Put.ConditionExpression
		case ti.Delete != nil:
			key, condition = ti.Delete.Key, ti.Delete.ConditionExpression
		}
		_, exists := f.items[itemKey(key)]
		if !conditionHolds(condition, exists) {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[itemKey(ti.Put.Item)] = ti.Put.Item
		case ti.Delete != nil:
			delete(f.items, itemKey(ti.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeClient) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func newTestStore() (*Store, *fakeClient) {
	client := newFakeClient()
	return NewStore(client, "socialgraph-test", 4, nil), client
}

func createUser(t *testing.T, s *Store, externalID string) *entities.User {
	t.Helper()
	user, err := entities.NewUser(valueobjects.NewUserID(), externalID, "User "+externalID)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), user))
	return user
}

func TestStore_CreateAndResolve(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s, _ := newTestStore()

	// Act
	alice := createUser(t, s, "alice")

	// Assert
	got, err := s.GetByExternalID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID(), got.ID())
	assert.Equal(t, "User alice", got.DisplayName())
	assert.Equal(t, alice.CreatedAt().UnixNano(), got.CreatedAt().UnixNano())

	_, err = s.GetByExternalID(ctx, "ghost")
	assert.Equal(t, pkgerrors.CodeUserNotFound, pkgerrors.GetAppError(err).Code)
}

func TestStore_Create_DuplicateExternalID(t *testing.T) {
	s, _ := newTestStore()
	createUser(t, s, "alice")

	dup, err := entities.NewUser(valueobjects.NewUserID(), "alice", "Other")
	require.NoError(t, err)

	err = s.Create(context.Background(), dup)

	assert.True(t, pkgerrors.IsConflict(err))
	_, err = s.GetByID(context.Background(), dup.ID())
	assert.True(t, pkgerrors.IsNotFound(err), "profile of the losing registration must not be written")
}

func TestStore_Create_RetriesTransactionConflict(t *testing.T) {
	s, client := newTestStore()
	client.conflicts = 2

	createUser(t, s, "alice")

	assert.Equal(t, 3, client.transactions)
}

func TestStore_UpdateDisplayName(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	alice := createUser(t, s, "alice")

	require.NoError(t, alice.Rename("Alice L."))
	require.NoError(t, s.UpdateDisplayName(ctx, alice))

	got, err := s.GetByID(ctx, alice.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", got.DisplayName())

	ghost, err := entities.NewUser(valueobjects.NewUserID(), "ghost", "Ghost")
	require.NoError(t, err)
	assert.True(t, pkgerrors.IsNotFound(s.UpdateDisplayName(ctx, ghost)))
}

func TestStore_GetByIDs(t *testing.T) {
	s, _ := newTestStore()
	a, b := createUser(t, s, "a"), createUser(t, s, "b")

	users, err := s.GetByIDs(context.Background(), []valueobjects.UserID{a.ID(), valueobjects.NewUserID(), b.ID()})

	require.NoError(t, err)
	ids := []string{users[0].ExternalID(), users[1].ExternalID()}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestStore_Connections(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	a, b, c := createUser(t, s, "a"), createUser(t, s, "b"), createUser(t, s, "c")

	ab, err := entities.NewConnection(b.ID(), a.ID())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, ab))

	reversed, err := entities.NewConnection(a.ID(), b.ID())
	require.NoError(t, err)
	err = s.Add(ctx, reversed)
	assert.Equal(t, pkgerrors.CodeConnectionExists, pkgerrors.GetAppError(err).Code)

	bc, err := entities.NewConnection(b.ID(), c.ID())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, bc))

	adjacency, err := s.NeighborsOf(ctx, []valueobjects.UserID{a.ID(), b.ID(), c.ID()})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.UserID{b.ID()}, adjacency[a.ID()])
	assert.ElementsMatch(t, []valueobjects.UserID{a.ID(), c.ID()}, adjacency[b.ID()])
	assert.Equal(t, []valueobjects.UserID{b.ID()}, adjacency[c.ID()])

	require.NoError(t, s.Remove(ctx, ab.Key()))
	err = s.Remove(ctx, ab.Key())
	assert.Equal(t, pkgerrors.CodeConnectionMissing, pkgerrors.GetAppError(err).Code)

	neighbors, err := s.Neighbors(ctx, a.ID())
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestStore_Add_UnknownUser(t *testing.T) {
	s, _ := newTestStore()
	a := createUser(t, s, "a")

	conn, err := entities.NewConnection(a.ID(), valueobjects.NewUserID())
	require.NoError(t, err)

	err = s.Add(context.Background(), conn)

	assert.Equal(t, pkgerrors.CodeUserNotFound, pkgerrors.GetAppError(err).Code)
}

func TestStore_ContextErrorsPassThrough(t *testing.T) {
	s, _ := newTestStore()
	a := createUser(t, s, "a")

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()

	tests := []struct {
		name string
		ctx  context.Context
		want error
		call func(ctx context.Context) error
	}{
		{
			name: "neighbors past deadline",
			ctx:  expired,
			want: context.DeadlineExceeded,
			call: func(ctx context.Context) error {
				_, err := s.Neighbors(ctx, a.ID())
				return err
			},
		},
		{
			name: "resolve cancelled",
			ctx:  cancelled,
			want: context.Canceled,
			call: func(ctx context.Context) error {
				_, err := s.GetByExternalID(ctx, "a")
				return err
			},
		},
		{
			name: "get by id past deadline",
			ctx:  expired,
			want: context.DeadlineExceeded,
			call: func(ctx context.Context) error {
				_, err := s.GetByID(ctx, a.ID())
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(tt.ctx)

			assert.ErrorIs(t, err, tt.want)
			assert.False(t, pkgerrors.IsAppError(err))
		})
	}
}

func TestStore_Ping(t *testing.T) {
	s, client := newTestStore()
	require.NoError(t, s.Ping(context.Background()))

	client.describeErr = errors.New("no such table")
	err := s.Ping(context.Background())
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
}
