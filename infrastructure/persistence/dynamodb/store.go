package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"socialgraph/application/ports"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Client is the subset of the DynamoDB API the store uses. *dynamodb.Client
// satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Single table layout:
//
//	USER#<id>        PROFILE        user profile
//	EXTERNAL#<ext>   CLAIM          external id -> identity
//	USER#<id>        FRIEND#<peer>  adjacency row, one per endpoint
//	CONN#<lo>#<hi>   CONN           canonical pair, the uniqueness key
const (
	skProfile    = "PROFILE"
	skClaim      = "CLAIM"
	skConnection = "CONN"
	friendPrefix = "FRIEND#"

	entityUser       = "USER"
	entityClaim      = "EXTERNAL_CLAIM"
	entityFriend     = "FRIEND"
	entityConnection = "CONNECTION"

	// BatchGetItem accepts at most 100 keys per request
	maxBatchGetKeys = 100
)

func userPK(id string) string          { return "USER#" + id }
func claimPK(externalID string) string { return "EXTERNAL#" + externalID }
func friendSK(peer string) string      { return friendPrefix + peer }
func connectionPK(lo, hi string) string {
	return fmt.Sprintf("CONN#%s#%s", lo, hi)
}

// Store implements the user directory and connection store on one DynamoDB
// table.
type Store struct {
	client      Client
	tableName   string
	logger      *zap.Logger
	concurrency int
}

var (
	_ ports.UserRepository       = (*Store)(nil)
	_ ports.ConnectionRepository = (*Store)(nil)
	_ ports.HealthChecker        = (*Store)(nil)
)

// NewStore creates a store. concurrency bounds the parallel neighbor queries
// issued by NeighborsOf.
func NewStore(client Client, tableName string, concurrency int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Store{
		client:      client,
		tableName:   tableName,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Ping verifies the table is reachable
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return nil
}

// transact runs a write transaction, retrying while it only lost a race with
// another transaction. Any other cancellation is returned to the caller so the
// condition that failed can be inspected.
func (s *Store) transact(ctx context.Context, input *dynamodb.TransactWriteItemsInput) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.TransactWriteItems(ctx, input)
		if err == nil {
			return nil
		}
		if isTransactionConflict(err) {
			s.logger.Debug("Transaction conflict, retrying", zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}

// cancellationCodes returns the per-item reasons of a cancelled transaction,
// or nil if err is not a cancellation.
func cancellationCodes(err error) []string {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	codes := make([]string, len(tce.CancellationReasons))
	for i, reason := range tce.CancellationReasons {
		codes[i] = aws.ToString(reason.Code)
	}
	return codes
}

func isConditionFailed(code string) bool {
	return code == "ConditionalCheckFailed"
}

// isTransactionConflict reports whether the transaction lost a race with
// another in-flight transaction on the same items.
func isTransactionConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "TransactionConflict" {
				return true
			}
		}
		return false
	}
	var tc *types.TransactionConflictException
	return errors.As(err, &tc)
}

// handleError wraps an SDK error as a database error. Context errors pass
// through so callers can tell a timeout from a store failure.
func handleError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func trimPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
