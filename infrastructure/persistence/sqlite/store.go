package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"socialgraph/application/ports"
	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"
)

var tracer = otel.Tracer("socialgraph/infrastructure/persistence/sqlite")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite."+name)
}

// Store is a SQLite backed user directory and connection store. Uniqueness of
// external ids and connection pairs is enforced by the schema.
type Store struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	logger           *zap.Logger
	dbStatsCollector prometheus.Collector
	registerer       prometheus.Registerer
}

var (
	_ ports.UserRepository       = (*Store)(nil)
	_ ports.ConnectionRepository = (*Store)(nil)
	_ ports.HealthChecker        = (*Store)(nil)
)

// Options configures a Store
type Options struct {
	Logger *zap.Logger
	// Registerer receives the connection pool collector when set
	Registerer prometheus.Registerer
}

// PrepareDSN applies default pragmas unless the DSN sets them.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}
		uri = uri[:i]
	}

	found := map[string]bool{}
	for _, val := range query["_pragma"] {
		for _, name := range []string{"journal_mode", "busy_timeout", "foreign_keys"} {
			if strings.HasPrefix(val, name) {
				found[name] = true
			}
		}
	}

	if !found["journal_mode"] {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !found["busy_timeout"] {
		query.Add("_pragma", "busy_timeout(100)")
	}
	if !found["foreign_keys"] {
		query.Add("_pragma", "foreign_keys(1)")
	}
	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}

	return uri + "?" + query.Encode(), nil
}

// New opens the database. The schema must already be migrated.
func New(uri string, opts Options) (*Store, error) {
	uri, err := PrepareDSN(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var collector prometheus.Collector
	if opts.Registerer != nil {
		collector = collectors.NewDBStatsCollector(db, "socialgraph")
		if err := opts.Registerer.Register(collector); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	return &Store{
		stbl:             sq.StatementBuilder.RunWith(db),
		db:               db,
		logger:           logger,
		dbStatsCollector: collector,
		registerer:       opts.Registerer,
	}, nil
}

// Close releases the connection pool
func (s *Store) Close() {
	if s.dbStatsCollector != nil {
		s.registerer.Unregister(s.dbStatsCollector)
	}
	s.db.Close()
}

// Ping checks that the database answers
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return pkgerrors.NewUnavailableError("sqlite").WithCause(err)
	}
	return nil
}

// Create inserts a user. A duplicate external id violates the unique index.
func (s *Store) Create(ctx context.Context, user *entities.User) error {
	ctx, span := startTrace(ctx, "Create")
	defer span.End()

	err := busyRetry(func() error {
		_, err := s.stbl.
			Insert("users").
			Columns("id", "external_id", "display_name", "created_at", "updated_at").
			Values(
				user.ID().String(),
				user.ExternalID(),
				user.DisplayName(),
				user.CreatedAt().UnixNano(),
				user.UpdatedAt().UnixNano(),
			).
			ExecContext(ctx)
		return err
	})
	if err != nil {
		if isConstraintError(err) {
			return pkgerrors.UserExists(user.ExternalID())
		}
		return HandleSQLError("create user", err)
	}
	return nil
}

// GetByExternalID resolves an external id
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	ctx, span := startTrace(ctx, "GetByExternalID")
	defer span.End()

	row := s.selectUsers().Where(sq.Eq{"external_id": externalID}).QueryRowContext(ctx)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.UserNotFound("external_id", externalID)
	}
	if err != nil {
		return nil, HandleSQLError("get user", err)
	}
	return user, nil
}

// GetByID retrieves a user by identity
func (s *Store) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	ctx, span := startTrace(ctx, "GetByID")
	defer span.End()

	row := s.selectUsers().Where(sq.Eq{"id": id.String()}).QueryRowContext(ctx)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.UserNotFound("user_id", id.String())
	}
	if err != nil {
		return nil, HandleSQLError("get user", err)
	}
	return user, nil
}

// GetByIDs retrieves the users present among ids
func (s *Store) GetByIDs(ctx context.Context, ids []valueobjects.UserID) ([]*entities.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, span := startTrace(ctx, "GetByIDs")
	defer span.End()

	ids = valueobjects.NewUserIDSet(ids...).Slice()
	users := make([]*entities.User, 0, len(ids))
	for _, chunk := range chunkIDs(ids, maxIDsPerStatement) {
		var err error
		users, err = s.appendUsers(ctx, users, chunk)
		if err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Store) appendUsers(ctx context.Context, users []*entities.User, ids []valueobjects.UserID) ([]*entities.User, error) {
	rows, err := s.selectUsers().Where(sq.Eq{"id": idStrings(ids)}).QueryContext(ctx)
	if err != nil {
		return nil, HandleSQLError("list users", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, HandleSQLError("list users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, HandleSQLError("list users", err)
	}
	return users, nil
}

// UpdateDisplayName persists a renamed user
func (s *Store) UpdateDisplayName(ctx context.Context, user *entities.User) error {
	ctx, span := startTrace(ctx, "UpdateDisplayName")
	defer span.End()

	var res sql.Result
	err := busyRetry(func() error {
		var err error
		res, err = s.stbl.
			Update("users").
			Set("display_name", user.DisplayName()).
			Set("updated_at", user.UpdatedAt().UnixNano()).
			Where(sq.Eq{"id": user.ID().String()}).
			ExecContext(ctx)
		return err
	})
	if err != nil {
		return HandleSQLError("rename user", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return HandleSQLError("rename user", err)
	}
	if affected == 0 {
		return pkgerrors.UserNotFound("external_id", user.ExternalID())
	}
	return nil
}

// Add inserts the canonical pair. The primary key turns a concurrent second
// insert into a constraint violation.
func (s *Store) Add(ctx context.Context, conn *entities.Connection) error {
	ctx, span := startTrace(ctx, "Add")
	defer span.End()

	err := busyRetry(func() error {
		_, err := s.stbl.
			Insert("connections").
			Columns("low_id", "high_id", "created_at").
			Values(conn.Low().String(), conn.High().String(), conn.CreatedAt().UnixNano()).
			ExecContext(ctx)
		return err
	})
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return pkgerrors.NewNotFoundError("user").
				WithCode(pkgerrors.CodeUserNotFound).
				WithCause(err)
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return pkgerrors.ConnectionExists(conn.Low().String(), conn.High().String())
		}
	}
	return HandleSQLError("add connection", err)
}

// Remove deletes the canonical pair
func (s *Store) Remove(ctx context.Context, key valueobjects.ConnectionKey) error {
	ctx, span := startTrace(ctx, "Remove")
	defer span.End()

	var res sql.Result
	err := busyRetry(func() error {
		var err error
		res, err = s.stbl.
			Delete("connections").
			Where(sq.Eq{"low_id": key.Low().String(), "high_id": key.High().String()}).
			ExecContext(ctx)
		return err
	})
	if err != nil {
		return HandleSQLError("remove connection", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return HandleSQLError("remove connection", err)
	}
	if affected != 1 {
		return pkgerrors.ConnectionNotFound(key.Low().String(), key.High().String())
	}
	return nil
}

// Neighbors returns every user connected to id
func (s *Store) Neighbors(ctx context.Context, id valueobjects.UserID) ([]valueobjects.UserID, error) {
	byID, err := s.NeighborsOf(ctx, []valueobjects.UserID{id})
	if err != nil {
		return nil, err
	}
	return byID[id], nil
}

// NeighborsOf reads both slots of every pair touching ids, one statement
// per chunk of ids.
func (s *Store) NeighborsOf(ctx context.Context, ids []valueobjects.UserID) (map[valueobjects.UserID][]valueobjects.UserID, error) {
	out := make(map[valueobjects.UserID][]valueobjects.UserID, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, span := startTrace(ctx, "NeighborsOf")
	defer span.End()

	ids = valueobjects.NewUserIDSet(ids...).Slice()
	// Each id is bound twice, so chunks are half the statement limit.
	for _, chunk := range chunkIDs(ids, maxIDsPerStatement/2) {
		if err := s.collectNeighbors(ctx, out, chunk); err != nil {
			return nil, err
		}
	}
	for id := range out {
		valueobjects.SortUserIDs(out[id])
	}
	return out, nil
}

// collectNeighbors appends to out only for ids in this chunk, so a pair whose
// ends fall in different chunks is recorded once per end.
func (s *Store) collectNeighbors(ctx context.Context, out map[valueobjects.UserID][]valueobjects.UserID, ids []valueobjects.UserID) error {
	keys := idStrings(ids)
	wanted := valueobjects.NewUserIDSet(ids...)

	rows, err := s.stbl.
		Select("low_id", "high_id").
		From("connections").
		Where(sq.Or{sq.Eq{"low_id": keys}, sq.Eq{"high_id": keys}}).
		QueryContext(ctx)
	if err != nil {
		return HandleSQLError("list neighbors", err)
	}
	defer rows.Close()

	for rows.Next() {
		var low, high string
		if err := rows.Scan(&low, &high); err != nil {
			return HandleSQLError("list neighbors", err)
		}
		lowID, err := valueobjects.NewUserIDFromString(low)
		if err != nil {
			return pkgerrors.NewInternalError("corrupt connection row").WithCause(err)
		}
		highID, err := valueobjects.NewUserIDFromString(high)
		if err != nil {
			return pkgerrors.NewInternalError("corrupt connection row").WithCause(err)
		}
		if wanted.Contains(lowID) {
			out[lowID] = append(out[lowID], highID)
		}
		if wanted.Contains(highID) {
			out[highID] = append(out[highID], lowID)
		}
	}
	if err := rows.Err(); err != nil {
		return HandleSQLError("list neighbors", err)
	}
	return nil
}

func (s *Store) selectUsers() sq.SelectBuilder {
	return s.stbl.
		Select("id", "external_id", "display_name", "created_at", "updated_at").
		From("users")
}

func scanUser(row sq.RowScanner) (*entities.User, error) {
	var (
		id, externalID, displayName string
		createdAt, updatedAt        int64
	)
	if err := row.Scan(&id, &externalID, &displayName, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	uid, err := valueobjects.NewUserIDFromString(id)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructUser(
		uid,
		externalID,
		displayName,
		time.Unix(0, createdAt).UTC(),
		time.Unix(0, updatedAt).UTC(),
	), nil
}

// maxIDsPerStatement keeps IN lists well under SQLite's bound parameter
// limit (32766).
const maxIDsPerStatement = 5000

func chunkIDs(ids []valueobjects.UserID, size int) [][]valueobjects.UserID {
	chunks := make([][]valueobjects.UserID, 0, (len(ids)+size-1)/size)
	for size < len(ids) {
		ids, chunks = ids[size:], append(chunks, ids[:size:size])
	}
	return append(chunks, ids)
}

func idStrings(ids []valueobjects.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// HandleSQLError wraps a driver error as a database error
func HandleSQLError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// SQLite returns SQLITE_BUSY when the database is locked rather than waiting
// for the lock. busyRetry retries the operation up to maxRetries times.
func busyRetry(fn func() error) error {
	const maxRetries = 10
	for retries := 0; ; retries++ {
		err := fn()
		if err == nil {
			return nil
		}

		if isBusyError(err) {
			if retries < maxRetries {
				continue
			}
			return fmt.Errorf("sqlite busy error after %d retries: %w", maxRetries, err)
		}

		return err
	}
}

var busyErrors = map[int]struct{}{
	sqlite3.SQLITE_BUSY_RECOVERY:      {},
	sqlite3.SQLITE_BUSY_SNAPSHOT:      {},
	sqlite3.SQLITE_BUSY_TIMEOUT:       {},
	sqlite3.SQLITE_BUSY:               {},
	sqlite3.SQLITE_LOCKED_SHAREDCACHE: {},
	sqlite3.SQLITE_LOCKED:             {},
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	_, ok := busyErrors[sqliteErr.Code()]
	return ok
}
