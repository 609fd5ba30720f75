package services

import (
	"context"
	"sort"

	"socialgraph/application/ports"
	"socialgraph/domain/config"
	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"
	"socialgraph/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FriendProfile is the public projection of a user in query results
type FriendProfile struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// Separation is the outcome of a degree-of-separation search. An unreachable
// pair is a result, not an error.
type Separation struct {
	Degree    int
	Connected bool
}

// Unreachable is returned when no path joins the two users
var Unreachable = Separation{Degree: -1, Connected: false}

// IsUnreachable reports whether no path was found
func (s Separation) IsUnreachable() bool {
	return !s.Connected
}

// GraphQueryEngine answers read-only questions about the graph. It never
// mutates the store.
type GraphQueryEngine struct {
	directory   *UserDirectory
	connections ports.ConnectionRepository
	maxDepth    int
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewGraphQueryEngine creates an engine
func NewGraphQueryEngine(
	directory *UserDirectory,
	connections ports.ConnectionRepository,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *GraphQueryEngine {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphQueryEngine{
		directory:   directory,
		connections: connections,
		maxDepth:    cfg.MaxSearchDepth,
		tracer:      observability.Tracer("socialgraph/application/services"),
		logger:      logger,
	}
}

// DirectFriends lists the users connected to externalID
func (e *GraphQueryEngine) DirectFriends(ctx context.Context, externalID string) ([]FriendProfile, error) {
	ctx, span := e.tracer.Start(ctx, "GraphQueryEngine.DirectFriends",
		trace.WithAttributes(attribute.String("external_id", externalID)))
	defer span.End()

	u, err := e.directory.Resolve(ctx, externalID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	neighbors, err := e.connections.Neighbors(ctx, u)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("friends", len(neighbors)))

	return e.project(ctx, neighbors)
}

// FriendsOfFriends lists users exactly two hops from externalID: neighbors of
// neighbors, minus the direct friends and the user itself.
func (e *GraphQueryEngine) FriendsOfFriends(ctx context.Context, externalID string) ([]FriendProfile, error) {
	ctx, span := e.tracer.Start(ctx, "GraphQueryEngine.FriendsOfFriends",
		trace.WithAttributes(attribute.String("external_id", externalID)))
	defer span.End()

	u, err := e.directory.Resolve(ctx, externalID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	direct, err := e.connections.Neighbors(ctx, u)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if len(direct) == 0 {
		return []FriendProfile{}, nil
	}

	excluded := valueobjects.NewUserIDSet(direct...)
	excluded.Add(u)

	second, err := e.connections.NeighborsOf(ctx, direct)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := valueobjects.NewUserIDSet()
	for _, f := range direct {
		for _, w := range second[f] {
			if !excluded.Contains(w) {
				result.Add(w)
			}
		}
	}
	span.SetAttributes(attribute.Int("friends_of_friends", result.Len()))

	return e.project(ctx, result.Slice())
}

// DegreeOfSeparation returns the length of the shortest path between two
// users. The same external id on both sides is 0 hops and is answered without
// touching the store.
func (e *GraphQueryEngine) DegreeOfSeparation(ctx context.Context, fromExternalID, toExternalID string) (Separation, error) {
	if fromExternalID == "" || toExternalID == "" {
		return Unreachable, pkgerrors.NewValidationError("both users are required")
	}
	if fromExternalID == toExternalID {
		return Separation{Degree: 0, Connected: true}, nil
	}

	ctx, span := e.tracer.Start(ctx, "GraphQueryEngine.DegreeOfSeparation",
		trace.WithAttributes(
			attribute.String("from", fromExternalID),
			attribute.String("to", toExternalID),
		))
	defer span.End()

	src, err := e.directory.Resolve(ctx, fromExternalID)
	if err != nil {
		observability.RecordError(span, err)
		return Unreachable, err
	}
	dst, err := e.directory.Resolve(ctx, toExternalID)
	if err != nil {
		observability.RecordError(span, err)
		return Unreachable, err
	}

	result, err := e.search(ctx, src, dst)
	if err != nil {
		observability.RecordError(span, err)
		return Unreachable, err
	}
	span.SetAttributes(
		attribute.Int("degree", result.Degree),
		attribute.Bool("connected", result.Connected),
	)
	return result, nil
}

// search runs a level-synchronous BFS. Each level is one batched neighbor
// read, and the context is checked between levels.
func (e *GraphQueryEngine) search(ctx context.Context, src, dst valueobjects.UserID) (Separation, error) {
	if src.Equals(dst) {
		return Separation{Degree: 0, Connected: true}, nil
	}

	visited := valueobjects.NewUserIDSet(src)
	frontier := []valueobjects.UserID{src}
	depth := 0

	defer func() {
		observability.TraversalDepth.Observe(float64(depth))
		observability.TraversalVisited.Observe(float64(visited.Len()))
	}()

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return Unreachable, pkgerrors.NewTimeoutError("degree of separation").WithCause(err)
		}
		if e.maxDepth > 0 && depth >= e.maxDepth {
			e.logger.Debug("Search depth limit reached", zap.Int("depth", depth))
			return Unreachable, nil
		}
		depth++

		adjacency, err := e.connections.NeighborsOf(ctx, frontier)
		if err != nil {
			return Unreachable, err
		}

		var next []valueobjects.UserID
		for _, u := range frontier {
			for _, w := range adjacency[u] {
				if w.Equals(dst) {
					return Separation{Degree: depth, Connected: true}, nil
				}
				if visited.Contains(w) {
					continue
				}
				visited.Add(w)
				next = append(next, w)
			}
		}
		frontier = next
	}

	return Unreachable, nil
}

// project loads profiles for ids and orders them by external id
func (e *GraphQueryEngine) project(ctx context.Context, ids []valueobjects.UserID) ([]FriendProfile, error) {
	users, err := e.directory.Profiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	return toProfiles(users), nil
}

func toProfiles(users []*entities.User) []FriendProfile {
	out := make([]FriendProfile, 0, len(users))
	for _, u := range users {
		out = append(out, FriendProfile{ExternalID: u.ExternalID(), DisplayName: u.DisplayName()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}
