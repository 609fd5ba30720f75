package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"socialgraph/domain/core/entities"
	"socialgraph/domain/core/valueobjects"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "graph.db")
	require.NoError(t, Migrate(context.Background(), MigrationConfig{DSN: dsn}, nil))

	store, err := New(dsn, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func createUser(t *testing.T, s *Store, externalID string) *entities.User {
	t.Helper()
	user, err := entities.NewUser(valueobjects.NewUserID(), externalID, "User "+externalID)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), user))
	return user
}

func TestPrepareDSN(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		contains []string
		excludes []string
	}{
		{
			name:     "adds defaults",
			dsn:      "file:graph.db",
			contains: []string{"journal_mode%28WAL%29", "busy_timeout%28100%29", "foreign_keys%281%29", "_txlock=immediate"},
		},
		{
			name:     "keeps caller pragmas",
			dsn:      "file:graph.db?_pragma=busy_timeout(5000)",
			contains: []string{"busy_timeout%285000%29"},
			excludes: []string{"busy_timeout%28100%29"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrepareDSN(tt.dsn)

			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, "file:graph.db?"))
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")

	got, err := s.GetByExternalID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID(), got.ID())
	assert.Equal(t, "User alice", got.DisplayName())

	byID, err := s.GetByID(ctx, alice.ID())
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.ExternalID())

	_, err = s.GetByExternalID(ctx, "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))

	dup, err := entities.NewUser(valueobjects.NewUserID(), "alice", "Other")
	require.NoError(t, err)
	assert.True(t, pkgerrors.IsConflict(s.Create(ctx, dup)))

	require.NoError(t, got.Rename("Alice L."))
	require.NoError(t, s.UpdateDisplayName(ctx, got))
	renamed, err := s.GetByExternalID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", renamed.DisplayName())
}

func TestStore_Connections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, b, c := createUser(t, s, "a"), createUser(t, s, "b"), createUser(t, s, "c")

	ab, err := entities.NewConnection(b.ID(), a.ID())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, ab))

	ba, err := entities.NewConnection(a.ID(), b.ID())
	require.NoError(t, err)
	err = s.Add(ctx, ba)
	assert.Equal(t, pkgerrors.CodeConnectionExists, pkgerrors.GetAppError(err).Code)

	bc, err := entities.NewConnection(b.ID(), c.ID())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, bc))

	adjacency, err := s.NeighborsOf(ctx, []valueobjects.UserID{a.ID(), b.ID()})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.UserID{b.ID()}, adjacency[a.ID()])
	assert.ElementsMatch(t, []valueobjects.UserID{a.ID(), c.ID()}, adjacency[b.ID()])

	require.NoError(t, s.Remove(ctx, ab.Key()))
	err = s.Remove(ctx, ab.Key())
	assert.Equal(t, pkgerrors.CodeConnectionMissing, pkgerrors.GetAppError(err).Code)

	neighbors, err := s.Neighbors(ctx, a.ID())
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestStore_LargeIDLists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, b, c := createUser(t, s, "a"), createUser(t, s, "b"), createUser(t, s, "c")
	for _, pair := range [][2]*entities.User{{a, b}, {b, c}} {
		conn, err := entities.NewConnection(pair[0].ID(), pair[1].ID())
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, conn))
	}

	ids := make([]valueobjects.UserID, 0, 40003)
	ids = append(ids, a.ID())
	for i := 0; i < 40000; i++ {
		ids = append(ids, valueobjects.NewUserID())
	}
	ids = append(ids, b.ID(), c.ID(), a.ID())

	t.Run("neighbors", func(t *testing.T) {
		adjacency, err := s.NeighborsOf(ctx, ids[:17000])
		require.NoError(t, err)
		assert.Equal(t, []valueobjects.UserID{b.ID()}, adjacency[a.ID()])

		adjacency, err = s.NeighborsOf(ctx, ids)
		require.NoError(t, err)
		assert.Len(t, adjacency, 3)
		assert.Equal(t, []valueobjects.UserID{b.ID()}, adjacency[a.ID()])
		assert.ElementsMatch(t, []valueobjects.UserID{a.ID(), c.ID()}, adjacency[b.ID()])
		assert.Equal(t, []valueobjects.UserID{b.ID()}, adjacency[c.ID()])
	})

	t.Run("users", func(t *testing.T) {
		users, err := s.GetByIDs(ctx, ids)
		require.NoError(t, err)
		got := make([]string, 0, len(users))
		for _, u := range users {
			got = append(got, u.ExternalID())
		}
		assert.ElementsMatch(t, []string{"a", "b", "c"}, got)
	})
}

func TestChunkIDs(t *testing.T) {
	ids := make([]valueobjects.UserID, 7)
	for i := range ids {
		ids[i] = valueobjects.NewUserID()
	}

	tests := []struct {
		name  string
		ids   []valueobjects.UserID
		size  int
		sizes []int
	}{
		{name: "uneven", ids: ids, size: 3, sizes: []int{3, 3, 1}},
		{name: "exact", ids: ids[:6], size: 3, sizes: []int{3, 3}},
		{name: "single chunk", ids: ids, size: 10, sizes: []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkIDs(tt.ids, tt.size)

			var sizes []int
			var flat []valueobjects.UserID
			for _, c := range chunks {
				sizes = append(sizes, len(c))
				flat = append(flat, c...)
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.Equal(t, tt.ids, flat)
		})
	}
}

func TestStore_AddUnknownUser(t *testing.T) {
	s := newTestStore(t)
	a := createUser(t, s, "a")

	conn, err := entities.NewConnection(a.ID(), valueobjects.NewUserID())
	require.NoError(t, err)

	err = s.Add(context.Background(), conn)

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_ConcurrentAddSamePair(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, b := createUser(t, s, "a"), createUser(t, s, "b")

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := entities.NewConnection(a.ID(), b.ID())
			if err != nil {
				return
			}
			switch err := s.Add(ctx, conn); {
			case err == nil:
				successes.Add(1)
			case pkgerrors.IsConflict(err):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
}

func TestStore_Ping(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.Ping(context.Background()))
}
