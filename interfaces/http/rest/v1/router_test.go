package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"socialgraph/application/commands"
	"socialgraph/application/commands/bus"
	commandhandlers "socialgraph/application/commands/handlers"
	"socialgraph/application/queries"
	querybus "socialgraph/application/queries/bus"
	queryhandlers "socialgraph/application/queries/handlers"
	"socialgraph/application/services"
	"socialgraph/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLegacyRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore(logger)
	directory := services.NewUserDirectory(store, nil, nil, logger)
	engine := services.NewGraphQueryEngine(directory, store, nil, logger)

	commandBus := bus.NewCommandBus()
	require.NoError(t, commandBus.Register(commands.RegisterUserCommand{}, commandhandlers.NewRegisterUserHandler(directory, nil, logger)))
	require.NoError(t, commandBus.Register(commands.AddConnectionCommand{}, commandhandlers.NewAddConnectionHandler(directory, store, nil, logger)))
	require.NoError(t, commandBus.Register(commands.RemoveConnectionCommand{}, commandhandlers.NewRemoveConnectionHandler(directory, store, nil, logger)))

	queryBus := querybus.NewQueryBus()
	require.NoError(t, queryBus.Register(queries.ListFriendsQuery{}, queryhandlers.NewListFriendsHandler(engine)))
	require.NoError(t, queryBus.Register(queries.ListFriendsOfFriendsQuery{}, queryhandlers.NewListFriendsOfFriendsHandler(engine)))
	require.NoError(t, queryBus.Register(queries.DegreeOfSeparationQuery{}, queryhandlers.NewDegreeOfSeparationHandler(engine)))

	return NewRouter(commandBus, queryBus, logger)
}

func send(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func seed(t *testing.T, h http.Handler, users []string, pairs [][2]string) {
	t.Helper()
	for _, u := range users {
		rec := send(t, h, http.MethodPost, "/users", createUserRequest{UserStrID: u, DisplayName: "User " + u})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	for _, p := range pairs {
		rec := send(t, h, http.MethodPost, "/connections", connectionRequest{User1StrID: p[0], User2StrID: p[1]})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestLegacy_CreateUser(t *testing.T) {
	h := newLegacyRouter(t)

	rec := send(t, h, http.MethodPost, "/users", createUserRequest{UserStrID: "alice", DisplayName: "Alice"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
	body := jsonBody(t, rec)
	assert.Equal(t, "alice", body["user_str_id"])
	assert.Equal(t, "created", body["status"])
	assert.NotEmpty(t, body["internal_db_id"])

	rec = send(t, h, http.MethodPost, "/users", createUserRequest{UserStrID: "alice", DisplayName: "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user_str_id already exists", jsonBody(t, rec)["error"])

	rec = send(t, h, http.MethodPost, "/users", createUserRequest{UserStrID: "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user_str_id and display_name required", jsonBody(t, rec)["error"])
}

func TestLegacy_Connections(t *testing.T) {
	h := newLegacyRouter(t)
	seed(t, h, []string{"alice", "bob"}, nil)

	tests := []struct {
		name            string
		method          string
		req             connectionRequest
		expectedStatus  int
		expectedField   string
		expectedMessage string
	}{
		{name: "add", method: http.MethodPost, req: connectionRequest{"alice", "bob"}, expectedStatus: http.StatusOK, expectedField: "status", expectedMessage: "connection_added"},
		{name: "duplicate", method: http.MethodPost, req: connectionRequest{"bob", "alice"}, expectedStatus: http.StatusConflict, expectedField: "error", expectedMessage: "Connection already exists"},
		{name: "self", method: http.MethodPost, req: connectionRequest{"alice", "alice"}, expectedStatus: http.StatusBadRequest, expectedField: "error", expectedMessage: "Cannot connect user to themselves"},
		{name: "unknown user", method: http.MethodPost, req: connectionRequest{"alice", "ghost"}, expectedStatus: http.StatusNotFound, expectedField: "error", expectedMessage: "One or both users not found"},
		{name: "remove", method: http.MethodDelete, req: connectionRequest{"bob", "alice"}, expectedStatus: http.StatusOK, expectedField: "status", expectedMessage: "connection_removed"},
		{name: "remove missing", method: http.MethodDelete, req: connectionRequest{"alice", "bob"}, expectedStatus: http.StatusNotFound, expectedField: "error", expectedMessage: "Connection not found"},
		{name: "remove unknown user", method: http.MethodDelete, req: connectionRequest{"alice", "ghost"}, expectedStatus: http.StatusNotFound, expectedField: "error", expectedMessage: "One or both users not found"},
	}

	for _, tt := range tests {
		rec := send(t, h, tt.method, "/connections", tt.req)

		assert.Equal(t, tt.expectedStatus, rec.Code, tt.name)
		assert.Equal(t, tt.expectedMessage, jsonBody(t, rec)[tt.expectedField], tt.name)
	}
}

func TestLegacy_Friends(t *testing.T) {
	h := newLegacyRouter(t)
	seed(t, h,
		[]string{"alice", "bob", "carol", "dave"},
		[][2]string{{"alice", "bob"}, {"alice", "carol"}, {"bob", "dave"}, {"carol", "dave"}},
	)

	rec := send(t, h, http.MethodGet, "/users/alice/friends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var friends []friend
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &friends))
	assert.Equal(t, []friend{{"bob", "User bob"}, {"carol", "User carol"}}, friends)

	rec = send(t, h, http.MethodGet, "/users/alice/friends-of-friends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fof []friend
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fof))
	assert.Equal(t, []friend{{"dave", "User dave"}}, fof)

	rec = send(t, h, http.MethodGet, "/users/ghost/friends", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", jsonBody(t, rec)["error"])
}

func TestLegacy_Friends_EmptyListIsArray(t *testing.T) {
	h := newLegacyRouter(t)
	seed(t, h, []string{"loner"}, nil)

	rec := send(t, h, http.MethodGet, "/users/loner/friends", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestLegacy_Degree(t *testing.T) {
	h := newLegacyRouter(t)
	seed(t, h,
		[]string{"a", "b", "c", "x"},
		[][2]string{{"a", "b"}, {"b", "c"}},
	)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedBody   string
	}{
		{name: "two hops", query: "from_user_str_id=a&to_user_str_id=c", expectedStatus: http.StatusOK, expectedBody: `{"degree":2}`},
		{name: "same user", query: "from_user_str_id=a&to_user_str_id=a", expectedStatus: http.StatusOK, expectedBody: `{"degree":0}`},
		{name: "not connected", query: "from_user_str_id=a&to_user_str_id=x", expectedStatus: http.StatusOK, expectedBody: `{"degree":-1,"message":"not_connected"}`},
		{name: "unknown user", query: "from_user_str_id=a&to_user_str_id=ghost", expectedStatus: http.StatusNotFound, expectedBody: `{"degree":-1,"message":"user_not_found"}`},
		{name: "missing parameter", query: "from_user_str_id=a", expectedStatus: http.StatusBadRequest, expectedBody: `{"error":"from_user_str_id and to_user_str_id required"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(t, h, http.MethodGet, "/connections/degree?"+tt.query, nil)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
		})
	}
}

func TestLegacy_Degree_CancelledRequest(t *testing.T) {
	h := newLegacyRouter(t)
	seed(t, h, []string{"a", "b"}, [][2]string{{"a", "b"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/connections/degree?from_user_str_id=a&to_user_str_id=b", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", jsonBody(t, rec)["error"])
}
