package valueobjects

import (
	"encoding/json"
	"testing"

	pkgerrors "socialgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserIDFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid uuid", input: "0b6b2a8e-2f6e-4a5b-9a53-5f2d8c1e7a10"},
		{name: "empty", input: "", wantErr: true},
		{name: "not a uuid", input: "alice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewUserIDFromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestUserID_JSONRoundTrip(t *testing.T) {
	id := NewUserID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded UserID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, id.Equals(decoded))
}

func TestNewConnectionKey_IsCanonical(t *testing.T) {
	a := MustUserID("00000000-0000-4000-8000-000000000001")
	b := MustUserID("00000000-0000-4000-8000-000000000002")

	ab, err := NewConnectionKey(a, b)
	require.NoError(t, err)
	ba, err := NewConnectionKey(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, a, ab.Low())
	assert.Equal(t, b, ab.High())
	assert.True(t, ab.Low().Less(ab.High()))
}

func TestNewConnectionKey_RejectsSelfLoop(t *testing.T) {
	a := NewUserID()

	_, err := NewConnectionKey(a, a)

	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, pkgerrors.CodeSelfConnection, appErr.Code)
}

func TestNewConnectionKey_RejectsZeroIdentity(t *testing.T) {
	_, err := NewConnectionKey(UserID{}, NewUserID())
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestConnectionKey_Other(t *testing.T) {
	a, b, c := NewUserID(), NewUserID(), NewUserID()
	key, err := NewConnectionKey(a, b)
	require.NoError(t, err)

	other, ok := key.Other(a)
	assert.True(t, ok)
	assert.Equal(t, b, other)

	other, ok = key.Other(b)
	assert.True(t, ok)
	assert.Equal(t, a, other)

	_, ok = key.Other(c)
	assert.False(t, ok)
	assert.False(t, key.Involves(c))
}

func TestUserIDSet(t *testing.T) {
	a := MustUserID("00000000-0000-4000-8000-00000000000a")
	b := MustUserID("00000000-0000-4000-8000-00000000000b")

	set := NewUserIDSet(b, a, b)

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(a))
	assert.Equal(t, []UserID{a, b}, set.Slice())

	var nilSet UserIDSet
	assert.Empty(t, nilSet.Slice())
	assert.False(t, nilSet.Contains(a))
}
