package valueobjects

import (
	pkgerrors "socialgraph/pkg/errors"
)

// ConnectionKey is the canonical form of an undirected connection. Low always
// sorts before High, so {a,b} and {b,a} produce the same key.
type ConnectionKey struct {
	low  UserID
	high UserID
}

// NewConnectionKey canonicalizes the pair. A user cannot be connected to
// itself.
func NewConnectionKey(u, v UserID) (ConnectionKey, error) {
	if u.IsZero() || v.IsZero() {
		return ConnectionKey{}, pkgerrors.NewValidationError("both user identities are required")
	}
	if u.Equals(v) {
		return ConnectionKey{}, pkgerrors.NewValidationError("a user cannot connect to themselves").
			WithCode(pkgerrors.CodeSelfConnection)
	}
	if v.Less(u) {
		u, v = v, u
	}
	return ConnectionKey{low: u, high: v}, nil
}

func (k ConnectionKey) Low() UserID  { return k.low }
func (k ConnectionKey) High() UserID { return k.high }

// Other returns the opposite endpoint of id, and false if id is not an endpoint
func (k ConnectionKey) Other(id UserID) (UserID, bool) {
	switch {
	case k.low.Equals(id):
		return k.high, true
	case k.high.Equals(id):
		return k.low, true
	}
	return UserID{}, false
}

// Involves reports whether id is one of the endpoints
func (k ConnectionKey) Involves(id UserID) bool {
	_, ok := k.Other(id)
	return ok
}

func (k ConnectionKey) String() string {
	return k.low.String() + "#" + k.high.String()
}
