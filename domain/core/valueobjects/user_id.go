package valueobjects

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// UserID is the internal identity of a user. It is generated once at
// registration and never changes.
type UserID struct {
	value string
}

// NewUserID creates a new random UserID
func NewUserID() UserID {
	return UserID{value: uuid.New().String()}
}

// NewUserIDFromString creates a UserID from an existing string
func NewUserIDFromString(id string) (UserID, error) {
	if id == "" {
		return UserID{}, errors.New("user ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return UserID{}, errors.New("user ID must be a valid UUID")
	}
	return UserID{value: id}, nil
}

// MustUserID panics when id is not a valid identity. Intended for tests and
// values read back from a store that only ever held valid identities.
func MustUserID(id string) UserID {
	uid, err := NewUserIDFromString(id)
	if err != nil {
		panic(err)
	}
	return uid
}

// String returns the string representation of the UserID
func (id UserID) String() string {
	return id.value
}

// Equals checks if two UserIDs are equal
func (id UserID) Equals(other UserID) bool {
	return id.value == other.value
}

// Less orders identities lexicographically
func (id UserID) Less(other UserID) bool {
	return id.value < other.value
}

// IsZero checks if the UserID is the zero value
func (id UserID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id UserID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *UserID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("UserID must be a string")
	}
	parsed, err := NewUserIDFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UserIDSet is a set of identities
type UserIDSet map[UserID]struct{}

// NewUserIDSet builds a set from ids
func NewUserIDSet(ids ...UserID) UserIDSet {
	s := make(UserIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s UserIDSet) Add(id UserID) { s[id] = struct{}{} }

func (s UserIDSet) Contains(id UserID) bool {
	_, ok := s[id]
	return ok
}

func (s UserIDSet) Len() int { return len(s) }

// Slice returns the members sorted lexicographically
func (s UserIDSet) Slice() []UserID {
	out := make([]UserID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	SortUserIDs(out)
	return out
}

// SortUserIDs sorts ids in place
func SortUserIDs(ids []UserID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
