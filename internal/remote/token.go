package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// FlexID is an identifier that some firmware sends as a number and some as
// a string. It remembers which, so it can be echoed back unchanged.
// The zero value is "absent". FlexID is comparable with ==.
type FlexID struct {
	str   string
	num   int64
	isInt bool
	set   bool
}

// IntID returns an integer FlexID.
func IntID(n int64) FlexID {
	return FlexID{num: n, isInt: true, set: true}
}

// StringID returns a string FlexID, kept as a string even if numeric.
func StringID(s string) FlexID {
	return FlexID{str: s, set: true}
}

// ParseFlexID returns an integer FlexID when s is a canonical decimal
// integer (strconv round-trips it exactly), otherwise a string FlexID.
// An empty s yields the zero FlexID.
func ParseFlexID(s string) FlexID {
	if s == "" {
		return FlexID{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return IntID(n)
	}
	return StringID(s)
}

// IsZero reports whether the id is absent.
func (f FlexID) IsZero() bool {
	return !f.set
}

// Int returns the integer value and whether the id is an integer.
func (f FlexID) Int() (int64, bool) {
	return f.num, f.isInt
}

func (f FlexID) String() string {
	if f.isInt {
		return strconv.FormatInt(f.num, 10)
	}
	return f.str
}

// MarshalJSON writes integers as numbers and strings as strings.
// The zero FlexID marshals as null.
func (f FlexID) MarshalJSON() ([]byte, error) {
	switch {
	case !f.set:
		return []byte("null"), nil
	case f.isInt:
		return []byte(strconv.FormatInt(f.num, 10)), nil
	default:
		return json.Marshal(f.str)
	}
}

// UnmarshalJSON accepts a JSON number, string or null.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FlexID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = IntID(i)
		return nil
	}
	*f = StringID(n.String())
	return nil
}

// AuthContext is the credential produced by pairing.
// Ctx and SessionID are both set or both empty.
type AuthContext struct {
	// Ctx is the hex-encoded context blob from the hello exchange.
	Ctx string

	// SessionID is assigned by the TV in the acknowledge exchange.
	SessionID FlexID
}

// IsZero reports whether the context is absent.
func (a AuthContext) IsZero() bool {
	return a.Ctx == "" && a.SessionID.IsZero()
}

// Token serialises the context as "{ctx}:{session_id}". The session id
// loses its JSON type here: a numeric string such as "123" comes back from
// ParseToken as the integer 123, while non-numeric strings stay strings.
func (a AuthContext) Token() string {
	return a.Ctx + ":" + a.SessionID.String()
}

// ParseToken restores an AuthContext from "{ctx}:{session_id}".
// It splits on the last colon; a canonical integer session id becomes an
// integer FlexID. Either half missing is an error.
func ParseToken(token string) (AuthContext, error) {
	i := strings.LastIndex(token, ":")
	if i <= 0 || i == len(token)-1 {
		return AuthContext{}, fmt.Errorf("%w: expected \"ctx:session_id\"", ErrInvalidToken)
	}
	return AuthContext{
		Ctx:       token[:i],
		SessionID: ParseFlexID(token[i+1:]),
	}, nil
}

// TokenStore persists pairing tokens per device key.
type TokenStore interface {
	// LoadToken returns the token, or ErrTokenNotFound.
	LoadToken(ctx context.Context, deviceKey string) (string, error)

	// SaveToken inserts or replaces the token.
	SaveToken(ctx context.Context, deviceKey, token string) error
}

// MemoryTokenStore keeps tokens in memory. Useful for tests and one-shot
// CLI runs.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryTokenStore returns an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]string)}
}

// LoadToken implements TokenStore.
func (s *MemoryTokenStore) LoadToken(_ context.Context, deviceKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[deviceKey]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// SaveToken implements TokenStore.
func (s *MemoryTokenStore) SaveToken(_ context.Context, deviceKey, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[deviceKey] = token
	return nil
}

// DeleteToken forgets the token for deviceKey.
func (s *MemoryTokenStore) DeleteToken(_ context.Context, deviceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, deviceKey)
	return nil
}
