package vault

import (
	"github.com/pkg/errors"
)

// Vault stores the session tokens kgraph sends to the LMS backend.
type Vault interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Token keys understood by every backend.
const (
	AccessToken  = "access_token"
	RefreshToken = "refresh_token"
)

var (
	// ErrNotFound is returned (wrapped) when a key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrUnknownKey is returned by backends that only hold session tokens.
	ErrUnknownKey = errors.New("not a session token key")
)

// Backend names accepted by New.
const (
	BackendAuto     = "auto"
	BackendKeychain = "keychain"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// Session is the token pair of one login.
type Session struct {
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

// LoggedIn reports whether an access token is present.
func (s Session) LoggedIn() bool {
	return s.Access != ""
}

// field returns the session slot for key.
func (s *Session) field(key string) (*string, error) {
	switch key {
	case AccessToken:
		return &s.Access, nil
	case RefreshToken:
		return &s.Refresh, nil
	default:
		return nil, errors.Wrap(ErrUnknownKey, key)
	}
}

// LoadSession reads both tokens from v. Missing tokens stay empty.
func LoadSession(v Vault) (Session, error) {
	var s Session
	for _, key := range []string{AccessToken, RefreshToken} {
		value, err := v.Get(key)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return Session{}, err
		}
		slot, _ := s.field(key)
		*slot = value
	}
	return s, nil
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func notFound(key string) error {
	return errors.Wrap(ErrNotFound, key)
}

// Mask returns a masked version of a token for display.
func Mask(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
