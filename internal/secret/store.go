package secret

import (
	"fmt"
	"strings"
)

// SecretStore holds connection passwords outside the profile database.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	Delete(key string) error
}

// ProfileKey is the key a connection profile's password is stored under.
func ProfileKey(profileID string) string {
	return "db:" + profileID
}

// New returns the store for a backend name: "keychain" or "env".
func New(backend string) (SecretStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "keychain":
		return NewKeychainStore(), nil
	case "env":
		return NewEnvStore(), nil
	default:
		return nil, fmt.Errorf("unknown secret backend %q", backend)
	}
}

// Password resolves the stored password of a profile. A missing entry is an
// empty password.
func Password(s SecretStore, profileID string) string {
	if s == nil || profileID == "" {
		return ""
	}
	b, err := s.Get(ProfileKey(profileID))
	if err != nil {
		return ""
	}
	return string(b)
}
