package secret

import (
	"os"
	"strings"
	"sync"
)

// EnvPrefix starts every environment variable EnvStore reads.
const EnvPrefix = "SLDPREVIEW_SECRET_"

// EnvStore reads secrets from the environment, for headless hosts without a
// keychain. Set and Delete only affect this process.
type EnvStore struct {
	mu        sync.RWMutex
	overrides map[string][]byte
	deleted   map[string]bool
}

func NewEnvStore() *EnvStore {
	return &EnvStore{
		overrides: make(map[string][]byte),
		deleted:   make(map[string]bool),
	}
}

// EnvName maps a key to its variable: "db:1f2e-33" becomes
// SLDPREVIEW_SECRET_DB_1F2E_33.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e *EnvStore) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overrides[key] = append([]byte(nil), value...)
	delete(e.deleted, key)
	return nil
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.overrides[key]; ok {
		return append([]byte(nil), v...), nil
	}
	if e.deleted[key] {
		return nil, nil
	}
	if v, ok := os.LookupEnv(EnvName(key)); ok {
		return []byte(v), nil
	}
	return nil, nil
}

func (e *EnvStore) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.overrides, key)
	e.deleted[key] = true
	return nil
}
