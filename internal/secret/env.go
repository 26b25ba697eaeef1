package secret

import (
	"os"
	"strings"
	"sync"
)

const envPrefix = "ROWBRIDGE_SECRET_"

// EnvStore implements SecretStore on top of environment variables with an
// in-memory overlay for secrets set at runtime. A key "db:1234" maps to
// the variable ROWBRIDGE_SECRET_DB_1234. Runtime writes live only for the
// process lifetime; the environment is never modified.
type EnvStore struct {
	mu      sync.RWMutex
	overlay map[string][]byte
}

// NewEnvStore creates a new EnvStore.
func NewEnvStore() *EnvStore {
	return &EnvStore{overlay: make(map[string][]byte)}
}

// envKey normalizes a secret key into an environment variable name.
func envKey(key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return envPrefix + mapped
}

func (e *EnvStore) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overlay[key] = append([]byte(nil), value...)
	return nil
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	e.mu.RLock()
	v, ok := e.overlay[key]
	e.mu.RUnlock()
	if ok {
		return append([]byte(nil), v...), nil
	}
	if env, ok := os.LookupEnv(envKey(key)); ok {
		return []byte(env), nil
	}
	return nil, nil
}

func (e *EnvStore) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.overlay, key)
	return nil
}
