// Package store provides the persistent string key-value store used for
// lesson progress and the theme preference.
//
// Every operation touches exactly one key. There are no transactions and no
// enumeration, so writers on different keys never interfere.
package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/conneroisu/courseview/internal/errors"
)

// Store is a synchronous string-keyed, string-valued store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)
	// Set writes value under key.
	Set(key, value string) error
	// Close releases the underlying resources.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Options selects and configures a driver.
type Options struct {
	Driver    string
	Path      string
	RedisAddr string
	RedisDB   int
	Namespace string
}

// Open creates the store described by opts.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		return OpenSQLite(opts.Path)
	case DriverRedis:
		return OpenRedis(opts.RedisAddr, opts.RedisDB, opts.Namespace)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown store driver %q", opts.Driver))
	}
}

// MemoryStore keeps values in a map. It stands in for the persistent store
// in tests and in throwaway sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set implements Store.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of keys held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
