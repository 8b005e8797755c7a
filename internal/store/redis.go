package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/conneroisu/courseview/internal/errors"
)

// DefaultNamespace prefixes every key written to a shared Redis.
const DefaultNamespace = "courseview:"

// RedisStore keeps values in Redis under a namespace prefix. Useful when the
// viewer runs on several hosts that should share one learner's progress.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(addr string, db int, namespace string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "redis store requires an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, errors.NewStoreError(errors.ErrCodeStoreOpen,
			fmt.Sprintf("cannot reach redis at %s", addr), err)
	}

	return NewRedisStore(client, namespace), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisStore{client: client, namespace: namespace}
}

// Key returns the namespaced Redis key for key.
func (r *RedisStore) Key(key string) string {
	return r.namespace + key
}

// Get implements Store. Connection errors are reported as a missing key.
func (r *RedisStore) Get(key string) (string, bool) {
	value, err := r.client.Get(context.Background(), r.Key(key)).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// Set implements Store. Values never expire.
func (r *RedisStore) Set(key, value string) error {
	if err := r.client.Set(context.Background(), r.Key(key), value, 0).Err(); err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreWrite,
			fmt.Sprintf("cannot write key %s", key), err)
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
