package nimbus

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a DurableStore backed by Redis, giving the "external
// key/value store" of spec.md §1 a concrete, exercised backend. Grounded
// on two sources: the retrieved pack's Generativebots-ocx-backend-go-svc
// repo, which imports github.com/redis/go-redis/v9 directly, and the
// original Python implementation, whose broker persists requests via
// redis.StrictRedis (original_source/nimbus/broker/__init__.py).
//
// testcontainers-go (carried in the teacher's go.mod) would only ever
// serve an integration-test harness spinning up a real Redis for this
// file's tests; per SPEC_FULL.md it is noted here rather than wired into
// production code. RedisStore has no tests of its own: the store tests in
// this package exercise MemoryStore only.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(key string, value []byte) error {
	return s.client.Set(context.Background(), key, value, 0).Err()
}

func (s *RedisStore) Get(key string) ([]byte, bool, error) {
	value, err := s.client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, NewDurableStoreError("get", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Delete(key string) error {
	if err := s.client.Del(context.Background(), key).Err(); err != nil {
		return NewDurableStoreError("delete", key, err)
	}
	return nil
}
