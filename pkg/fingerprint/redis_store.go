package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps artifacts in Redis so several instances can share one
// artifact cache. TTL zero means entries never expire; retention is then
// Redis' own eviction policy.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, hash string, kind ArtifactKind) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, redisKey(hash, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) Put(ctx context.Context, hash string, kind ArtifactKind, artifact []byte) error {
	// SetNX keeps the first write: entries are immutable per content hash.
	return s.client.SetNX(ctx, redisKey(hash, kind), artifact, s.ttl).Err()
}

func (s *RedisStore) Location(string, ArtifactKind) string {
	return ""
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(hash string, kind ArtifactKind) string {
	return fmt.Sprintf("chart:artifact:%s:%s", hash, kind)
}
