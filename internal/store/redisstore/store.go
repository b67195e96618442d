package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const jwksKey = "identity:jwks"

// Store shares small pieces of state between replicas. Today that is the
// identity provider's key set, so a cold replica does not refetch it.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// GetKeySet returns the cached JWKS document, or nil when nothing is cached.
func (s *Store) GetKeySet(ctx context.Context) ([]byte, error) {
	b, err := s.rdb.Get(ctx, jwksKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) SetKeySet(ctx context.Context, raw []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, jwksKey, raw, ttl).Err()
}
