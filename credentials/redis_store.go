package credentials

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

const (
	redisRefreshField = "refresh"
	redisAccessPrefix = "access:"
	redisDataPrefix   = "data:"
)

// RedisStore keeps each account's credentials in a single redis hash, so several
// processes on different hosts can share one account.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces the hash keys. The default is "authsession:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(rs *RedisStore) {
		rs.keyPrefix = prefix
	}
}

func NewRedisStore(client redis.UniversalClient, options ...RedisOption) *RedisStore {
	rs := &RedisStore{
		client:    client,
		keyPrefix: "authsession:",
	}
	for _, opt := range options {
		opt(rs)
	}
	return rs
}

func (rs *RedisStore) hashKey(account Account) string {
	return rs.keyPrefix + account.Key()
}

func (rs *RedisStore) read(ctx context.Context, account Account, field string) (string, error) {
	value, err := rs.client.HGet(ctx, rs.hashKey(account), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "RedisStore.HGet %s", field)
	}
	return value, nil
}

func (rs *RedisStore) write(ctx context.Context, account Account, field, value string) error {
	var err error
	if value == "" {
		err = rs.client.HDel(ctx, rs.hashKey(account), field).Err()
	} else {
		err = rs.client.HSet(ctx, rs.hashKey(account), field, value).Err()
	}
	if err != nil {
		return errors.Wrapf(err, "RedisStore.write %s", field)
	}
	return nil
}

func (rs *RedisStore) PeekAccessToken(ctx context.Context, account Account, tokenType string) (string, error) {
	return rs.read(ctx, account, redisAccessPrefix+tokenType)
}

func (rs *RedisStore) SetAccessToken(ctx context.Context, account Account, tokenType, value string) error {
	return rs.write(ctx, account, redisAccessPrefix+tokenType, value)
}

func (rs *RedisStore) GetRefreshToken(ctx context.Context, account Account) (string, error) {
	return rs.read(ctx, account, redisRefreshField)
}

func (rs *RedisStore) SetRefreshToken(ctx context.Context, account Account, value string) error {
	return rs.write(ctx, account, redisRefreshField, value)
}

func (rs *RedisStore) GetUserData(ctx context.Context, account Account, key string) (string, error) {
	return rs.read(ctx, account, redisDataPrefix+key)
}

func (rs *RedisStore) SetUserData(ctx context.Context, account Account, key, value string) error {
	return rs.write(ctx, account, redisDataPrefix+key, value)
}

func (rs *RedisStore) RemoveAccount(ctx context.Context, account Account) error {
	if err := rs.client.Del(ctx, rs.hashKey(account)).Err(); err != nil {
		return errors.Wrap(err, "RedisStore.Del")
	}
	return nil
}
