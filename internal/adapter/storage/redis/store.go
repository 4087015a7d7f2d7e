// Package redis implements the store facade on a Redis connection.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dafproject/daf/internal/core/port"
)

const (
	opTimeout      = 5 * time.Second
	reconnectDelay = 500 * time.Millisecond
)

// Store adapts a single go-redis client to port.Store. One connection per
// instance; on transport failure it attempts one synchronous reconnect and
// propagates the original error. Not thread-safe by contract, callers
// serialize or hold one per goroutine.
type Store struct {
	client *redis.Client
	opts   *redis.Options
	log    *zap.Logger
}

func NewStore(client *redis.Client, log *zap.Logger) *Store {
	return &Store{
		client: client,
		opts:   client.Options(),
		log:    log,
	}
}

func (s *Store) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// fail records a transport failure, tries one reconnect, and returns the
// original error. redis.Nil and context errors are not transport failures.
func (s *Store) fail(err error) error {
	if err == nil || errors.Is(err, redis.Nil) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.log.Warn("store operation failed, reconnecting", zap.Error(err))
	time.Sleep(reconnectDelay)
	s.client.Close()
	s.client = redis.NewClient(s.opts)
	if pingErr := s.client.Ping(context.Background()).Err(); pingErr != nil {
		s.log.Error("store reconnect failed", zap.Error(pingErr))
	}
	return err
}

// notFound maps redis.Nil onto the port sentinel.
func notFound(err error) error {
	if errors.Is(err, redis.Nil) {
		return port.ErrNotFound
	}
	return err
}

// Strings

func (s *Store) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.Set(ctx, key, value, 0).Err())
}

func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.Get(ctx, key).Result()
	return v, notFound(s.fail(err))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.Del(ctx, key).Err())
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, s.fail(err)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.Expire(ctx, key, ttl).Err())
}

// Hashes

func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HSetAll(ctx context.Context, key string, fields map[string]string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	args := make(map[string]interface{}, len(fields))
	for f, v := range fields {
		args[f] = v
	}
	return s.fail(s.client.HSet(ctx, key, args).Err())
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.HGet(ctx, key, field).Result()
	return v, notFound(s.fail(err))
}

func (s *Store) HDel(ctx context.Context, key, field string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.HDel(ctx, key, field).Err())
}

func (s *Store) HExists(ctx context.Context, key, field string) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	ok, err := s.client.HExists(ctx, key, field).Result()
	return ok, s.fail(err)
}

func (s *Store) HKeys(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.HKeys(ctx, key).Result()
	return v, s.fail(err)
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.HGetAll(ctx, key).Result()
	return v, s.fail(err)
}

// Lists

func (s *Store) LPush(ctx context.Context, key, value string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.LPush(ctx, key, value).Err())
}

func (s *Store) RPush(ctx context.Context, key, value string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.RPush(ctx, key, value).Err())
}

func (s *Store) LPop(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.LPop(ctx, key).Result()
	return v, notFound(s.fail(err))
}

func (s *Store) RPop(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.RPop(ctx, key).Result()
	return v, notFound(s.fail(err))
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := s.client.LLen(ctx, key).Result()
	return n, s.fail(err)
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.LRange(ctx, key, start, stop).Result()
	return v, s.fail(err)
}

func (s *Store) LRem(ctx context.Context, key string, count int64, value string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.LRem(ctx, key, count, value).Err())
}

// Sets

func (s *Store) SAdd(ctx context.Context, key, member string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.SAdd(ctx, key, member).Err())
}

func (s *Store) SRem(ctx context.Context, key, member string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.SRem(ctx, key, member).Err())
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	return ok, s.fail(err)
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.SMembers(ctx, key).Result()
	return v, s.fail(err)
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := s.client.SCard(ctx, key).Result()
	return n, s.fail(err)
}

// Counters

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := s.client.Incr(ctx, key).Result()
	return n, s.fail(err)
}

func (s *Store) Decr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := s.client.Decr(ctx, key).Result()
	return n, s.fail(err)
}

func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	return n, s.fail(err)
}

// Control

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.Ping(ctx).Err())
}

func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	v, err := s.client.Keys(ctx, pattern).Result()
	return v, s.fail(err)
}

func (s *Store) FlushAll(ctx context.Context) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.fail(s.client.FlushAll(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}
