// Package redis provides the Redis client setup for the store.
package redis

import (
	"context"
	"time"

	redigo "github.com/redis/go-redis/v9"

	config "github.com/dafproject/daf/config/utils"
)

// New dials the store and verifies the connection.
func New(ctx context.Context, config *config.Redis) (*redigo.Client, error) {
	client := redigo.NewClient(&redigo.Options{
		Addr:            config.Addr(),
		Password:        config.Password,
		DB:              0,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 1 * time.Second,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return client, nil
}
