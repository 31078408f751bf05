// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/luxfi/ids"
)

const redisTimeout = 5 * time.Second

var _ RelayerDatabase = (*RedisDatabase)(nil)

// RedisDatabase stores relayer state in redis so that several relayer
// instances can share it.
type RedisDatabase struct {
	client *redis.Client
}

// NewRedisDatabase connects to the redis server at url.
func NewRedisDatabase(url string) (*RedisDatabase, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisDatabase{client: client}, nil
}

func (r *RedisDatabase) Get(relayerID ids.ID, key DataKey) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	v, err := r.client.Get(ctx, string(storageKey(relayerID, key))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (r *RedisDatabase) Put(relayerID ids.ID, key DataKey, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return r.client.Set(ctx, string(storageKey(relayerID, key)), value, 0).Err()
}

func (r *RedisDatabase) Close() error {
	return r.client.Close()
}
