// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"context"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"

	"aetherflow/internal/common/aferrors"
)

// DefaultTxMaxAttempts bounds how often an optimistic transaction function is re-run
// after another client modified one of its watched keys.
const DefaultTxMaxAttempts = 16

// RedisStore stores each value as a plain Redis string.
//
// Update uses WATCH/MULTI/EXEC: the watched keys are read inside the transaction
// function, the staged writes are sent in one MULTI block, and EXEC fails if any
// watched key changed in between. In that case the function is run again on fresh
// data, at most maxAttempts times.
type RedisStore struct {
	client      redis.UniversalClient
	maxAttempts int
}

// NewRedisStore returns a store over the given client. maxAttempts <= 0 selects
// DefaultTxMaxAttempts.
func NewRedisStore(client redis.UniversalClient, maxAttempts int) *RedisStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultTxMaxAttempts
	}
	return &RedisStore{client: client, maxAttempts: maxAttempts}
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func redisGet(ctx context.Context, c redisGetter, key string) ([]byte, error) {
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return b, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return redisGet(ctx, r.client, key)
}

func (r *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis del %s", key)
	}
	return n > 0, nil
}

func (r *RedisStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		var fnErr error
		err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := newStagedTx(func(key string) ([]byte, error) {
				return redisGet(ctx, rtx, key)
			})
			if fnErr = fn(tx); fnErr != nil {
				return fnErr
			}
			if tx.empty() {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				tx.each(func(key string, w stagedWrite) {
					if w.deleted {
						pipe.Del(ctx, key)
					} else {
						pipe.Set(ctx, key, w.value, 0)
					}
				})
				return nil
			})
			return err
		}, keys...)
		switch {
		case err == nil:
			return nil
		case fnErr != nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return errors.Wrap(err, "redis transaction")
		}
	}
	return errors.WithStack(&aferrors.ErrConflict{Keys: keys, Attempts: r.maxAttempts})
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
