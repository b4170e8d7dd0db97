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
)

// Options configures BuildStore. Only the fields of the selected adapter are used.
type Options struct {
	// KeyPrefix namespaces every key ("<prefix>:<key>"); empty disables it.
	KeyPrefix string
	// CacheSize > 0 puts an LRU read cache of that many values in front of the adapter.
	CacheSize int
	// TxMaxAttempts bounds optimistic transaction re-runs (Redis only).
	TxMaxAttempts int

	Redis       RedisOptions
	SQLitePath  string
	PostgresDSN string
	SQLTable    string

	// Observer, when set, receives one call per adapter operation.
	Observer OpObserver
}

// BuildStore constructs a Store based on a string selector.
// Supported adapters:
//   - "memory": in-process map (default)
//   - "redis": go-redis client against Options.Redis
//   - "sqlite": modernc.org/sqlite database at Options.SQLitePath
//   - "postgres": lib/pq pool for Options.PostgresDSN
//
// Decorators are layered as prefix(cache(instrumentation(adapter))).
func BuildStore(ctx context.Context, adapter string, opts Options) (Store, error) {
	var (
		base Store
		err  error
	)
	switch adapter {
	case "", "memory":
		base = NewMemoryStore()
	case "redis":
		if opts.Redis.Addr == "" {
			return nil, errors.New("redis adapter requires an address")
		}
		client := NewRedisClient(opts.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrapf(err, "ping redis at %s", opts.Redis.Addr)
		}
		base = NewRedisStore(client, opts.TxMaxAttempts)
	case "sqlite":
		db, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		if base, err = NewSQLStore(ctx, db, SQLiteDialect, opts.SQLTable); err != nil {
			_ = db.Close()
			return nil, err
		}
	case "postgres":
		db, err := OpenPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if base, err = NewSQLStore(ctx, db, PostgresDialect, opts.SQLTable); err != nil {
			_ = db.Close()
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown store adapter: %s", adapter)
	}

	store := base
	if opts.Observer != nil {
		store = NewInstrumentedStore(store, opts.Observer)
	}
	if opts.CacheSize > 0 {
		if store, err = NewCachedStore(store, opts.CacheSize); err != nil {
			_ = base.Close()
			return nil, err
		}
	}
	return WithKeyPrefix(store, opts.KeyPrefix), nil
}
