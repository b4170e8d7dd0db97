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
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// CachedStore puts a local LRU cache in front of another Store.
//
// Reads are served from the cache when possible; every write made through this
// CachedStore (including committed Update writes) updates the cache. Writes made by
// other processes are not observed, so only enable it when this process is the
// only writer.
//
// A read that misses fills the cache only if no write to its key went through
// while it was reading the inner store.
type CachedStore struct {
	inner Store
	cache *lru.Cache

	mu    sync.Mutex
	fills map[string]*pendingFill
}

// pendingFill tracks the reads of one key that are in flight against the inner store.
type pendingFill struct {
	gen     uint64
	readers int
}

// NewCachedStore wraps inner with an LRU cache holding up to size values.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &CachedStore{inner: inner, cache: cache, fills: make(map[string]*pendingFill)}, nil
}

func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return cloneBytes(v.([]byte)), nil
	}

	c.mu.Lock()
	fill, ok := c.fills[key]
	if !ok {
		fill = &pendingFill{}
		c.fills[key] = fill
	}
	fill.readers++
	gen := fill.gen
	c.mu.Unlock()

	v, err := c.inner.Get(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	fill.readers--
	if fill.readers == 0 {
		delete(c.fills, key)
	}
	if err != nil {
		return nil, err
	}
	if fill.gen == gen {
		c.cache.Add(key, cloneBytes(v))
	}
	return v, nil
}

// written records a write to key and applies it to the cache. A nil value removes
// the key. In-flight reads of key will not fill the cache afterwards.
func (c *CachedStore) written(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fill, ok := c.fills[key]; ok {
		fill.gen++
	}
	if value == nil {
		c.cache.Remove(key)
		return
	}
	c.cache.Add(key, value)
}

func (c *CachedStore) Put(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Put(ctx, key, value); err != nil {
		c.written(key, nil)
		return err
	}
	c.written(key, cloneBytes(value))
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := c.inner.Delete(ctx, key)
	c.written(key, nil)
	return ok, err
}

// recordingTx remembers the writes of one run of the transaction function.
type recordingTx struct {
	Tx
	writes map[string]stagedWrite
}

func (r *recordingTx) Put(key string, value []byte) {
	r.Tx.Put(key, value)
	r.writes[key] = stagedWrite{value: cloneBytes(value)}
}

func (r *recordingTx) Delete(key string) {
	r.Tx.Delete(key)
	r.writes[key] = stagedWrite{deleted: true}
}

func (c *CachedStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	var last *recordingTx
	err := c.inner.Update(ctx, keys, func(tx Tx) error {
		last = &recordingTx{Tx: tx, writes: make(map[string]stagedWrite)}
		return fn(last)
	})
	if err != nil {
		// The outcome of the writes is unknown; drop anything they may have touched.
		for _, k := range keys {
			c.written(k, nil)
		}
		if last != nil {
			for k := range last.writes {
				c.written(k, nil)
			}
		}
		return err
	}
	if last != nil {
		for k, w := range last.writes {
			if w.deleted {
				c.written(k, nil)
			} else {
				c.written(k, w.value)
			}
		}
	}
	return nil
}

func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
