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

// Package persistence provides the key-value substrate the dashboard entities are stored in,
// with adapters for memory, Redis, SQLite and Postgres.
//
// All adapters implement a common Store shape: plain Get/Put/Delete on JSON blobs plus an
// atomic multi-key Update. Update is what lets the entity layer keep a record and its index
// consistent: either every write staged by the transaction function lands, or none does, and
// no watched key is modified by another writer in between.
package persistence

import (
	"context"
	"errors"
	"sort"
)

// ErrKeyNotFound is returned by Get (and Tx.Get) when no value is stored under the key.
var ErrKeyNotFound = errors.New("key not found")

// Store is a durable mapping from string key to opaque value.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes the key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Update runs fn in a transaction. Writes staged on the Tx are committed atomically
	// when fn returns nil and discarded otherwise. keys lists every key fn reads and whose
	// modification by a concurrent writer must abort the transaction.
	//
	// Optimistic adapters may run fn more than once, so fn must not have side effects
	// outside the Tx.
	Update(ctx context.Context, keys []string, fn func(tx Tx) error) error
	Close() error
}

// Tx is the view of the store inside Update. Reads observe the transaction's own
// staged writes.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte)
	Delete(key string)
}

type stagedWrite struct {
	value   []byte
	deleted bool
}

// stagedTx buffers writes until the adapter commits them. Reads fall through to read
// for keys the transaction has not touched.
type stagedTx struct {
	read   func(key string) ([]byte, error)
	writes map[string]stagedWrite
}

func newStagedTx(read func(key string) ([]byte, error)) *stagedTx {
	return &stagedTx{read: read, writes: make(map[string]stagedWrite)}
}

func (t *stagedTx) Get(key string) ([]byte, error) {
	if w, ok := t.writes[key]; ok {
		if w.deleted {
			return nil, ErrKeyNotFound
		}
		return cloneBytes(w.value), nil
	}
	return t.read(key)
}

func (t *stagedTx) Put(key string, value []byte) {
	t.writes[key] = stagedWrite{value: cloneBytes(value)}
}

func (t *stagedTx) Delete(key string) {
	t.writes[key] = stagedWrite{deleted: true}
}

func (t *stagedTx) empty() bool { return len(t.writes) == 0 }

// each visits the staged writes in key order so adapters apply them deterministically.
func (t *stagedTx) each(f func(key string, w stagedWrite)) {
	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f(k, t.writes[k])
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
