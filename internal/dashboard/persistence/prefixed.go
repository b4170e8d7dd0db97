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

import "context"

// PrefixedStore namespaces every key of the wrapped store with "<prefix>:", so several
// deployments can share one Redis database or SQL table.
type PrefixedStore struct {
	inner  Store
	prefix string
}

// WithKeyPrefix returns inner unchanged when prefix is empty.
func WithKeyPrefix(inner Store, prefix string) Store {
	if prefix == "" {
		return inner
	}
	return &PrefixedStore{inner: inner, prefix: prefix + ":"}
}

func (p *PrefixedStore) key(k string) string { return p.prefix + k }

func (p *PrefixedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.key(key))
}

func (p *PrefixedStore) Put(ctx context.Context, key string, value []byte) error {
	return p.inner.Put(ctx, p.key(key), value)
}

func (p *PrefixedStore) Delete(ctx context.Context, key string) (bool, error) {
	return p.inner.Delete(ctx, p.key(key))
}

type prefixedTx struct {
	tx Tx
	p  *PrefixedStore
}

func (t prefixedTx) Get(key string) ([]byte, error) { return t.tx.Get(t.p.key(key)) }
func (t prefixedTx) Put(key string, value []byte)   { t.tx.Put(t.p.key(key), value) }
func (t prefixedTx) Delete(key string)              { t.tx.Delete(t.p.key(key)) }

func (p *PrefixedStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = p.key(k)
	}
	return p.inner.Update(ctx, prefixed, func(tx Tx) error {
		return fn(prefixedTx{tx: tx, p: p})
	})
}

func (p *PrefixedStore) Close() error { return p.inner.Close() }
