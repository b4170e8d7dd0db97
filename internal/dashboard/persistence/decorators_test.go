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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts the Gets that reach the wrapped store.
type countingStore struct {
	Store
	mu   sync.Mutex
	gets int
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(ctx, key)
}

func TestCachedStore_Conformance(t *testing.T) {
	testStoreConformance(t, func(t *testing.T) Store {
		s, err := NewCachedStore(NewMemoryStore(), 16)
		require.NoError(t, err)
		return s
	})
}

func TestCachedStore_ServesRepeatedReads(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	s, err := NewCachedStore(inner, 4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, inner.Store.Put(ctx, "k", []byte("v")))
	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", string(got))
	}
	assert.Equal(t, 1, inner.gets)
}

func TestCachedStore_UpdateRefreshesCache(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	s, err := NewCachedStore(inner, 4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "b", []byte("1")))
	require.NoError(t, s.Update(ctx, []string{"a", "b"}, func(tx Tx) error {
		tx.Put("a", []byte("2"))
		tx.Delete("b")
		return nil
	}))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", string(got))
	_, err = s.Get(ctx, "b")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestCachedStore_FailedUpdateDropsKeys(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	s, err := NewCachedStore(inner, 4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	err = s.Update(ctx, []string{"a"}, func(tx Tx) error {
		tx.Put("a", []byte("2"))
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))
	assert.Equal(t, 1, inner.gets, "key should have been re-read from the inner store")
}

// pausingStore holds the first Get of key after it has read the inner store, until
// release is closed.
type pausingStore struct {
	Store
	key     string
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(inner Store, key string) *pausingStore {
	return &pausingStore{Store: inner, key: key, read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := p.Store.Get(ctx, key)
	if key == p.key {
		p.once.Do(func() {
			close(p.read)
			<-p.release
		})
	}
	return v, err
}

// slowRead starts a cache-missing Get of key and returns once it has read the inner
// store. Closing the pausing store's release lets it finish; wait returns its result.
func slowRead(s *CachedStore, inner *pausingStore, key string) (wait func() ([]byte, error)) {
	type result struct {
		v   []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := s.Get(context.Background(), key)
		done <- result{v, err}
	}()
	<-inner.read
	return func() ([]byte, error) {
		r := <-done
		return r.v, r.err
	}
}

func TestCachedStore_ReadRacingUpdateDoesNotCacheStaleValue(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	require.NoError(t, base.Put(ctx, "index:pipelines", []byte(`["a"]`)))
	inner := newPausingStore(base, "index:pipelines")
	s, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	wait := slowRead(s, inner, "index:pipelines")
	require.NoError(t, s.Update(ctx, []string{"index:pipelines"}, func(tx Tx) error {
		tx.Put("index:pipelines", []byte(`["a","b"]`))
		return nil
	}))
	close(inner.release)
	stale, err := wait()
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, string(stale))

	got, err := s.Get(ctx, "index:pipelines")
	require.NoError(t, err)
	stored, err := base.Get(ctx, "index:pipelines")
	require.NoError(t, err)
	assert.Equal(t, string(stored), string(got))
	assert.Equal(t, `["a","b"]`, string(got))
}

func TestCachedStore_ReadRacingDeleteDoesNotResurrectKey(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	require.NoError(t, base.Put(ctx, "entity:pipeline:a", []byte(`{"id":"a"}`)))
	inner := newPausingStore(base, "entity:pipeline:a")
	s, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	wait := slowRead(s, inner, "entity:pipeline:a")
	deleted, err := s.Delete(ctx, "entity:pipeline:a")
	require.NoError(t, err)
	assert.True(t, deleted)
	close(inner.release)
	_, err = wait()
	require.NoError(t, err)

	_, err = s.Get(ctx, "entity:pipeline:a")
	assert.True(t, errors.Is(err, ErrKeyNotFound), "got %v", err)
}

func TestCachedStore_UncontendedReadStillFills(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemoryStore()}
	require.NoError(t, inner.Store.Put(ctx, "k", []byte("v")))
	s, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := s.Get(ctx, "k")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.gets)
	assert.Empty(t, s.fills, "finished reads leave no bookkeeping behind")
}

func TestNewCachedStore_InvalidSize(t *testing.T) {
	_, err := NewCachedStore(NewMemoryStore(), 0)
	assert.Error(t, err)
}

type recordedOp struct {
	op  string
	err error
}

type fakeObserver struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (f *fakeObserver) ObserveStoreOp(op string, elapsed time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, recordedOp{op: op, err: err})
}

func TestInstrumentedStore_ReportsEveryOp(t *testing.T) {
	obs := &fakeObserver{}
	s := NewInstrumentedStore(NewMemoryStore(), obs)
	ctx := context.Background()
	boom := errors.New("boom")

	_, _ = s.Get(ctx, "missing")
	_ = s.Put(ctx, "k", []byte("v"))
	_, _ = s.Delete(ctx, "k")
	_ = s.Update(ctx, []string{"k"}, func(Tx) error { return boom })

	require.Len(t, obs.ops, 4)
	assert.Equal(t, recordedOp{op: "get"}, obs.ops[0], "missing key is not an error")
	assert.Equal(t, recordedOp{op: "put"}, obs.ops[1])
	assert.Equal(t, recordedOp{op: "delete"}, obs.ops[2])
	assert.Equal(t, "update", obs.ops[3].op)
	assert.Equal(t, boom, obs.ops[3].err)
}

func TestPrefixedStore_NamespacesKeys(t *testing.T) {
	mem := NewMemoryStore()
	s := WithKeyPrefix(mem, "aetherflow")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "entity:pipeline:pl-1", []byte("p")))
	require.NoError(t, s.Update(ctx, []string{"index:pipelines"}, func(tx Tx) error {
		tx.Put("index:pipelines", []byte(`["pl-1"]`))
		got, err := tx.Get("entity:pipeline:pl-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "p", string(got))
		return nil
	}))

	raw, err := mem.Get(ctx, "aetherflow:entity:pipeline:pl-1")
	require.NoError(t, err)
	assert.Equal(t, "p", string(raw))
	raw, err = mem.Get(ctx, "aetherflow:index:pipelines")
	require.NoError(t, err)
	assert.Equal(t, `["pl-1"]`, string(raw))

	_, err = mem.Get(ctx, "index:pipelines")
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	existed, err := s.Delete(ctx, "entity:pipeline:pl-1")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestWithKeyPrefix_EmptyIsIdentity(t *testing.T) {
	mem := NewMemoryStore()
	assert.Same(t, mem, WithKeyPrefix(mem, "").(*MemoryStore))
}
