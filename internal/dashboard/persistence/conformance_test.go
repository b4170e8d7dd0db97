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

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreConformance exercises the Store contract every adapter must honor.
func testStoreConformance(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "missing")
		assert.True(t, errors.Is(err, ErrKeyNotFound), "got %v", err)
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "k", []byte(`{"v":1}`)))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `{"v":1}`, string(got))

		require.NoError(t, s.Put(ctx, "k", []byte(`{"v":2}`)))
		got, err = s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(got))
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "k", []byte("x")))

		existed, err := s.Delete(ctx, "k")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.Delete(ctx, "k")
		require.NoError(t, err)
		assert.False(t, existed)

		_, err = s.Get(ctx, "k")
		assert.True(t, errors.Is(err, ErrKeyNotFound))
	})

	t.Run("UpdateCommitsAllWrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "gone", []byte("x")))

		err := s.Update(ctx, []string{"a", "b", "gone"}, func(tx Tx) error {
			tx.Put("a", []byte("1"))
			tx.Put("b", []byte("2"))
			tx.Delete("gone")
			// Reads observe the transaction's own writes.
			v, err := tx.Get("a")
			if err != nil {
				return err
			}
			if string(v) != "1" {
				return errors.Errorf("read-your-writes: got %q", v)
			}
			if _, err := tx.Get("gone"); !errors.Is(err, ErrKeyNotFound) {
				return errors.Errorf("deleted key still visible: %v", err)
			}
			return nil
		})
		require.NoError(t, err)

		a, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "1", string(a))
		b, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "2", string(b))
		_, err = s.Get(ctx, "gone")
		assert.True(t, errors.Is(err, ErrKeyNotFound))
	})

	t.Run("UpdateErrorDiscardsWrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "a", []byte("old")))
		boom := errors.New("boom")

		err := s.Update(ctx, []string{"a", "b"}, func(tx Tx) error {
			tx.Put("a", []byte("new"))
			tx.Put("b", []byte("new"))
			return boom
		})
		assert.True(t, errors.Is(err, boom), "got %v", err)

		a, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "old", string(a))
		_, err = s.Get(ctx, "b")
		assert.True(t, errors.Is(err, ErrKeyNotFound))
	})

	t.Run("ConcurrentIncrementsAreSerialized", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const workers = 8
		const perWorker = 5

		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					errs <- s.Update(ctx, []string{"counter"}, func(tx Tx) error {
						v, err := tx.Get("counter")
						if errors.Is(err, ErrKeyNotFound) {
							v = []byte{}
						} else if err != nil {
							return err
						}
						tx.Put("counter", append(v, 'x'))
						return nil
					})
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		v, err := s.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Len(t, v, workers*perWorker)
	})
}
