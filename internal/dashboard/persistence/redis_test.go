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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherflow/internal/common/aferrors"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Conformance(t *testing.T) {
	testStoreConformance(t, func(t *testing.T) Store {
		_, client := newMiniredisClient(t)
		// Contended increments may lose the WATCH race many times in a row.
		return NewRedisStore(client, 1000)
	})
}

func TestRedisStore_ValuesAreRedisStrings(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client, 0)
	require.NoError(t, s.Put(context.Background(), "entity:pipeline:pl-1", []byte(`{"id":"pl-1"}`)))

	got, err := mr.Get("entity:pipeline:pl-1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"pl-1"}`, got)
}

func TestNewRedisStore_DefaultAttempts(t *testing.T) {
	_, client := newMiniredisClient(t)
	assert.Equal(t, DefaultTxMaxAttempts, NewRedisStore(client, 0).maxAttempts)
	assert.Equal(t, 3, NewRedisStore(client, 3).maxAttempts)
}

// A writer that changes a watched key between the transaction's read and its EXEC
// forces a re-run; when it does so on every attempt the update gives up with a conflict.
func TestRedisStore_UpdateConflict(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client, 2)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("0")))

	runs := 0
	err := s.Update(ctx, []string{"k"}, func(tx Tx) error {
		runs++
		if _, err := tx.Get("k"); err != nil {
			return err
		}
		require.NoError(t, mr.Set("k", "interloper"))
		tx.Put("k", []byte("mine"))
		return nil
	})

	var conflict *aferrors.ErrConflict
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, 2, conflict.Attempts)
	assert.Equal(t, 2, runs)

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "interloper", got)
}

func TestRedisStore_UpdateRetriesThenSucceeds(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client, 5)
	ctx := context.Background()

	runs := 0
	err := s.Update(ctx, []string{"k"}, func(tx Tx) error {
		runs++
		if runs == 1 {
			require.NoError(t, mr.Set("k", "interloper"))
		}
		tx.Put("k", []byte("mine"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, runs)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "mine", string(got))
}

func TestRedisStore_ServerDownPropagates(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client, 0)
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrKeyNotFound))
	assert.Error(t, s.Put(context.Background(), "k", []byte("v")))
}
