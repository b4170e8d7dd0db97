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

package core

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherflow/internal/dashboard/model"
	"aetherflow/internal/dashboard/persistence"
)

func seedPipelines() []model.Pipeline {
	return []model.Pipeline{
		pipeline("pl-1", model.PipelineRunning, 1280, t0),
		pipeline("pl-2", model.PipelineStopped, 540, t0),
	}
}

func TestEnsureSeed_Idempotent(t *testing.T) {
	s, mem := newPipelineStore(t, seedPipelines()...)
	ctx := context.Background()

	seeded, err := s.EnsureSeed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, []string{"pl-1", "pl-2"}, listIDs(t, s))

	seeded, err = s.EnsureSeed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, []string{"pl-1", "pl-2"}, listIDs(t, s))
	assert.Equal(t, 3, mem.Len())
}

func TestEnsureSeed_DoesNotOverwriteExistingData(t *testing.T) {
	s, _ := newPipelineStore(t, seedPipelines()...)
	ctx := context.Background()
	_, err := s.Create(ctx, pipeline("mine", model.PipelineStopped, 0, t0))
	require.NoError(t, err)

	seeded, err := s.EnsureSeed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, []string{"mine"}, listIDs(t, s))
}

func TestEnsureSeed_ReseedsAfterEverythingDeleted(t *testing.T) {
	s, _ := newPipelineStore(t, seedPipelines()...)
	ctx := context.Background()
	_, err := s.EnsureSeed(ctx)
	require.NoError(t, err)
	for _, id := range []string{"pl-1", "pl-2"} {
		_, err := s.Delete(ctx, id)
		require.NoError(t, err)
	}

	seeded, err := s.EnsureSeed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, []string{"pl-1", "pl-2"}, listIDs(t, s))
}

func TestEnsureSeed_NoSeedData(t *testing.T) {
	s, mem := newPipelineStore(t)
	seeded, err := s.EnsureSeed(context.Background())
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, 0, mem.Len())
}

func TestEnsureSeed_ConcurrentFirstCallsSeedOnce(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	defer client.Close()
	s := NewEntityStore(persistence.NewRedisStore(client, 0), PipelineConfig(seedPipelines()))

	const callers = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		count int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seeded, err := s.EnsureSeed(context.Background())
			assert.NoError(t, err)
			if seeded {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"pl-1", "pl-2"}, listIDs(t, s))
}

func TestStores_EnsureSeedAllKinds(t *testing.T) {
	set, err := model.Seed(t0)
	require.NoError(t, err)
	stores := NewStores(persistence.NewMemoryStore(), set)
	ctx := context.Background()

	seeded, err := stores.EnsureSeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{DataSourceEntity, DataDestinationEntity, PipelineEntity}, seeded)

	seeded, err = stores.EnsureSeed(ctx)
	require.NoError(t, err)
	assert.Empty(t, seeded)

	sources, err := stores.DataSources.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 3)
	dests, err := stores.DataDestinations.List(ctx)
	require.NoError(t, err)
	assert.Len(t, dests, 3)
	assert.Equal(t, []string{"pl-1", "pl-2", "pl-3", "pl-4", "pl-5"}, listIDs(t, stores.Pipelines))
}
