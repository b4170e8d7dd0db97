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

//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherflow/internal/dashboard/model"
)

// TestE2E_RedisAdapterPersists verifies the real Redis adapter path: a pipeline
// created and started through the API lands under the configured key prefix and
// survives a server restart. Requires a Redis at 127.0.0.1:6379.
func TestE2E_RedisAdapterPersists(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	defer rc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}

	prefix := "aetherflow-e2e-" + time.Now().UTC().Format("150405.000000")
	t.Cleanup(func() {
		keys, _ := rc.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			_ = rc.Del(context.Background(), keys...).Err()
		}
	})
	args := []string{
		"--store_adapter=redis",
		"--redis_addr=127.0.0.1:6379",
		"--store_key_prefix=" + prefix,
		"--store_cache_size=64",
	}

	rs := buildAndStartServer(t, args...)
	var p model.Pipeline
	code, _ := rs.call(t, http.MethodPost, "/api/pipelines", map[string]interface{}{
		"name":          "Redis Pipeline",
		"sourceId":      "ds-1",
		"destinationId": "dd-1",
	}, &p)
	require.Equal(t, http.StatusOK, code)
	code, _ = rs.call(t, http.MethodPost, "/api/pipelines/"+p.ID+"/start", nil, nil)
	require.Equal(t, http.StatusOK, code)

	raw, err := rc.Get(context.Background(), prefix+":entity:pipeline:"+p.ID).Result()
	require.NoError(t, err)
	assert.Contains(t, raw, `"status":"running"`)
	index, err := rc.Get(context.Background(), prefix+":index:pipelines").Result()
	require.NoError(t, err)
	assert.Contains(t, index, p.ID)

	_ = rs.cmd.Process.Kill()
	_, _ = rs.cmd.Process.Wait()

	restarted := buildAndStartServer(t, args...)
	var all []model.Pipeline
	code, _ = restarted.call(t, http.MethodGet, "/api/pipelines", nil, &all)
	require.Equal(t, http.StatusOK, code)
	found := false
	for _, q := range all {
		if q.ID == p.ID {
			found = true
			assert.Equal(t, model.PipelineRunning, q.Status)
		}
	}
	assert.True(t, found, "pipeline %s not listed after restart", p.ID)
}
