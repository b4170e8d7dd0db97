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

package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherflow/internal/dashboard/model"
)

func TestObserveHTTP(t *testing.T) {
	c := httpRequestsTotal.WithLabelValues("GET", "GET /api/pipelines", "200")
	before := testutil.ToFloat64(c)
	ObserveHTTP("GET", "GET /api/pipelines", 200, 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestStoreObserver(t *testing.T) {
	ops := storeOpsTotal.WithLabelValues("update")
	errs := storeOpErrorsTotal.WithLabelValues("update")
	beforeOps, beforeErrs := testutil.ToFloat64(ops), testutil.ToFloat64(errs)

	var obs StoreObserver
	obs.ObserveStoreOp("update", time.Millisecond, nil)
	obs.ObserveStoreOp("update", time.Millisecond, errors.New("boom"))

	assert.Equal(t, beforeOps+2, testutil.ToFloat64(ops))
	assert.Equal(t, beforeErrs+1, testutil.ToFloat64(errs))
}

func TestObserveTransition(t *testing.T) {
	c := pipelineTransitionsTotal.WithLabelValues("start", OutcomeNoop)
	before := testutil.ToFloat64(c)
	ObserveTransition("start", OutcomeNoop)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestObservePipelines(t *testing.T) {
	ObservePipelines([]model.Pipeline{
		{ID: "a", Status: model.PipelineRunning, DataIngested: 10.5},
		{ID: "b", Status: model.PipelineRunning, DataIngested: 1},
		{ID: "c", Status: model.PipelineError, DataIngested: 0.25},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(pipelinesByStatus.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pipelinesByStatus.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pipelinesByStatus.WithLabelValues("stopped")))
	assert.Equal(t, 11.75, testutil.ToFloat64(dataIngestedMB))

	ObservePipelines(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(pipelinesByStatus.WithLabelValues("running")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveTransition("stop", OutcomeChanged)
	srv := httptest.NewServer(NewMetricsServer("").Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `aetherflow_pipeline_transitions_total{action="stop",outcome="changed"}`)
}
