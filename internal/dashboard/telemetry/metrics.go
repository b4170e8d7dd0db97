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

// Package telemetry holds the Prometheus collectors of the dashboard service.
//
// Collectors are registered with the default registry in init(); Handler exposes them.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aetherflow/internal/dashboard/model"
)

// Outcomes of a pipeline start/stop request.
const (
	OutcomeChanged  = "changed"
	OutcomeNoop     = "noop"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aetherflow_http_requests_total",
		Help: "HTTP requests served, by method, route pattern and status code",
	}, []string{"method", "route", "code"})
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aetherflow_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	storeOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aetherflow_kv_operations_total",
		Help: "Key-value store operations, by operation",
	}, []string{"op"})
	storeOpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aetherflow_kv_operation_errors_total",
		Help: "Failed key-value store operations, by operation",
	}, []string{"op"})
	storeOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aetherflow_kv_operation_duration_seconds",
		Help:    "Key-value store operation latency, by operation",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"op"})

	pipelineTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aetherflow_pipeline_transitions_total",
		Help: "Pipeline start/stop requests, by action and outcome",
	}, []string{"action", "outcome"})
	pipelinesByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aetherflow_pipelines",
		Help: "Pipelines by status as of the last list or dashboard read",
	}, []string{"status"})
	dataIngestedMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aetherflow_data_ingested_megabytes",
		Help: "Simulated data ingested by all pipelines as of the last list or dashboard read",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration,
		storeOpsTotal, storeOpErrorsTotal, storeOpDuration,
		pipelineTransitionsTotal, pipelinesByStatus, dataIngestedMB,
	)
}

// ObserveHTTP records one served request. route is the mux pattern, not the raw path.
func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// StoreObserver feeds key-value store operations into the kv_* collectors.
// It satisfies persistence.OpObserver.
type StoreObserver struct{}

func (StoreObserver) ObserveStoreOp(op string, elapsed time.Duration, err error) {
	storeOpsTotal.WithLabelValues(op).Inc()
	storeOpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		storeOpErrorsTotal.WithLabelValues(op).Inc()
	}
}

func ObserveTransition(action, outcome string) {
	pipelineTransitionsTotal.WithLabelValues(action, outcome).Inc()
}

var allStatuses = []model.PipelineStatus{
	model.PipelineRunning, model.PipelineStopped, model.PipelineError, model.PipelineStarting,
}

// ObservePipelines sets the status and ingestion gauges from a freshly simulated list.
func ObservePipelines(ps []model.Pipeline) {
	counts := make(map[model.PipelineStatus]int, len(allStatuses))
	var total float64
	for _, p := range ps {
		counts[p.Status]++
		total += p.DataIngested
	}
	for _, s := range allStatuses {
		pipelinesByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	dataIngestedMB.Set(total)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMetricsServer returns a server exposing only /metrics on addr. The caller
// starts and shuts it down.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
