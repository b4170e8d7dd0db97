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

// Package api implements the JSON HTTP API of the dashboard. Every response is an
// ApiResponse envelope; handlers translate requests into entity store, simulation
// and dashboard calls.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"aetherflow/internal/common/aferrors"
	"aetherflow/internal/common/logging"
	"aetherflow/internal/dashboard/core"
	"aetherflow/internal/dashboard/model"
	"aetherflow/internal/dashboard/persistence"
	"aetherflow/internal/sinks"
)

// Server handles the HTTP requests of the dashboard API.
type Server struct {
	stores   *core.Stores
	engine   *core.Engine
	clock    clock.PassiveClock
	validate *validator.Validate
	activity sinks.ActivitySink
	metrics  http.Handler
	newID    func() string
	seed     *model.SeedSet
	log      *logrus.Entry
}

type Option func(*Server)

// WithActivitySink records every mutation and pipeline transition to sink.
func WithActivitySink(sink sinks.ActivitySink) Option {
	return func(s *Server) { s.activity = sink }
}

// WithMetricsHandler serves h on /metrics of the API mux.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithIDGenerator replaces the random UUID generator used for new entities.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) { s.newID = fn }
}

// WithSeed replaces the embedded sample dataset.
func WithSeed(set model.SeedSet) Option {
	return func(s *Server) { s.seed = &set }
}

// WithLogger sets the entry handlers and the request middleware log to.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates an API server over store. clk drives creation timestamps, the
// ingestion simulation and the timestamps of the embedded sample dataset.
func NewServer(store persistence.Store, clk clock.PassiveClock, opts ...Option) (*Server, error) {
	s := &Server{
		clock:    clk,
		validate: newValidator(),
		activity: sinks.NopActivitySink{},
		newID:    uuid.NewString,
		log:      logging.Component("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == nil {
		set, err := model.Seed(clk.Now())
		if err != nil {
			return nil, err
		}
		s.seed = &set
	}
	s.stores = core.NewStores(store, *s.seed)
	s.engine = core.NewEngine(s.stores.Pipelines, clk)
	return s, nil
}

// Stores exposes the entity stores the server works on.
func (s *Server) Stores() *core.Stores { return s.stores }

func (s *Server) now() time.Time { return s.clock.Now().UTC() }

// RegisterRoutes sets up the API routes on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	sources := entityRoutes[model.DataSource]{s: s, store: s.stores.DataSources, label: "Data source"}
	mux.HandleFunc("GET /api/data-sources", sources.list)
	mux.HandleFunc("POST /api/data-sources", s.handleCreateDataSource)
	mux.HandleFunc("PUT /api/data-sources/{id}", s.handleUpdateDataSource)
	mux.HandleFunc("DELETE /api/data-sources/{id}", sources.delete)
	mux.HandleFunc("POST /api/data-sources/{id}/test", sources.test)

	dests := entityRoutes[model.DataDestination]{s: s, store: s.stores.DataDestinations, label: "Data destination"}
	mux.HandleFunc("GET /api/data-destinations", dests.list)
	mux.HandleFunc("POST /api/data-destinations", s.handleCreateDataDestination)
	mux.HandleFunc("PUT /api/data-destinations/{id}", s.handleUpdateDataDestination)
	mux.HandleFunc("DELETE /api/data-destinations/{id}", dests.delete)
	mux.HandleFunc("POST /api/data-destinations/{id}/test", dests.test)

	pipelines := entityRoutes[model.Pipeline]{s: s, store: s.stores.Pipelines, label: "Pipeline"}
	mux.HandleFunc("GET /api/pipelines", s.handleListPipelines)
	mux.HandleFunc("POST /api/pipelines", s.handleCreatePipeline)
	mux.HandleFunc("PUT /api/pipelines/{id}", s.handleUpdatePipeline)
	mux.HandleFunc("DELETE /api/pipelines/{id}", pipelines.delete)
	mux.HandleFunc("POST /api/pipelines/{id}/start", s.handleStartPipeline)
	mux.HandleFunc("POST /api/pipelines/{id}/stop", s.handleStopPipeline)

	mux.HandleFunc("GET /api/dashboard-metrics", s.handleDashboardMetrics)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns the API routes wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.withRequestContext(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, model.ApiResponse{Success: false, Error: "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, body model.ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, model.ApiResponse{Success: true, Data: data})
}

// writeError maps err to a status code and writes its public message. notFoundMsg
// replaces the message of not-found errors. Server errors are logged with their stack.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	status := aferrors.HTTPStatusFromError(err)
	msg := err.Error()
	var invalid *aferrors.ErrInvalidArgument
	switch {
	case status == http.StatusNotFound && notFoundMsg != "":
		msg = notFoundMsg
	case errors.As(err, &invalid) && invalid.Message != "":
		msg = invalid.Message
	}
	if status >= http.StatusInternalServerError {
		logging.WithStacktrace(s.requestLog(r), err).Error("request failed")
	}
	writeJSON(w, status, model.ApiResponse{Success: false, Error: msg})
}

// decodeBody reads a JSON request body into dst and validates it.
func (s *Server) decodeBody(r *http.Request, dst interface{}, requiredMsg string) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.WithStack(&aferrors.ErrInvalidArgument{Name: "body", Value: "", Message: "Invalid JSON body"})
	}
	return s.validateRequest(dst, requiredMsg)
}

func (s *Server) record(r *http.Request, ev sinks.ActivityEvent) {
	ev.Time = s.now()
	ev.RequestID = RequestID(r.Context())
	s.activity.Append(ev)
}
