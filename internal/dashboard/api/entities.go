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

package api

import (
	"net/http"

	"aetherflow/internal/dashboard/core"
	"aetherflow/internal/dashboard/model"
	"aetherflow/internal/sinks"
)

// entityRoutes implements the routes shared by every entity kind.
type entityRoutes[T core.Entity] struct {
	s     *Server
	store *core.EntityStore[T]
	label string
}

func (e entityRoutes[T]) notFoundMsg() string { return e.label + " not found" }

func (e entityRoutes[T]) list(w http.ResponseWriter, r *http.Request) {
	items, err := listSeeded(r, e.store)
	if err != nil {
		e.s.writeError(w, r, err, "")
		return
	}
	writeOK(w, items)
}

func (e entityRoutes[T]) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := e.store.Delete(r.Context(), id)
	if err != nil {
		e.s.writeError(w, r, err, "")
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, model.ApiResponse{Error: e.notFoundMsg()})
		return
	}
	e.s.record(r, sinks.ActivityEvent{Kind: e.store.Name(), EntityID: id, Action: "delete"})
	writeOK(w, model.DeleteResult{ID: id, Deleted: true})
}

func (e entityRoutes[T]) test(w http.ResponseWriter, r *http.Request) {
	ok, err := e.store.Exists(r.Context(), r.PathValue("id"))
	if err != nil {
		e.s.writeError(w, r, err, "")
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, model.ApiResponse{Error: e.notFoundMsg()})
		return
	}
	writeOK(w, model.ConnectionTestResult{Success: true, Message: "Connection successful"})
}

// listSeeded seeds an empty kind before listing it.
func listSeeded[T core.Entity](r *http.Request, store *core.EntityStore[T]) ([]T, error) {
	if _, err := store.EnsureSeed(r.Context()); err != nil {
		return nil, err
	}
	return store.List(r.Context())
}

type dataSourceRequest struct {
	Name   string                 `json:"name" validate:"required"`
	Type   model.DataSourceType   `json:"type" validate:"required,oneof=AS400 PostgreSQL MySQL MongoDB"`
	Status model.ConnectionStatus `json:"status" validate:"omitempty,oneof=connected disconnected"`
}

func (s *Server) handleCreateDataSource(w http.ResponseWriter, r *http.Request) {
	var req dataSourceRequest
	if err := s.decodeBody(r, &req, "Name and type are required"); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	created, err := s.stores.DataSources.Create(r.Context(), model.DataSource{
		ID:       s.newID(),
		Name:     req.Name,
		Type:     req.Type,
		LastSync: s.now(),
		Status:   model.StatusDisconnected,
	})
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	s.record(r, sinks.ActivityEvent{Kind: core.DataSourceEntity, EntityID: created.ID, Action: "create"})
	writeOK(w, created)
}

func (s *Server) handleUpdateDataSource(w http.ResponseWriter, r *http.Request) {
	var req dataSourceRequest
	if err := s.decodeBody(r, &req, "Name and type are required"); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	id := r.PathValue("id")
	updated, err := s.stores.DataSources.Update(r.Context(), id, func(ds model.DataSource) (model.DataSource, error) {
		ds.Name = req.Name
		ds.Type = req.Type
		if req.Status != "" {
			ds.Status = req.Status
		}
		return ds, nil
	})
	if err != nil {
		s.writeError(w, r, err, "Data source not found")
		return
	}
	s.record(r, sinks.ActivityEvent{Kind: core.DataSourceEntity, EntityID: id, Action: "update"})
	writeOK(w, updated)
}

type dataDestinationRequest struct {
	Name   string                 `json:"name" validate:"required"`
	Type   model.DestinationType  `json:"type" validate:"required,oneof=Snowflake BigQuery Redshift Databricks"`
	Status model.ConnectionStatus `json:"status" validate:"omitempty,oneof=connected disconnected"`
}

func (s *Server) handleCreateDataDestination(w http.ResponseWriter, r *http.Request) {
	var req dataDestinationRequest
	if err := s.decodeBody(r, &req, "Name and type are required"); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	created, err := s.stores.DataDestinations.Create(r.Context(), model.DataDestination{
		ID:     s.newID(),
		Name:   req.Name,
		Type:   req.Type,
		Status: model.StatusDisconnected,
	})
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	s.record(r, sinks.ActivityEvent{Kind: core.DataDestinationEntity, EntityID: created.ID, Action: "create"})
	writeOK(w, created)
}

func (s *Server) handleUpdateDataDestination(w http.ResponseWriter, r *http.Request) {
	var req dataDestinationRequest
	if err := s.decodeBody(r, &req, "Name and type are required"); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	id := r.PathValue("id")
	updated, err := s.stores.DataDestinations.Update(r.Context(), id, func(dd model.DataDestination) (model.DataDestination, error) {
		dd.Name = req.Name
		dd.Type = req.Type
		if req.Status != "" {
			dd.Status = req.Status
		}
		return dd, nil
	})
	if err != nil {
		s.writeError(w, r, err, "Data destination not found")
		return
	}
	s.record(r, sinks.ActivityEvent{Kind: core.DataDestinationEntity, EntityID: id, Action: "update"})
	writeOK(w, updated)
}
