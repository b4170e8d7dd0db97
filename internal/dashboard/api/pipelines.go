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
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"aetherflow/internal/common/aferrors"
	"aetherflow/internal/dashboard/core"
	"aetherflow/internal/dashboard/model"
	"aetherflow/internal/dashboard/telemetry"
	"aetherflow/internal/sinks"
)

const (
	pipelineRequiredMsg = "Name, sourceId, and destinationId are required"
	pipelineNotFoundMsg = "Pipeline not found"
)

// pipelineRequest is the body of pipeline create and update. Absent or empty
// optional fields keep their default (create) or current value (update).
type pipelineRequest struct {
	Name                string         `json:"name" validate:"required"`
	SourceID            string         `json:"sourceId" validate:"required"`
	DestinationID       string         `json:"destinationId" validate:"required"`
	TransformationRules *[]string      `json:"transformationRules"`
	Schedule            model.Schedule `json:"schedule" validate:"omitempty,oneof=real-time hourly daily weekly"`
}

func (req pipelineRequest) schedule() (model.Schedule, bool) {
	return req.Schedule, req.Schedule != ""
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	stored, err := listSeeded(r, s.stores.Pipelines)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	simulated := core.SimulateAll(stored, s.now())
	telemetry.ObservePipelines(simulated)
	writeOK(w, simulated)
}

func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := s.decodeBody(r, &req, pipelineRequiredMsg); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	p := model.Pipeline{
		ID:                  s.newID(),
		Name:                req.Name,
		SourceID:            req.SourceID,
		DestinationID:       req.DestinationID,
		Status:              model.PipelineStopped,
		DataIngested:        0,
		LastActivity:        s.now(),
		TransformationRules: []string{},
		Schedule:            model.ScheduleRealTime,
	}
	if req.TransformationRules != nil && *req.TransformationRules != nil {
		p.TransformationRules = *req.TransformationRules
	}
	if sched, ok := req.schedule(); ok {
		p.Schedule = sched
	}
	created, err := s.stores.Pipelines.Create(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	s.record(r, sinks.ActivityEvent{Kind: core.PipelineEntity, EntityID: created.ID, Action: "create", ToStatus: string(created.Status)})
	writeOK(w, created)
}

func (s *Server) handleUpdatePipeline(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := s.decodeBody(r, &req, pipelineRequiredMsg); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	id := r.PathValue("id")
	updated, err := s.stores.Pipelines.Update(r.Context(), id, func(p model.Pipeline) (model.Pipeline, error) {
		p.Name = req.Name
		p.SourceID = req.SourceID
		p.DestinationID = req.DestinationID
		if req.TransformationRules != nil && *req.TransformationRules != nil {
			p.TransformationRules = *req.TransformationRules
		}
		if sched, ok := req.schedule(); ok {
			p.Schedule = sched
		}
		return p, nil
	})
	if err != nil {
		s.writeError(w, r, err, pipelineNotFoundMsg)
		return
	}
	s.record(r, sinks.ActivityEvent{Kind: core.PipelineEntity, EntityID: id, Action: "update"})
	writeOK(w, updated)
}

func (s *Server) handleStartPipeline(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.engine.Start)
}

func (s *Server) handleStopPipeline(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.engine.Stop)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (core.Transition, error)) {
	id := r.PathValue("id")
	t, err := fn(r.Context(), id)
	if err != nil {
		outcome := telemetry.OutcomeError
		if aferrors.IsNotFound(err) {
			outcome = telemetry.OutcomeNotFound
		}
		telemetry.ObserveTransition(t.Action, outcome)
		s.writeError(w, r, err, pipelineNotFoundMsg)
		return
	}
	if !t.Changed {
		telemetry.ObserveTransition(t.Action, telemetry.OutcomeNoop)
		writeOK(w, t.Pipeline)
		return
	}
	telemetry.ObserveTransition(t.Action, telemetry.OutcomeChanged)
	ingested := t.Pipeline.DataIngested
	s.record(r, sinks.ActivityEvent{
		Kind:         core.PipelineEntity,
		EntityID:     id,
		Action:       t.Action,
		FromStatus:   string(t.From),
		ToStatus:     string(t.Pipeline.Status),
		DataIngested: &ingested,
	})
	s.requestLog(r).WithFields(logrus.Fields{
		"pipeline": id,
		"from":     t.From,
		"to":       t.Pipeline.Status,
	}).Infof("pipeline %s", t.Action)
	writeOK(w, t.Pipeline)
}

func (s *Server) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	stored, err := listSeeded(r, s.stores.Pipelines)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	metrics := core.BuildDashboard(stored, s.now())
	telemetry.ObservePipelines(metrics.PipelineActivity)
	writeOK(w, metrics)
}
