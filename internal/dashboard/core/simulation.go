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
	"math"
	"time"

	"k8s.io/utils/clock"

	"aetherflow/internal/dashboard/model"
)

// IngestionRateMBPerSec is the simulated throughput of a running pipeline.
const IngestionRateMBPerSec = 0.5

// round2 rounds to two decimal places, halves away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Simulate returns p as it would look at now if it had been ingesting since its last
// activity. Pipelines that are not running are returned unchanged. Simulate never
// persists anything.
func Simulate(p model.Pipeline, now time.Time) model.Pipeline {
	if p.Status != model.PipelineRunning {
		return p
	}
	elapsed := now.Sub(p.LastActivity).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	p.DataIngested = round2(p.DataIngested + elapsed*IngestionRateMBPerSec)
	p.LastActivity = now
	return p
}

// SimulateAll applies Simulate to every pipeline and returns a new slice.
func SimulateAll(ps []model.Pipeline, now time.Time) []model.Pipeline {
	out := make([]model.Pipeline, len(ps))
	for i, p := range ps {
		out[i] = Simulate(p, now)
	}
	return out
}

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// Transition describes the outcome of a Start or Stop call.
type Transition struct {
	Action   string
	From     model.PipelineStatus
	Changed  bool
	Pipeline model.Pipeline
}

// Engine drives the running/stopped state machine of stored pipelines. Every
// transition settles the simulated ingestion up to the moment of the transition.
type Engine struct {
	pipelines *EntityStore[model.Pipeline]
	clock     clock.PassiveClock
}

func NewEngine(pipelines *EntityStore[model.Pipeline], clk clock.PassiveClock) *Engine {
	return &Engine{pipelines: pipelines, clock: clk}
}

// Now returns the engine clock's current time in UTC.
func (e *Engine) Now() time.Time {
	return e.clock.Now().UTC()
}

// Start marks the pipeline running. A running pipeline is returned as stored.
func (e *Engine) Start(ctx context.Context, id string) (Transition, error) {
	return e.transition(ctx, id, ActionStart, model.PipelineRunning)
}

// Stop marks the pipeline stopped, keeping the data ingested up to now. A stopped
// pipeline is returned as stored.
func (e *Engine) Stop(ctx context.Context, id string) (Transition, error) {
	return e.transition(ctx, id, ActionStop, model.PipelineStopped)
}

func (e *Engine) transition(ctx context.Context, id, action string, target model.PipelineStatus) (Transition, error) {
	current, err := e.pipelines.GetState(ctx, id)
	if err != nil {
		return Transition{Action: action}, err
	}
	if current.Status == target {
		return Transition{Action: action, From: current.Status, Pipeline: current}, nil
	}

	now := e.Now()
	t := Transition{Action: action}
	updated, err := e.pipelines.Update(ctx, id, func(p model.Pipeline) (model.Pipeline, error) {
		t.From = p.Status
		t.Changed = p.Status != target
		if !t.Changed {
			return p, nil
		}
		p = Simulate(p, now)
		p.Status = target
		p.LastActivity = now
		return p, nil
	})
	if err != nil {
		return t, err
	}
	t.Pipeline = updated
	return t, nil
}
