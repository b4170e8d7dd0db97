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
	"fmt"
	"math"
	"time"

	"aetherflow/internal/dashboard/model"
)

const (
	dataFlowBuckets = 8
	dataFlowStep    = 3 * time.Hour
)

// BuildDashboard computes the dashboard payload from the stored pipelines at now.
//
// The data-flow chart has one point per 3 hour bucket ending at the last full hour.
// A bucket's volume is what the running pipelines ingested during it, counting from
// their stored last activity.
func BuildDashboard(stored []model.Pipeline, now time.Time) model.DashboardMetrics {
	now = now.UTC()
	simulated := SimulateAll(stored, now)

	var running, failed int
	var total float64
	for _, p := range simulated {
		switch p.Status {
		case model.PipelineRunning:
			running++
		case model.PipelineError:
			failed++
		}
		total += p.DataIngested
	}

	return model.DashboardMetrics{
		Overview: []model.Metric{
			{Name: "Total Pipelines", Value: len(simulated)},
			{Name: "Active Pipelines", Value: running},
			{Name: "Data Ingested (Total)", Value: fmt.Sprintf("%.2f MB", total)},
			{Name: "Errors", Value: failed},
		},
		DataFlow:         dataFlow(stored, now),
		PipelineActivity: simulated,
	}
}

func dataFlow(stored []model.Pipeline, now time.Time) []model.DataFlowPoint {
	last := now.Truncate(time.Hour)
	points := make([]model.DataFlowPoint, dataFlowBuckets)
	for i := range points {
		end := last.Add(-time.Duration(dataFlowBuckets-1-i) * dataFlowStep)
		start := end.Add(-dataFlowStep)
		var mb float64
		for _, p := range stored {
			if p.Status != model.PipelineRunning {
				continue
			}
			mb += overlap(start, end, p.LastActivity, now).Seconds() * IngestionRateMBPerSec
		}
		points[i] = model.DataFlowPoint{
			Time:   end.Format("15:04"),
			Volume: int64(math.Floor(mb)),
		}
	}
	return points
}

// overlap returns the length of the intersection of [aStart, aEnd] and [bStart, bEnd].
func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
