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

// Package model defines the dashboard's entity records and API payload shapes.
package model

import "time"

type DataSourceType string

const (
	DataSourceAS400      DataSourceType = "AS400"
	DataSourcePostgreSQL DataSourceType = "PostgreSQL"
	DataSourceMySQL      DataSourceType = "MySQL"
	DataSourceMongoDB    DataSourceType = "MongoDB"
)

type DestinationType string

const (
	DestinationSnowflake  DestinationType = "Snowflake"
	DestinationBigQuery   DestinationType = "BigQuery"
	DestinationRedshift   DestinationType = "Redshift"
	DestinationDatabricks DestinationType = "Databricks"
)

// ConnectionStatus is the last known reachability of a source or destination.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

type PipelineStatus string

const (
	PipelineRunning  PipelineStatus = "running"
	PipelineStopped  PipelineStatus = "stopped"
	PipelineError    PipelineStatus = "error"
	PipelineStarting PipelineStatus = "starting"
)

type Schedule string

const (
	ScheduleRealTime Schedule = "real-time"
	ScheduleHourly   Schedule = "hourly"
	ScheduleDaily    Schedule = "daily"
	ScheduleWeekly   Schedule = "weekly"
)

type DataSource struct {
	ID       string           `json:"id" yaml:"id"`
	Name     string           `json:"name" yaml:"name"`
	Type     DataSourceType   `json:"type" yaml:"type"`
	LastSync time.Time        `json:"lastSync" yaml:"-"`
	Status   ConnectionStatus `json:"status" yaml:"status"`
}

func (d DataSource) EntityID() string { return d.ID }

type DataDestination struct {
	ID     string           `json:"id" yaml:"id"`
	Name   string           `json:"name" yaml:"name"`
	Type   DestinationType  `json:"type" yaml:"type"`
	Status ConnectionStatus `json:"status" yaml:"status"`
}

func (d DataDestination) EntityID() string { return d.ID }

// Pipeline moves data from a source to a destination. DataIngested is in MB.
type Pipeline struct {
	ID                  string         `json:"id" yaml:"id"`
	Name                string         `json:"name" yaml:"name"`
	SourceID            string         `json:"sourceId" yaml:"sourceId"`
	DestinationID       string         `json:"destinationId" yaml:"destinationId"`
	Status              PipelineStatus `json:"status" yaml:"status"`
	DataIngested        float64        `json:"dataIngested" yaml:"dataIngested"`
	LastActivity        time.Time      `json:"lastActivity" yaml:"-"`
	TransformationRules []string       `json:"transformationRules" yaml:"transformationRules"`
	Schedule            Schedule       `json:"schedule" yaml:"schedule"`
}

func (p Pipeline) EntityID() string { return p.ID }

// Metric is one headline number of the dashboard overview. Value is either a
// number or a preformatted string.
type Metric struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// DataFlowPoint is one bucket of the data-flow chart; Time is an "HH:MM" label.
type DataFlowPoint struct {
	Time   string `json:"time"`
	Volume int64  `json:"volume"`
}

type DashboardMetrics struct {
	Overview         []Metric        `json:"overview"`
	DataFlow         []DataFlowPoint `json:"dataFlow"`
	PipelineActivity []Pipeline      `json:"pipelineActivity"`
}

// ApiResponse is the envelope of every API response.
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ConnectionTestResult is returned by the data source and destination test routes.
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeleteResult is returned by every delete route.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
