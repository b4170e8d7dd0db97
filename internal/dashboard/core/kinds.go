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

	"aetherflow/internal/dashboard/model"
	"aetherflow/internal/dashboard/persistence"
)

const (
	DataSourceEntity      = "dataSource"
	DataSourceIndex       = "dataSources"
	DataDestinationEntity = "dataDestination"
	DataDestinationIndex  = "dataDestinations"
	PipelineEntity        = "pipeline"
	PipelineIndex         = "pipelines"
)

func DataSourceConfig(seed []model.DataSource) EntityConfig[model.DataSource] {
	return EntityConfig[model.DataSource]{
		Name:      DataSourceEntity,
		IndexName: DataSourceIndex,
		InitialState: model.DataSource{
			Type:   model.DataSourceAS400,
			Status: model.StatusDisconnected,
		},
		SeedData: seed,
	}
}

func DataDestinationConfig(seed []model.DataDestination) EntityConfig[model.DataDestination] {
	return EntityConfig[model.DataDestination]{
		Name:      DataDestinationEntity,
		IndexName: DataDestinationIndex,
		InitialState: model.DataDestination{
			Type:   model.DestinationDatabricks,
			Status: model.StatusDisconnected,
		},
		SeedData: seed,
	}
}

func PipelineConfig(seed []model.Pipeline) EntityConfig[model.Pipeline] {
	return EntityConfig[model.Pipeline]{
		Name:      PipelineEntity,
		IndexName: PipelineIndex,
		InitialState: model.Pipeline{
			Status:              model.PipelineStopped,
			TransformationRules: []string{},
			Schedule:            model.ScheduleRealTime,
		},
		SeedData: seed,
	}
}

// Stores bundles the entity stores of the three dashboard kinds over one key-value store.
type Stores struct {
	DataSources      *EntityStore[model.DataSource]
	DataDestinations *EntityStore[model.DataDestination]
	Pipelines        *EntityStore[model.Pipeline]
}

func NewStores(store persistence.Store, seed model.SeedSet) *Stores {
	return &Stores{
		DataSources:      NewEntityStore(store, DataSourceConfig(seed.DataSources)),
		DataDestinations: NewEntityStore(store, DataDestinationConfig(seed.DataDestinations)),
		Pipelines:        NewEntityStore(store, PipelineConfig(seed.Pipelines)),
	}
}

// EnsureSeed seeds every kind whose index is empty and returns the names of the
// kinds it seeded.
func (s *Stores) EnsureSeed(ctx context.Context) ([]string, error) {
	var seeded []string
	for _, f := range []struct {
		name string
		fn   func(context.Context) (bool, error)
	}{
		{DataSourceEntity, s.DataSources.EnsureSeed},
		{DataDestinationEntity, s.DataDestinations.EnsureSeed},
		{PipelineEntity, s.Pipelines.EnsureSeed},
	} {
		ok, err := f.fn(ctx)
		if err != nil {
			return seeded, err
		}
		if ok {
			seeded = append(seeded, f.name)
		}
	}
	return seeded, nil
}
