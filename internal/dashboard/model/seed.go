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

package model

import (
	_ "embed"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// SeedSet is the sample dataset written to an empty store.
type SeedSet struct {
	DataSources      []DataSource
	DataDestinations []DataDestination
	Pipelines        []Pipeline
}

type seedFile struct {
	DataSources []struct {
		DataSource  `yaml:",inline"`
		LastSyncAgo time.Duration `yaml:"lastSyncAgo"`
	} `yaml:"dataSources"`
	DataDestinations []DataDestination `yaml:"dataDestinations"`
	Pipelines        []struct {
		Pipeline        `yaml:",inline"`
		LastActivityAgo time.Duration `yaml:"lastActivityAgo"`
	} `yaml:"pipelines"`
}

// Seed materializes the embedded dataset. Timestamps in the file are ages, resolved
// against now.
func Seed(now time.Time) (SeedSet, error) {
	return parseSeed(seedYAML, now)
}

func parseSeed(data []byte, now time.Time) (SeedSet, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return SeedSet{}, errors.Wrap(err, "parse seed dataset")
	}
	now = now.UTC()
	set := SeedSet{
		DataSources:      make([]DataSource, 0, len(f.DataSources)),
		DataDestinations: f.DataDestinations,
		Pipelines:        make([]Pipeline, 0, len(f.Pipelines)),
	}
	for _, s := range f.DataSources {
		ds := s.DataSource
		ds.LastSync = now.Add(-s.LastSyncAgo)
		set.DataSources = append(set.DataSources, ds)
	}
	for _, s := range f.Pipelines {
		p := s.Pipeline
		p.LastActivity = now.Add(-s.LastActivityAgo)
		if p.TransformationRules == nil {
			p.TransformationRules = []string{}
		}
		set.Pipelines = append(set.Pipelines, p)
	}
	return set, nil
}
