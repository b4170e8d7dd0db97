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

	"aetherflow/internal/dashboard/persistence"
)

// EnsureSeed writes the configured seed records and index when the index is absent
// or empty, and reports whether it did. The check and the writes form one
// transaction, so concurrent first callers seed exactly once.
func (s *EntityStore[T]) EnsureSeed(ctx context.Context) (bool, error) {
	if len(s.cfg.SeedData) == 0 {
		return false, nil
	}
	keys := make([]string, 0, len(s.cfg.SeedData)+1)
	keys = append(keys, s.indexKey())
	for _, rec := range s.cfg.SeedData {
		keys = append(keys, s.recordKey(rec.EntityID()))
	}
	values := make([][]byte, len(s.cfg.SeedData))
	ids := make([]string, len(s.cfg.SeedData))
	for i, rec := range s.cfg.SeedData {
		b, err := s.encode(rec)
		if err != nil {
			return false, err
		}
		values[i] = b
		ids[i] = rec.EntityID()
	}

	var seeded bool
	err := s.store.Update(ctx, keys, func(tx persistence.Tx) error {
		seeded = false
		current, err := decodeIndex(tx.Get(s.indexKey()))
		if err != nil {
			return err
		}
		if len(current) > 0 {
			return nil
		}
		for i, id := range ids {
			tx.Put(s.recordKey(id), values[i])
		}
		tx.Put(s.indexKey(), encodeIndex(ids))
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}
