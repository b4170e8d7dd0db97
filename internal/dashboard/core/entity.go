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

// Package core provides the dashboard's business logic: an indexed entity store over
// the key-value substrate, seeding of sample data, the pipeline ingestion simulation
// and the dashboard aggregation.
package core

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"aetherflow/internal/common/aferrors"
	"aetherflow/internal/dashboard/persistence"
)

// Entity is a record addressable by a unique string id.
type Entity interface {
	EntityID() string
}

// EntityConfig describes how one kind of entity is laid out in the key-value store.
//
// Records live under "entity:<Name>:<id>" and the ordered list of ids under
// "index:<IndexName>". InitialState is the base every stored record is decoded onto,
// so fields missing from a stored blob take its values. SeedData is written by
// EnsureSeed when the index is empty.
type EntityConfig[T Entity] struct {
	Name         string
	IndexName    string
	InitialState T
	SeedData     []T
}

// EntityStore keeps the records of one entity kind and their index consistent.
// Every operation that touches the index runs in a single store transaction.
type EntityStore[T Entity] struct {
	store persistence.Store
	cfg   EntityConfig[T]
}

func NewEntityStore[T Entity](store persistence.Store, cfg EntityConfig[T]) *EntityStore[T] {
	return &EntityStore[T]{store: store, cfg: cfg}
}

// Name returns the entity name records are keyed by.
func (s *EntityStore[T]) Name() string { return s.cfg.Name }

func (s *EntityStore[T]) recordKey(id string) string {
	return "entity:" + s.cfg.Name + ":" + id
}

func (s *EntityStore[T]) indexKey() string {
	return "index:" + s.cfg.IndexName
}

func (s *EntityStore[T]) notFound(id string) error {
	return errors.WithStack(&aferrors.ErrNotFound{Type: s.cfg.Name, Value: id})
}

func (s *EntityStore[T]) decode(id string, b []byte) (T, error) {
	rec := s.cfg.InitialState
	if err := json.Unmarshal(b, &rec); err != nil {
		var zero T
		return zero, errors.Wrapf(err, "decode %s %s", s.cfg.Name, id)
	}
	return rec, nil
}

func (s *EntityStore[T]) encode(rec T) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s %s", s.cfg.Name, rec.EntityID())
	}
	return b, nil
}

func decodeIndex(b []byte, err error) ([]string, error) {
	if errors.Is(err, persistence.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, errors.Wrap(err, "decode index")
	}
	return ids, nil
}

func encodeIndex(ids []string) []byte {
	if ids == nil {
		ids = []string{}
	}
	// Marshalling a []string cannot fail.
	b, _ := json.Marshal(ids)
	return b
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Exists reports whether a record with the given id is stored.
func (s *EntityStore[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.Get(ctx, s.recordKey(id))
	if errors.Is(err, persistence.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetState returns the stored record, or ErrNotFound.
func (s *EntityStore[T]) GetState(ctx context.Context, id string) (T, error) {
	b, err := s.store.Get(ctx, s.recordKey(id))
	if errors.Is(err, persistence.ErrKeyNotFound) {
		var zero T
		return zero, s.notFound(id)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return s.decode(id, b)
}

// Create stores a new record and appends its id to the index. It fails with
// ErrAlreadyExists when the id is taken.
func (s *EntityStore[T]) Create(ctx context.Context, rec T) (T, error) {
	id := rec.EntityID()
	if id == "" {
		return rec, errors.WithStack(&aferrors.ErrInvalidArgument{Name: "id", Value: id, Message: "id must not be empty"})
	}
	value, err := s.encode(rec)
	if err != nil {
		return rec, err
	}
	err = s.store.Update(ctx, []string{s.indexKey(), s.recordKey(id)}, func(tx persistence.Tx) error {
		if _, err := tx.Get(s.recordKey(id)); err == nil {
			return errors.WithStack(&aferrors.ErrAlreadyExists{Type: s.cfg.Name, Value: id})
		} else if !errors.Is(err, persistence.ErrKeyNotFound) {
			return err
		}
		ids, err := decodeIndex(tx.Get(s.indexKey()))
		if err != nil {
			return err
		}
		if !containsID(ids, id) {
			ids = append(ids, id)
		}
		tx.Put(s.recordKey(id), value)
		tx.Put(s.indexKey(), encodeIndex(ids))
		return nil
	})
	return rec, err
}

// Save overwrites an indexed record as a whole. Concurrent Saves of one id are
// last-write-wins; use Update for read-modify-write.
func (s *EntityStore[T]) Save(ctx context.Context, rec T) error {
	id := rec.EntityID()
	value, err := s.encode(rec)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, []string{s.indexKey()}, func(tx persistence.Tx) error {
		ids, err := decodeIndex(tx.Get(s.indexKey()))
		if err != nil {
			return err
		}
		if !containsID(ids, id) {
			return s.notFound(id)
		}
		tx.Put(s.recordKey(id), value)
		return nil
	})
}

// Update applies fn to the stored record and persists the result, all in one
// transaction. fn may be called more than once and must not have side effects.
// The id of the returned record is forced to id.
func (s *EntityStore[T]) Update(ctx context.Context, id string, fn func(current T) (T, error)) (T, error) {
	var updated T
	err := s.store.Update(ctx, []string{s.indexKey(), s.recordKey(id)}, func(tx persistence.Tx) error {
		ids, err := decodeIndex(tx.Get(s.indexKey()))
		if err != nil {
			return err
		}
		if !containsID(ids, id) {
			return s.notFound(id)
		}
		b, err := tx.Get(s.recordKey(id))
		if errors.Is(err, persistence.ErrKeyNotFound) {
			return s.notFound(id)
		}
		if err != nil {
			return err
		}
		current, err := s.decode(id, b)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next.EntityID() != id {
			return errors.WithStack(&aferrors.ErrInvalidArgument{Name: "id", Value: next.EntityID(), Message: "id cannot be changed"})
		}
		value, err := s.encode(next)
		if err != nil {
			return err
		}
		tx.Put(s.recordKey(id), value)
		updated = next
		return nil
	})
	return updated, err
}

// List returns the indexed records in index order. Ids whose record disappeared
// after the index was read are skipped.
func (s *EntityStore[T]) List(ctx context.Context) ([]T, error) {
	ids, err := decodeIndex(s.store.Get(ctx, s.indexKey()))
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		b, err := s.store.Get(ctx, s.recordKey(id))
		if errors.Is(err, persistence.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rec, err := s.decode(id, b)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes the record and its index entry and reports whether the record existed.
func (s *EntityStore[T]) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := s.store.Update(ctx, []string{s.indexKey(), s.recordKey(id)}, func(tx persistence.Tx) error {
		existed = false
		if _, err := tx.Get(s.recordKey(id)); err == nil {
			existed = true
			tx.Delete(s.recordKey(id))
		} else if !errors.Is(err, persistence.ErrKeyNotFound) {
			return err
		}
		ids, err := decodeIndex(tx.Get(s.indexKey()))
		if err != nil {
			return err
		}
		kept := ids[:0:0]
		for _, v := range ids {
			if v != id {
				kept = append(kept, v)
			}
		}
		if len(kept) != len(ids) {
			tx.Put(s.indexKey(), encodeIndex(kept))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}
