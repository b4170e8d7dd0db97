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

package persistence

import (
	"context"
	"errors"
	"time"
)

// OpObserver receives one call per store operation. err is nil for successful
// operations, and also for a Get of a missing key.
type OpObserver interface {
	ObserveStoreOp(op string, elapsed time.Duration, err error)
}

// InstrumentedStore reports every operation of the wrapped store to an OpObserver.
type InstrumentedStore struct {
	inner Store
	obs   OpObserver
}

func NewInstrumentedStore(inner Store, obs OpObserver) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, obs: obs}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrKeyNotFound) {
		err = nil
	}
	s.obs.ObserveStoreOp(op, time.Since(start), err)
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := s.inner.Get(ctx, key)
	s.observe("get", start, err)
	return v, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, value)
	s.observe("put", start, err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.inner.Delete(ctx, key)
	s.observe("delete", start, err)
	return ok, err
}

func (s *InstrumentedStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	start := time.Now()
	err := s.inner.Update(ctx, keys, fn)
	s.observe("update", start, err)
	return err
}

func (s *InstrumentedStore) Close() error { return s.inner.Close() }
