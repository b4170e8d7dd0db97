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

// Package sinks holds append-only file sinks used for auditing.
package sinks

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ActivityEvent is one line of the activity log: a mutation of an entity or a
// pipeline start/stop.
type ActivityEvent struct {
	Time         time.Time `json:"time"`
	Kind         string    `json:"kind"`
	EntityID     string    `json:"entityId"`
	Action       string    `json:"action"`
	FromStatus   string    `json:"fromStatus,omitempty"`
	ToStatus     string    `json:"toStatus,omitempty"`
	DataIngested *float64  `json:"dataIngested,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
}

// ActivitySink receives activity events. Implementations must be safe for concurrent use.
type ActivitySink interface {
	Append(ev ActivityEvent)
}

// NopActivitySink drops every event.
type NopActivitySink struct{}

func (NopActivitySink) Append(ActivityEvent) {}

const activityFlushInterval = 100 * time.Millisecond

// ActivityFileSink appends activity events to a JSONL file. Writes are buffered and
// flushed by a background loop every 100ms, on Flush and on Close.
type ActivityFileSink struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

func NewActivityFileSink(path string) (*ActivityFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open activity log %s", path)
	}
	s := &ActivityFileSink{
		f:        f,
		w:        bufio.NewWriterSize(f, 64<<10),
		path:     path,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.flushLoop()
	}()
	return s, nil
}

func (s *ActivityFileSink) flushLoop() {
	ticker := time.NewTicker(activityFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.w.Buffered() > 0 {
				_ = s.w.Flush()
			}
			s.mu.Unlock()
		case <-s.stopChan:
			return
		}
	}
}

func (s *ActivityFileSink) Append(ev ActivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = json.NewEncoder(s.w).Encode(&ev)
}

// Path returns the file the sink appends to.
func (s *ActivityFileSink) Path() string { return s.path }

func (s *ActivityFileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.WithStack(s.w.Flush())
}

// Close stops the flush loop, flushes what is buffered and closes the file.
// Calling it again is a no-op.
func (s *ActivityFileSink) Close() error {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return nil
	}
	close(s.stopChan)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	flushErr := s.w.Flush()
	if err := s.f.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(flushErr)
}

// ReadActivityLog reads back every well-formed event of an activity log.
func ReadActivityLog(path string) ([]ActivityEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	var out []ActivityEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		var ev ActivityEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out, errors.WithStack(scanner.Err())
}
