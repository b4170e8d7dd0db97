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
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"aetherflow/internal/common/logging"
	"aetherflow/internal/dashboard/model"
)

// GaugeWorker periodically lists the stored pipelines, simulates them to the
// current time and hands the result to an observer. It keeps exported gauges
// fresh between API requests and never writes to the store.
type GaugeWorker struct {
	pipelines *EntityStore[model.Pipeline]
	clock     clock.WithTicker
	interval  time.Duration
	observe   func([]model.Pipeline)
	timeout   time.Duration

	ticker   clock.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

func NewGaugeWorker(pipelines *EntityStore[model.Pipeline], clk clock.WithTicker, interval time.Duration, observe func([]model.Pipeline)) *GaugeWorker {
	timeout := interval
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &GaugeWorker{
		pipelines: pipelines,
		clock:     clk,
		interval:  interval,
		observe:   observe,
		timeout:   timeout,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the refresh loop. The ticker is created before Start returns.
func (w *GaugeWorker) Start() {
	logging.Component("gauge-worker").WithField("interval", w.interval).Info("starting background worker")
	w.ticker = w.clock.NewTicker(w.interval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
}

// Stop ends the loop and waits for an in-flight refresh. Calling it twice is safe.
func (w *GaugeWorker) Stop() {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return
	}
	logging.Component("gauge-worker").Info("stopping background worker")
	close(w.stopChan)
	w.wg.Wait()
}

func (w *GaugeWorker) loop() {
	defer w.ticker.Stop()
	for {
		select {
		case <-w.ticker.C():
			w.Refresh()
		case <-w.stopChan:
			return
		}
	}
}

// Refresh runs one list-simulate-observe cycle. Errors are logged and the
// observer is not called.
func (w *GaugeWorker) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	stored, err := w.pipelines.List(ctx)
	if err != nil {
		logging.WithStacktrace(logging.Component("gauge-worker"), err).Warn("refreshing pipeline gauges")
		return
	}
	w.observe(SimulateAll(stored, w.clock.Now().UTC()))
}
