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

// http-loadgen is a small HTTP load generator for the AetherFlow dashboard API.
// It reuses HTTP connections (keep-alive) and spreads requests across concurrent
// workers so demo scripts and contention checks run without external tools.
//
// Modes:
//   - read:   cycle through the list and dashboard routes
//   - toggle: alternate start/stop on a set of pipelines, exercising store transactions
//   - mixed:  4 of every 5 requests read, the fifth toggles
//
// Usage examples:
//
//	http-loadgen --base=http://127.0.0.1:8080 --mode=read -n=5000 -c=16
//	http-loadgen --base=http://127.0.0.1:8080 --mode=toggle --pipelines=pl-1,pl-3 -n=2000 -c=8
//
// Prints a one-line summary with duration, status code counts and approximate throughput.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
)

type modeType string

const (
	modeRead   modeType = "read"
	modeToggle modeType = "toggle"
	modeMixed  modeType = "mixed"
)

var readPaths = []string{
	"/api/pipelines",
	"/api/dashboard-metrics",
	"/api/data-sources",
	"/api/data-destinations",
}

type target struct {
	method string
	path   string
}

// pick returns the request a worker sends as its i-th request. The sequence is
// deterministic so runs are comparable.
func pick(m modeType, worker, i int, pipelines []string) target {
	n := worker + i
	toggle := func() target {
		id := pipelines[n%len(pipelines)]
		action := "start"
		if (n/len(pipelines))%2 == 1 {
			action = "stop"
		}
		return target{http.MethodPost, "/api/pipelines/" + id + "/" + action}
	}
	switch m {
	case modeToggle:
		return toggle()
	case modeMixed:
		if n%5 == 4 {
			return toggle()
		}
	}
	return target{http.MethodGet, readPaths[n%len(readPaths)]}
}

func main() {
	var (
		base       = pflag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host")
		modeS      = pflag.String("mode", string(modeRead), "Mode: read|toggle|mixed")
		pipelines  = pflag.StringSlice("pipelines", []string{"pl-1", "pl-2", "pl-3"}, "Pipeline ids toggled in toggle and mixed modes")
		N          = pflag.IntP("requests", "n", 5000, "Total requests to send")
		conc       = pflag.IntP("concurrency", "c", 8, "Number of concurrent workers")
		timeout    = pflag.Duration("timeout", 20*time.Second, "Overall timeout for the loadgen run")
		connIdle   = pflag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdlePer = pflag.Int("max_idle_per_host", 256, "Max idle connections per host")
	)
	pflag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeRead && m != modeToggle && m != modeMixed {
		fmt.Fprintf(os.Stderr, "unknown --mode=%s (want read|toggle|mixed)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}
	if m != modeRead && len(*pipelines) == 0 {
		fmt.Fprintln(os.Stderr, "--pipelines must not be empty in toggle and mixed modes")
		os.Exit(2)
	}
	baseURL := strings.TrimRight(*base, "/")

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdlePer,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		codes   = map[int]int{}
		failed  int64
		started = time.Now()
	)
	worker := func(id, count int) {
		local := map[int]int{}
		for i := 0; i < count; i++ {
			if ctx.Err() != nil {
				break
			}
			tg := pick(m, id, i, *pipelines)
			req, _ := http.NewRequestWithContext(ctx, tg.method, baseURL+tg.path, nil)
			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				// Brief backoff on errors to avoid hot spinning.
				time.Sleep(200 * time.Microsecond)
				continue
			}
			// Drain and close body to enable connection reuse.
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			local[resp.StatusCode]++
		}
		mu.Lock()
		for c, n := range local {
			codes[c] += n
		}
		mu.Unlock()
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()
	elapsed := time.Since(started)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	fmt.Printf("LoadGen: mode=%s N=%d c=%d go=%d Duration=%s Throughput=%.0f req/s Codes=%s Errors=%d\n",
		m, *N, *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond),
		float64(*N)/elapsed.Seconds(), formatCodes(codes), atomic.LoadInt64(&failed))
}

func formatCodes(codes map[int]int) string {
	keys := make([]int, 0, len(codes))
	for c := range codes {
		keys = append(keys, c)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, c := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", c, codes[c]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
