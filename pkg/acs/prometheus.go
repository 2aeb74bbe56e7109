/*
Copyright 2025 Intel Corporation

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package acs

import (
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	verdictDesc = prometheus.NewDesc(
		"mpam_acs_test_verdict",
		"Verdict of a compliance test, 1 for the state the test ended in.",
		[]string{"test", "module", "state", "subcode"}, nil,
	)
	durationDesc = prometheus.NewDesc(
		"mpam_acs_test_duration_seconds",
		"Wall clock time a compliance test took.",
		[]string{"test", "module"}, nil,
	)
	testsDesc = prometheus.NewDesc(
		"mpam_acs_tests",
		"Number of compliance tests by final state.",
		[]string{"state"}, nil,
	)
)

// Collector exports the results of a suite run as Prometheus metrics. It
// is an Observer of the Runner.
type Collector struct {
	sync.RWMutex
	results map[uint32]Result
}

// NewCollector creates a new collector.
func NewCollector() *Collector {
	return &Collector{results: map[uint32]Result{}}
}

// Observe implements Observer.
func (c *Collector) Observe(_ context.Context, r Result) {
	c.Lock()
	defer c.Unlock()
	c.results[r.Test.Num] = r
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- verdictDesc
	ch <- durationDesc
	ch <- testsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.RLock()
	defer c.RUnlock()

	counts := map[State]int{StatePass: 0, StateFail: 0, StateSkip: 0}
	for num, r := range c.results {
		test := strconv.FormatUint(uint64(num), 10)
		state := r.Status.State()
		counts[state]++

		ch <- prometheus.MustNewConstMetric(verdictDesc, prometheus.GaugeValue, 1,
			test, r.Test.Module, state.String(), strconv.FormatUint(uint64(r.Status.SubCode()), 10))
		ch <- prometheus.MustNewConstMetric(durationDesc, prometheus.GaugeValue, r.Duration.Seconds(),
			test, r.Test.Module)
	}
	for state, n := range counts {
		ch <- prometheus.MustNewConstMetric(testsDesc, prometheus.GaugeValue, float64(n), state.String())
	}
}

// WriteTextfile writes the metrics of collector to path in the Prometheus
// text format, e.g. for the node exporter textfile collector.
func WriteTextfile(path string, collector prometheus.Collector) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, registry)
}
