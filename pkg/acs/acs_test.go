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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/acs-suite/gompam/pkg/hal/sim"
	"github.com/acs-suite/gompam/pkg/tables"
	"github.com/acs-suite/gompam/pkg/testutils"
)

func newTestEnv(t *testing.T, numPE int, opts *Options) *Env {
	t.Helper()
	tbl, err := tables.Load([]byte("{}"))
	require.NoError(t, err)
	p, err := sim.New(tbl, &sim.Config{NumPE: numPE})
	require.NoError(t, err)
	return &Env{Platform: p, Tables: tbl, Options: opts}
}

func verdictPayload(s func(num uint32) Status) Payload {
	return func(c *Context) {
		c.SetStatus(s(c.Test.Num))
	}
}

func TestStatus(t *testing.T) {
	s := Fail(206, 2)
	assert.Equal(t, Status(0x200ce002), s)
	assert.Equal(t, StateFail, s.State())
	assert.Equal(t, uint32(206), s.TestNum())
	assert.Equal(t, uint32(2), s.SubCode())
	assert.Equal(t, "FAIL (02)", s.String())

	testutils.VerifyStrings(t, "PASS (01)", Pass(206, 1).String())
	assert.Equal(t, "SKIP (03)", Skip(206, 3).String())
	assert.Equal(t, "PENDING", Status(0).String())
	assert.Equal(t, "STATE(9)", State(9).String())

	// Out of range fields are truncated to their width.
	assert.Equal(t, uint32(0xfff), NewStatus(StatePass, 0x1ffff, 0x1fff).SubCode())
	assert.Equal(t, uint32(0xffff), NewStatus(StatePass, 0x1ffff, 0).TestNum())
}

func TestRegistry(t *testing.T) {
	noop := func(*Context) {}
	Register(&Test{Num: 9002, Module: "test", Payload: noop})
	Register(&Test{Num: 9001, Module: "test", Payload: noop})

	got, ok := Lookup(9001)
	require.True(t, ok)
	assert.Equal(t, uint32(9001), got.Num)
	_, ok = Lookup(9003)
	assert.False(t, ok)

	var nums []uint32
	for _, tc := range Registered() {
		nums = append(nums, tc.Num)
	}
	assert.Subset(t, nums, []uint32{9001, 9002})
	for i := 1; i < len(nums); i++ {
		assert.Less(t, nums[i-1], nums[i])
	}

	assert.Panics(t, func() { Register(&Test{Num: 9001, Payload: noop}) })
	assert.Panics(t, func() { Register(&Test{Num: 9004}) })
}

func TestOptions(t *testing.T) {
	o, err := ParseOptions([]byte("tests: [206, 3]\nskip: [4]\ncacheKey: offset\n"))
	require.NoError(t, err)
	testutils.VerifyDeepEqual(t, "options", &Options{Tests: []uint32{206, 3}, Skip: []uint32{4}, CacheKey: CacheKeyOffset}, o)
	assert.True(t, o.Skipped(4))
	assert.False(t, o.Skipped(206))

	o, err = ParseOptions([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, CacheKeyID, o.CacheKey)

	_, err = ParseOptions([]byte("cacheKey: name\n"))
	testutils.VerifyError(t, err, 1, []string{"invalid cacheKey"})
	_, err = ParseOptions([]byte("test: [1]\n"))
	testutils.VerifyError(t, err, 1, []string{"failed to parse options"})

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	o, err = LoadOptions(testutils.CreateTempFile(t, "modules: [cache]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cache"}, o.Modules)
}

func TestSelect(t *testing.T) {
	all := []*Test{
		{Num: 206, Module: "cache"},
		{Num: 3, Module: "pe"},
		{Num: 201, Module: "cache"},
	}
	nums := func(tests []*Test) []uint32 {
		var n []uint32
		for _, t := range tests {
			n = append(n, t.Num)
		}
		return n
	}

	tcases := []struct {
		name     string
		opts     Options
		expected []uint32
	}{
		{name: "all", expected: []uint32{3, 201, 206}},
		{name: "by number", opts: Options{Tests: []uint32{206, 3, 7}}, expected: []uint32{3, 206}},
		{name: "by module", opts: Options{Modules: []string{"cache"}}, expected: []uint32{201, 206}},
		{name: "both", opts: Options{Tests: []uint32{3, 206}, Modules: []string{"cache"}}, expected: []uint32{206}},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			testutils.VerifyDeepEqual(t, "selected tests", tc.expected, nums(tc.opts.Select(all)))
		})
	}
}

func TestCheckForError(t *testing.T) {
	tc := &Test{Num: 7}
	tcases := []struct {
		name     string
		statuses []Status
		expected Status
	}{
		{name: "single pass", statuses: []Status{Pass(7, 1)}, expected: Pass(7, 1)},
		{name: "fail wins", statuses: []Status{Pass(7, 1), Fail(7, 2), Fail(7, 1)}, expected: Fail(7, 2)},
		{name: "pass over skip", statuses: []Status{Skip(7, 3), Pass(7, 1)}, expected: Pass(7, 1)},
		{name: "all skipped", statuses: []Status{Skip(7, 3), Skip(7, 1)}, expected: Skip(7, 3)},
		{name: "not reported", statuses: []Status{Pass(7, 1), 0}, expected: Fail(7, statusNotReported)},
		{name: "no pe", expected: Fail(7, statusNotReported)},
	}
	for _, c := range tcases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, checkForError(tc, c.statuses))
		})
	}
}

func TestRunner(t *testing.T) {
	var calls atomic.Int32
	tests := []*Test{
		{Num: 1, Module: "cache", Description: "passes", NumPE: 1, Payload: verdictPayload(func(n uint32) Status { return Pass(n, 1) })},
		{Num: 2, Module: "cache", Description: "fails on all PEs", NumPE: 2, Payload: verdictPayload(func(n uint32) Status { return Fail(n, 2) })},
		{Num: 3, Module: "cache", Description: "user skipped", NumPE: 1, Payload: func(*Context) { calls.Add(1) }},
		{Num: 4, Module: "cache", Description: "silent", NumPE: 1, Payload: func(*Context) {}},
		{Num: 5, Module: "cache", Description: "verdict set twice", NumPE: 1, Payload: func(c *Context) {
			c.SetStatus(Pass(c.Test.Num, 1))
			c.SetStatus(Fail(c.Test.Num, 2))
		}},
		{Num: 6, Module: "cache", Description: "more PEs than present", NumPE: 8, Payload: func(c *Context) {
			calls.Add(1)
			c.SetStatus(Skip(c.Test.Num, 1))
		}},
	}

	collector := NewCollector()
	env := newTestEnv(t, 2, &Options{Skip: []uint32{3}})
	results, err := NewRunner(env, collector).Run(context.Background(), tests)
	require.NoError(t, err)
	require.Len(t, results, len(tests))

	expected := []Status{Pass(1, 1), Fail(2, 2), Skip(3, 0), Fail(4, statusNotReported), Pass(5, 1), Skip(6, 1)}
	for i, r := range results {
		assert.Equal(t, expected[i], r.Status, "test %d", r.Test.Num)
	}
	assert.Len(t, results[1].PEStatus, 2)
	assert.Len(t, results[5].PEStatus, 2)
	assert.Equal(t, int32(2), calls.Load(), "skipped payload must not run")

	testutils.VerifyDeepEqual(t, "summary", Summary{Total: 6, Passed: 2, Failed: 2, Skipped: 2}, Summarize(results))
	assert.Len(t, Failed(results), 2)

	var buf bytes.Buffer
	WriteReport(&buf, results)
	out := buf.String()
	assert.Contains(t, out, "     2 : fails on all PEs")
	assert.Contains(t, out, "PE 1   FAIL (02)")
	assert.Contains(t, out, "Tests failed     =    2")

	metrics := gatherText(t, collector)
	assert.Equal(t, 6, strings.Count(metrics, "\nmpam_acs_test_verdict{"))
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tests := []*Test{
		{Num: 1, Payload: func(c *Context) {
			c.SetStatus(Pass(1, 1))
			cancel()
		}},
		{Num: 2, Payload: verdictPayload(func(n uint32) Status { return Pass(n, 1) })},
	}
	results, err := NewRunner(newTestEnv(t, 1, nil)).Run(ctx, tests)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
}

func gatherText(t *testing.T, c *Collector) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acs.prom")
	require.NoError(t, WriteTextfile(path, c))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.Observe(context.Background(), Result{Test: &Test{Num: 9001, Module: "cache"}, Status: Pass(9001, 1), Duration: time.Second})
	c.Observe(context.Background(), Result{Test: &Test{Num: 9002, Module: "cache"}, Status: Fail(9002, 2)})

	metrics := gatherText(t, c)
	for _, line := range []string{
		"# TYPE mpam_acs_test_verdict gauge",
		`mpam_acs_test_verdict{module="cache",state="FAIL",subcode="2",test="9002"} 1`,
		`mpam_acs_test_verdict{module="cache",state="PASS",subcode="1",test="9001"} 1`,
		`mpam_acs_test_duration_seconds{module="cache",test="9001"} 1`,
		`mpam_acs_tests{state="FAIL"} 1`,
		`mpam_acs_tests{state="PASS"} 1`,
		`mpam_acs_tests{state="SKIP"} 0`,
	} {
		assert.Contains(t, metrics, line+"\n")
	}

	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "acs.prom"), c)
	assert.Error(t, err)
}

func TestOtelRecorder(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	rec, err := NewOtelRecorder(reader)
	require.NoError(t, err)

	rec.Observe(ctx, Result{Test: &Test{Num: 1, Module: "cache"}, Status: Pass(1, 1)})
	rec.Observe(ctx, Result{Test: &Test{Num: 2, Module: "cache"}, Status: Fail(2, 2)})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var total int64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "acs.test.verdicts" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
		assert.Len(t, sum.DataPoints, 2)
	}
	assert.Equal(t, int64(2), total)
	require.NoError(t, rec.Shutdown(ctx))
}

func TestOtelExporter(t *testing.T) {
	ctx := context.Background()

	_, err := NewOtelExporter(ctx, "carrier-pigeon", "", nil)
	assert.Error(t, err)

	var buf bytes.Buffer
	exp, err := NewOtelExporter(ctx, "stdout", "", &buf)
	require.NoError(t, err)
	rec, err := NewPushRecorder(exp)
	require.NoError(t, err)
	rec.Observe(ctx, Result{Test: &Test{Num: 206, Module: "cache"}, Status: Pass(206, 1)})
	require.NoError(t, rec.Shutdown(ctx))
	assert.Contains(t, buf.String(), "acs.test.verdicts")
}
