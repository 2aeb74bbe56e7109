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
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	grclog "github.com/acs-suite/gompam/pkg/log"
)

// statusNotReported is the sub-code of the failure reported for a PE whose
// payload returned without setting a verdict.
const statusNotReported = 0xfff

// Result is the outcome of one test.
type Result struct {
	Test *Test
	// Status is the combined verdict over all PEs.
	Status Status
	// PEStatus holds the verdict of each PE the payload ran on.
	PEStatus []Status
	Duration time.Duration
}

// Observer is notified of every finished test.
type Observer interface {
	Observe(ctx context.Context, r Result)
}

// Runner runs tests against an environment.
type Runner struct {
	env       *Env
	log       *slog.Logger
	observers []Observer
}

// NewRunner creates a test runner.
func NewRunner(env *Env, observers ...Observer) *Runner {
	if env.Options == nil {
		env.Options = DefaultOptions()
	}
	return &Runner{
		env:       env,
		log:       grclog.NewLogger("acs"),
		observers: observers,
	}
}

// Run runs the given tests in order. It stops early, returning the results
// so far, if ctx is cancelled.
func (r *Runner) Run(ctx context.Context, tests []*Test) ([]Result, error) {
	results := make([]Result, 0, len(tests))
	for _, t := range tests {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("test run interrupted before test %d: %w", t.Num, err)
		}
		results = append(results, r.RunTest(ctx, t))
	}
	return results, nil
}

// RunTest runs one test on the PEs it needs and reports the verdict.
func (r *Runner) RunTest(ctx context.Context, t *Test) Result {
	start := time.Now()
	log := r.log.With("test", t.Num)

	numPE, skip := r.initializeTest(log, t)
	var peStatus []Status
	if skip {
		peStatus = make([]Status, numPE)
		for i := range peStatus {
			peStatus[i] = Skip(t.Num, 0)
		}
	} else {
		peStatus = r.runPayload(log, t, numPE)
	}

	res := Result{
		Test:     t,
		Status:   checkForError(t, peStatus),
		PEStatus: peStatus,
		Duration: time.Since(start),
	}
	r.report(log, res)

	for _, o := range r.observers {
		o.Observe(ctx, res)
	}
	return res
}

// initializeTest decides the number of PEs to run on and whether the user
// asked to skip the test.
func (r *Runner) initializeTest(log *slog.Logger, t *Test) (int, bool) {
	numPE := max(t.NumPE, 1)
	if avail := r.env.Platform.NumPE(); numPE > avail {
		log.Warn("test needs more PEs than available", "needed", numPE, "available", avail)
		numPE = avail
	}

	log.Info("starting test", "description", t.Description, "numPE", numPE)
	if r.env.Options.Skipped(t.Num) {
		log.Info("test skipped by user")
		return numPE, true
	}
	return numPE, false
}

// runPayload dispatches the payload on PEs 0..numPE-1, each independently.
func (r *Runner) runPayload(log *slog.Logger, t *Test, numPE int) []Status {
	peStatus := make([]Status, numPE)

	var wg sync.WaitGroup
	for i := range numPE {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newContext(r.env, t, r.env.Platform.PE(i), log)
			t.Payload(c)
			peStatus[i] = c.Status()
		}(i)
	}
	wg.Wait()

	return peStatus
}

// checkForError combines per-PE verdicts: any failure fails the test, a test
// skipped on every PE is skipped, otherwise it passes.
func checkForError(t *Test, peStatus []Status) Status {
	var firstPass, firstSkip Status
	for i, s := range peStatus {
		switch s.State() {
		case StatePending:
			return Fail(t.Num, statusNotReported)
		case StateFail:
			return peStatus[i]
		case StatePass:
			if firstPass == 0 {
				firstPass = s
			}
		case StateSkip:
			if firstSkip == 0 {
				firstSkip = s
			}
		}
	}
	if firstPass != 0 {
		return firstPass
	}
	if firstSkip != 0 {
		return firstSkip
	}
	return Fail(t.Num, statusNotReported)
}

func (r *Runner) report(log *slog.Logger, res Result) {
	args := []any{"verdict", res.Status.String(), "duration", res.Duration}
	if res.Test.Rule != "" {
		args = append(args, "rule", res.Test.Rule)
	}
	switch res.Status.State() {
	case StateFail:
		log.Error("test failed", args...)
	case StateSkip:
		log.Warn("test skipped", args...)
	default:
		log.Info("test passed", args...)
	}
	if len(res.PEStatus) > 1 {
		lines := make([]string, len(res.PEStatus))
		for i, st := range res.PEStatus {
			lines[i] = fmt.Sprintf("PE %d: %s", i, st)
		}
		grclog.DebugBlock(log, "per-PE verdicts:", "  ", "%s", strings.Join(lines, "\n"))
	}
}
