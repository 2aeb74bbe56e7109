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
	"fmt"
	"io"

	"github.com/samber/lo"
)

// Summary counts test verdicts of a run.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// Summarize counts the verdicts of results.
func Summarize(results []Result) Summary {
	count := func(s State) int {
		return lo.CountBy(results, func(r Result) bool { return r.Status.State() == s })
	}
	return Summary{
		Total:   len(results),
		Passed:  count(StatePass),
		Failed:  count(StateFail),
		Skipped: count(StateSkip),
	}
}

// Failed returns the results that failed.
func Failed(results []Result) []Result {
	return lo.Filter(results, func(r Result, _ int) bool { return r.Status.State() == StateFail })
}

// WriteReport prints the verdict of each test and the summary of the run.
// nolint:errcheck
func WriteReport(w io.Writer, results []Result) {
	for _, r := range results {
		fmt.Fprintf(w, "  %4d : %-40s : %s\n", r.Test.Num, r.Test.Description, r.Status)
		if len(r.PEStatus) > 1 {
			for i, s := range r.PEStatus {
				fmt.Fprintf(w, "         PE %-3d %s\n", i, s)
			}
		}
	}

	s := Summarize(results)
	fmt.Fprintf(w, "\n  Total tests run  = %4d\n", s.Total)
	fmt.Fprintf(w, "  Tests passed     = %4d\n", s.Passed)
	fmt.Fprintf(w, "  Tests failed     = %4d\n", s.Failed)
	fmt.Fprintf(w, "  Tests skipped    = %4d\n", s.Skipped)
}
