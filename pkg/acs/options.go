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
	"os"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/yaml"
)

// CacheKey tells how MPAM resource descriptors reference PPTT caches.
type CacheKey string

const (
	// CacheKeyID matches descriptors against PPTT cache IDs.
	CacheKeyID CacheKey = "id"
	// CacheKeyOffset matches descriptors against PPTT structure offsets,
	// for firmware that does not report cache IDs.
	CacheKeyOffset CacheKey = "offset"
)

// Options select and parametrize the tests of a suite run.
type Options struct {
	// Tests to run. Empty means all registered tests.
	Tests []uint32 `json:"tests,omitempty"`
	// Modules to run, e.g. "cache". Empty means all modules.
	Modules []string `json:"modules,omitempty"`
	// Tests reported as skipped without running them.
	Skip     []uint32 `json:"skip,omitempty"`
	CacheKey CacheKey `json:"cacheKey,omitempty"`
}

// DefaultOptions returns the options of a plain full run.
func DefaultOptions() *Options {
	return &Options{CacheKey: CacheKeyID}
}

// LoadOptions reads suite options from a YAML file.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %v", err)
	}
	return ParseOptions(data)
}

// ParseOptions parses suite options from YAML data.
func ParseOptions(data []byte) (*Options, error) {
	o := DefaultOptions()
	if err := yaml.UnmarshalStrict(data, o); err != nil {
		return nil, fmt.Errorf("failed to parse options: %v", err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the options for consistency.
func (o *Options) Validate() error {
	switch o.CacheKey {
	case "":
		o.CacheKey = CacheKeyID
	case CacheKeyID, CacheKeyOffset:
	default:
		return fmt.Errorf("invalid cacheKey %q, must be one of %q, %q", o.CacheKey, CacheKeyID, CacheKeyOffset)
	}
	return nil
}

// Select returns the tests chosen by the options in test number order.
func (o *Options) Select(tests []*Test) []*Test {
	nums := sets.New(o.Tests...)
	modules := sets.New(o.Modules...)

	var selected []*Test
	for _, t := range tests {
		if nums.Len() > 0 && !nums.Has(t.Num) {
			continue
		}
		if modules.Len() > 0 && !modules.Has(t.Module) {
			continue
		}
		selected = append(selected, t)
	}
	slices.SortFunc(selected, func(a, b *Test) int { return int(a.Num) - int(b.Num) })
	return selected
}

// Skipped tells whether the user asked to skip a test.
func (o *Options) Skipped(num uint32) bool {
	return slices.Contains(o.Skip, num)
}
