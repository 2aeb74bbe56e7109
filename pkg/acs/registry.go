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
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

var (
	registryLock sync.RWMutex
	registry     = map[uint32]*Test{}
)

// Register adds a test to the suite. Registering the same test number
// twice or a test without payload panics.
func Register(t *Test) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if t.Payload == nil {
		panic(fmt.Sprintf("acs: test %d registered without payload", t.Num))
	}
	if _, ok := registry[t.Num]; ok {
		panic(fmt.Sprintf("acs: test %d registered twice", t.Num))
	}
	registry[t.Num] = t
}

// Lookup returns the registered test with the given number.
func Lookup(num uint32) (*Test, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	t, ok := registry[num]
	return t, ok
}

// Registered returns all registered tests ordered by test number.
func Registered() []*Test {
	registryLock.RLock()
	defer registryLock.RUnlock()

	nums := maps.Keys(registry)
	slices.Sort(nums)

	tests := make([]*Test, 0, len(nums))
	for _, n := range nums {
		tests = append(tests, registry[n])
	}
	return tests
}
