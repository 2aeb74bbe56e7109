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

package tables

// HmatBwUnreachable marks an unreachable bandwidth entry in HMAT.
const HmatBwUnreachable = 0xffff

// HmatBwEntry holds the maximum bandwidth of one memory proximity domain.
type HmatBwEntry struct {
	MemProximityDomain uint32
	WriteBw            uint64
	ReadBw             uint64
}

// HmatInfoTable holds the per proximity domain bandwidth information.
type HmatInfoTable struct {
	Entries []HmatBwEntry
}

// Bandwidth returns the bandwidth entry of a memory proximity domain.
func (t *HmatInfoTable) Bandwidth(domain uint32) (HmatBwEntry, bool) {
	if t == nil {
		return HmatBwEntry{}, false
	}
	for _, e := range t.Entries {
		if e.MemProximityDomain == domain {
			return e, true
		}
	}
	return HmatBwEntry{}, false
}
