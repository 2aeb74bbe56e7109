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

// PmuNodeType is the component a system PMU block is associated with.
type PmuNodeType uint8

const (
	PmuNodeSMMU PmuNodeType = iota
	PmuNodePCIeRC
	PmuNodeACPIDevice
	PmuNodePECache
)

// PmuInfoBlock describes one system PMU (APMT) block.
type PmuInfoBlock struct {
	Type              PmuNodeType
	PrimaryInstance   uint64
	SecondaryInstance uint32
	// Page 1 base is valid only with the dual-page extension.
	DualPageExtension  bool
	Base0              uint64
	Base1              uint64
	CoresightCompliant bool
}

// PmuInfoTable holds the system PMU blocks of the platform.
type PmuInfoTable struct {
	Blocks []PmuInfoBlock
}

// Lookup returns the index of the first PMU block of the given type whose
// primary instance matches.
func (t *PmuInfoTable) Lookup(typ PmuNodeType, primary uint64) (int, bool) {
	if t == nil {
		return 0, false
	}
	for i, b := range t.Blocks {
		if b.Type == typ && b.PrimaryInstance == primary {
			return i, true
		}
	}
	return 0, false
}
