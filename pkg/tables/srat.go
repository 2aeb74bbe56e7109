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

// SratNodeType is the SRAT affinity structure type.
type SratNodeType uint32

const (
	SratMemoryAffinity   SratNodeType = 0x01
	SratGiccAffinityType SratNodeType = 0x03
)

// SratMemAffinity is an SRAT memory affinity structure.
type SratMemAffinity struct {
	ProximityDomain uint32
	Flags           uint32
	AddrBase        uint64
	AddrLen         uint64
}

// SratGiccAffinity is an SRAT GICC affinity structure.
type SratGiccAffinity struct {
	ProximityDomain uint32
	ProcessorUID    uint32
	Flags           uint32
	ClockDomain     uint32
}

// SratEntry is one SRAT entry; Mem or Gicc is set according to Type.
type SratEntry struct {
	Type SratNodeType
	Mem  SratMemAffinity
	Gicc SratGiccAffinity
}

// SratInfoTable holds the SRAT entries of the platform.
type SratInfoTable struct {
	Entries []SratEntry
}

// MemRanges returns the memory affinity entries in table order.
func (t *SratInfoTable) MemRanges() []SratMemAffinity {
	if t == nil {
		return nil
	}
	var ranges []SratMemAffinity
	for _, e := range t.Entries {
		if e.Type == SratMemoryAffinity {
			ranges = append(ranges, e.Mem)
		}
	}
	return ranges
}

// ProximityDomainOf returns the proximity domain of the memory range that
// contains addr.
func (t *SratInfoTable) ProximityDomainOf(addr uint64) (uint32, bool) {
	for _, m := range t.MemRanges() {
		if addr >= m.AddrBase && addr-m.AddrBase < m.AddrLen {
			return m.ProximityDomain, true
		}
	}
	return 0, false
}
