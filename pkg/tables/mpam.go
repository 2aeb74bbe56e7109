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

// MscInterfaceType is the interface through which an MSC's registers are
// reached.
type MscInterfaceType uint8

const (
	MscInterfaceMMIO MscInterfaceType = 0x00
	MscInterfacePCC  MscInterfaceType = 0x0a
)

func (t MscInterfaceType) String() string {
	switch t {
	case MscInterfaceMMIO:
		return "mmio"
	case MscInterfacePCC:
		return "pcc"
	}
	return "unknown"
}

// LocatorType identifies where an MPAM resource lives.
type LocatorType uint8

const (
	LocatorPECache         LocatorType = 0x00
	LocatorMemory          LocatorType = 0x01
	LocatorSMMU            LocatorType = 0x02
	LocatorMemorySideCache LocatorType = 0x03
	LocatorACPIDevice      LocatorType = 0x04
	LocatorInterconnect    LocatorType = 0x05
	LocatorUnknown         LocatorType = 0xff
)

func (t LocatorType) String() string {
	switch t {
	case LocatorPECache:
		return "pe-cache"
	case LocatorMemory:
		return "memory"
	case LocatorSMMU:
		return "smmu"
	case LocatorMemorySideCache:
		return "memory-side-cache"
	case LocatorACPIDevice:
		return "acpi-device"
	case LocatorInterconnect:
		return "interconnect"
	}
	return "unknown"
}

// ResourceNode is one resource controlled by an MSC.
type ResourceNode struct {
	RISIndex    uint8
	LocatorType LocatorType
	// Primary location descriptor. For PE caches this is the PPTT cache
	// reference, i.e. the cache ID (or the PPTT offset on older firmware).
	Descriptor1 uint64
	Descriptor2 uint32
}

// MscNode is one Memory System Component.
type MscNode struct {
	InterfaceType MscInterfaceType
	Identifier    uint32
	// Base address of the MMIO register frame, or the PCC subspace ID for
	// MSCs with a PCC interface.
	BaseAddress       uint64
	AddressLen        uint32
	OverflowIntr      uint32
	OverflowIntrFlags uint32
	ErrorIntr         uint32
	ErrorIntrFlags    uint32
	// Maximum time in microseconds the MSC is not ready after a
	// configuration change.
	MaxNrdyUsec uint32
	Resources   []ResourceNode
}

// MpamInfoTable holds the MSC nodes of the platform in firmware order.
type MpamInfoTable struct {
	Nodes []MscNode
}

// MpamField selects a property in MpamInfoTable.Info.
type MpamField int

const (
	MpamMscRsrcCount MpamField = iota
	MpamMscRsrcType
	MpamMscRsrcRIS
	MpamMscRsrcDesc1
	MpamMscRsrcDesc2
	MpamMscBaseAddr
	MpamMscAddrLen
	MpamMscNrdy
	MpamMscInterfaceType
	MpamMscIdentifier
)

// InvalidMpamInfo is returned by MpamInfoTable.Info for out-of-range indices.
const InvalidMpamInfo = ^uint64(0)

// MscCount returns the number of MSC nodes.
func (t *MpamInfoTable) MscCount() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

// Msc returns the MSC node at index.
func (t *MpamInfoTable) Msc(index int) (*MscNode, bool) {
	if index < 0 || index >= t.MscCount() {
		return nil, false
	}
	return &t.Nodes[index], true
}

// ResourceCount returns the number of resource nodes of an MSC.
func (t *MpamInfoTable) ResourceCount(msc int) int {
	if n, ok := t.Msc(msc); ok {
		return len(n.Resources)
	}
	return 0
}

// Resource returns one resource node of an MSC.
func (t *MpamInfoTable) Resource(msc, rsrc int) (*ResourceNode, bool) {
	n, ok := t.Msc(msc)
	if !ok || rsrc < 0 || rsrc >= len(n.Resources) {
		return nil, false
	}
	return &n.Resources[rsrc], true
}

// Info returns one property of an MSC (rsrc ignored) or of one of its
// resource nodes.
func (t *MpamInfoTable) Info(field MpamField, msc, rsrc int) uint64 {
	n, ok := t.Msc(msc)
	if !ok {
		return InvalidMpamInfo
	}

	switch field {
	case MpamMscRsrcCount:
		return uint64(len(n.Resources))
	case MpamMscBaseAddr:
		return n.BaseAddress
	case MpamMscAddrLen:
		return uint64(n.AddressLen)
	case MpamMscNrdy:
		return uint64(n.MaxNrdyUsec)
	case MpamMscInterfaceType:
		return uint64(n.InterfaceType)
	case MpamMscIdentifier:
		return uint64(n.Identifier)
	}

	r, ok := t.Resource(msc, rsrc)
	if !ok {
		return InvalidMpamInfo
	}
	switch field {
	case MpamMscRsrcType:
		return uint64(r.LocatorType)
	case MpamMscRsrcRIS:
		return uint64(r.RISIndex)
	case MpamMscRsrcDesc1:
		return r.Descriptor1
	case MpamMscRsrcDesc2:
		return uint64(r.Descriptor2)
	}
	return InvalidMpamInfo
}

// MscByIdentifier returns the index of the MSC with the given identifier.
func (t *MpamInfoTable) MscByIdentifier(id uint32) (int, bool) {
	for i := range t.MscCount() {
		if t.Nodes[i].Identifier == id {
			return i, true
		}
	}
	return 0, false
}
