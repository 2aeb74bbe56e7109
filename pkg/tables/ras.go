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

// RasNodeType is the type of component a RAS node belongs to.
type RasNodeType uint32

const (
	RasNodePE RasNodeType = iota
	RasNodeMC
	RasNodeSMMU
	RasNodeVendor
	RasNodeGIC
)

func (t RasNodeType) String() string {
	switch t {
	case RasNodePE:
		return "pe"
	case RasNodeMC:
		return "memory-controller"
	case RasNodeSMMU:
		return "smmu"
	case RasNodeVendor:
		return "vendor"
	case RasNodeGIC:
		return "gic"
	}
	return "unknown"
}

// RasPEData is the node specific data of a PE RAS node.
type RasPEData struct {
	ProcessorID      uint32
	ResourceType     uint32
	Flags            uint32
	Affinity         uint64
	ResourceSpecific uint64
}

// RasMCData is the node specific data of a memory controller RAS node.
type RasMCData struct {
	ProximityDomain uint32
}

// RasInterfaceInfo describes the error record interface of a RAS node.
type RasInterfaceInfo struct {
	InterfaceType        uint32
	Flags                uint32
	BaseAddress          uint64
	StartRecordIndex     uint32
	NumErrorRecords      uint32
	ErrorRecImplemented  uint64
	ErrorStatusReporting uint64
	AddressingMode       uint64
}

// RasInterruptInfo describes one interrupt of a RAS node.
type RasInterruptInfo struct {
	Type       uint32
	Flags      uint32
	GSIV       uint32
	ITSGroupID uint32
}

// RasNode is one RAS (AEST) node. Only one of PE and MC is meaningful,
// depending on Type.
type RasNode struct {
	Type       RasNodeType
	Length     uint16
	PE         RasPEData
	MC         RasMCData
	Interface  RasInterfaceInfo
	Interrupts []RasInterruptInfo
}

// RasInfoTable holds the RAS nodes of the platform.
type RasInfoTable struct {
	Nodes []RasNode
}

// NumPENodes returns the number of PE RAS nodes.
func (t *RasInfoTable) NumPENodes() int {
	return t.countType(RasNodePE)
}

// NumMCNodes returns the number of memory controller RAS nodes.
func (t *RasInfoTable) NumMCNodes() int {
	return t.countType(RasNodeMC)
}

func (t *RasInfoTable) countType(typ RasNodeType) int {
	if t == nil {
		return 0
	}
	n := 0
	for _, node := range t.Nodes {
		if node.Type == typ {
			n++
		}
	}
	return n
}

// Ras2FeatureType is the type of a RAS2 feature block.
type Ras2FeatureType uint32

const Ras2FeatureMemory Ras2FeatureType = 0

// Ras2Block is one RAS2 feature block.
type Ras2Block struct {
	Type               Ras2FeatureType
	ProximityDomain    uint32
	PatrolScrubSupport bool
}

// Ras2InfoTable holds the RAS2 feature blocks of the platform.
type Ras2InfoTable struct {
	Blocks []Ras2Block
}

// NumMemoryBlocks returns the number of memory feature blocks.
func (t *Ras2InfoTable) NumMemoryBlocks() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, b := range t.Blocks {
		if b.Type == Ras2FeatureMemory {
			n++
		}
	}
	return n
}
