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

// PccSubspaceType3 is the PCCT extended PCC subspace type used for MPAM.
const PccSubspaceType3 = 0x03

// GenericAddress is an ACPI Generic Address Structure.
type GenericAddress struct {
	AddrSpaceID  uint8
	RegBitWidth  uint8
	RegBitOffset uint8
	AccessSize   uint8
	Address      uint64
}

// PccType3Info is the type specific part of an extended PCC subspace.
type PccType3Info struct {
	BaseAddress               uint64
	DoorbellReg               GenericAddress
	DoorbellPreserve          uint64
	DoorbellWrite             uint64
	MinReqTurnaroundUsec      uint32
	CmdCompleteCheckReg       GenericAddress
	CmdCompleteCheckMask      uint64
	CmdCompleteUpdateReg      GenericAddress
	CmdCompleteUpdatePreserve uint64
	CmdCompleteUpdateSet      uint64
}

// PccInfo describes one PCC subspace.
type PccInfo struct {
	SubspaceIndex uint32
	SubspaceType  uint32
	Type3         PccType3Info
}

// PccInfoTable holds the PCC subspaces of the platform.
type PccInfoTable struct {
	Subspaces []PccInfo
}

// Subspace returns the PCC subspace with the given PCCT index.
func (t *PccInfoTable) Subspace(index uint32) (*PccInfo, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Subspaces {
		if t.Subspaces[i].SubspaceIndex == index {
			return &t.Subspaces[i], true
		}
	}
	return nil, false
}
