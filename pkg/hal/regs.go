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

package hal

// SysReg identifies a PE system register.
type SysReg int

const (
	MPAM1EL1 SysReg = iota
	MPAM2EL2
	MPAMIDREL1
)

func (r SysReg) String() string {
	switch r {
	case MPAM1EL1:
		return "MPAM1_EL1"
	case MPAM2EL2:
		return "MPAM2_EL2"
	case MPAMIDREL1:
		return "MPAMIDR_EL1"
	}
	return "SYSREG(unknown)"
}

// MPAMn_ELx field layout.
const (
	MPAMnELxPartIDIShift = 0
	MPAMnELxPartIDDShift = 16
	MPAMnELxPMGIShift    = 32
	MPAMnELxPMGDShift    = 40
	MPAMnELxPartIDWidth  = 16
	MPAMnELxPMGWidth     = 8
)

// DefaultPMG is the PMG used for test traffic.
const DefaultPMG uint8 = 0

// MSC memory-mapped register offsets.
const (
	MPAMFIDR        uint32 = 0x0000
	MPAMFCPORIDR    uint32 = 0x0030
	MPAMFMSMONIDR   uint32 = 0x0080
	MPAMFCSUMONIDR  uint32 = 0x0088
	MPAMCFGPartSel  uint32 = 0x0100
	MSMONCfgMonSel  uint32 = 0x0800
	MSMONCfgCSUFlt  uint32 = 0x0810
	MSMONCfgCSUCtl  uint32 = 0x0818
	MSMONCSU        uint32 = 0x0840
	MPAMCFGCPBMBase uint32 = 0x1000
)

// MPAMF_IDR fields (64-bit register).
const (
	IDRPartIDMaxShift = 0
	IDRPMGMaxShift    = 16
	IDRHasCCAPPart    = 24
	IDRHasCPORPart    = 25
	IDRHasMBWPart     = 26
	IDRHasPRIPart     = 27
	IDRHasMSMON       = 30
	IDRHasRIS         = 32
	IDRRISMaxShift    = 56
)

// Other MSC register fields.
const (
	CPORIDRCPBMWdMask = 0xffff

	MSMONIDRCSU = 16

	CSUMONIDRNumMonMask = 0xffff

	PartSelPartIDMask = 0xffff
	PartSelRISShift   = 24
	PartSelRISMask    = 0xf

	MonSelMonSelMask = 0xffff
	MonSelRISShift   = 24
	MonSelRISMask    = 0xf

	CSUFltPartIDMask = 0xffff
	CSUFltPMGShift   = 16
	CSUFltPMGMask    = 0xff

	CSUCtlMatchPartID = 16
	CSUCtlMatchPMG    = 17
	CSUCtlEn          = 31

	CSUValueMask = 0x7fffffff
	CSUNrdy      = 31
)
