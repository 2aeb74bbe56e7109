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

package mpam

import (
	"sync"

	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/utils"
)

// ApplyPartition gives partid percentage of the cache portions of a
// resource. The MSC must implement CPOR.
func ApplyPartition(msc hal.MscController, ref ResourceRef, partid uint16, percentage uint32) {
	SelectResource(msc, ref)
	msc.ConfigureCPOR(ref.Msc, partid, percentage)
}

// PartIDGuard holds the MPAM2_EL2 value of a PE that was in effect before
// WithDefaultTrafficPartID.
type PartIDGuard struct {
	pe    hal.PE
	saved uint64
	once  sync.Once
}

// WithDefaultTrafficPartID tags the data accesses of pe with partid and pmg
// by rewriting PARTID_D and PMG_D of MPAM2_EL2. The caller must call
// Restore on the returned guard.
func WithDefaultTrafficPartID(pe hal.PE, partid uint16, pmg uint8) *PartIDGuard {
	saved := pe.ReadSysReg(hal.MPAM2EL2)

	v := utils.ClearBits(saved, hal.MPAMnELxPartIDDShift+hal.MPAMnELxPartIDWidth-1, hal.MPAMnELxPartIDDShift)
	v = utils.ClearBits(v, hal.MPAMnELxPMGDShift+hal.MPAMnELxPMGWidth-1, hal.MPAMnELxPMGDShift)
	v |= uint64(pmg)<<hal.MPAMnELxPMGDShift | uint64(partid)<<hal.MPAMnELxPartIDDShift
	pe.WriteSysReg(hal.MPAM2EL2, v)

	return &PartIDGuard{pe: pe, saved: saved}
}

// Saved returns the MPAM2_EL2 value restored by Restore.
func (g *PartIDGuard) Saved() uint64 {
	return g.saved
}

// Restore writes back the saved MPAM2_EL2 value. Only the first call has
// an effect.
func (g *PartIDGuard) Restore() {
	g.once.Do(func() {
		g.pe.WriteSysReg(hal.MPAM2EL2, g.saved)
	})
}
