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

package sim

import (
	"math/bits"

	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/tables"
	"github.com/acs-suite/gompam/pkg/utils"
)

// occupancyKey identifies the cache footprint of one PARTID/PMG pair in one
// resource instance.
type occupancyKey struct {
	ris    uint8
	partid uint16
	pmg    uint8
}

type cpbmKey struct {
	ris    uint8
	partid uint16
}

type monitor struct {
	flt   uint32
	ctl   uint32
	value uint32
}

// msc is the register model of one simulated MSC.
type msc struct {
	node *tables.MscNode
	cfg  MscConfig

	partidMax uint16
	pmgMax    uint8
	cpor      bool
	ris       bool
	cpbmWidth uint16

	// capacity in bytes of each PE cache resource, by RIS index
	capacity map[uint8]uint64

	partSel  uint32
	monSel   uint32
	cpbm     map[cpbmKey][]uint32
	monitors []monitor

	occupancy map[occupancyKey]uint64
}

func newMsc(node *tables.MscNode, cfg MscConfig, caches *tables.CacheInfoTable) *msc {
	m := &msc{
		node:      node,
		cfg:       cfg,
		partidMax: defaultPartIDMax,
		pmgMax:    defaultPMGMax,
		cpor:      true,
		ris:       len(node.Resources) > 1,
		cpbmWidth: defaultCPBMWidth,
		capacity:  map[uint8]uint64{},
		cpbm:      map[cpbmKey][]uint32{},
		occupancy: map[occupancyKey]uint64{},
	}
	numMon := uint16(defaultCSUMonitors)

	if cfg.PartIDMax != nil {
		m.partidMax = *cfg.PartIDMax
	}
	if cfg.PMGMax != nil {
		m.pmgMax = *cfg.PMGMax
	}
	if cfg.CPOR != nil {
		m.cpor = *cfg.CPOR
	}
	if cfg.RIS != nil {
		m.ris = *cfg.RIS
	}
	if cfg.CPBMWidth != nil && *cfg.CPBMWidth > 0 {
		m.cpbmWidth = *cfg.CPBMWidth
	}
	if cfg.CSUMonitors != nil {
		numMon = *cfg.CSUMonitors
	}
	m.monitors = make([]monitor, numMon)

	for _, r := range node.Resources {
		if r.LocatorType != tables.LocatorPECache {
			continue
		}
		m.capacity[r.RISIndex] = cacheSize(caches, r.Descriptor1)
	}
	return m
}

// cacheSize looks up a cache by ID, falling back to the PPTT offset.
func cacheSize(caches *tables.CacheInfoTable, key uint64) uint64 {
	for i := range caches.Len() {
		if caches.Info(tables.CacheFieldID, i) == key {
			return sizeOf(caches, i)
		}
	}
	for i := range caches.Len() {
		if caches.Info(tables.CacheFieldOffset, i) == key {
			return sizeOf(caches, i)
		}
	}
	return 0
}

func sizeOf(caches *tables.CacheInfoTable, i int) uint64 {
	if size := caches.Info(tables.CacheFieldSize, i); size != tables.InvalidCacheInfo {
		return size
	}
	return 0
}

func (m *msc) selectedRIS(sel uint32, shift uint) uint8 {
	if !m.ris {
		return 0
	}
	return uint8(utils.GetBits(uint64(sel), shift+3, shift))
}

func (m *msc) selectedMonitor() *monitor {
	idx := int(m.monSel & hal.MonSelMonSelMask)
	if idx >= len(m.monitors) {
		return nil
	}
	return &m.monitors[idx]
}

func (m *msc) selectedCPBM() []uint32 {
	key := cpbmKey{
		ris:    m.selectedRIS(m.partSel, hal.PartSelRISShift),
		partid: uint16(m.partSel & hal.PartSelPartIDMask),
	}
	cpbm, ok := m.cpbm[key]
	if !ok {
		// Reset value gives every PARTID all portions.
		cpbm = make([]uint32, (m.cpbmWidth+31)/32)
		for w := range cpbm {
			cpbm[w] = ^uint32(0)
		}
		if rem := m.cpbmWidth % 32; rem != 0 {
			cpbm[len(cpbm)-1] = uint32(utils.FieldMask(uint(rem-1), 0))
		}
		m.cpbm[key] = cpbm
	}
	return cpbm
}

func (m *msc) idr() uint64 {
	var idr uint64
	idr = utils.SetBits(idr, hal.IDRPartIDMaxShift+15, hal.IDRPartIDMaxShift, uint64(m.partidMax))
	idr = utils.SetBits(idr, hal.IDRPMGMaxShift+7, hal.IDRPMGMaxShift, uint64(m.pmgMax))
	if m.cpor {
		idr |= 1 << hal.IDRHasCPORPart
	}
	if len(m.monitors) > 0 {
		idr |= 1 << hal.IDRHasMSMON
	}
	if m.ris {
		idr |= 1 << hal.IDRHasRIS
		var risMax uint64
		for _, r := range m.node.Resources {
			risMax = max(risMax, uint64(r.RISIndex))
		}
		idr = utils.SetBits(idr, hal.IDRRISMaxShift+3, hal.IDRRISMaxShift, risMax)
	}
	return idr
}

func (m *msc) read(offset uint32) uint32 {
	switch {
	case offset == hal.MPAMFIDR:
		return uint32(m.idr())
	case offset == hal.MPAMFIDR+4:
		return uint32(m.idr() >> 32)
	case offset == hal.MPAMFCPORIDR:
		if m.cpor {
			return uint32(m.cpbmWidth)
		}
		return 0
	case offset == hal.MPAMFMSMONIDR:
		if len(m.monitors) > 0 {
			return 1 << hal.MSMONIDRCSU
		}
		return 0
	case offset == hal.MPAMFCSUMONIDR:
		return uint32(len(m.monitors))
	case offset == hal.MPAMCFGPartSel:
		return m.partSel
	case offset == hal.MSMONCfgMonSel:
		return m.monSel
	case offset == hal.MSMONCfgCSUFlt:
		if mon := m.selectedMonitor(); mon != nil {
			return mon.flt
		}
	case offset == hal.MSMONCfgCSUCtl:
		if mon := m.selectedMonitor(); mon != nil {
			return mon.ctl
		}
	case offset == hal.MSMONCSU:
		if mon := m.selectedMonitor(); mon != nil {
			return m.csuValue(mon)
		}
	case m.cpor && offset >= hal.MPAMCFGCPBMBase:
		word := int(offset-hal.MPAMCFGCPBMBase) / 4
		if cpbm := m.selectedCPBM(); word < len(cpbm) {
			return cpbm[word]
		}
	}
	return 0
}

func (m *msc) write(offset uint32, value uint32) {
	switch {
	case offset == hal.MPAMCFGPartSel:
		m.partSel = value
	case offset == hal.MSMONCfgMonSel:
		m.monSel = value
	case offset == hal.MSMONCfgCSUFlt:
		if mon := m.selectedMonitor(); mon != nil {
			mon.flt = value
			mon.value = 0
		}
	case offset == hal.MSMONCfgCSUCtl:
		if mon := m.selectedMonitor(); mon != nil {
			if utils.BitSet(uint64(mon.ctl), hal.CSUCtlEn) && !utils.BitSet(uint64(value), hal.CSUCtlEn) {
				// Disabling freezes the last count.
				mon.value = m.csuValue(mon)
			}
			mon.ctl = value
		}
	case offset == hal.MSMONCSU:
		if mon := m.selectedMonitor(); mon != nil {
			mon.value = value & hal.CSUValueMask
		}
	case m.cpor && offset >= hal.MPAMCFGCPBMBase:
		word := int(offset-hal.MPAMCFGCPBMBase) / 4
		if cpbm := m.selectedCPBM(); word < len(cpbm) {
			cpbm[word] = value
		}
	}
}

// csuValue returns the count of a monitor: the live occupancy of the
// monitored PARTID/PMG while enabled, the stored count otherwise.
func (m *msc) csuValue(mon *monitor) uint32 {
	if m.cfg.BrokenCSU {
		return 0
	}
	if !utils.BitSet(uint64(mon.ctl), hal.CSUCtlEn) {
		return mon.value
	}

	ris := m.selectedRIS(m.monSel, hal.MonSelRISShift)
	partid := uint16(mon.flt & hal.CSUFltPartIDMask)
	pmg := uint8(mon.flt >> hal.CSUFltPMGShift & hal.CSUFltPMGMask)
	matchPartID := utils.BitSet(uint64(mon.ctl), hal.CSUCtlMatchPartID) && !m.cfg.UnfilteredCSU
	matchPMG := utils.BitSet(uint64(mon.ctl), hal.CSUCtlMatchPMG) && !m.cfg.UnfilteredCSU

	var total uint64
	for k, bytes := range m.occupancy {
		if k.ris != ris {
			continue
		}
		if matchPartID && k.partid != partid {
			continue
		}
		if matchPMG && k.pmg != pmg {
			continue
		}
		total += bytes
	}
	return uint32(min(total, uint64(hal.CSUValueMask)))
}

// fill allocates size bytes of footprint for partid/pmg in every PE cache
// resource of the MSC, bounded by the portions partid may allocate into.
func (m *msc) fill(partid uint16, pmg uint8, size uint64) {
	for ris, capacity := range m.capacity {
		limit := capacity
		if m.cpor {
			saved := m.partSel
			m.partSel = uint32(partid) | uint32(ris)<<hal.PartSelRISShift
			portions := 0
			for _, w := range m.selectedCPBM() {
				portions += bits.OnesCount32(w)
			}
			m.partSel = saved
			limit = capacity * uint64(portions) / uint64(m.cpbmWidth)
		}

		key := occupancyKey{ris: ris, partid: partid, pmg: pmg}
		m.occupancy[key] = min(m.occupancy[key]+size, limit)
	}
}
