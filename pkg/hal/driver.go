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

import (
	"log/slog"

	grclog "github.com/acs-suite/gompam/pkg/log"
	"github.com/acs-suite/gompam/pkg/tables"
	"github.com/acs-suite/gompam/pkg/utils"
)

// MMIO is raw 32-bit access to physical register space.
type MMIO interface {
	Read32(addr uint64) uint32
	Write32(addr uint64, value uint32)
}

// Driver implements MscController by programming the architected MSC
// registers. Each MSC is reached over MMIO or PCC according to its
// interface type in the MPAM info table.
type Driver struct {
	mpam *tables.MpamInfoTable
	mmio MMIO
	pcc  PCCChannel
	log  *slog.Logger

	// RIS selected per MSC, carried in every PART_SEL and MON_SEL write
	ris   map[int]uint8
	token uint16
}

// NewDriver creates an MSC driver. pcc may be nil if no MSC has a PCC
// interface.
func NewDriver(mpam *tables.MpamInfoTable, mmio MMIO, pcc PCCChannel) *Driver {
	return &Driver{
		mpam: mpam,
		mmio: mmio,
		pcc:  pcc,
		log:  grclog.NewLogger("msc"),
		ris:  map[int]uint8{},
	}
}

// Read32 reads one MSC register.
func (d *Driver) Read32(msc int, offset uint32) uint32 {
	node, ok := d.mpam.Msc(msc)
	if !ok {
		d.log.Error("read from unknown msc", "msc", msc, "offset", offset)
		return PccReadFailure
	}

	if node.InterfaceType != tables.MscInterfacePCC {
		return d.mmio.Read32(node.BaseAddress + uint64(offset))
	}

	if d.pcc == nil {
		d.log.Error("no pcc channel for msc", "msc", msc)
		return PccReadFailure
	}
	d.token++
	resp, err := d.pcc.Transact(uint32(node.BaseAddress),
		EncodeMscReadCmd(d.token, MscReadCmd{MscID: node.Identifier, Offset: offset}))
	if err != nil {
		d.log.Error("pcc msc read failed", "msc", msc, "offset", offset, "error", err)
		return PccReadFailure
	}
	status, value, err := DecodeMscReadResp(resp)
	if err != nil || status != MpamPccCmdSuccess {
		d.log.Error("pcc msc read failed", "msc", msc, "offset", offset, "status", status, "error", err)
		return PccReadFailure
	}
	return value
}

// Write32 writes one MSC register.
func (d *Driver) Write32(msc int, offset uint32, value uint32) {
	node, ok := d.mpam.Msc(msc)
	if !ok {
		d.log.Error("write to unknown msc", "msc", msc, "offset", offset)
		return
	}

	if node.InterfaceType != tables.MscInterfacePCC {
		d.mmio.Write32(node.BaseAddress+uint64(offset), value)
		return
	}

	if d.pcc == nil {
		d.log.Error("no pcc channel for msc", "msc", msc)
		return
	}
	d.token++
	resp, err := d.pcc.Transact(uint32(node.BaseAddress),
		EncodeMscWriteCmd(d.token, MscWriteCmd{MscID: node.Identifier, Value: value, Offset: offset}))
	if err == nil {
		var status int32
		if status, err = DecodeMscWriteResp(resp); err == nil && status != MpamPccCmdSuccess {
			d.log.Error("pcc msc write rejected", "msc", msc, "offset", offset, "status", status)
		}
	}
	if err != nil {
		d.log.Error("pcc msc write failed", "msc", msc, "offset", offset, "error", err)
	}
}

func (d *Driver) idr(msc int) uint64 {
	lo := d.Read32(msc, MPAMFIDR)
	hi := d.Read32(msc, MPAMFIDR+4)
	return uint64(hi)<<32 | uint64(lo)
}

// SupportsRIS implements MscController.
func (d *Driver) SupportsRIS(msc int) bool {
	return utils.BitSet(d.idr(msc), IDRHasRIS)
}

// SupportsCPOR implements MscController.
func (d *Driver) SupportsCPOR(msc int) bool {
	return utils.BitSet(d.idr(msc), IDRHasCPORPart)
}

// SupportsCSU implements MscController.
func (d *Driver) SupportsCSU(msc int) bool {
	if !utils.BitSet(d.idr(msc), IDRHasMSMON) {
		return false
	}
	if !utils.BitSet(uint64(d.Read32(msc, MPAMFMSMONIDR)), MSMONIDRCSU) {
		return false
	}
	return d.CSUMonitorCount(msc) > 0
}

// CSUMonitorCount implements MscController.
func (d *Driver) CSUMonitorCount(msc int) uint32 {
	return d.Read32(msc, MPAMFCSUMONIDR) & CSUMONIDRNumMonMask
}

// SelectResourceInstance implements MscController.
func (d *Driver) SelectResourceInstance(msc, rsrc int) {
	r, ok := d.mpam.Resource(msc, rsrc)
	if !ok {
		d.log.Error("ris select of unknown resource", "msc", msc, "resource", rsrc)
		return
	}
	d.ris[msc] = r.RISIndex

	partSel := uint64(d.Read32(msc, MPAMCFGPartSel))
	partSel = utils.SetBits(partSel, PartSelRISShift+3, PartSelRISShift, uint64(r.RISIndex))
	d.Write32(msc, MPAMCFGPartSel, uint32(partSel))

	monSel := uint64(d.Read32(msc, MSMONCfgMonSel))
	monSel = utils.SetBits(monSel, MonSelRISShift+3, MonSelRISShift, uint64(r.RISIndex))
	d.Write32(msc, MSMONCfgMonSel, uint32(monSel))
}

// ConfigureCPOR implements MscController. The lowest percentage share of
// the cache portions, at least one, is given to partid.
func (d *Driver) ConfigureCPOR(msc int, partid uint16, percentage uint32) {
	d.Write32(msc, MPAMCFGPartSel, uint32(partid)|uint32(d.ris[msc])<<PartSelRISShift)

	width := d.Read32(msc, MPAMFCPORIDR) & CPORIDRCPBMWdMask
	portions := width * percentage / 100
	if portions == 0 && percentage > 0 {
		portions = 1
	}
	if portions > width {
		portions = width
	}
	d.log.Debug("configuring cpor", "msc", msc, "partid", partid, "cpbmWidth", width, "portions", portions)

	for word := uint32(0); word*32 < width; word++ {
		var bits uint32
		switch {
		case portions >= (word+1)*32:
			bits = ^uint32(0)
		case portions > word*32:
			bits = uint32(utils.FieldMask(uint(portions-word*32-1), 0))
		}
		d.Write32(msc, MPAMCFGCPBMBase+4*word, bits)
	}
}

// ConfigureCSUMonitor implements MscController. The monitor is left
// disabled with its filter matching both partid and pmg.
func (d *Driver) ConfigureCSUMonitor(msc int, partid uint16, pmg uint8, monSel uint16) {
	d.Write32(msc, MSMONCfgMonSel, uint32(monSel)|uint32(d.ris[msc])<<MonSelRISShift)
	d.Write32(msc, MSMONCfgCSUFlt, uint32(partid)|uint32(pmg)<<CSUFltPMGShift)
	d.Write32(msc, MSMONCfgCSUCtl, 1<<CSUCtlMatchPartID|1<<CSUCtlMatchPMG)
	d.Write32(msc, MSMONCSU, 0)
}

// EnableCSUMonitor implements MscController.
func (d *Driver) EnableCSUMonitor(msc int) {
	d.Write32(msc, MSMONCfgCSUCtl, d.Read32(msc, MSMONCfgCSUCtl)|1<<CSUCtlEn)
}

// DisableCSUMonitor implements MscController.
func (d *Driver) DisableCSUMonitor(msc int) {
	d.Write32(msc, MSMONCfgCSUCtl, d.Read32(msc, MSMONCfgCSUCtl)&^(1<<CSUCtlEn))
}

// ReadCSUMonitor implements MscController.
func (d *Driver) ReadCSUMonitor(msc int) uint32 {
	return d.Read32(msc, MSMONCSU) & CSUValueMask
}
