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
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/utils"
)

// pe is one simulated processing element.
type pe struct {
	sync.Mutex

	platform *Platform
	index    int
	sysregs  map[hal.SysReg]uint64

	outstanding int
}

func newPE(p *Platform, index int, mpam2 uint64) *pe {
	var idr uint64
	idr = utils.SetBits(idr, 15, 0, defaultPartIDMax)
	idr = utils.SetBits(idr, 39, 32, defaultPMGMax)
	return &pe{
		platform: p,
		index:    index,
		sysregs: map[hal.SysReg]uint64{
			hal.MPAM1EL1:   mpam2,
			hal.MPAM2EL2:   mpam2,
			hal.MPAMIDREL1: idr,
		},
	}
}

// Index implements hal.PE.
func (c *pe) Index() int {
	return c.index
}

// MPIDR implements hal.PE. PEs are numbered linearly in Aff0.
func (c *pe) MPIDR() uint64 {
	return 1<<31 | uint64(c.index)
}

// ReadSysReg implements hal.PE.
func (c *pe) ReadSysReg(reg hal.SysReg) uint64 {
	c.Lock()
	defer c.Unlock()
	return c.sysregs[reg]
}

// WriteSysReg implements hal.PE.
func (c *pe) WriteSysReg(reg hal.SysReg, value uint64) {
	if reg == hal.MPAMIDREL1 {
		return
	}
	c.Lock()
	c.sysregs[reg] = value
	c.Unlock()

	c.platform.Lock()
	c.platform.regWrites++
	c.platform.Unlock()
}

// AlignedAlloc implements hal.Memory with anonymous mappings, over-mapping
// when the alignment exceeds the page size.
func (c *pe) AlignedAlloc(alignment, size uint64) (*hal.Buffer, error) {
	if size == 0 || alignment == 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("%w: size %d, alignment %d", hal.ErrAllocFailed, size, alignment)
	}

	p := c.platform
	p.Lock()
	if p.allocFailAfter >= 0 && p.allocs >= p.allocFailAfter {
		p.Unlock()
		return nil, fmt.Errorf("%w: allocation limit of %d reached", hal.ErrAllocFailed, p.allocFailAfter)
	}
	p.allocs++
	p.Unlock()

	pageSize := uint64(unix.Getpagesize())
	mapLen := size
	if alignment > pageSize {
		mapLen += alignment
	}
	mapLen = (mapLen + pageSize - 1) &^ (pageSize - 1)

	mem, err := unix.Mmap(-1, 0, int(mapLen), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap of %d bytes: %v", hal.ErrAllocFailed, mapLen, err)
	}

	base := uintptr(unsafe.Pointer(&mem[0]))
	skip := (alignment - uint64(base)%alignment) % alignment
	data := mem[skip : skip+size : skip+size]

	c.Lock()
	c.outstanding++
	c.Unlock()

	return hal.NewBuffer(data, base+uintptr(skip), func() error {
		c.Lock()
		c.outstanding--
		c.Unlock()
		return unix.Munmap(mem)
	}), nil
}

// FreeAligned implements hal.Memory.
func (c *pe) FreeAligned(b *hal.Buffer) {
	if b == nil {
		return
	}
	if err := b.Release(); err != nil {
		c.platform.log.Error("failed to unmap buffer", "pe", c.index, "error", err)
	}
}

// Copy implements hal.Memory. The cache footprint of both buffers is
// attributed to the data PARTID and PMG in MPAM2_EL2.
func (c *pe) Copy(dst, src *hal.Buffer, size uint64) {
	size = min(size, dst.Size(), src.Size())
	copy(dst.Data[:size], src.Data[:size])

	mpam2 := c.ReadSysReg(hal.MPAM2EL2)
	partid := uint16(utils.GetBits(mpam2, hal.MPAMnELxPartIDDShift+hal.MPAMnELxPartIDWidth-1, hal.MPAMnELxPartIDDShift))
	pmg := uint8(utils.GetBits(mpam2, hal.MPAMnELxPMGDShift+hal.MPAMnELxPMGWidth-1, hal.MPAMnELxPMGDShift))

	c.platform.traffic(partid, pmg, 2*size)
}
