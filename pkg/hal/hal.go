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

// Package hal defines the hardware abstraction the compliance tests run on:
// processing elements with their MPAM system registers, PE-issued memory
// operations and the MPAM MSC controls. Driver implements the MSC controls
// on top of raw MSC register access over MMIO or PCC.
package hal

import (
	"errors"
	"sync"
)

// ErrAllocFailed is returned when an aligned allocation cannot be served.
var ErrAllocFailed = errors.New("aligned allocation failed")

// Platform is the system under test.
type Platform interface {
	// NumPE returns the number of processing elements.
	NumPE() int
	// PE returns the processing element with the given index.
	PE(index int) PE
	// MSC returns the MSC control interface.
	MSC() MscController
}

// PE is one processing element. Memory operations issued through a PE are
// tagged with the PARTID and PMG currently programmed in its MPAM registers.
type PE interface {
	Memory

	Index() int
	MPIDR() uint64
	ReadSysReg(reg SysReg) uint64
	WriteSysReg(reg SysReg, value uint64)
}

// Memory is the memory allocation and access interface of a PE.
type Memory interface {
	// AlignedAlloc allocates size bytes aligned to alignment, which must be
	// a power of two.
	AlignedAlloc(alignment, size uint64) (*Buffer, error)
	// FreeAligned releases a buffer returned by AlignedAlloc.
	FreeAligned(b *Buffer)
	// Copy copies size bytes from src to dst.
	Copy(dst, src *Buffer, size uint64)
}

// MscController exposes the MPAM controls and monitors of the platform's
// MSCs. MSCs are addressed by their index in the MPAM info table.
type MscController interface {
	SupportsRIS(msc int) bool
	SupportsCPOR(msc int) bool
	SupportsCSU(msc int) bool
	CSUMonitorCount(msc int) uint32

	// SelectResourceInstance directs subsequent configuration and
	// monitoring accesses of the MSC to one of its resources.
	SelectResourceInstance(msc, rsrc int)

	ConfigureCPOR(msc int, partid uint16, percentage uint32)
	ConfigureCSUMonitor(msc int, partid uint16, pmg uint8, monSel uint16)
	EnableCSUMonitor(msc int)
	DisableCSUMonitor(msc int)
	ReadCSUMonitor(msc int) uint32
}

// Buffer is a block of memory returned by Memory.AlignedAlloc.
type Buffer struct {
	Data []byte
	Addr uintptr

	once    sync.Once
	release func() error
	err     error
}

// NewBuffer wraps allocated memory. Release calls release exactly once.
func NewBuffer(data []byte, addr uintptr, release func() error) *Buffer {
	return &Buffer{Data: data, Addr: addr, release: release}
}

// Size returns the usable size of the buffer.
func (b *Buffer) Size() uint64 {
	return uint64(len(b.Data))
}

// Release frees the underlying memory. Calling it more than once is a no-op.
func (b *Buffer) Release() error {
	b.once.Do(func() {
		if b.release != nil {
			b.err = b.release()
		}
		b.Data = nil
	})
	return b.err
}
