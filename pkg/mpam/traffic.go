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
	"fmt"
	"log/slog"

	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/tables"
)

// Alignment of traffic buffers.
const bufferAlignment = 4096

// settleFunc waits for an MSC to become ready after a configuration
// change, given its maximum not-ready time.
var settleFunc = busyWait

func busyWait(count uint64) {
	for count > 0 {
		count--
	}
}

// TrafficBuffers are the source and destination of the copies generating
// cache traffic.
type TrafficBuffers struct {
	mem  hal.Memory
	Src  *hal.Buffer
	Dst  *hal.Buffer
	Size uint64
}

// AllocTrafficBuffers allocates two aligned buffers of size bytes. Nothing
// stays allocated if it fails.
func AllocTrafficBuffers(mem hal.Memory, size uint64) (*TrafficBuffers, error) {
	src, err := mem.AlignedAlloc(bufferAlignment, size)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate source buffer: %w", err)
	}
	dst, err := mem.AlignedAlloc(bufferAlignment, size)
	if err != nil {
		mem.FreeAligned(src)
		return nil, fmt.Errorf("failed to allocate destination buffer: %w", err)
	}
	return &TrafficBuffers{mem: mem, Src: src, Dst: dst, Size: size}, nil
}

// Free releases both buffers.
func (b *TrafficBuffers) Free() {
	b.mem.FreeAligned(b.Src)
	b.mem.FreeAligned(b.Dst)
}

// RunTrafficRound measures the cache storage attributed to partid and pmg
// while pe copies the traffic buffers: the CSU monitor of the MSC is
// programmed for partid and pmg, if the MSC has CSU monitors, and enabled.
// After the MSC has settled one copy is made and the monitor is read. The
// monitor is left enabled.
func RunTrafficRound(log *slog.Logger, msc hal.MscController, mpam *tables.MpamInfoTable, pe hal.PE,
	ref ResourceRef, partid uint16, pmg uint8, bufs *TrafficBuffers) uint32 {
	if msc.SupportsCSU(ref.Msc) {
		msc.ConfigureCSUMonitor(ref.Msc, partid, pmg, 0)
	}
	log.Debug("initial monitor value", "resource", ref, "partid", partid, "value", msc.ReadCSUMonitor(ref.Msc))

	msc.EnableCSUMonitor(ref.Msc)
	settleFunc(mpam.Info(tables.MpamMscNrdy, ref.Msc, 0))

	pe.Copy(bufs.Dst, bufs.Src, bufs.Size)

	value := msc.ReadCSUMonitor(ref.Msc)
	log.Debug("storage monitor value", "resource", ref, "partid", partid, "value", value)
	return value
}
