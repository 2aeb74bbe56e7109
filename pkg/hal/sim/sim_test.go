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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/tables"
	"github.com/acs-suite/gompam/pkg/testutils"
)

const (
	llcMsc = 0
	pccMsc = 1
)

func newTestPlatform(t *testing.T, modify func(*Config)) *Platform {
	t.Helper()
	tbl, err := tables.LoadFile(filepath.Join("testdata", "platform.yaml"))
	require.NoError(t, err)
	c, err := ParseConfig(mustRead(t))
	require.NoError(t, err)
	if modify != nil {
		modify(c)
	}
	p, err := New(tbl, c)
	require.NoError(t, err)
	return p
}

func mustRead(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "platform.yaml"))
	require.NoError(t, err)
	return data
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte("caches: []\n"))
	require.NoError(t, err)
	testutils.VerifyDeepEqual(t, "default config", &Config{}, c)

	c, err = ParseConfig(mustRead(t))
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumPE)
	assert.Equal(t, uint64(0x0000010000050000), c.MPAM2EL2)
	require.Len(t, c.MSCs, 2)
	require.NotNil(t, c.MSCs[0].CPBMWidth)
	assert.Equal(t, uint16(20), *c.MSCs[0].CPBMWidth)
	require.NotNil(t, c.MSCs[1].CPOR)
	assert.False(t, *c.MSCs[1].CPOR)

	_, err = ParseConfig([]byte("simulation: [1, 2"))
	assert.Error(t, err)
}

func TestNewFromFile(t *testing.T) {
	p, tbl, err := NewFromFile(filepath.Join("testdata", "platform.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumPE())
	assert.Equal(t, 2, tbl.Mpam.MscCount())

	_, _, err = NewFromFile(testutils.CreateTempFile(t, "mscs: [{identifier: 1}, {identifier: 1}]\n"))
	assert.Error(t, err)
}

func TestNewErrors(t *testing.T) {
	tbl, err := tables.LoadFile(filepath.Join("testdata", "platform.yaml"))
	require.NoError(t, err)

	_, err = New(tbl, &Config{MSCs: []MscConfig{{Identifier: 42}}})
	testutils.VerifyError(t, err, 1, []string{"unknown msc 42"})

	p, err := New(tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumPE())
	assert.Nil(t, p.PE(1))
}

func TestCapabilities(t *testing.T) {
	p := newTestPlatform(t, nil)
	msc := p.MSC()

	assert.True(t, msc.SupportsRIS(llcMsc))
	assert.True(t, msc.SupportsCPOR(llcMsc))
	assert.True(t, msc.SupportsCSU(llcMsc))
	assert.Equal(t, uint32(8), msc.CSUMonitorCount(llcMsc))

	// Reached over PCC.
	assert.False(t, msc.SupportsRIS(pccMsc))
	assert.False(t, msc.SupportsCPOR(pccMsc))
	assert.False(t, msc.SupportsCSU(pccMsc))
	assert.Equal(t, uint32(defaultPartIDMax), p.Driver().Read32(pccMsc, hal.MPAMFIDR)&0xffff)

	assert.Zero(t, p.RegisterWrites(), "capability discovery must not write registers")
}

func TestSysRegs(t *testing.T) {
	p := newTestPlatform(t, nil)
	require.Equal(t, 2, p.NumPE())

	pe := p.PE(1)
	assert.Equal(t, 1, pe.Index())
	assert.Equal(t, uint64(1<<31|1), pe.MPIDR())
	assert.Equal(t, uint64(0x0000010000050000), pe.ReadSysReg(hal.MPAM2EL2))

	pe.WriteSysReg(hal.MPAM2EL2, 0)
	assert.Zero(t, pe.ReadSysReg(hal.MPAM2EL2))
	assert.Equal(t, uint64(0x0000010000050000), p.PE(0).ReadSysReg(hal.MPAM2EL2))

	idr := pe.ReadSysReg(hal.MPAMIDREL1)
	pe.WriteSysReg(hal.MPAMIDREL1, 0)
	assert.Equal(t, idr, pe.ReadSysReg(hal.MPAMIDREL1), "MPAMIDR_EL1 is read-only")
	assert.Equal(t, 1, p.RegisterWrites())
}

func TestAlignedAlloc(t *testing.T) {
	p := newTestPlatform(t, nil)
	pe := p.PE(0)

	for _, alignment := range []uint64{8, 4096, 1 << 16} {
		b, err := pe.AlignedAlloc(alignment, 10000)
		require.NoError(t, err)
		assert.Zero(t, uint64(b.Addr)%alignment, "alignment %d", alignment)
		assert.Equal(t, uint64(10000), b.Size())
		b.Data[9999] = 0xa5
		pe.FreeAligned(b)
		pe.FreeAligned(b)
	}
	assert.Zero(t, p.OutstandingAllocs())

	_, err := pe.AlignedAlloc(3, 64)
	assert.True(t, errors.Is(err, hal.ErrAllocFailed))
	_, err = pe.AlignedAlloc(64, 0)
	assert.True(t, errors.Is(err, hal.ErrAllocFailed))
}

func TestAllocFailAfter(t *testing.T) {
	one := 1
	p := newTestPlatform(t, func(c *Config) { c.AllocFailAfter = &one })
	pe := p.PE(0)

	b, err := pe.AlignedAlloc(4096, 4096)
	require.NoError(t, err)
	_, err = pe.AlignedAlloc(4096, 4096)
	assert.True(t, errors.Is(err, hal.ErrAllocFailed))
	assert.Equal(t, 1, p.OutstandingAllocs())
	pe.FreeAligned(b)
	assert.Zero(t, p.OutstandingAllocs())
}

// runTraffic tags PE 0 with partid, copies size bytes and returns the CSU
// reading of a monitor filtering on monPartid.
func runTraffic(t *testing.T, p *Platform, partid, monPartid uint16, size uint64) uint32 {
	t.Helper()
	pe := p.PE(0)
	msc := p.MSC()

	msc.SelectResourceInstance(llcMsc, 0)
	msc.ConfigureCSUMonitor(llcMsc, monPartid, hal.DefaultPMG, 0)
	msc.EnableCSUMonitor(llcMsc)

	pe.WriteSysReg(hal.MPAM2EL2, uint64(partid)<<hal.MPAMnELxPartIDDShift)
	src, err := pe.AlignedAlloc(4096, size)
	require.NoError(t, err)
	defer pe.FreeAligned(src)
	dst, err := pe.AlignedAlloc(4096, size)
	require.NoError(t, err)
	defer pe.FreeAligned(dst)

	src.Data[size-1] = 0x5a
	pe.Copy(dst, src, size)
	require.Equal(t, byte(0x5a), dst.Data[size-1])

	value := msc.ReadCSUMonitor(llcMsc)
	msc.DisableCSUMonitor(llcMsc)
	return value
}

func TestOccupancy(t *testing.T) {
	p := newTestPlatform(t, nil)
	msc := p.MSC()

	msc.SelectResourceInstance(llcMsc, 0)
	msc.ConfigureCPOR(llcMsc, 9, 75)

	// 15 of 20 portions of the 2Mi cache.
	assert.Equal(t, uint32(3<<19), runTraffic(t, p, 9, 9, 1<<20))
	assert.Equal(t, uint32(0), runTraffic(t, p, 9, 10, 1<<20))
	assert.Equal(t, uint32(1<<12), runTraffic(t, p, 11, 11, 1<<11))

	// The memory-side cache instance sees none of it.
	msc.SelectResourceInstance(llcMsc, 1)
	msc.ConfigureCSUMonitor(llcMsc, 9, hal.DefaultPMG, 0)
	msc.EnableCSUMonitor(llcMsc)
	assert.Zero(t, msc.ReadCSUMonitor(llcMsc))
}

func TestMonitorFreezesOnDisable(t *testing.T) {
	p := newTestPlatform(t, nil)
	value := runTraffic(t, p, 9, 9, 1<<16)
	require.Equal(t, uint32(1<<17), value)

	msc := p.MSC()
	msc.SelectResourceInstance(llcMsc, 0)
	assert.Equal(t, value, msc.ReadCSUMonitor(llcMsc))
}

func TestFaults(t *testing.T) {
	p := newTestPlatform(t, func(c *Config) { c.MSCs[0].UnfilteredCSU = true })
	assert.Equal(t, uint32(1<<17), runTraffic(t, p, 9, 10, 1<<16))

	p = newTestPlatform(t, func(c *Config) { c.MSCs[0].BrokenCSU = true })
	assert.Zero(t, runTraffic(t, p, 9, 9, 1<<16))

	p = newTestPlatform(t, func(c *Config) {
		c.MSCs[1].PCCFailure = true
	})
	assert.Equal(t, uint32(hal.PccReadFailure), p.Driver().Read32(pccMsc, hal.MPAMFIDR))
}

func TestPCCTransact(t *testing.T) {
	p := newTestPlatform(t, nil)

	_, err := p.Transact(7, hal.EncodeMscReadCmd(1, hal.MscReadCmd{MscID: 2}))
	assert.Error(t, err, "unknown subspace")

	_, err = p.Transact(1, hal.EncodeMscReadCmd(1, hal.MscReadCmd{MscID: 1}))
	assert.Error(t, err, "mmio msc through pcc")

	_, err = p.Transact(1, []byte{1, 2, 3})
	assert.Error(t, err, "short message")

	resp, err := p.Transact(1, hal.EncodeMscWriteCmd(1, hal.MscWriteCmd{MscID: 2, Offset: hal.MPAMCFGPartSel, Value: 5}))
	require.NoError(t, err)
	status, err := hal.DecodeMscWriteResp(resp)
	require.NoError(t, err)
	assert.Equal(t, int32(hal.MpamPccCmdSuccess), status)
	assert.Equal(t, uint32(5), p.Driver().Read32(pccMsc, hal.MPAMCFGPartSel))
	assert.Equal(t, 1, p.RegisterWrites())
}
