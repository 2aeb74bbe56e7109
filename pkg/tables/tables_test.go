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

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acs-suite/gompam/pkg/testutils"
)

func loadTestPlatform(t *testing.T) *Tables {
	tbl, err := LoadFile(filepath.Join("testdata", "platform.yaml"))
	require.NoError(t, err, "failed to load test platform")
	return tbl
}

func TestLoad(t *testing.T) {
	tbl := loadTestPlatform(t)

	require.Equal(t, 4, tbl.Cache.Len())
	testutils.VerifyDeepEqual(t, "llc entry", CacheInfoEntry{
		Flags:          CacheFlags{SizePropertyValid: true, CacheTypeValid: true, CacheIDValid: true},
		Offset:         0xa8,
		NextLevelIndex: InvalidNextLevelIndex,
		Size:           8 << 20,
		CacheID:        4,
		Type:           CacheTypeUnified,
	}, tbl.Cache.Entries[3])

	require.Equal(t, 2, tbl.Mpam.MscCount())
	assert.Equal(t, MscInterfacePCC, tbl.Mpam.Nodes[1].InterfaceType)
	assert.Equal(t, 2, tbl.Mpam.ResourceCount(0))
	assert.Equal(t, uint64(LocatorMemorySideCache), tbl.Mpam.Info(MpamMscRsrcType, 0, 1))

	assert.Equal(t, 1, tbl.Ras.NumPENodes())
	assert.Equal(t, 1, tbl.Ras.NumMCNodes())
	assert.Equal(t, uint64(0x80000000), tbl.Ras.Nodes[0].PE.Affinity)
	assert.Equal(t, 1, tbl.Ras2.NumMemoryBlocks())
	assert.True(t, tbl.Ras2.Blocks[0].PatrolScrubSupport)

	idx, ok := tbl.Pmu.Lookup(PmuNodePECache, 4)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	pd, ok := tbl.Srat.ProximityDomainOf(0x90000000)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), pd)
	_, ok = tbl.Srat.ProximityDomainOf(0x1000)
	assert.False(t, ok)

	bw, ok := tbl.Hmat.Bandwidth(0)
	assert.True(t, ok)
	assert.Equal(t, uint64(25600), bw.ReadBw)

	ss, ok := tbl.Pcc.Subspace(1)
	require.True(t, ok)
	assert.Equal(t, uint64(0x2c000000), ss.Type3.BaseAddress)
}

func TestLoadErrors(t *testing.T) {
	tcs := []struct {
		name       string
		data       string
		errCount   int
		substrings []string
	}{
		{
			name:       "unknown field",
			data:       "caches:\n  - id: 1\n    colour: red\n",
			errCount:   1,
			substrings: []string{"failed to parse"},
		},
		{
			name:       "bad cache type",
			data:       "caches:\n  - id: 1\n    type: victim\n",
			errCount:   1,
			substrings: []string{`unknown cache type "victim"`},
		},
		{
			name:       "bad locator and interface",
			data:       "mscs:\n  - interface: smc\n  - identifier: 2\n    resources:\n      - locator: dram\n",
			errCount:   2,
			substrings: []string{`interface type "smc"`, `locator type "dram"`},
		},
		{
			name: "invariants",
			data: `
caches:
  - id: 0
  - id: 7
    nextLevel: 5
  - id: 7
mscs:
  - identifier: 1
    resources:
      - ris: 0
        locator: pe-cache
      - ris: 0
        locator: pe-cache
  - identifier: 1
    interface: pcc
    baseAddress: 3
`,
			errCount: 6,
			substrings: []string{
				"cache id must be non-zero",
				"next level index 5 out of range",
				"duplicate cache id 7",
				"duplicate ris index 0",
				"duplicate identifier 1",
				"pcc subspace 3 not found",
			},
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.data))
			testutils.VerifyError(t, err, tc.errCount, tc.substrings)
		})
	}
}

func TestCacheInfo(t *testing.T) {
	tbl := &CacheInfoTable{Entries: []CacheInfoEntry{
		{Offset: 0x10, NextLevelIndex: 1, Size: 32 << 10, CacheID: 5, IsPrivate: true,
			Flags: CacheFlags{CacheIDValid: true, SizePropertyValid: true}},
		{Offset: 0x20, NextLevelIndex: InvalidNextLevelIndex, Size: 4 << 20, CacheID: 6,
			Flags: CacheFlags{CacheTypeValid: true}, Type: CacheTypeUnified},
	}}

	assert.Equal(t, uint64(5), tbl.Info(CacheFieldID, 0))
	assert.Equal(t, uint64(32<<10), tbl.Info(CacheFieldSize, 0))
	assert.Equal(t, InvalidCacheInfo, tbl.Info(CacheFieldType, 0))
	assert.Equal(t, uint64(1), tbl.Info(CacheFieldPrivateFlag, 0))
	assert.Equal(t, uint64(1), tbl.Info(CacheFieldNextLevelIndex, 0))

	assert.Equal(t, InvalidCacheInfo, tbl.Info(CacheFieldID, 1))
	assert.Equal(t, InvalidCacheInfo, tbl.Info(CacheFieldSize, 1))
	assert.Equal(t, uint64(CacheTypeUnified), tbl.Info(CacheFieldType, 1))
	assert.Equal(t, uint64(0x20), tbl.Info(CacheFieldOffset, 1))
	assert.Equal(t, uint64(0), tbl.Info(CacheFieldPrivateFlag, 1))

	assert.Equal(t, InvalidCacheInfo, tbl.Info(CacheFieldID, 2))
	assert.Equal(t, InvalidCacheInfo, tbl.Info(CacheFieldID, -1))
}

func TestLLCIndex(t *testing.T) {
	unified := CacheFlags{CacheTypeValid: true}
	tcs := []struct {
		name     string
		entries  []CacheInfoEntry
		expected int
		err      error
	}{
		{
			name: "empty",
			err:  ErrCacheTableEmpty,
		},
		{
			name: "single level",
			entries: []CacheInfoEntry{
				{NextLevelIndex: InvalidNextLevelIndex, Flags: unified, Type: CacheTypeUnified},
			},
			expected: 0,
		},
		{
			name: "shared preferred over private",
			entries: []CacheInfoEntry{
				{NextLevelIndex: InvalidNextLevelIndex, IsPrivate: true, Flags: unified, Type: CacheTypeUnified},
				{NextLevelIndex: InvalidNextLevelIndex, Flags: unified, Type: CacheTypeData},
				{NextLevelIndex: InvalidNextLevelIndex, Flags: unified, Type: CacheTypeUnified},
			},
			expected: 2,
		},
		{
			name: "type unknown counts as unified",
			entries: []CacheInfoEntry{
				{NextLevelIndex: 1},
				{NextLevelIndex: InvalidNextLevelIndex},
			},
			expected: 1,
		},
		{
			name: "no last level",
			entries: []CacheInfoEntry{
				{NextLevelIndex: 1},
				{NextLevelIndex: 0},
			},
			err: ErrNoLastLevelCache,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			idx, err := (&CacheInfoTable{Entries: tc.entries}).LLCIndex()
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, idx)
		})
	}

	// A nil table behaves like an empty one
	var nilTable *CacheInfoTable
	_, err := nilTable.LLCIndex()
	assert.ErrorIs(t, err, ErrCacheTableEmpty)
}

func TestMpamInfo(t *testing.T) {
	tbl := &MpamInfoTable{Nodes: []MscNode{
		{Identifier: 10, BaseAddress: 0x1000, MaxNrdyUsec: 7, Resources: []ResourceNode{
			{RISIndex: 3, LocatorType: LocatorPECache, Descriptor1: 0xabc, Descriptor2: 9},
		}},
	}}

	assert.Equal(t, uint64(1), tbl.Info(MpamMscRsrcCount, 0, 0))
	assert.Equal(t, uint64(7), tbl.Info(MpamMscNrdy, 0, 0))
	assert.Equal(t, uint64(0x1000), tbl.Info(MpamMscBaseAddr, 0, 0))
	assert.Equal(t, uint64(3), tbl.Info(MpamMscRsrcRIS, 0, 0))
	assert.Equal(t, uint64(0xabc), tbl.Info(MpamMscRsrcDesc1, 0, 0))
	assert.Equal(t, uint64(9), tbl.Info(MpamMscRsrcDesc2, 0, 0))
	assert.Equal(t, InvalidMpamInfo, tbl.Info(MpamMscRsrcDesc1, 0, 1))
	assert.Equal(t, InvalidMpamInfo, tbl.Info(MpamMscNrdy, 1, 0))
	assert.Equal(t, 0, tbl.ResourceCount(4))

	idx, ok := tbl.MscByIdentifier(10)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	_, ok = tbl.MscByIdentifier(11)
	assert.False(t, ok)
}

func TestCacheTableFromSysfs(t *testing.T) {
	files := map[string]string{}
	writeCache := func(cpu, index int, attrs map[string]string) {
		dir := "cpu" + itoa(cpu) + "/cache/index" + itoa(index) + "/"
		for name, value := range attrs {
			files[dir+name] = value + "\n"
		}
	}
	for cpu := 0; cpu < 2; cpu++ {
		writeCache(cpu, 0, map[string]string{"level": "1", "id": itoa(cpu), "size": "64K", "type": "Data", "shared_cpu_list": itoa(cpu)})
		writeCache(cpu, 1, map[string]string{"level": "2", "id": itoa(cpu), "size": "1024K", "type": "Unified", "shared_cpu_list": itoa(cpu)})
		writeCache(cpu, 2, map[string]string{"level": "3", "id": "0", "size": "8192K", "type": "Unified", "shared_cpu_list": "0-1"})
	}
	// Index without all attributes is ignored
	writeCache(1, 3, map[string]string{"level": "4"})
	root := testutils.CreateFileTree(t, files)

	tbl, err := CacheTableFromSysfs(root)
	require.NoError(t, err)
	require.Equal(t, 5, tbl.Len())

	llc, err := tbl.LLCIndex()
	require.NoError(t, err)
	assert.Equal(t, uint32(8<<20), tbl.Entries[llc].Size)
	assert.False(t, tbl.Entries[llc].IsPrivate)

	for i, e := range tbl.Entries {
		assert.Equal(t, uint32(i+1), e.CacheID)
		if e.Size == 64<<10 {
			require.NotEqual(t, InvalidNextLevelIndex, e.NextLevelIndex)
			assert.Equal(t, uint32(1<<20), tbl.Entries[e.NextLevelIndex].Size)
			assert.True(t, e.IsPrivate)
		}
	}
	assert.NoError(t, (&Tables{Cache: tbl}).Validate())
}

func itoa(i int) string {
	return string(rune('0' + i))
}
