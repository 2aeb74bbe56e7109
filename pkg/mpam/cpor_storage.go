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
	"errors"
	"log/slog"

	"github.com/acs-suite/gompam/pkg/acs"
	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/tables"
)

// CacheTestNumBase is the first test number of the cache module.
const CacheTestNumBase = 200

// CPORStorageTestNum checks that CSU monitors of CPOR-capable LLC MSCs
// attribute storage only to the PARTID the traffic is tagged with.
const CPORStorageTestNum = CacheTestNumBase + 6

const (
	cporPartitionPercentage = 75
	// Share of the LLC size each traffic buffer covers.
	cporCachePercentage = 50
	cporTestPartID      = 9
)

// Verdict sub-codes of the CPOR storage test.
const (
	cporSkipCacheTableEmpty = 1
	cporSkipInvalidLLC      = 2
	cporSkipNoCPORCSU       = 3

	cporFailAlloc   = 1
	cporFailStorage = 2

	cporPass = 1
)

func init() {
	acs.Register(&acs.Test{
		Num:         CPORStorageTestNum,
		Module:      "cache",
		Description: "Check PARTID Storage by CPOR Nodes",
		NumPE:       1,
		Payload: func(c *acs.Context) {
			c.SetStatus(CheckCPORStorage(c.Log, c.Tables, c.Platform.MSC(), c.PE, c.Options.CacheKey))
		},
	})
}

// CheckCPORStorage partitions the LLC for a test PARTID on every CPOR
// capable MSC, generates traffic tagged with that PARTID and checks that
// the CSU monitor counts it for the test PARTID and not for the next one.
// The LLC is matched by cache ID or PPTT offset according to key.
func CheckCPORStorage(log *slog.Logger, t *tables.Tables, msc hal.MscController, pe hal.PE, key acs.CacheKey) acs.Status {
	const num = CPORStorageTestNum

	id, llc, err := ResolveTargetCache(t.Cache, key)
	switch {
	case errors.Is(err, tables.ErrCacheTableEmpty):
		log.Error("cache info table empty")
		return acs.Skip(num, cporSkipCacheTableEmpty)
	case err != nil:
		log.Error("LLC invalid in PPTT", "error", err)
		return acs.Skip(num, cporSkipInvalidLLC)
	}

	refs := MatchingResources(t.Mpam, id)
	caps := Discover(msc, t.Cache, llc, refs)
	log.Debug("LLC resources discovered", "cacheID", id, "resources", len(refs),
		"cporNodes", caps.CPORNodes, "cacheMaxSize", caps.CacheMaxSize, "csuMonitors", caps.CSUMonitorCount)

	if caps.CSUMonitorCount == 0 || caps.CPORNodes == 0 {
		log.Warn("no CPOR capable LLC nodes with CSU monitors")
		return acs.Skip(num, cporSkipNoCPORCSU)
	}

	for _, ref := range refs {
		if msc.SupportsCPOR(ref.Msc) {
			ApplyPartition(msc, ref, cporTestPartID, cporPartitionPercentage)
		}
	}

	partid1 := uint16(cporTestPartID)
	partid2 := partid1 + 1

	guard := WithDefaultTrafficPartID(pe, partid1, hal.DefaultPMG)
	defer guard.Restore()

	bufSize := caps.CacheMaxSize * cporCachePercentage / 100
	for _, ref := range refs {
		if status, ok := checkResourceStorage(log, t.Mpam, msc, pe, ref, partid1, partid2, bufSize); !ok {
			return status
		}
	}

	return acs.Pass(num, cporPass)
}

// checkResourceStorage runs the two traffic rounds on one resource, both
// with traffic tagged with partid1: the first monitoring partid1 and the
// second partid2.
func checkResourceStorage(log *slog.Logger, mpam *tables.MpamInfoTable, msc hal.MscController, pe hal.PE,
	ref ResourceRef, partid1, partid2 uint16, bufSize uint64) (acs.Status, bool) {
	const num = CPORStorageTestNum

	SelectResource(msc, ref)

	bufs, err := AllocTrafficBuffers(pe, bufSize)
	if err != nil {
		log.Error("memory allocation failed", "resource", ref, "bufSize", bufSize, "error", err)
		return acs.Fail(num, cporFailAlloc), false
	}
	defer bufs.Free()
	log.Debug("traffic buffers allocated", "resource", ref, "bufSize", bufSize)

	value1 := RunTrafficRound(log, msc, mpam, pe, ref, partid1, hal.DefaultPMG, bufs)
	value2 := RunTrafficRound(log, msc, mpam, pe, ref, partid2, hal.DefaultPMG, bufs)
	msc.DisableCSUMonitor(ref.Msc)

	if value1 == 0 || value2 != 0 {
		log.Error("unexpected cache storage", "resource", ref,
			"partid", partid1, "value", value1, "otherPartid", partid2, "otherValue", value2)
		return acs.Fail(num, cporFailStorage), false
	}
	return 0, true
}
