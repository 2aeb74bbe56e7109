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

// Package mpam implements the MPAM compliance tests. Tests are registered
// with the acs harness on package initialization.
package mpam

import (
	"errors"
	"fmt"

	"github.com/acs-suite/gompam/pkg/acs"
	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/tables"
)

// ErrInvalidCacheID is returned when the last-level cache has no valid
// key to match MPAM resources against.
var ErrInvalidCacheID = errors.New("last-level cache identifier invalid")

// ResourceRef identifies a resource node by MSC and resource index in the
// MPAM info table.
type ResourceRef struct {
	Msc      int
	Resource int
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("msc %d resource %d", r.Msc, r.Resource)
}

// ResolveTargetCache looks up the last-level cache and returns the key
// PE cache resources reference it with, and its cache table index.
func ResolveTargetCache(caches *tables.CacheInfoTable, key acs.CacheKey) (uint64, int, error) {
	llc, err := caches.LLCIndex()
	if err != nil {
		return 0, 0, err
	}

	field := tables.CacheFieldID
	if key == acs.CacheKeyOffset {
		field = tables.CacheFieldOffset
	}
	id := caches.Info(field, llc)
	if id == tables.InvalidCacheInfo {
		return 0, llc, fmt.Errorf("%w: cache table entry %d", ErrInvalidCacheID, llc)
	}
	return id, llc, nil
}

// MatchingResources returns, in table order, the PE cache resources whose
// descriptor references cache id.
func MatchingResources(mpam *tables.MpamInfoTable, id uint64) []ResourceRef {
	var refs []ResourceRef
	for msc := range mpam.MscCount() {
		n := int(mpam.Info(tables.MpamMscRsrcCount, msc, 0))
		for rsrc := range n {
			if mpam.Info(tables.MpamMscRsrcType, msc, rsrc) != uint64(tables.LocatorPECache) {
				continue
			}
			if mpam.Info(tables.MpamMscRsrcDesc1, msc, rsrc) != id {
				continue
			}
			refs = append(refs, ResourceRef{Msc: msc, Resource: rsrc})
		}
	}
	return refs
}

// NeedsRISSelect tells whether accesses to a resource of the MSC must be
// preceded by selecting the resource instance.
func NeedsRISSelect(msc hal.MscController, ref ResourceRef) bool {
	return msc.SupportsRIS(ref.Msc)
}

// SelectResource directs the MSC to the resource if it multiplexes several
// resource instances.
func SelectResource(msc hal.MscController, ref ResourceRef) {
	if NeedsRISSelect(msc, ref) {
		msc.SelectResourceInstance(ref.Msc, ref.Resource)
	}
}

// Capabilities summarizes the MPAM features found on a set of resources.
type Capabilities struct {
	// Number of resources on MSCs implementing cache portion partitioning.
	CPORNodes int
	// Total CSU monitors of those MSCs.
	CSUMonitorCount uint32
	// Largest cache size among those resources.
	CacheMaxSize uint64
}

// Discover collects the capabilities of the resources referencing cache
// table entry cache. It only reads MSC-wide identification registers and
// leaves the hardware state untouched.
func Discover(msc hal.MscController, caches *tables.CacheInfoTable, cache int, refs []ResourceRef) Capabilities {
	caps := Capabilities{CacheMaxSize: 0}
	for _, ref := range refs {
		if !msc.SupportsCPOR(ref.Msc) {
			continue
		}
		if size := caches.Info(tables.CacheFieldSize, cache); size != tables.InvalidCacheInfo {
			caps.CacheMaxSize = max(caps.CacheMaxSize, size)
		}
		if msc.SupportsCSU(ref.Msc) {
			caps.CSUMonitorCount += msc.CSUMonitorCount(ref.Msc)
		}
		caps.CPORNodes++
	}
	return caps
}
