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

// Package tables models the platform information tables the compliance
// tests consume: PPTT-derived cache info, MPAM MSC and resource nodes and the
// RAS, RAS2, PMU, SRAT, HMAT and PCC tables. Tables are constructed once,
// typically from a platform description file, and are read-only afterwards.
package tables

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/yaml"
)

// Tables is the complete, resolved set of platform information tables.
type Tables struct {
	Cache *CacheInfoTable
	Mpam  *MpamInfoTable
	Ras   *RasInfoTable
	Ras2  *Ras2InfoTable
	Pmu   *PmuInfoTable
	Srat  *SratInfoTable
	Hmat  *HmatInfoTable
	Pcc   *PccInfoTable
}

// Config represents the raw platform description data.
type Config struct {
	Caches []CacheConfig  `json:"caches,omitempty"`
	MSCs   []MscConfig    `json:"mscs,omitempty"`
	Ras    []RasNode      `json:"ras,omitempty"`
	Ras2   []Ras2Block    `json:"ras2,omitempty"`
	Pmu    []PmuInfoBlock `json:"pmu,omitempty"`
	Srat   []SratEntry    `json:"srat,omitempty"`
	Hmat   []HmatBwEntry  `json:"hmat,omitempty"`
	Pcc    []PccInfo      `json:"pcc,omitempty"`

	// Simulation is opaque to this package, see package hal/sim.
	Simulation interface{} `json:"simulation,omitempty"`
}

// CacheConfig is the raw description of one cache. Unset optional fields
// translate to cleared validity flags.
type CacheConfig struct {
	ID        *uint32            `json:"id,omitempty"`
	Offset    uint32             `json:"offset"`
	NextLevel *uint32            `json:"nextLevel,omitempty"`
	Size      *resource.Quantity `json:"size,omitempty"`
	Private   bool               `json:"private,omitempty"`
	Type      string             `json:"type,omitempty"`
}

// MscConfig is the raw description of one MSC.
type MscConfig struct {
	Interface         string           `json:"interface,omitempty"`
	Identifier        uint32           `json:"identifier"`
	BaseAddress       uint64           `json:"baseAddress"`
	AddressLength     uint32           `json:"addressLength,omitempty"`
	OverflowIntr      uint32           `json:"overflowIntr,omitempty"`
	OverflowIntrFlags uint32           `json:"overflowIntrFlags,omitempty"`
	ErrorIntr         uint32           `json:"errorIntr,omitempty"`
	ErrorIntrFlags    uint32           `json:"errorIntrFlags,omitempty"`
	MaxNrdyUsec       uint32           `json:"maxNrdyUsec,omitempty"`
	Resources         []ResourceConfig `json:"resources,omitempty"`
}

// ResourceConfig is the raw description of one MSC resource node.
type ResourceConfig struct {
	RIS         uint8  `json:"ris"`
	Locator     string `json:"locator"`
	Descriptor1 uint64 `json:"descriptor1"`
	Descriptor2 uint32 `json:"descriptor2,omitempty"`
}

func tableError(format string, args ...interface{}) error {
	return fmt.Errorf("tables: "+format, args...)
}

// LoadFile reads a platform description file and resolves it into tables.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tableError("failed to read platform description: %v", err)
	}
	return Load(data)
}

// Load parses platform description data and resolves it into tables.
func Load(data []byte) (*Tables, error) {
	c := &Config{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, tableError("failed to parse platform description: %v", err)
	}
	return c.Resolve()
}

// Resolve converts the raw configuration into validated tables.
func (c *Config) Resolve() (*Tables, error) {
	var errs *multierror.Error

	t := &Tables{
		Cache: &CacheInfoTable{},
		Mpam:  &MpamInfoTable{},
		Ras:   &RasInfoTable{Nodes: c.Ras},
		Ras2:  &Ras2InfoTable{Blocks: c.Ras2},
		Pmu:   &PmuInfoTable{Blocks: c.Pmu},
		Srat:  &SratInfoTable{Entries: c.Srat},
		Hmat:  &HmatInfoTable{Entries: c.Hmat},
		Pcc:   &PccInfoTable{Subspaces: c.Pcc},
	}

	for i, cc := range c.Caches {
		e, err := cc.resolve()
		if err != nil {
			errs = multierror.Append(errs, tableError("cache #%d: %v", i, err))
			continue
		}
		t.Cache.Entries = append(t.Cache.Entries, e)
	}

	for i, mc := range c.MSCs {
		n, err := mc.resolve()
		if err != nil {
			errs = multierror.Append(errs, tableError("msc #%d: %v", i, err))
			continue
		}
		t.Mpam.Nodes = append(t.Mpam.Nodes, n)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (c CacheConfig) resolve() (CacheInfoEntry, error) {
	e := CacheInfoEntry{
		Offset:         c.Offset,
		NextLevelIndex: InvalidNextLevelIndex,
		IsPrivate:      c.Private,
	}
	if c.ID != nil {
		e.CacheID = *c.ID
		e.Flags.CacheIDValid = true
	}
	if c.NextLevel != nil {
		e.NextLevelIndex = *c.NextLevel
	}
	if c.Size != nil {
		size, ok := c.Size.AsInt64()
		if !ok || size < 0 || size > int64(^uint32(0)) {
			return e, fmt.Errorf("invalid cache size %q", c.Size.String())
		}
		e.Size = uint32(size)
		e.Flags.SizePropertyValid = true
	}
	if c.Type != "" {
		typ, err := parseCacheType(c.Type)
		if err != nil {
			return e, err
		}
		e.Type = typ
		e.Flags.CacheTypeValid = true
	}
	return e, nil
}

func parseCacheType(s string) (CacheType, error) {
	for _, t := range []CacheType{CacheTypeData, CacheTypeInstruction, CacheTypeUnified} {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown cache type %q", s)
}

func (c MscConfig) resolve() (MscNode, error) {
	n := MscNode{
		Identifier:        c.Identifier,
		BaseAddress:       c.BaseAddress,
		AddressLen:        c.AddressLength,
		OverflowIntr:      c.OverflowIntr,
		OverflowIntrFlags: c.OverflowIntrFlags,
		ErrorIntr:         c.ErrorIntr,
		ErrorIntrFlags:    c.ErrorIntrFlags,
		MaxNrdyUsec:       c.MaxNrdyUsec,
		Resources:         make([]ResourceNode, 0, len(c.Resources)),
	}

	switch strings.ToLower(c.Interface) {
	case "", "mmio":
		n.InterfaceType = MscInterfaceMMIO
	case "pcc":
		n.InterfaceType = MscInterfacePCC
	default:
		return n, fmt.Errorf("unknown msc interface type %q", c.Interface)
	}

	for _, rc := range c.Resources {
		loc, err := parseLocatorType(rc.Locator)
		if err != nil {
			return n, err
		}
		n.Resources = append(n.Resources, ResourceNode{
			RISIndex:    rc.RIS,
			LocatorType: loc,
			Descriptor1: rc.Descriptor1,
			Descriptor2: rc.Descriptor2,
		})
	}
	return n, nil
}

func parseLocatorType(s string) (LocatorType, error) {
	for _, t := range []LocatorType{LocatorPECache, LocatorMemory, LocatorSMMU,
		LocatorMemorySideCache, LocatorACPIDevice, LocatorInterconnect, LocatorUnknown} {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown resource locator type %q", s)
}

// Validate checks the cross-entry invariants of the tables and returns all
// violations found.
func (t *Tables) Validate() error {
	var errs *multierror.Error

	cacheIDs := sets.New[uint32]()
	for i := range t.Cache.Len() {
		e := t.Cache.Entries[i]
		if e.Flags.CacheIDValid {
			if e.CacheID == 0 {
				errs = multierror.Append(errs, tableError("cache #%d: cache id must be non-zero", i))
			} else if cacheIDs.Has(e.CacheID) {
				errs = multierror.Append(errs, tableError("cache #%d: duplicate cache id %d", i, e.CacheID))
			}
			cacheIDs.Insert(e.CacheID)
		}
		if e.NextLevelIndex != InvalidNextLevelIndex && int(e.NextLevelIndex) >= t.Cache.Len() {
			errs = multierror.Append(errs, tableError("cache #%d: next level index %d out of range", i, e.NextLevelIndex))
		}
		if int(e.NextLevelIndex) == i {
			errs = multierror.Append(errs, tableError("cache #%d: cache is its own next level", i))
		}
	}

	mscIDs := sets.New[uint32]()
	for i := range t.Mpam.MscCount() {
		n := t.Mpam.Nodes[i]
		if mscIDs.Has(n.Identifier) {
			errs = multierror.Append(errs, tableError("msc #%d: duplicate identifier %d", i, n.Identifier))
		}
		mscIDs.Insert(n.Identifier)

		if n.InterfaceType == MscInterfacePCC {
			if _, ok := t.Pcc.Subspace(uint32(n.BaseAddress)); !ok {
				errs = multierror.Append(errs, tableError("msc #%d: pcc subspace %d not found", i, n.BaseAddress))
			}
		}

		risIdx := sets.New[uint8]()
		for j, r := range n.Resources {
			if risIdx.Has(r.RISIndex) {
				errs = multierror.Append(errs, tableError("msc #%d resource #%d: duplicate ris index %d", i, j, r.RISIndex))
			}
			risIdx.Insert(r.RISIndex)
		}
	}

	return errs.ErrorOrNil()
}
