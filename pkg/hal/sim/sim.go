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

// Package sim implements a simulated MPAM platform. It models MSC register
// frames reached over MMIO and PCC, cache portion bitmaps, CSU monitors and
// per-PARTID cache occupancy driven by the traffic PEs issue, so that the
// compliance tests can run on hosts without MPAM hardware. Faults can be
// injected per MSC to exercise failing verdicts.
package sim

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/acs-suite/gompam/pkg/hal"
	grclog "github.com/acs-suite/gompam/pkg/log"
	"github.com/acs-suite/gompam/pkg/tables"
)

// Config is the "simulation" section of a platform description.
type Config struct {
	NumPE int `json:"numPE,omitempty"`
	// Reset value of MPAM2_EL2 on every PE.
	MPAM2EL2 uint64 `json:"mpam2El2,omitempty"`
	// Number of allocations served before AlignedAlloc starts failing.
	// Unset means allocations never fail.
	AllocFailAfter *int `json:"allocFailAfter,omitempty"`
	// Per-MSC overrides, keyed by MSC identifier.
	MSCs []MscConfig `json:"mscs,omitempty"`
}

// MscConfig describes the implemented features and injected faults of one
// simulated MSC.
type MscConfig struct {
	Identifier  uint32  `json:"identifier"`
	PartIDMax   *uint16 `json:"partidMax,omitempty"`
	PMGMax      *uint8  `json:"pmgMax,omitempty"`
	CPOR        *bool   `json:"cpor,omitempty"`
	CPBMWidth   *uint16 `json:"cpbmWidth,omitempty"`
	CSUMonitors *uint16 `json:"csuMonitors,omitempty"`
	RIS         *bool   `json:"ris,omitempty"`

	// CSU monitors always read zero.
	BrokenCSU bool `json:"brokenCsu,omitempty"`
	// CSU monitors ignore the PARTID/PMG filter and report total occupancy.
	UnfilteredCSU bool `json:"unfilteredCsu,omitempty"`
	// PCC commands to the MSC fail.
	PCCFailure bool `json:"pccFailure,omitempty"`
}

const (
	defaultNumPE       = 1
	defaultPartIDMax   = 63
	defaultPMGMax      = 1
	defaultCPBMWidth   = 16
	defaultCSUMonitors = 4
)

// ParseConfig extracts the simulation section from platform description
// data. A missing section yields the defaults.
func ParseConfig(data []byte) (*Config, error) {
	wrapper := struct {
		Simulation *Config `json:"simulation"`
	}{}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse simulation config: %v", err)
	}
	if wrapper.Simulation == nil {
		return &Config{}, nil
	}
	return wrapper.Simulation, nil
}

// Platform is a simulated MPAM platform. It implements hal.Platform, and
// hal.MMIO and hal.PCCChannel for the MSC driver.
type Platform struct {
	sync.Mutex

	tables *tables.Tables
	log    *slog.Logger
	driver *hal.Driver

	pes    []*pe
	mscs   []*msc
	byBase map[uint64]*msc
	byID   map[uint32]*msc

	allocs         int
	allocFailAfter int
	regWrites      int
}

// New creates a simulated platform matching the given tables.
func New(t *tables.Tables, c *Config) (*Platform, error) {
	if c == nil {
		c = &Config{}
	}

	p := &Platform{
		tables:         t,
		log:            grclog.NewLogger("sim"),
		byBase:         map[uint64]*msc{},
		byID:           map[uint32]*msc{},
		allocFailAfter: -1,
	}
	if c.AllocFailAfter != nil {
		p.allocFailAfter = *c.AllocFailAfter
	}

	overrides := map[uint32]MscConfig{}
	for _, mc := range c.MSCs {
		if _, ok := t.Mpam.MscByIdentifier(mc.Identifier); !ok {
			return nil, fmt.Errorf("simulation config for unknown msc %d", mc.Identifier)
		}
		overrides[mc.Identifier] = mc
	}

	for i := range t.Mpam.MscCount() {
		node := &t.Mpam.Nodes[i]
		m := newMsc(node, overrides[node.Identifier], t.Cache)
		p.mscs = append(p.mscs, m)
		p.byID[node.Identifier] = m
		if node.InterfaceType == tables.MscInterfaceMMIO {
			if _, ok := p.byBase[node.BaseAddress]; ok {
				return nil, fmt.Errorf("msc %d: register frame %#x already in use", node.Identifier, node.BaseAddress)
			}
			p.byBase[node.BaseAddress] = m
		}
	}

	numPE := c.NumPE
	if numPE <= 0 {
		numPE = defaultNumPE
	}
	for i := range numPE {
		p.pes = append(p.pes, newPE(p, i, c.MPAM2EL2))
	}

	p.driver = hal.NewDriver(t.Mpam, p, p)
	return p, nil
}

// NewFromFile creates a simulated platform from a platform description file.
func NewFromFile(path string) (*Platform, *tables.Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	t, err := tables.Load(data)
	if err != nil {
		return nil, nil, err
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, nil, err
	}
	p, err := New(t, c)
	if err != nil {
		return nil, nil, err
	}
	return p, t, nil
}

// NumPE implements hal.Platform.
func (p *Platform) NumPE() int {
	return len(p.pes)
}

// PE implements hal.Platform.
func (p *Platform) PE(index int) hal.PE {
	if index < 0 || index >= len(p.pes) {
		return nil
	}
	return p.pes[index]
}

// MSC implements hal.Platform.
func (p *Platform) MSC() hal.MscController {
	return p.driver
}

// Driver returns the MSC register driver of the platform.
func (p *Platform) Driver() *hal.Driver {
	return p.driver
}

// RegisterWrites returns the number of MSC and PE system register writes
// performed so far.
func (p *Platform) RegisterWrites() int {
	p.Lock()
	defer p.Unlock()
	return p.regWrites
}

// OutstandingAllocs returns the number of allocations not yet freed.
func (p *Platform) OutstandingAllocs() int {
	n := 0
	for _, pe := range p.pes {
		pe.Lock()
		n += pe.outstanding
		pe.Unlock()
	}
	return n
}

// Read32 implements hal.MMIO.
func (p *Platform) Read32(addr uint64) uint32 {
	p.Lock()
	defer p.Unlock()

	m, offset, ok := p.mscAt(addr)
	if !ok {
		p.log.Warn("mmio read from unmapped address", "addr", fmt.Sprintf("%#x", addr))
		return ^uint32(0)
	}
	return m.read(offset)
}

// Write32 implements hal.MMIO.
func (p *Platform) Write32(addr uint64, value uint32) {
	p.Lock()
	defer p.Unlock()

	m, offset, ok := p.mscAt(addr)
	if !ok {
		p.log.Warn("mmio write to unmapped address", "addr", fmt.Sprintf("%#x", addr))
		return
	}
	p.regWrites++
	m.write(offset, value)
}

func (p *Platform) mscAt(addr uint64) (*msc, uint32, bool) {
	for base, m := range p.byBase {
		size := uint64(m.node.AddressLen)
		if size == 0 {
			size = 0x4000
		}
		if addr >= base && addr-base < size {
			return m, uint32(addr - base), true
		}
	}
	return nil, 0, false
}

// Transact implements hal.PCCChannel.
func (p *Platform) Transact(subspace uint32, msg []byte) ([]byte, error) {
	p.Lock()
	defer p.Unlock()

	if _, ok := p.tables.Pcc.Subspace(subspace); !ok {
		return nil, fmt.Errorf("pcc subspace %d not present", subspace)
	}
	_, rd, wr, err := hal.DecodeMscCmd(msg)
	if err != nil {
		return nil, err
	}

	var mscID uint32
	if rd != nil {
		mscID = rd.MscID
	} else {
		mscID = wr.MscID
	}
	m, ok := p.byID[mscID]
	if !ok || m.node.InterfaceType != tables.MscInterfacePCC || uint32(m.node.BaseAddress) != subspace {
		return nil, fmt.Errorf("msc %d not reachable through pcc subspace %d", mscID, subspace)
	}

	const failure = -1
	if rd != nil {
		if m.cfg.PCCFailure {
			return hal.EncodeMscReadResp(failure, 0), nil
		}
		return hal.EncodeMscReadResp(hal.MpamPccCmdSuccess, m.read(rd.Offset)), nil
	}
	if m.cfg.PCCFailure {
		return hal.EncodeMscWriteResp(failure), nil
	}
	p.regWrites++
	m.write(wr.Offset, wr.Value)
	return hal.EncodeMscWriteResp(hal.MpamPccCmdSuccess), nil
}

// traffic attributes size bytes of cache footprint to partid/pmg in every
// PE cache resource of the platform.
func (p *Platform) traffic(partid uint16, pmg uint8, size uint64) {
	p.Lock()
	defer p.Unlock()

	for _, m := range p.mscs {
		m.fill(partid, pmg, size)
	}
}
