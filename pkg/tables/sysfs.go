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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/acs-suite/gompam/pkg/utils"
)

// DefaultCPUSysfsPath is where Linux exposes the per-CPU cache hierarchy.
const DefaultCPUSysfsPath = "/sys/devices/system/cpu"

type sysfsCache struct {
	level   uint64
	typ     CacheType
	id      uint64
	size    uint64
	shared  string
	private bool
}

func (c sysfsCache) key() string {
	return fmt.Sprintf("L%d-%s-%d", c.level, c.typ, c.id)
}

// CacheTableFromSysfs builds a cache info table from the cache hierarchy the
// Linux kernel exposes under cpu*/cache/index*. Sysfs cache ids are only
// unique per level and type, so entries get synthetic, table-wide unique
// cache ids and offsets in (level, type, id) order.
func CacheTableFromSysfs(cpuPath string) (*CacheInfoTable, error) {
	cpuDirs, err := filepath.Glob(filepath.Join(cpuPath, "cpu[0-9]*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(cpuDirs)

	caches := map[string]sysfsCache{}
	// next level link per cache key, taken from any cpu sharing the cache
	next := map[string]string{}

	for _, cpuDir := range cpuDirs {
		idxDirs, err := filepath.Glob(filepath.Join(cpuDir, "cache", "index[0-9]*"))
		if err != nil {
			return nil, err
		}
		perLevel := map[uint64][]sysfsCache{}
		for _, dir := range idxDirs {
			c, err := readSysfsCache(dir)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, tableError("failed to read %q: %v", dir, err)
			}
			caches[c.key()] = c
			perLevel[c.level] = append(perLevel[c.level], c)
		}
		for lvl, cs := range perLevel {
			for _, c := range cs {
				for _, n := range perLevel[lvl+1] {
					if n.typ == CacheTypeUnified {
						next[c.key()] = n.key()
					}
				}
			}
		}
	}

	keys := make([]string, 0, len(caches))
	for k := range caches {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	t := &CacheInfoTable{Entries: make([]CacheInfoEntry, 0, len(keys))}
	for i, k := range keys {
		c := caches[k]
		e := CacheInfoEntry{
			Flags: CacheFlags{
				SizePropertyValid: true,
				CacheTypeValid:    true,
				CacheIDValid:      true,
			},
			Offset:         uint32(i),
			NextLevelIndex: InvalidNextLevelIndex,
			Size:           uint32(c.size),
			CacheID:        uint32(i + 1),
			IsPrivate:      c.private,
			Type:           c.typ,
		}
		if n, ok := next[k]; ok {
			e.NextLevelIndex = uint32(index[n])
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

func readSysfsCache(dir string) (sysfsCache, error) {
	var c sysfsCache
	var err error

	if c.level, err = utils.ReadSysfsUint64(dir, "level"); err != nil {
		return c, err
	}
	if c.id, err = utils.ReadSysfsUint64(dir, "id"); err != nil {
		return c, err
	}
	if c.size, err = utils.ReadSysfsSize(dir, "size"); err != nil {
		return c, err
	}
	typ, err := utils.ReadSysfsString(dir, "type")
	if err != nil {
		return c, err
	}
	if c.typ, err = parseCacheType(typ); err != nil {
		return c, err
	}
	if c.shared, err = utils.ReadSysfsString(dir, "shared_cpu_list"); err != nil {
		return c, err
	}
	c.private = !strings.ContainsAny(c.shared, ",-")
	return c, nil
}
