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
)

// CacheType is the PPTT cache type attribute.
type CacheType uint8

const (
	CacheTypeData        CacheType = 0x0
	CacheTypeInstruction CacheType = 0x1
	CacheTypeUnified     CacheType = 0x2
)

func (t CacheType) String() string {
	switch t {
	case CacheTypeData:
		return "data"
	case CacheTypeInstruction:
		return "instruction"
	case CacheTypeUnified:
		return "unified"
	}
	return "unknown"
}

const (
	// InvalidCacheInfo is returned by CacheInfoTable.Info for fields whose
	// validity flag is clear or for out-of-range indices.
	InvalidCacheInfo = ^uint64(0)

	// InvalidNextLevelIndex marks a cache without a next level entry.
	InvalidNextLevelIndex = ^uint32(0)
)

var (
	// ErrCacheTableEmpty is returned by lookups on a table with no entries.
	ErrCacheTableEmpty = errors.New("cache info table empty")

	// ErrNoLastLevelCache is returned when no entry qualifies as the
	// last-level cache.
	ErrNoLastLevelCache = errors.New("no last-level cache in cache info table")
)

// CacheFlags tells which PPTT-provided properties of a cache are valid.
type CacheFlags struct {
	SizePropertyValid bool `json:"sizePropertyValid"`
	CacheTypeValid    bool `json:"cacheTypeValid"`
	CacheIDValid      bool `json:"cacheIdValid"`
}

// CacheInfoEntry describes one cache instance parsed from PPTT.
type CacheInfoEntry struct {
	Flags CacheFlags
	// Offset of the cache structure in PPTT. Used as the cache key on
	// platforms that do not report cache IDs.
	Offset uint32
	// Index of the next level cache entry, or InvalidNextLevelIndex.
	NextLevelIndex uint32
	Size           uint32
	// Unique, non-zero cache identifier.
	CacheID   uint32
	IsPrivate bool
	Type      CacheType
}

// CacheInfoTable holds all cache entries of the platform.
type CacheInfoTable struct {
	Entries []CacheInfoEntry
}

// CacheField selects a property in CacheInfoTable.Info.
type CacheField int

const (
	CacheFieldID CacheField = iota
	CacheFieldSize
	CacheFieldType
	CacheFieldOffset
	CacheFieldNextLevelIndex
	CacheFieldPrivateFlag
)

// Len returns the number of cache entries.
func (t *CacheInfoTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// Info returns one property of the cache entry at index, or
// InvalidCacheInfo if the property is not valid for that entry.
func (t *CacheInfoTable) Info(field CacheField, index int) uint64 {
	if index < 0 || index >= t.Len() {
		return InvalidCacheInfo
	}
	e := &t.Entries[index]

	switch field {
	case CacheFieldID:
		if e.Flags.CacheIDValid {
			return uint64(e.CacheID)
		}
	case CacheFieldSize:
		if e.Flags.SizePropertyValid {
			return uint64(e.Size)
		}
	case CacheFieldType:
		if e.Flags.CacheTypeValid {
			return uint64(e.Type)
		}
	case CacheFieldOffset:
		return uint64(e.Offset)
	case CacheFieldNextLevelIndex:
		return uint64(e.NextLevelIndex)
	case CacheFieldPrivateFlag:
		if e.IsPrivate {
			return 1
		}
		return 0
	}
	return InvalidCacheInfo
}

// LLCIndex returns the index of the last-level cache: a unified cache with no
// next level. A shared cache is preferred over a private one; among equals the
// first in table order wins.
func (t *CacheInfoTable) LLCIndex() (int, error) {
	if t.Len() == 0 {
		return 0, ErrCacheTableEmpty
	}

	llc := -1
	for i, e := range t.Entries {
		if e.NextLevelIndex != InvalidNextLevelIndex {
			continue
		}
		if e.Flags.CacheTypeValid && e.Type != CacheTypeUnified {
			continue
		}
		if llc < 0 || (t.Entries[llc].IsPrivate && !e.IsPrivate) {
			llc = i
		}
	}
	if llc < 0 {
		return 0, ErrNoLastLevelCache
	}
	return llc, nil
}
