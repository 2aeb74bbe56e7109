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

package utils

// FieldMask returns a mask with bits msb..lsb (inclusive) set.
func FieldMask(msb, lsb uint) uint64 {
	if msb < lsb {
		panic("FieldMask: msb below lsb")
	}
	width := msb - lsb + 1
	if width >= 64 {
		return ^uint64(0)
	}
	return ((uint64(1) << width) - 1) << lsb
}

// ClearBits clears bits msb..lsb (inclusive) of value.
func ClearBits(value uint64, msb, lsb uint) uint64 {
	return value &^ FieldMask(msb, lsb)
}

// GetBits extracts the field at bits msb..lsb of value.
func GetBits(value uint64, msb, lsb uint) uint64 {
	return (value & FieldMask(msb, lsb)) >> lsb
}

// SetBits replaces the field at bits msb..lsb of value with field. Bits of
// field not fitting the width are dropped.
func SetBits(value uint64, msb, lsb uint, field uint64) uint64 {
	mask := FieldMask(msb, lsb)
	return (value &^ mask) | ((field << lsb) & mask)
}

// BitSet reports whether bit n of value is set.
func BitSet(value uint64, n uint) bool {
	return value&(uint64(1)<<n) != 0
}
