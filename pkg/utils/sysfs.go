/*
Copyright 2022 Intel Corporation

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

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ReadSysfsString returns the whitespace-trimmed contents of a sysfs
// attribute file.
func ReadSysfsString(path ...string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(path...))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// ReadSysfsUint64 returns the contents of a sysfs attribute file parsed as a
// decimal unsigned integer.
func ReadSysfsUint64(path ...string) (uint64, error) {
	str, err := ReadSysfsString(path...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(str, 10, 64)
}

// ReadSysfsSize returns the contents of a sysfs size attribute, e.g. the
// "32K" or "2048K" found in cpu cache directories, in bytes.
func ReadSysfsSize(path ...string) (uint64, error) {
	str, err := ReadSysfsString(path...)
	if err != nil {
		return 0, err
	}
	return ParseSize(str)
}

// ParseSize parses a size with an optional K, M or G suffix. Sysfs uses
// these for binary units, so they are read as the Ki, Mi and Gi quantity
// suffixes.
func ParseSize(str string) (uint64, error) {
	if n := len(str); n > 0 && strings.ContainsAny(str[n-1:], "KMG") {
		str += "i"
	}
	q, err := resource.ParseQuantity(str)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", str, err)
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("negative size %q", str)
	}
	return uint64(q.Value()), nil
}
