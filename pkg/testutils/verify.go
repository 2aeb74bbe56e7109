// Copyright 2020-2021 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testutils

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
)

// VerifyDeepEqual fails the test with a diff unless expected and seen are equal.
func VerifyDeepEqual(t *testing.T, valueName string, expected, seen interface{}, opts ...cmp.Option) bool {
	t.Helper()
	if diff := cmp.Diff(expected, seen, opts...); diff != "" {
		t.Errorf("unexpected %s (-expected +got):\n%s", valueName, diff)
		return false
	}
	return true
}

// VerifyError checks that err carries expectedCount errors and mentions every
// one of substrings. Validation code aggregates problems into a
// *multierror.Error; any other non-nil error counts as one.
func VerifyError(t *testing.T, err error, expectedCount int, substrings []string) bool {
	t.Helper()
	if expectedCount == 0 {
		return VerifyNoError(t, err)
	}
	if err == nil {
		t.Errorf("expected %d error(s), got nil", expectedCount)
		return false
	}
	count := 1
	var merr *multierror.Error
	if errors.As(err, &merr) {
		count = len(merr.Errors)
	}
	if count != expectedCount {
		t.Errorf("expected %d error(s), got %d: %v", expectedCount, count, err)
		return false
	}
	ok := true
	for _, s := range substrings {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("expected error containing %q, got %q", s, err)
			ok = false
		}
	}
	return ok
}

func VerifyNoError(t *testing.T, err error) bool {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
		return false
	}
	return true
}

func VerifyStrings(t *testing.T, expected, got string) bool {
	t.Helper()
	if expected != got {
		t.Errorf("expected %q, got %q", expected, got)
		return false
	}
	return true
}

// VerifyStringSlices compares element by element and reports the first
// mismatch only.
func VerifyStringSlices(t *testing.T, expected, got []string) bool {
	t.Helper()
	for i := 0; i < len(expected) && i < len(got); i++ {
		if expected[i] != got[i] {
			t.Errorf("slices differ at %d: expected %q, got %q", i, expected[i], got[i])
			return false
		}
	}
	if len(expected) != len(got) {
		t.Errorf("expected %d strings, got %d: %q", len(expected), len(got), got)
		return false
	}
	return true
}
