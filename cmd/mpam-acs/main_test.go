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

package main

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acs-suite/gompam/pkg/acs"
	"github.com/acs-suite/gompam/pkg/mpam"
	"github.com/acs-suite/gompam/pkg/testutils"
)

func TestParseNumList(t *testing.T) {
	nums, err := parseNumList("206, 3,7")
	require.NoError(t, err)
	testutils.VerifyDeepEqual(t, "test numbers", []uint32{206, 3, 7}, nums)

	nums, err = parseNumList("")
	require.NoError(t, err)
	assert.Nil(t, nums)

	_, err = parseNumList("206,x")
	assert.Error(t, err)
	_, err = parseNumList("70000")
	assert.Error(t, err)
}

func parseRunFlags(t *testing.T, args ...string) *runFlags {
	t.Helper()
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	rf := addRunFlags(flags)
	require.NoError(t, flags.Parse(args))
	return rf
}

func TestRunOptions(t *testing.T) {
	optsFile := testutils.CreateTempFile(t, "tests: [1, 2]\nskip: [3]\ncacheKey: offset\n")

	opts, err := parseRunFlags(t, "-options", optsFile, "-skip", "4", "-modules", "cache").options()
	require.NoError(t, err)
	testutils.VerifyDeepEqual(t, "options", &acs.Options{
		Tests:    []uint32{1, 2},
		Skip:     []uint32{3, 4},
		Modules:  []string{"cache"},
		CacheKey: acs.CacheKeyOffset,
	}, opts)

	opts, err = parseRunFlags(t, "-options", optsFile, "-tests", "206", "-cache-key", "id").options()
	require.NoError(t, err)
	assert.Equal(t, []uint32{206}, opts.Tests)
	assert.Equal(t, acs.CacheKeyID, opts.CacheKey)

	_, err = parseRunFlags(t, "-cache-key", "name").options()
	assert.Error(t, err)
	_, err = parseRunFlags(t, "-tests", "a").options()
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	rf := parseRunFlags(t, "-platform", "sample-platform.yaml", "-tests", "206")
	results, err := runSuite(context.Background(), rf, acs.NewCollector())
	testutils.VerifyNoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, acs.Pass(mpam.CPORStorageTestNum, 1), results[0].Status)

	platformFile = ""
	_, err = runSuite(context.Background(), parseRunFlags(t), acs.NewCollector())
	assert.Error(t, err)
}
