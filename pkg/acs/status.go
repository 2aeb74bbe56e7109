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

package acs

import (
	"fmt"

	"github.com/acs-suite/gompam/pkg/utils"
)

// State is the outcome class of a test on one PE.
type State uint32

const (
	StatePending State = iota
	StatePass
	StateFail
	StateSkip
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StatePass:
		return "PASS"
	case StateFail:
		return "FAIL"
	case StateSkip:
		return "SKIP"
	}
	return fmt.Sprintf("STATE(%d)", uint32(s))
}

// Status is a verdict code: state [31:28], test number [27:12] and a
// test-specific sub-code [11:0].
type Status uint32

const (
	statusStateShift   = 28
	statusTestNumShift = 12
	statusTestNumWidth = 16
	statusSubCodeWidth = 12
)

// NewStatus encodes a verdict code.
func NewStatus(state State, testNum, subCode uint32) Status {
	var v uint64
	v = utils.SetBits(v, statusStateShift+3, statusStateShift, uint64(state))
	v = utils.SetBits(v, statusTestNumShift+statusTestNumWidth-1, statusTestNumShift, uint64(testNum))
	v = utils.SetBits(v, statusSubCodeWidth-1, 0, uint64(subCode))
	return Status(v)
}

// Pass returns a passing verdict of test testNum.
func Pass(testNum, subCode uint32) Status {
	return NewStatus(StatePass, testNum, subCode)
}

// Fail returns a failing verdict of test testNum.
func Fail(testNum, subCode uint32) Status {
	return NewStatus(StateFail, testNum, subCode)
}

// Skip returns a skip verdict of test testNum.
func Skip(testNum, subCode uint32) Status {
	return NewStatus(StateSkip, testNum, subCode)
}

func (s Status) State() State {
	return State(utils.GetBits(uint64(s), statusStateShift+3, statusStateShift))
}

func (s Status) TestNum() uint32 {
	return uint32(utils.GetBits(uint64(s), statusTestNumShift+statusTestNumWidth-1, statusTestNumShift))
}

func (s Status) SubCode() uint32 {
	return uint32(utils.GetBits(uint64(s), statusSubCodeWidth-1, 0))
}

// String formats the verdict as e.g. "FAIL (02)".
func (s Status) String() string {
	if s.State() == StatePending {
		return s.State().String()
	}
	return fmt.Sprintf("%s (%02d)", s.State(), s.SubCode())
}
