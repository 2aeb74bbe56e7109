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

// Package acs is the compliance suite harness: the registry of tests, the
// per-PE verdict bookkeeping, payload dispatch and result reporting.
package acs

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/acs-suite/gompam/pkg/hal"
	"github.com/acs-suite/gompam/pkg/tables"
)

// Payload is the body of a test, run once on each PE the test needs. It
// reports its verdict through Context.SetStatus.
type Payload func(c *Context)

// Test is one compliance test.
type Test struct {
	Num         uint32
	Module      string
	Description string
	// Rule is the architecture rule the test checks, if any.
	Rule string
	// NumPE is the number of PEs the payload is dispatched to.
	NumPE   int
	Payload Payload
}

func (t *Test) String() string {
	return fmt.Sprintf("%d : %s", t.Num, t.Description)
}

// Env is what tests run against.
type Env struct {
	Platform hal.Platform
	Tables   *tables.Tables
	Options  *Options
}

// Context is handed to a payload running on one PE.
type Context struct {
	*Env
	Test *Test
	PE   hal.PE
	Log  *slog.Logger

	mu     sync.Mutex
	status Status
}

func newContext(env *Env, t *Test, pe hal.PE, log *slog.Logger) *Context {
	return &Context{
		Env:  env,
		Test: t,
		PE:   pe,
		Log:  log.With("pe", pe.Index()),
	}
}

// SetStatus records the verdict of the payload on this PE. A verdict is
// final: later calls are logged and ignored.
func (c *Context) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.State() != StatePending {
		c.Log.Error("verdict already set, ignoring", "verdict", c.status, "ignored", s)
		return
	}
	if s.TestNum() != c.Test.Num {
		c.Log.Warn("verdict for another test number", "verdictTest", s.TestNum())
	}
	c.status = s
}

// Status returns the verdict recorded so far.
func (c *Context) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
