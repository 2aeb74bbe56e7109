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

package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFlag(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		fail     bool
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "INFO", expected: slog.LevelInfo},
		{input: "Warn", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "verbose", fail: true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			f := NewLevelFlag(slog.LevelInfo)
			err := f.Set(tc.input)
			if tc.fail {
				require.Error(t, err)
				assert.Equal(t, slog.LevelInfo, f.Level())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f.Level())
			assert.Equal(t, strings.ToLower(tc.input), f.String())
		})
	}
}

func TestLogHandlerLevel(t *testing.T) {
	h := &logHandler{Leveler: slog.LevelWarn, Handler: slog.NewTextHandler(&bytes.Buffer{}, nil)}
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	// Level override must survive WithAttrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "x")})
	assert.False(t, h2.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	level := NewLevelFlag(slog.LevelWarn)
	logger := slog.New(NewLogHandler(buf, level))

	logger.Info("hidden")
	logger.Warn("shown", "component", "acs")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown component=acs")

	require.NoError(t, level.Set("debug"))
	logger.With("pe", 0).Debug("now visible")
	assert.Contains(t, buf.String(), "msg=\"now visible\" pe=0")
}

func TestDebugBlock(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	DebugBlock(logger, "tables:", "  ", "%s\n%s", "line-1", "line-2")
	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "\n"))
	assert.Contains(t, out, "msg=tables:")
	assert.Contains(t, out, `msg="  line-2"`)

	buf.Reset()
	quiet := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	DebugBlock(quiet, "tables:", "  ", "%s", "hidden")
	assert.Empty(t, buf.String())
}
