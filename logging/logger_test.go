// Copyright 2025 The Rivaas Authors
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

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	l, err := New()
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, l.Level())
	assert.True(t, l.IsEnabled())
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(WithOutput(nil))
	require.Error(t, err)

	_, err = New(WithCustomLogger(nil))
	require.ErrorIs(t, err, ErrNilLogger)

	_, err = New(WithHandlerType("xml"))
	require.ErrorIs(t, err, ErrInvalidHandler)

	assert.Panics(t, func() { MustNew(WithHandlerType("xml")) })
}

func TestLogger_ServiceAttributes(t *testing.T) {
	t.Parallel()
	th := NewTestHelper(t,
		WithServiceName("helloserver"),
		WithServiceVersion("v1.0.0"),
		WithEnvironment("test"),
	)

	th.Logger.Info("server started", "addr", ":3000")

	th.AssertLog(t, "INFO", "server started", map[string]any{
		"service": "helloserver",
		"version": "v1.0.0",
		"env":     "test",
		"addr":    ":3000",
	})
}

func TestLogger_Redaction(t *testing.T) {
	t.Parallel()
	th := NewTestHelper(t)

	th.Logger.Info("login", "password", "hunter2", "authorization", "Bearer x", "user", "ana")

	entry, err := th.LastLog()
	require.NoError(t, err)
	assert.Equal(t, "***REDACTED***", entry.Attrs["password"])
	assert.Equal(t, "***REDACTED***", entry.Attrs["authorization"])
	assert.Equal(t, "ana", entry.Attrs["user"])
}

func TestLogger_ReplaceAttr(t *testing.T) {
	t.Parallel()
	th := NewTestHelper(t, WithReplaceAttr(func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == "drop" {
			return slog.Attr{}
		}
		return a
	}))

	th.Logger.Info("msg", "drop", 1, "keep", 2)
	th.AssertLog(t, "INFO", "msg", map[string]any{"keep": 2})

	entry, err := th.LastLog()
	require.NoError(t, err)
	assert.NotContains(t, entry.Attrs, "drop")
}

func TestLogger_SetLevel(t *testing.T) {
	t.Parallel()
	th := NewTestHelper(t, WithLevel(LevelWarn))

	th.Logger.Info("hidden")
	assert.False(t, th.ContainsLog("hidden"))

	require.NoError(t, th.Logger.SetLevel(LevelDebug))
	th.Logger.Debug("visible")
	assert.True(t, th.ContainsLog("visible"))
	assert.Equal(t, LevelDebug, th.Logger.Level())
}

func TestLogger_SetLevelCustom(t *testing.T) {
	t.Parallel()
	l := MustNew(WithCustomLogger(slog.New(slog.DiscardHandler)))
	assert.ErrorIs(t, l.SetLevel(LevelDebug), ErrCannotChangeLevel)
}

func TestLogger_Shutdown(t *testing.T) {
	t.Parallel()
	th := NewTestHelper(t)

	th.Logger.Info("before")
	require.NoError(t, th.Logger.Shutdown(context.Background()))
	th.Logger.Error("after")

	assert.False(t, th.Logger.IsEnabled())
	assert.True(t, th.ContainsLog("before"))
	assert.False(t, th.ContainsLog("after"))
	assert.Equal(t, 0, th.CountLevel("ERROR"))
}

func TestTextHandler(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := MustNew(WithTextHandler(), WithOutput(&buf))

	l.Info("hello", "status", 200)
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "status=200")
}

func TestConsoleHandler(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := MustNew(WithConsoleHandler(), WithOutput(&buf))

	l.With("component", "server").WithGroup("req").Info("done", "status", 200, "token", "abc")

	out := buf.String()
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "component=server")
	assert.Contains(t, out, "req.status=200")
	assert.Contains(t, out, "req.token=***REDACTED***")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestConsoleHandler_Level(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := MustNew(WithConsoleHandler(), WithOutput(&buf), WithLevel(LevelError))

	l.Warn("skipped")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestParseHandlerType(t *testing.T) {
	t.Parallel()

	got, err := ParseHandlerType("Console")
	require.NoError(t, err)
	assert.Equal(t, ConsoleHandler, got)

	got, err = ParseHandlerType("")
	require.NoError(t, err)
	assert.Equal(t, JSONHandler, got)

	_, err = ParseHandlerType("xml")
	assert.ErrorIs(t, err, ErrInvalidHandler)
}

func TestContextLogger_TraceCorrelation(t *testing.T) {
	t.Parallel()
	th := NewTestHelper(t)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	cl := NewContextLogger(ctx, th.Logger).With("request_id", "r1")
	cl.Info("handled")

	assert.Equal(t, span.SpanContext().TraceID().String(), cl.TraceID())
	th.AssertLog(t, "INFO", "handled", map[string]any{
		"trace_id":   cl.TraceID(),
		"span_id":    cl.SpanID(),
		"request_id": "r1",
	})
}

func TestContextLogger_NoSpan(t *testing.T) {
	t.Parallel()
	th := NewTestHelper(t)

	cl := NewContextLogger(context.Background(), th.Logger)
	cl.Warn("plain")

	assert.Empty(t, cl.TraceID())
	entry, err := th.LastLog()
	require.NoError(t, err)
	assert.NotContains(t, entry.Attrs, "trace_id")
}

func TestWithGlobalLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	l, err := New(WithJSONHandler(), WithOutput(&buf), WithServiceName("helloserver"), WithGlobalLogger())
	require.NoError(t, err)
	assert.Same(t, l.Logger(), slog.Default())

	slog.Info("via default")
	entries, err := ParseJSONLogEntries(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "via default", entries[0].Message)
	assert.Equal(t, "helloserver", entries[0].Attrs["service"])
}
