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

package tracing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tr, err := New(context.Background(), WithTracerProvider(tp), WithServiceName("test"))
	require.NoError(t, err)
	return tr, exp
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

func TestStartRequestSpan(t *testing.T) {
	t.Parallel()
	tr, exp := newRecordingTracer(t)

	ctx, span := tr.StartRequestSpan(context.Background(), http.MethodGet, "/hello", http.Header{},
		attribute.String("request.id", "r1"))
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	tr.FinishRequestSpan(span, http.StatusOK)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "GET /hello", got.Name)
	assert.Equal(t, trace.SpanKindServer, got.SpanKind)
	assert.Equal(t, codes.Unset, got.Status.Code)

	attrs := attrMap(got.Attributes)
	assert.Equal(t, "/hello", attrs["http.route"].AsString())
	assert.Equal(t, "r1", attrs["request.id"].AsString())
	assert.Equal(t, int64(200), attrs["http.response.status_code"].AsInt64())
}

func TestStartRequestSpan_Unmatched(t *testing.T) {
	t.Parallel()
	tr, exp := newRecordingTracer(t)

	_, span := tr.StartRequestSpan(context.Background(), http.MethodPost, "", nil)
	tr.FinishRequestSpan(span, http.StatusNotFound)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST", spans[0].Name)
	assert.NotContains(t, attrMap(spans[0].Attributes), attribute.Key("http.route"))
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func TestStartRequestSpan_Propagation(t *testing.T) {
	t.Parallel()
	tr, exp := newRecordingTracer(t)

	parentCtx, parent := tr.StartRequestSpan(context.Background(), http.MethodGet, "/client", nil)
	header := http.Header{}
	tr.InjectTraceContext(parentCtx, header)
	require.NotEmpty(t, header.Get("traceparent"))

	_, child := tr.StartRequestSpan(context.Background(), http.MethodGet, "/hello", header)
	tr.FinishRequestSpan(child, http.StatusOK)
	tr.FinishRequestSpan(parent, http.StatusOK)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext.TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
}

func TestRecordError(t *testing.T) {
	t.Parallel()
	tr, exp := newRecordingTracer(t)

	_, span := tr.StartRequestSpan(context.Background(), http.MethodGet, "/fail", nil)
	tr.RecordError(span, errors.New("boom"))
	tr.FinishRequestSpan(span, http.StatusInternalServerError)

	got := exp.GetSpans()[0]
	assert.Equal(t, codes.Error, got.Status.Code)
	require.NotEmpty(t, got.Events)
	assert.Equal(t, "exception", got.Events[0].Name)
}

func TestRecordPanic(t *testing.T) {
	t.Parallel()
	tr, exp := newRecordingTracer(t)

	_, span := tr.StartRequestSpan(context.Background(), http.MethodGet, "/panic", nil)
	tr.RecordPanic(span, "kaboom", []byte("goroutine 1 [running]"))
	tr.FinishRequestSpan(span, http.StatusInternalServerError)

	got := exp.GetSpans()[0]
	assert.Equal(t, codes.Error, got.Status.Code)
	assert.Equal(t, "panic: kaboom", got.Status.Description)

	attrs := attrMap(got.Attributes)
	assert.True(t, attrs["exception.escaped"].AsBool())
	assert.Equal(t, "string", attrs["exception.type"].AsString())
	assert.Equal(t, "kaboom", attrs["exception.message"].AsString())
	assert.Contains(t, attrs["exception.stacktrace"].AsString(), "goroutine")
}

func TestNilTracer(t *testing.T) {
	t.Parallel()
	tr := Disabled()
	ctx := context.Background()

	assert.False(t, tr.IsEnabled())
	assert.NotPanics(t, func() {
		gotCtx, span := tr.StartRequestSpan(ctx, http.MethodGet, "/hello", nil)
		assert.Equal(t, ctx, gotCtx)
		tr.RecordError(span, errors.New("x"))
		tr.RecordPanic(span, "x", nil)
		tr.FinishRequestSpan(span, http.StatusOK)
		tr.InjectTraceContext(ctx, http.Header{})
	})
	assert.NoError(t, tr.Shutdown(ctx))
}

func TestNoopProvider(t *testing.T) {
	t.Parallel()
	tr := MustNew(context.Background())
	assert.Equal(t, NoopProvider, tr.Provider())

	ctx, span := tr.StartRequestSpan(context.Background(), http.MethodGet, "/hello", nil)
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	tr.FinishRequestSpan(span, http.StatusOK)
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestSampleRateZero(t *testing.T) {
	t.Parallel()
	tr := MustNew(context.Background(), WithSampleRate(0))

	_, span := tr.StartRequestSpan(context.Background(), http.MethodGet, "/hello", nil)
	assert.False(t, span.SpanContext().IsSampled())
	tr.FinishRequestSpan(span, http.StatusOK)
}

func TestStdoutProvider(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	tr := MustNew(context.Background(), WithStdout(&buf))

	_, span := tr.StartRequestSpan(context.Background(), http.MethodGet, "/hello", nil)
	tr.FinishRequestSpan(span, http.StatusOK)
	require.NoError(t, tr.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "GET /hello")
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := New(ctx, WithSampleRate(1.5))
	assert.Error(t, err)

	_, err = New(ctx, WithServiceName(""))
	assert.Error(t, err)

	_, err = New(ctx, WithProvider("zipkin"))
	assert.Error(t, err)

	assert.Panics(t, func() { MustNew(ctx, WithTracerProvider(nil)) })
}

func TestOTLPHTTPOptions(t *testing.T) {
	t.Parallel()
	assert.Empty(t, otlpHTTPOptions("", false))
	assert.Len(t, otlpHTTPOptions("http://collector:4318/v1/traces", false), 2)
	assert.Len(t, otlpHTTPOptions("collector:4318", false), 1)
	assert.Len(t, otlpHTTPOptions("", true), 1)
}
