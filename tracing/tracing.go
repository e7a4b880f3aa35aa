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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider selects the span exporter.
type Provider string

const (
	NoopProvider     Provider = "noop"
	StdoutProvider   Provider = "stdout"
	OTLPProvider     Provider = "otlp"
	OTLPHTTPProvider Provider = "otlp-http"
)

const tracerName = "rivaas.dev/hello/tracing"

// Tracer owns a tracer provider and starts request spans.
// Methods are safe for concurrent use and are no-ops on a nil Tracer.
type Tracer struct {
	provider       Provider
	serviceName    string
	serviceVersion string
	sampleRate     float64
	otlpEndpoint   string
	otlpInsecure   bool
	stdoutWriter   io.Writer
	registerGlobal bool
	logger         *slog.Logger

	tracerProvider       trace.TracerProvider
	sdkProvider          *sdktrace.TracerProvider // nil for custom providers
	customTracerProvider bool
	tracer               trace.Tracer
	propagator           propagation.TextMapPropagator
}

// New creates a Tracer. ctx bounds exporter connection setup.
func New(ctx context.Context, opts ...Option) (*Tracer, error) {
	t := &Tracer{
		provider:       NoopProvider,
		serviceName:    "helloserver",
		serviceVersion: "dev",
		sampleRate:     1.0,
		logger:         slog.New(slog.DiscardHandler),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("invalid tracing configuration: %w", err)
	}
	if err := t.initializeProvider(ctx); err != nil {
		return nil, err
	}
	t.tracer = t.tracerProvider.Tracer(tracerName)

	if t.registerGlobal {
		otel.SetTracerProvider(t.tracerProvider)
		otel.SetTextMapPropagator(t.propagator)
	}
	return t, nil
}

// MustNew creates a Tracer or panics on error.
func MustNew(ctx context.Context, opts ...Option) *Tracer {
	t, err := New(ctx, opts...)
	if err != nil {
		panic("tracing initialization failed: " + err.Error())
	}
	return t
}

// Disabled returns a nil Tracer, which traces nothing.
func Disabled() *Tracer {
	return nil
}

func (t *Tracer) validate() error {
	if t.serviceName == "" {
		return errors.New("service name cannot be empty")
	}
	if t.sampleRate < 0 || t.sampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0.0 and 1.0, got %f", t.sampleRate)
	}
	if t.customTracerProvider && t.tracerProvider == nil {
		return errors.New("custom tracer provider is nil")
	}
	return nil
}

// IsEnabled reports whether spans are created.
func (t *Tracer) IsEnabled() bool {
	return t != nil
}

// Provider returns the configured provider.
func (t *Tracer) Provider() Provider {
	if t == nil {
		return ""
	}
	return t.provider
}

// StartRequestSpan extracts the caller's trace context from header and
// starts a server span. The span is named "METHOD route", or just METHOD
// when no route matched.
func (t *Tracer) StartRequestSpan(ctx context.Context, method, route string, header http.Header, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, noop.Span{}
	}

	ctx = t.propagator.Extract(ctx, propagation.HeaderCarrier(header))

	name := method
	if route != "" {
		name = method + " " + route
	}

	base := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("service.name", t.serviceName),
		attribute.String("service.version", t.serviceVersion),
	}
	if route != "" {
		base = append(base, attribute.String("http.route", route))
	}

	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(append(base, attrs...)...),
	)
}

// FinishRequestSpan records the response status and ends the span. 5xx
// marks the span as failed unless an error was already recorded.
func (t *Tracer) FinishRequestSpan(span trace.Span, statusCode int) {
	if t == nil || span == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	if statusCode >= http.StatusInternalServerError && !failed(span) {
		span.SetStatus(codes.Error, http.StatusText(statusCode))
	}
	span.End()
}

// failed reports whether an SDK span already carries an error status.
func failed(span trace.Span) bool {
	ro, ok := span.(sdktrace.ReadOnlySpan)
	return ok && ro.Status().Code == codes.Error
}

// RecordError records a handler error on span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if t == nil || span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordPanic records a recovered panic on span with exception.* attributes.
func (t *Tracer) RecordPanic(span trace.Span, value any, stack []byte) {
	if t == nil || span == nil {
		return
	}
	msg := fmt.Sprint(value)
	attrs := []attribute.KeyValue{
		attribute.Bool("exception.escaped", true),
		attribute.String("exception.type", fmt.Sprintf("%T", value)),
		attribute.String("exception.message", msg),
	}
	if len(stack) > 0 {
		attrs = append(attrs, attribute.String("exception.stacktrace", string(stack)))
	}
	span.AddEvent("exception", trace.WithAttributes(attrs...))
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Error, "panic: "+msg)
}

// InjectTraceContext writes the span context of ctx into header.
func (t *Tracer) InjectTraceContext(ctx context.Context, header http.Header) {
	if t == nil {
		return
	}
	t.propagator.Inject(ctx, propagation.HeaderCarrier(header))
}

// Shutdown flushes and stops the tracer provider it created.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.sdkProvider == nil {
		return nil
	}
	if err := t.sdkProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}
	return nil
}
