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

package metrics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestMetrics holds the in-flight state of one request.
type RequestMetrics struct {
	StartTime time.Time
}

// Start begins timing a request. It returns nil on a nil Recorder.
func (r *Recorder) Start(_ context.Context) *RequestMetrics {
	if r == nil {
		return nil
	}
	return &RequestMetrics{StartTime: time.Now()}
}

// Finish records a completed request. route is the matched route path, or
// empty when nothing matched, which keeps label cardinality bounded.
func (r *Recorder) Finish(ctx context.Context, m *RequestMetrics, method, route string, statusCode int) {
	if r == nil || m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}

	attrs := metric.WithAttributes(append(r.serviceAttrs[:len(r.serviceAttrs):len(r.serviceAttrs)],
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", statusCode),
		attribute.String("http.status_class", statusClass(statusCode)),
	)...)

	r.requestDuration.Record(ctx, time.Since(m.StartTime).Seconds(), attrs)
	r.requestCount.Add(ctx, 1, attrs)
}

// ConnectionOpened increments the active connection count.
func (r *Recorder) ConnectionOpened(ctx context.Context) {
	if r == nil {
		return
	}
	r.activeConnections.Add(ctx, 1, metric.WithAttributes(r.serviceAttrs...))
}

// ConnectionClosed decrements the active connection count.
func (r *Recorder) ConnectionClosed(ctx context.Context) {
	if r == nil {
		return
	}
	r.activeConnections.Add(ctx, -1, metric.WithAttributes(r.serviceAttrs...))
}

// HandlerFailed counts a handler that returned an error or panicked.
func (r *Recorder) HandlerFailed(ctx context.Context, route string, panicked bool) {
	if r == nil {
		return
	}
	kind := "error"
	if panicked {
		kind = "panic"
	}
	r.handlerErrors.Add(ctx, 1, metric.WithAttributes(append(r.serviceAttrs[:len(r.serviceAttrs):len(r.serviceAttrs)],
		attribute.String("http.route", route),
		attribute.String("error.kind", kind),
	)...))
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx).
func statusClass(statusCode int) string {
	if statusCode < 100 || statusCode > 599 {
		return "unknown"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}
