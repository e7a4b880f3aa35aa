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

// Package metrics records HTTP server metrics with OpenTelemetry.
//
// # Basic Usage
//
//	recorder := metrics.MustNew(
//	    metrics.WithPrometheus(),
//	    metrics.WithServiceName("helloserver"),
//	)
//	defer recorder.Shutdown(context.Background())
//
//	addr, err := recorder.StartServer(":9090", "/metrics")
//
// # Providers
//
//   - [PrometheusProvider] (default): a private registry scraped over HTTP
//   - [OTLPProvider]: periodic push to an OTLP/HTTP collector
//   - [StdoutProvider]: periodic dump to stdout for development
//
// # Instruments
//
//   - http.server.requests: completed requests by method, route and status
//   - http.server.request.duration: request latency in seconds
//   - http.server.active_connections: open client connections
//   - http.server.handler_errors: handler failures, split by error and panic
//
// A nil or [Disabled] recorder accepts every call and records nothing, so
// callers never branch on whether metrics are on.
//
// The global OpenTelemetry meter provider is left untouched unless
// [WithGlobalMeterProvider] is used.
package metrics
