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

// Package tracing creates one OpenTelemetry server span per HTTP request.
//
//	tracer, err := tracing.New(ctx,
//	    tracing.WithServiceName("helloserver"),
//	    tracing.WithOTLP("collector:4317", tracing.OTLPInsecure()),
//	)
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.StartRequestSpan(ctx, "GET", "/hello", req.Header)
//	defer tracer.FinishRequestSpan(span, status)
//
// Incoming W3C traceparent and baggage headers are honoured, so spans join
// the caller's trace. Handler errors are recorded with [Tracer.RecordError]
// and panics with [Tracer.RecordPanic], which marks the span as failed and
// adds exception.* attributes.
//
// Providers: [NoopProvider] (spans are created but not exported),
// [StdoutProvider], [OTLPProvider] (gRPC) and [OTLPHTTPProvider].
//
// A nil or [Disabled] tracer is valid and does nothing.
package tracing
