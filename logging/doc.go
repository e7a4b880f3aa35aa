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

// Package logging provides structured logging on top of [log/slog].
//
// # Basic Usage
//
//	logger := logging.MustNew(logging.WithConsoleHandler())
//	defer logger.Shutdown(context.Background())
//	logger.Info("server started", "addr", ":3000")
//
// # Structured Logging
//
//	logger := logging.MustNew(
//	    logging.WithJSONHandler(),
//	    logging.WithServiceName("helloserver"),
//	    logging.WithDebugLevel(),
//	)
//	logger.Info("request completed",
//	    "method", http.MethodGet,
//	    "path", "/hello",
//	    "status", 200,
//	)
//
// # Dynamic Log Levels
//
// The level is held in a [slog.LevelVar] and can be changed at runtime:
//
//	logger.SetLevel(logging.LevelDebug)
//
// Levels and handler types are parsed from configuration strings with
// [ParseLevel] and [ParseHandlerType].
//
// # Sensitive Data Redaction
//
// Attributes named password, token, secret, api_key, authorization or
// cookie are redacted from all output. Additional sanitization can be
// configured using [WithReplaceAttr].
//
// # Context-Aware Logging
//
// [ContextLogger] adds trace_id and span_id when the context carries an
// active OpenTelemetry span:
//
//	cl := logging.NewContextLogger(ctx, logger)
//	cl.Info("handler failed", "error", err)
package logging
