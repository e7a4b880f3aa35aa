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

// Package server serves HTTP/1.1 over plain TCP and dispatches each request
// to the handler resolved by a [router.Router].
//
// The server owns its connection loop: requests are parsed with the
// standard library parser, handled serially per connection and answered
// with explicit Content-Length framing. Keep-alive follows HTTP/1.x rules.
//
// # Request lifecycle
//
// Every request is Received, then Resolved or NotFound, then Responded:
//
//   - no matching route: 404 problem response, no handler runs
//   - handler error or panic: 500 problem response, the failure is logged,
//     counted and recorded on the request span; a panic closes only that
//     connection
//   - malformed request: 400, oversized header block: 431, oversized body:
//     413; the connection is closed afterwards
//
// While a handler runs the server watches the connection; when the client
// goes away the request context is cancelled.
//
// # Lifecycle
//
//	srv, err := server.New(r,
//	    server.WithConfig(cfg.Server),
//	    server.WithLogger(logger),
//	    server.WithMetrics(recorder),
//	    server.WithTracer(tracer),
//	)
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	return srv.ListenAndServe(ctx) // graceful shutdown on signal
//
// Bind failures are reported as [*BindError] and match [ErrBind].
package server
