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

package server

import (
	"net"
	"strconv"
	"time"

	"rivaas.dev/hello/config"
	"rivaas.dev/hello/errors"
	"rivaas.dev/hello/logging"
	"rivaas.dev/hello/metrics"
	"rivaas.dev/hello/tracing"
)

// Option defines functional options for server configuration.
type Option func(*Server)

// WithAddr sets the listen address in host:port form.
//
// Example:
//
//	server.New(r, server.WithAddr("127.0.0.1:8080"))
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithPort sets the listen port on all interfaces.
func WithPort(port int) Option {
	return func(s *Server) {
		s.addr = net.JoinHostPort("", strconv.Itoa(port))
	}
}

// WithConfig applies the server section of the process configuration.
//
// Example:
//
//	cfg, err := config.Load(ctx, config.WithFile(path), config.WithEnv("HELLO_"))
//	srv, err := server.New(r, server.WithConfig(cfg.Server))
func WithConfig(cfg config.Server) Option {
	return func(s *Server) {
		s.addr = cfg.Addr()
		s.readHeaderTimeout = cfg.ReadHeaderTimeout
		s.readTimeout = cfg.ReadTimeout
		s.writeTimeout = cfg.WriteTimeout
		s.idleTimeout = cfg.IdleTimeout
		s.shutdownTimeout = cfg.ShutdownTimeout
		s.maxHeaderBytes = cfg.MaxHeaderBytes
		s.maxBodyBytes = cfg.MaxBodyBytes
	}
}

// WithReadHeaderTimeout sets how long the server waits for a complete
// request header block. Zero means no limit.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

// WithReadTimeout sets how long the server waits to read an entire request
// including the body. Zero means no limit.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// WithWriteTimeout bounds the time from the end of the request header to
// the end of the response write. Zero means no limit.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithIdleTimeout sets how long a keep-alive connection may wait for the
// next request. Zero falls back to the read-header timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// WithShutdownTimeout bounds the graceful shutdown performed by
// [Server.ListenAndServe] when its context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithMaxHeaderBytes limits the size of the request line plus headers.
// Larger header blocks are answered with 431.
func WithMaxHeaderBytes(n int) Option {
	return func(s *Server) {
		s.maxHeaderBytes = n
	}
}

// WithMaxBodyBytes limits the request body size. Larger bodies are answered
// with 413. Zero or a negative value disables the limit.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// WithLogger sets the logger for lifecycle events, access lines and handler
// failures.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the recorder for request and connection metrics.
// A nil recorder disables metrics.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Server) {
		s.metrics = recorder
	}
}

// WithTracer sets the tracer creating one span per request.
// A nil tracer disables tracing.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithErrorFormatter sets the formatter for 4xx and 5xx responses produced
// by the server itself. Defaults to RFC 9457 problem details.
//
// Example:
//
//	server.New(r, server.WithErrorFormatter(errors.NewSimple()))
func WithErrorFormatter(formatter errors.Formatter) Option {
	return func(s *Server) {
		s.formatter = formatter
	}
}

// WithName sets the Server response header. An empty name omits it.
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}
