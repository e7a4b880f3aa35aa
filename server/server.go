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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	apperrors "rivaas.dev/hello/errors"
	"rivaas.dev/hello/logging"
	"rivaas.dev/hello/metrics"
	"rivaas.dev/hello/router"
	"rivaas.dev/hello/tracing"
)

const (
	defaultAddr              = ":3000"
	defaultName              = "helloserver"
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
	defaultMaxBodyBytes      = 10 << 20

	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second

	shutdownPollIntervalMax = 500 * time.Millisecond
)

// Server accepts HTTP/1.1 connections and dispatches every request to the
// handler its [router.Router] resolves.
//
// Each connection is served by its own goroutine; requests on one connection
// are handled serially. The only state shared between connections is the
// frozen route table and the connection registry used by [Server.Shutdown].
//
// Example:
//
//	r := router.New()
//	r.GET("/hello", hello.Handler())
//
//	srv, err := server.New(r, server.WithPort(3000))
//	if err != nil {
//	    return err
//	}
//	return srv.ListenAndServe(ctx)
type Server struct {
	router *router.Router

	addr              string
	name              string
	readHeaderTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	maxHeaderBytes    int
	maxBodyBytes      int64

	logger    *logging.Logger
	metrics   *metrics.Recorder
	tracer    *tracing.Tracer
	formatter apperrors.Formatter

	inShutdown atomic.Bool
	mu         sync.Mutex
	listeners  map[*onceCloseListener]struct{}
	conns      map[*conn]struct{}
}

// New creates a server dispatching to r. The server takes ownership of r and
// freezes it when serving starts.
//
// Errors:
//   - [ErrNilRouter] if r is nil
//   - a validation error for negative timeouts or a non-positive header limit
func New(r *router.Router, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, ErrNilRouter
	}

	s := &Server{
		router:            r,
		addr:              defaultAddr,
		name:              defaultName,
		readHeaderTimeout: defaultReadHeaderTimeout,
		readTimeout:       defaultReadTimeout,
		writeTimeout:      defaultWriteTimeout,
		idleTimeout:       defaultIdleTimeout,
		shutdownTimeout:   defaultShutdownTimeout,
		maxHeaderBytes:    defaultMaxHeaderBytes,
		maxBodyBytes:      defaultMaxBodyBytes,
		formatter:         apperrors.NewRFC9457(""),
		listeners:         make(map[*onceCloseListener]struct{}),
		conns:             make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.formatter == nil {
		s.formatter = apperrors.NewRFC9457("")
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) validate() error {
	var errs []error
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"read header timeout", s.readHeaderTimeout},
		{"read timeout", s.readTimeout},
		{"write timeout", s.writeTimeout},
		{"idle timeout", s.idleTimeout},
	}
	for _, t := range timeouts {
		if t.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", t.name, t.d))
		}
	}
	if s.shutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %v", s.shutdownTimeout))
	}
	if s.maxHeaderBytes <= 0 {
		errs = append(errs, fmt.Errorf("max header bytes must be positive, got %d", s.maxHeaderBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid server configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Router returns the router the server dispatches to.
func (s *Server) Router() *router.Router {
	return s.router
}

// Listen binds a TCP listener on the configured address. Failures are
// returned as a [*BindError].
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return nil, &BindError{Addr: s.addr, Err: err}
	}
	return ln, nil
}

// Serve accepts connections on ln and serves each one on its own goroutine.
// ctx is the parent of every request context. The router is frozen before
// the first connection is accepted.
//
// Temporary accept errors are retried with a backoff from 5ms up to 1s.
// Serve always returns a non-nil error; after [Server.Shutdown] it is
// [ErrServerClosed].
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	l := &onceCloseListener{Listener: ln}
	defer l.Close()

	if !s.trackListener(l, true) {
		return ErrServerClosed
	}
	defer s.trackListener(l, false)

	s.router.Freeze()
	s.logger.Log(ctx, slog.LevelInfo, "server starting",
		"address", ln.Addr().String(),
		"routes", s.router.Len(),
	)

	var backoff time.Duration
	for {
		nc, err := l.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept failed: %w", err)
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Log(ctx, slog.LevelWarn, "accept failed, retrying",
				"error", err,
				"backoff", backoff,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		backoff = 0

		go s.ServeConn(ctx, nc)
	}
}

// ListenAndServe binds the configured address and serves until ctx is
// cancelled, then shuts down gracefully within the shutdown timeout.
// It returns nil after a graceful shutdown and a [*BindError] when the
// address cannot be bound.
//
// Signal handling is left to the caller:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err := srv.ListenAndServe(ctx)
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen(ctx)
	if err != nil {
		return err
	}

	// Requests must outlive the stop signal so that in-flight responses can
	// complete during shutdown.
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(context.WithoutCancel(ctx), ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		s.logger.Log(ctx, slog.LevelInfo, "server shutting down", "reason", context.Cause(ctx))
	}

	// The parent ctx is already cancelled; it only signals when to stop.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, ErrServerClosed) {
		return err
	}

	s.logger.Log(shutdownCtx, slog.LevelInfo, "server exited")
	return nil
}

// Shutdown stops accepting connections, closes idle connections and waits
// for active ones to finish their current response. When ctx expires the
// remaining connections are closed and ctx.Err() is returned.
//
// Shutdown does not shut down the logger, metrics or tracer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	lnErr := s.closeListenersLocked()
	s.mu.Unlock()

	pollInterval := time.Millisecond
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()
	for {
		if s.closeIdleConns() {
			return lnErr
		}
		select {
		case <-ctx.Done():
			s.closeAllConns()
			return ctx.Err()
		case <-timer.C:
			pollInterval = min(2*pollInterval, shutdownPollIntervalMax)
			timer.Reset(pollInterval)
		}
	}
}

func (s *Server) shuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) trackListener(l *onceCloseListener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.shuttingDown() {
			return false
		}
		s.listeners[l] = struct{}{}
	} else {
		delete(s.listeners, l)
	}
	return true
}

func (s *Server) closeListenersLocked() error {
	var err error
	for l := range s.listeners {
		if cerr := l.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) trackConn(c *conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// closeIdleConns wakes every connection waiting for a request by expiring
// its read deadline and reports whether no connection is left. A connection
// that already received request bytes turns active before it reads again
// and is left to finish its response. Called on every poll, so a deadline
// re-armed by a connection between two polls is expired again.
func (s *Server) closeIdleConns() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if c.state() == stateIdle {
			_ = c.rwc.SetReadDeadline(aLongTimeAgo)
		}
	}
	return len(s.conns) == 0
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.rwc.Close()
		delete(s.conns, c)
	}
}

// onceCloseListener wraps a net.Listener, protecting it from multiple Close
// calls.
type onceCloseListener struct {
	net.Listener
	once     sync.Once
	closeErr error
}

func (l *onceCloseListener) Close() error {
	l.once.Do(func() {
		l.closeErr = l.Listener.Close()
	})
	return l.closeErr
}
