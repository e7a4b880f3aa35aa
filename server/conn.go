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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/hello/logging"
	"rivaas.dev/hello/metrics"
	"rivaas.dev/hello/router"
)

const (
	readBufferSize  = 4096
	writeBufferSize = 4096

	// headerSlack is added to the header limit to leave room for the
	// bufio read-ahead.
	headerSlack = 4096

	noLimit int64 = math.MaxInt64

	rstAvoidanceDelay = 250 * time.Millisecond
	maxDrainBytes     = 256 << 10
)

var (
	errMissingHost = errors.New("missing required Host header")

	// aLongTimeAgo is a deadline that unblocks pending reads immediately.
	aLongTimeAgo = time.Unix(1, 0)
)

type connState int32

const (
	// stateIdle covers a new connection and a keep-alive connection waiting
	// for its next request. Shutdown wakes it by expiring its read deadline.
	stateIdle connState = iota
	stateActive
)

// conn is one accepted connection.
type conn struct {
	server *Server
	rwc    net.Conn

	remoteAddr string

	lr *io.LimitedReader // caps the header block
	br *bufio.Reader
	bw *bufio.Writer

	curState atomic.Int32
	peerGone atomic.Bool

	// linger is set when unread input may remain after the last response.
	linger bool
}

// ServeConn serves HTTP/1.1 requests on nc until the peer closes it, a
// response requires closing it or the server shuts down. nc is closed on
// return. ctx is the parent of every request context.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	c := &conn{
		server:     s,
		rwc:        nc,
		remoteAddr: nc.RemoteAddr().String(),
	}
	c.lr = &io.LimitedReader{R: nc, N: noLimit}
	c.br = bufio.NewReaderSize(c.lr, readBufferSize)
	c.bw = bufio.NewWriterSize(nc, writeBufferSize)

	if !s.registerConn(c) {
		_ = nc.Close()
		return
	}
	s.metrics.ConnectionOpened(ctx)
	defer func() {
		c.close()
		s.trackConn(c, false)
		s.metrics.ConnectionClosed(ctx)
	}()

	c.serve(ctx)
}

func (s *Server) registerConn(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown() {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (c *conn) state() connState {
	return connState(c.curState.Load())
}

func (c *conn) setState(st connState) {
	c.curState.Store(int32(st))
}

// activate marks the connection active once the first byte of a request
// has arrived and arms the header deadline. Both happen under the server
// lock so that Shutdown either wakes the connection before it turns active
// or leaves it alone until the response is written.
func (c *conn) activate() {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	c.setState(stateActive)
	c.setReadDeadline(s.readHeaderTimeout)
}

func (c *conn) serve(ctx context.Context) {
	for first := true; ; first = false {
		if !c.awaitRequest(first) {
			return
		}
		c.activate()

		if !c.handleRequest(ctx) {
			return
		}

		c.setState(stateIdle)
		if c.server.shuttingDown() {
			return
		}
	}
}

// awaitRequest blocks until the first byte of the next request arrives.
// It returns false when the peer closed the connection, the wait timed out
// or Shutdown woke the idle connection.
func (c *conn) awaitRequest(first bool) bool {
	s := c.server
	wait := s.idleTimeout
	if first || wait == 0 {
		wait = s.readHeaderTimeout
	}
	c.setReadDeadline(wait)
	c.lr.N = int64(s.maxHeaderBytes) + headerSlack

	_, err := c.br.Peek(1)
	return err == nil
}

// exchange is the state of one request on a connection.
type exchange struct {
	start   time.Time
	httpReq *http.Request
	id      string

	route    *router.Route
	matchErr error

	ctx     context.Context
	cancel  context.CancelFunc
	span    trace.Span
	metrics *metrics.RequestMetrics
}

func (ex *exchange) routePath() string {
	if ex.route == nil {
		return ""
	}
	return ex.route.Path
}

// handleRequest reads, dispatches and answers one request. It reports
// whether the connection may be reused.
func (c *conn) handleRequest(ctx context.Context) bool {
	s := c.server
	start := time.Now()

	req, err := http.ReadRequest(c.br)
	if err != nil {
		c.rejectUnreadable(ctx, err)
		return false
	}
	c.lr.N = noLimit

	c.setReadDeadline(s.readTimeout)
	if s.writeTimeout > 0 {
		_ = c.rwc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	} else {
		_ = c.rwc.SetWriteDeadline(time.Time{})
	}

	ex := c.newExchange(ctx, req, start)
	defer ex.cancel()

	resp, err := c.dispatch(ex)

	keepAlive := !req.Close && !c.peerGone.Load() && !s.shuttingDown()
	if err != nil {
		resp = c.errorResponse(req.URL.Path, err)
		var pe *ParseError
		var he *HandlerError
		switch {
		case errors.As(err, &pe):
			keepAlive = false
			c.linger = true
		case errors.As(err, &he) && he.Panicked():
			keepAlive = false
		}
	}

	written, keepAlive, werr := c.writeResponse(req, resp, ex.id, keepAlive)
	if werr != nil {
		keepAlive = false
	}

	c.finish(ex, resp.StatusCode(), written, err, werr)
	return keepAlive
}

func (c *conn) newExchange(ctx context.Context, req *http.Request, start time.Time) *exchange {
	s := c.server
	ex := &exchange{
		start:   start,
		httpReq: req,
		id:      requestID(req.Header),
	}
	ex.route, ex.matchErr = s.router.Match(req.Method, req.URL.Path)

	ex.ctx, ex.cancel = context.WithCancel(ctx)
	ex.ctx, ex.span = s.tracer.StartRequestSpan(ex.ctx, req.Method, ex.routePath(), req.Header,
		attribute.String("http.request.id", ex.id),
		attribute.String("url.path", req.URL.Path),
		attribute.String("client.address", c.remoteAddr),
	)
	ex.metrics = s.metrics.Start(ex.ctx)
	return ex
}

// dispatch reads the body and runs the matched handler.
func (c *conn) dispatch(ex *exchange) (*router.Response, error) {
	req := ex.httpReq
	// ReadRequest moves the Host header into req.Host.
	if req.ProtoAtLeast(1, 1) && req.Host == "" {
		return nil, &ParseError{Status: http.StatusBadRequest, Err: errMissingHost}
	}

	body, err := c.readBody(req)
	if err != nil {
		return nil, err
	}

	if ex.route == nil {
		return nil, ex.matchErr
	}

	rreq := router.NewRequest(ex.ctx, req.Method, req.URL.Path, req.Header, body)
	rreq.RawQuery = req.URL.RawQuery
	rreq.Proto = req.Proto
	rreq.RemoteAddr = c.remoteAddr
	rreq.ID = ex.id

	stop := c.watchPeer(ex.cancel)
	resp, err := invoke(ex.route, rreq)
	stop()
	return resp, err
}

// readBody reads the whole request body within the configured limit.
func (c *conn) readBody(req *http.Request) ([]byte, error) {
	limit := c.server.maxBodyBytes
	if limit > 0 && req.ContentLength > limit {
		return nil, &ParseError{
			Status: http.StatusRequestEntityTooLarge,
			Err:    fmt.Errorf("content length %d exceeds limit of %d bytes", req.ContentLength, limit),
		}
	}

	if req.ContentLength != 0 && req.ProtoAtLeast(1, 1) &&
		strings.EqualFold(req.Header.Get("Expect"), "100-continue") {
		if _, err := c.bw.WriteString("HTTP/1.1 100 Continue\r\n\r\n"); err != nil {
			return nil, &ParseError{Err: err}
		}
		if err := c.bw.Flush(); err != nil {
			return nil, &ParseError{Err: err}
		}
	}

	var r io.Reader = req.Body
	if limit > 0 {
		r = io.LimitReader(req.Body, limit+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		if isTimeout(err) {
			return nil, &ParseError{Status: http.StatusRequestTimeout, Err: err}
		}
		return nil, &ParseError{Err: err}
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, &ParseError{
			Status: http.StatusRequestEntityTooLarge,
			Err:    fmt.Errorf("body exceeds limit of %d bytes", limit),
		}
	}
	_ = req.Body.Close()
	return body, nil
}

// invoke calls the route handler and converts a returned error, a nil
// response or a panic into a [*HandlerError].
func invoke(route *router.Route, req *router.Request) (resp *router.Response, err error) {
	defer func() {
		if v := recover(); v != nil {
			resp = nil
			err = &HandlerError{
				Method: route.Method,
				Route:  route.Path,
				Panic:  v,
				Stack:  debug.Stack(),
			}
		}
	}()

	resp, err = route.Handler.Handle(req)
	switch {
	case err != nil:
		return nil, &HandlerError{Method: route.Method, Route: route.Path, Err: err}
	case resp == nil:
		return nil, &HandlerError{Method: route.Method, Route: route.Path, Err: router.ErrNilResponse}
	case resp.StatusCode() < 200 || resp.StatusCode() > 999:
		return nil, &HandlerError{
			Method: route.Method,
			Route:  route.Path,
			Err:    fmt.Errorf("%w: %d", ErrInvalidStatus, resp.StatusCode()),
		}
	}
	return resp, nil
}

// watchPeer reads ahead on the connection while a handler runs and cancels
// the request when the peer goes away. Bytes of a pipelined request stay
// buffered for the next iteration. The returned func stops the watch and
// must be called before the connection is read again.
func (c *conn) watchPeer(cancel context.CancelFunc) (stop func()) {
	if c.br.Buffered() > 0 {
		return func() {}
	}
	_ = c.rwc.SetReadDeadline(time.Time{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := c.br.Peek(1); err != nil && !isTimeout(err) {
			c.peerGone.Store(true)
			cancel()
		}
	}()

	return func() {
		_ = c.rwc.SetReadDeadline(aLongTimeAgo)
		<-done
	}
}

// errorResponse renders err with the configured formatter.
func (c *conn) errorResponse(instance string, err error) *router.Response {
	formatted := c.server.formatter.Format(instance, err)

	header := formatted.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	body, encErr := formatted.Encode()
	if encErr != nil {
		header.Set("Content-Type", "text/plain; charset=utf-8")
		body = []byte(http.StatusText(formatted.Status))
	} else {
		header.Set("Content-Type", formatted.ContentType)
	}
	return &router.Response{Status: formatted.Status, Header: header, Body: body}
}

// writeResponse serializes resp as HTTP/1.1. The handler's header map is
// copied before framing headers are added. It returns the number of body
// bytes written and whether the connection stays open.
func (c *conn) writeResponse(req *http.Request, resp *router.Response, id string, keepAlive bool) (int, bool, error) {
	status := resp.StatusCode()

	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if hasToken(header.Get("Connection"), "close") {
		keepAlive = false
	}
	header.Del("Connection")
	header.Del("Content-Length")
	header.Del("Transfer-Encoding")

	body := resp.Body
	if bodyAllowedForStatus(status) {
		header.Set("Content-Length", strconv.Itoa(len(body)))
		if _, ok := header["Content-Type"]; !ok && len(body) > 0 {
			header.Set("Content-Type", http.DetectContentType(body))
		}
	} else {
		body = nil
	}
	if req.Method == http.MethodHead {
		body = nil
	}

	if _, ok := header["Date"]; !ok {
		header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if _, ok := header["Server"]; !ok && c.server.name != "" {
		header.Set("Server", c.server.name)
	}
	header.Set(HeaderRequestID, id)

	switch {
	case !keepAlive:
		header.Set("Connection", "close")
	case !req.ProtoAtLeast(1, 1):
		header.Set("Connection", "keep-alive")
	}

	if _, err := fmt.Fprintf(c.bw, "HTTP/1.1 %03d %s\r\n", status, statusText(status)); err != nil {
		return 0, false, err
	}
	if err := header.Write(c.bw); err != nil {
		return 0, false, err
	}
	if _, err := c.bw.WriteString("\r\n"); err != nil {
		return 0, false, err
	}
	n, err := c.bw.Write(body)
	if err != nil {
		return n, false, err
	}
	if err := c.bw.Flush(); err != nil {
		return n, false, err
	}
	return n, keepAlive, nil
}

// rejectUnreadable answers a request whose header block could not be read.
// A peer that went away or timed out is dropped without a response.
func (c *conn) rejectUnreadable(ctx context.Context, err error) {
	s := c.server

	var pe *ParseError
	switch {
	case c.lr.N <= 0:
		pe = &ParseError{
			Status: http.StatusRequestHeaderFieldsTooLarge,
			Err:    fmt.Errorf("header block exceeds %d bytes", s.maxHeaderBytes),
		}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed), isTimeout(err):
		return
	default:
		pe = &ParseError{Status: http.StatusBadRequest, Err: err}
	}

	c.linger = true
	c.setReadDeadline(0)
	if s.writeTimeout > 0 {
		_ = c.rwc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	resp := c.errorResponse("", pe)
	id := newRequestID()
	stub := &http.Request{Method: http.MethodGet, ProtoMajor: 1, ProtoMinor: 1}
	if _, _, werr := c.writeResponse(stub, resp, id, false); werr != nil {
		s.logger.Log(ctx, slog.LevelDebug, "failed to write error response", "error", werr)
	}

	s.logger.Log(ctx, slog.LevelWarn, "rejected malformed request",
		"status", pe.HTTPStatus(),
		"error", pe.Err,
		"remote_addr", c.remoteAddr,
		"request_id", id,
	)
}

// finish ends the span, records metrics and writes the access log line.
func (c *conn) finish(ex *exchange, status, written int, err, writeErr error) {
	s := c.server
	req := ex.httpReq
	cl := logging.NewContextLogger(ex.ctx, s.logger).With("request_id", ex.id)

	var he *HandlerError
	if errors.As(err, &he) {
		s.metrics.HandlerFailed(ex.ctx, he.Route, he.Panicked())
		if he.Panicked() {
			s.tracer.RecordPanic(ex.span, he.Panic, he.Stack)
			cl.Error("handler panicked",
				"method", he.Method,
				"route", he.Route,
				"panic", fmt.Sprint(he.Panic),
				"stack", string(he.Stack),
			)
		} else {
			s.tracer.RecordError(ex.span, he.Err)
			cl.Error("handler failed",
				"method", he.Method,
				"route", he.Route,
				"error", he.Err,
			)
		}
	}
	if writeErr != nil {
		cl.Debug("failed to write response", "error", writeErr)
	}

	s.tracer.FinishRequestSpan(ex.span, status)
	s.metrics.Finish(ex.ctx, ex.metrics, req.Method, ex.routePath(), status)

	fields := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"duration_ms", time.Since(ex.start).Milliseconds(),
		"bytes_sent", written,
		"user_agent", req.UserAgent(),
		"remote_addr", c.remoteAddr,
		"proto", req.Proto,
	}
	if route := ex.routePath(); route != "" {
		fields = append(fields, "route", route)
	}

	switch {
	case status >= http.StatusInternalServerError:
		cl.Error("access", fields...)
	case status >= http.StatusBadRequest:
		cl.Warn("access", fields...)
	default:
		cl.Info("access", fields...)
	}
}

// close closes the connection. After an error response with unread input
// the write side is closed first and pending input drained briefly, so the
// peer receives the response instead of a reset.
func (c *conn) close() {
	if c.linger {
		if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
			_ = c.rwc.SetReadDeadline(time.Now().Add(rstAvoidanceDelay))
			_, _ = io.Copy(io.Discard, io.LimitReader(c.rwc, maxDrainBytes))
		}
	}
	_ = c.rwc.Close()
}

// setReadDeadline sets a read deadline d from now; zero clears it.
func (c *conn) setReadDeadline(d time.Duration) {
	if d > 0 {
		_ = c.rwc.SetReadDeadline(time.Now().Add(d))
		return
	}
	_ = c.rwc.SetReadDeadline(time.Time{})
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "status code " + strconv.Itoa(status)
}

// hasToken reports whether the comma-separated header value v contains
// token, ignoring case.
func hasToken(v, token string) bool {
	for part := range strings.SplitSeq(v, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
