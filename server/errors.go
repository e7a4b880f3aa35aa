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
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrServerClosed is returned by [Server.Serve] after [Server.Shutdown].
	ErrServerClosed = errors.New("server closed")

	// ErrBind indicates that the listener could not be bound.
	ErrBind = errors.New("bind failed")

	// ErrNilRouter indicates that [New] was called without a router.
	ErrNilRouter = errors.New("router is nil")

	// ErrInvalidStatus indicates that a handler returned a status code
	// outside 200-999. Informational statuses are reserved to the server.
	ErrInvalidStatus = errors.New("invalid status code")
)

// BindError is returned when the server cannot bind its address, for
// example because the port is in use or binding requires privileges.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrBind].
func (e *BindError) Is(target error) bool {
	return target == ErrBind
}

// ParseError describes a request that could not be read. Status is 400 for
// malformed input, 431 for an oversized header block and 413 for an
// oversized body.
type ParseError struct {
	Status int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed request: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code reported to the client.
func (e *ParseError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// Code returns a machine-readable error code.
func (e *ParseError) Code() string {
	switch e.HTTPStatus() {
	case http.StatusRequestHeaderFieldsTooLarge:
		return "HEADER_TOO_LARGE"
	case http.StatusRequestEntityTooLarge:
		return "BODY_TOO_LARGE"
	default:
		return "MALFORMED_REQUEST"
	}
}

// HandlerError wraps a failure of a route handler. Either Err is set (the
// handler returned an error) or Panic is set (the handler panicked; Stack
// holds the goroutine stack at recovery).
type HandlerError struct {
	Method string
	Route  string
	Err    error
	Panic  any
	Stack  []byte
}

func (e *HandlerError) Error() string {
	if e.Panicked() {
		return fmt.Sprintf("handler for %s %s panicked: %v", e.Method, e.Route, e.Panic)
	}
	return fmt.Sprintf("handler for %s %s failed: %v", e.Method, e.Route, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the handler panicked.
func (e *HandlerError) Panicked() bool {
	return e.Panic != nil
}

// HTTPStatus returns 500.
func (e *HandlerError) HTTPStatus() int {
	return http.StatusInternalServerError
}

// Code returns a machine-readable error code.
func (e *HandlerError) Code() string {
	return "HANDLER_ERROR"
}
