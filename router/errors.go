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

package router

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRouteNotFound indicates that no route matches the requested method and path.
	ErrRouteNotFound = errors.New("route not found")

	// ErrDuplicateRoute indicates that a route for the same method and path is already registered.
	ErrDuplicateRoute = errors.New("duplicate route")

	// ErrRoutesFrozen indicates that routes can no longer be registered.
	ErrRoutesFrozen = errors.New("routes are frozen")

	// ErrInvalidMethod indicates that the method is not a valid HTTP token.
	ErrInvalidMethod = errors.New("invalid HTTP method")

	// ErrInvalidPath indicates that the path is empty or does not start with '/'.
	ErrInvalidPath = errors.New("invalid route path")

	// ErrNilHandler indicates that a nil handler was registered.
	ErrNilHandler = errors.New("handler is nil")

	// ErrNilResponse indicates that a handler returned neither a response nor an error.
	ErrNilResponse = errors.New("handler returned nil response")
)

// DuplicateRouteError is returned by [Router.Register] when the (method, path)
// pair is already bound to a handler.
type DuplicateRouteError struct {
	Method string
	Path   string
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("route %s %s already registered", e.Method, e.Path)
}

// Is reports whether target is [ErrDuplicateRoute].
func (e *DuplicateRouteError) Is(target error) bool {
	return target == ErrDuplicateRoute
}

// NotFoundError is returned by [Router.Resolve] when no route matches.
type NotFoundError struct {
	Method string
	Path   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no route for %s %s", e.Method, e.Path)
}

// Is reports whether target is [ErrRouteNotFound].
func (e *NotFoundError) Is(target error) bool {
	return target == ErrRouteNotFound
}

// HTTPStatus returns 404.
func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

// Code returns a machine-readable error code.
func (e *NotFoundError) Code() string {
	return "ROUTE_NOT_FOUND"
}
