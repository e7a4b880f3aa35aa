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

// Package router maps (method, path) pairs to request handlers.
//
// The router is deliberately small: routes are matched on the exact literal
// path, there are no parameters, wildcards or middleware chains. It is built
// once during startup, frozen, and then read concurrently by every
// connection without locking.
//
// # Handlers
//
// A [Handler] converts a [Request] into a [Response] or fails with an error.
// Plain functions are adapted with [HandlerFunc]:
//
//	r := router.New()
//	r.GET("/hello", router.HandlerFunc(func(req *router.Request) (*router.Response, error) {
//	    return router.Text(http.StatusOK, "hello"), nil
//	}))
//
// # Registration Policy
//
// Registering the same (method, path) twice fails with a
// [*DuplicateRouteError]. [Router.Register] reports the error to the caller;
// the convenience methods [Router.GET] and [Router.Handle] panic, because a
// duplicate route is a programming error that must surface at startup.
//
// After [Router.Freeze] the route table is immutable and every further
// registration returns [ErrRoutesFrozen].
//
// # Resolution
//
// [Router.Resolve] returns the handler registered for the exact pair, or a
// [*NotFoundError] matching [ErrRouteNotFound]. A miss is a value, not a
// panic; the server turns it into a 404 response.
package router
