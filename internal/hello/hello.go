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

// Package hello holds the handler behind GET /hello.
package hello

import (
	"net/http"

	"rivaas.dev/hello/router"
)

// Path is the route the handler is registered on.
const Path = "/hello"

// Body is the greeting returned to every caller.
const Body = "hello"

// HandlerName is the name the handler is listed under in the route table.
const HandlerName = "hello.Handler"

// Handler returns the placeholder business handler: 200 text/plain "hello".
func Handler() router.Handler {
	return router.Named(HandlerName, router.HandlerFunc(func(*router.Request) (*router.Response, error) {
		return router.Text(http.StatusOK, Body), nil
	}))
}

// Register binds the handler to GET [Path] on r.
func Register(r *router.Router) error {
	return r.Register(http.MethodGet, Path, Handler())
}
