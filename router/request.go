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
	"context"
	"net/http"
)

// Request is an inbound HTTP request as seen by a [Handler].
// It is owned by the connection that parsed it and must be treated as
// read-only by handlers.
type Request struct {
	ctx context.Context

	// Method is the upper-case HTTP method, e.g. "GET".
	Method string
	// Path is the decoded URL path without query string.
	Path string
	// RawQuery is the encoded query string without the leading '?'.
	RawQuery string
	// Proto is the protocol version, e.g. "HTTP/1.1".
	Proto string
	// Header holds the request headers with canonical keys.
	Header http.Header
	// Body is the fully read request body. Empty for bodiless requests.
	Body []byte
	// RemoteAddr is the network address of the client.
	RemoteAddr string
	// ID is the request identifier assigned by the server.
	ID string
}

// NewRequest returns a request bound to ctx. A nil header is replaced by an
// empty one.
func NewRequest(ctx context.Context, method, path string, header http.Header, body []byte) *Request {
	if header == nil {
		header = make(http.Header)
	}
	return &Request{
		ctx:    ctx,
		Method: method,
		Path:   path,
		Proto:  "HTTP/1.1",
		Header: header,
		Body:   body,
	}
}

// Context returns the request context. It is cancelled when the client
// disconnects or the server shuts down. Never nil.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r bound to ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("router: nil context")
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}
