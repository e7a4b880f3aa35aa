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
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the result of a [Handler]. Once returned to the server it is
// not modified; the server copies Header before adding framing headers.
type Response struct {
	// Status is the HTTP status code. Zero means 200.
	Status int
	// Header holds response headers. May be nil.
	Header http.Header
	// Body is written verbatim.
	Body []byte
}

// StatusCode returns the effective status code.
func (r *Response) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// Text returns a plain text response.
func Text(status int, body string) *Response {
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte(body),
	}
}

// Stringf returns a plain text response built with fmt.Sprintf.
func Stringf(status int, format string, values ...any) *Response {
	return Text(status, fmt.Sprintf(format, values...))
}

// JSON returns a response with v encoded as JSON.
func JSON(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:   body,
	}, nil
}

// NoContent returns an empty 204 response.
func NoContent() *Response {
	return &Response{Status: http.StatusNoContent}
}
