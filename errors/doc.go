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

// Package errors formats errors into HTTP error responses.
//
// A [Formatter] turns an error into a [Response] holding the status code,
// content type and body. Two formats are provided:
//   - [RFC9457]: RFC 9457 Problem Details (application/problem+json)
//   - [Simple]: a flat JSON object (application/json)
//
// Errors control their own status code and machine-readable code by
// implementing [ErrorType] and [ErrorCode]; everything else maps to 500.
//
//	formatter := errors.NewRFC9457("")
//	resp := formatter.Format(req.Path, err)
//	body, _ := resp.Encode()
package errors
