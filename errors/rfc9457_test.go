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

package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, resp Response) map[string]any {
	t.Helper()
	b, err := resp.Encode()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestRFC9457_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantDetail string
	}{
		{
			name:       "plain error hides detail",
			err:        &testError{message: "db password wrong"},
			wantStatus: http.StatusInternalServerError,
			wantType:   "about:blank",
		},
		{
			name:       "explicit status",
			err:        WithStatus(fmt.Errorf("missing field"), http.StatusBadRequest),
			wantStatus: http.StatusBadRequest,
			wantType:   "about:blank",
			wantDetail: "missing field",
		},
		{
			name:       "code and status",
			err:        &testErrorFull{message: "no route", code: "ROUTE_NOT_FOUND", status: http.StatusNotFound},
			wantStatus: http.StatusNotFound,
			wantType:   "https://example.com/problems/ROUTE_NOT_FOUND",
			wantDetail: "no route",
		},
		{
			name:       "wrapped typed error",
			err:        fmt.Errorf("serve: %w", &testErrorFull{message: "too large", code: "BODY_TOO_LARGE", status: http.StatusRequestEntityTooLarge}),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   "https://example.com/problems/BODY_TOO_LARGE",
			wantDetail: "serve: too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := NewRFC9457("https://example.com/problems")
			resp := f.Format("/hello", tt.err)

			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "application/problem+json; charset=utf-8", resp.ContentType)

			m := decode(t, resp)
			assert.Equal(t, tt.wantType, m["type"])
			assert.Equal(t, http.StatusText(tt.wantStatus), m["title"])
			assert.InDelta(t, float64(tt.wantStatus), m["status"], 0)
			assert.Equal(t, "/hello", m["instance"])
			if tt.wantDetail == "" {
				assert.NotContains(t, m, "detail")
			} else {
				assert.Equal(t, tt.wantDetail, m["detail"])
			}
		})
	}
}

func TestRFC9457_ErrorID(t *testing.T) {
	t.Parallel()

	t.Run("generated uuid", func(t *testing.T) {
		t.Parallel()
		m := decode(t, NewRFC9457("").Format("", &testError{message: "x"}))
		id, ok := m["error_id"].(string)
		require.True(t, ok)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("custom generator", func(t *testing.T) {
		t.Parallel()
		f := &RFC9457{ErrorIDGenerator: func() string { return "req-1" }}
		m := decode(t, f.Format("", &testError{message: "x"}))
		assert.Equal(t, "req-1", m["error_id"])
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		f := &RFC9457{DisableErrorID: true}
		m := decode(t, f.Format("", &testError{message: "x"}))
		assert.NotContains(t, m, "error_id")
	})
}

func TestRFC9457_Extensions(t *testing.T) {
	t.Parallel()
	err := &testErrorFull{
		message: "bad",
		code:    "INVALID",
		status:  http.StatusBadRequest,
		details: map[string]any{"field": "name"},
	}

	m := decode(t, NewRFC9457("").Format("", err))
	assert.Equal(t, "INVALID", m["type"])
	assert.Equal(t, "INVALID", m["code"])
	assert.Equal(t, map[string]any{"field": "name"}, m["errors"])
	assert.NotContains(t, m, "instance")
}

func TestRFC9457_ExposeInternal(t *testing.T) {
	t.Parallel()
	f := &RFC9457{ExposeInternal: true}
	m := decode(t, f.Format("", &testError{message: "boom"}))
	assert.Equal(t, "boom", m["detail"])
}

func TestRFC9457_StatusResolver(t *testing.T) {
	t.Parallel()
	f := &RFC9457{StatusResolver: func(error) int { return http.StatusTeapot }}
	resp := f.Format("", &testError{message: "x"})
	assert.Equal(t, http.StatusTeapot, resp.Status)
}

func TestProblemDetail_ReservedExtensions(t *testing.T) {
	t.Parallel()
	p := ProblemDetail{
		Type:   "about:blank",
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
		Extensions: map[string]any{
			"status": 999,
			"extra":  true,
		},
	}

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"about:blank","title":"Bad Request","status":400,"extra":true}`, string(b))
}
