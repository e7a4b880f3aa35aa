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
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textHandler returns a handler that always responds with body.
func textHandler(body string) Handler {
	return HandlerFunc(func(*Request) (*Response, error) {
		return Text(http.StatusOK, body), nil
	})
}

func TestResolve_ExactMatch(t *testing.T) {
	t.Parallel()
	r := New()
	r.GET("/hello", textHandler("hello"))
	r.GET("/other", textHandler("other"))
	r.POST("/hello", textHandler("posted"))

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/hello", "hello"},
		{http.MethodGet, "/other", "other"},
		{http.MethodPost, "/hello", "posted"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			h, err := r.Resolve(tt.method, tt.path)
			require.NoError(t, err)

			resp, err := h.Handle(NewRequest(context.Background(), tt.method, tt.path, nil, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(resp.Body))
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()
	r := New()
	r.GET("/hello", textHandler("hello"))

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"unknown path", http.MethodGet, "/unknown"},
		{"trailing slash", http.MethodGet, "/hello/"},
		{"prefix only", http.MethodGet, "/hel"},
		{"wrong method", http.MethodPost, "/hello"},
		{"lower-case method", "get", "/hello"},
		{"root", http.MethodGet, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := r.Resolve(tt.method, tt.path)
			assert.Nil(t, h)
			require.ErrorIs(t, err, ErrRouteNotFound)

			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tt.method, nf.Method)
			assert.Equal(t, tt.path, nf.Path)
			assert.Equal(t, http.StatusNotFound, nf.HTTPStatus())
		})
	}
}

func TestRegister_DuplicateFailsFast(t *testing.T) {
	t.Parallel()
	r := New()
	first := textHandler("first")
	require.NoError(t, r.Register(http.MethodGet, "/hello", first))

	err := r.Register(http.MethodGet, "/hello", textHandler("second"))
	require.ErrorIs(t, err, ErrDuplicateRoute)

	var dup *DuplicateRouteError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, http.MethodGet, dup.Method)
	assert.Equal(t, "/hello", dup.Path)

	// The original registration is kept.
	h, err := r.Resolve(http.MethodGet, "/hello")
	require.NoError(t, err)
	resp, err := h.Handle(NewRequest(context.Background(), http.MethodGet, "/hello", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "first", string(resp.Body))
	assert.Equal(t, 1, r.Len())
}

func TestRegister_SamePathDifferentMethods(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Register(http.MethodGet, "/items", textHandler("get")))
	require.NoError(t, r.Register(http.MethodPost, "/items", textHandler("post")))
	assert.Equal(t, 2, r.Len())
}

func TestGET_PanicsOnDuplicate(t *testing.T) {
	t.Parallel()
	r := New()
	r.GET("/hello", textHandler("hello"))

	assert.PanicsWithValue(t, "router: route GET /hello already registered", func() {
		r.GET("/hello", textHandler("again"))
	})
}

func TestRegister_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		method  string
		path    string
		handler Handler
		wantErr error
	}{
		{"empty method", "", "/x", textHandler("x"), ErrInvalidMethod},
		{"method with space", "GE T", "/x", textHandler("x"), ErrInvalidMethod},
		{"empty path", http.MethodGet, "", textHandler("x"), ErrInvalidPath},
		{"relative path", http.MethodGet, "hello", textHandler("x"), ErrInvalidPath},
		{"nil handler", http.MethodGet, "/x", nil, ErrNilHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := New()
			err := r.Register(tt.method, tt.path, tt.handler)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestFreeze(t *testing.T) {
	t.Parallel()
	r := New()
	r.GET("/hello", textHandler("hello"))
	assert.False(t, r.Frozen())

	r.Freeze()
	r.Freeze()
	assert.True(t, r.Frozen())

	err := r.Register(http.MethodGet, "/late", textHandler("late"))
	require.ErrorIs(t, err, ErrRoutesFrozen)
	assert.False(t, r.RouteExists(http.MethodGet, "/late"))
	assert.True(t, r.RouteExists(http.MethodGet, "/hello"))
}

func TestRoutes_Sorted(t *testing.T) {
	t.Parallel()
	r := New()
	r.POST("/b", textHandler("b"))
	r.GET("/b", textHandler("b"))
	r.GET("/a", textHandler("a"))

	routes := r.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "/a", routes[0].Path)
	assert.Equal(t, http.MethodGet, routes[1].Method)
	assert.Equal(t, "/b", routes[1].Path)
	assert.Equal(t, http.MethodPost, routes[2].Method)
}

type staticHandler struct{}

func (staticHandler) Handle(*Request) (*Response, error) { return NoContent(), nil }

func TestHandlerName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "router.staticHandler", handlerName(staticHandler{}))
	assert.Equal(t, "hello.Handler.func1", cleanHandlerFuncName("rivaas.dev/hello/internal/hello.Handler.func1"))
	assert.NotEmpty(t, handlerName(textHandler("x")))
}

func TestNamed(t *testing.T) {
	t.Parallel()
	r := New()
	r.GET("/a", Named("pages.A", textHandler("a")))
	r.GET("/b", Named("pages.B", staticHandler{}))

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "pages.A", routes[0].HandlerName)
	assert.Equal(t, "pages.B", routes[1].HandlerName)

	h, err := r.Resolve(http.MethodGet, "/a")
	require.NoError(t, err)
	resp, err := h.Handle(NewRequest(t.Context(), http.MethodGet, "/a", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "a", string(resp.Body))

	assert.Nil(t, Named("nil", nil))
	assert.ErrorIs(t, r.Register(http.MethodGet, "/c", Named("nil", nil)), ErrNilHandler)
}

func TestDiagnostics(t *testing.T) {
	t.Parallel()
	var events []DiagnosticEvent
	r := New(WithDiagnostics(DiagnosticHandlerFunc(func(e DiagnosticEvent) {
		events = append(events, e)
	})))

	r.GET("/hello", textHandler("hello"))
	r.Freeze()

	require.Len(t, events, 2)
	assert.Equal(t, DiagRouteRegistered, events[0].Kind)
	assert.Equal(t, "/hello", events[0].Fields["path"])
	assert.Equal(t, DiagRoutesFrozen, events[1].Kind)
	assert.Equal(t, 1, events[1].Fields["count"])
}

func TestHandlerError_Propagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := New()
	r.GET("/fail", HandlerFunc(func(*Request) (*Response, error) {
		return nil, boom
	}))

	h, err := r.Resolve(http.MethodGet, "/fail")
	require.NoError(t, err)
	_, err = h.Handle(NewRequest(context.Background(), http.MethodGet, "/fail", nil, nil))
	assert.ErrorIs(t, err, boom)
}
