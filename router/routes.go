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
	"cmp"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"strings"
)

// Route is a registered (method, path) -> handler binding.
type Route struct {
	Method      string
	Path        string
	Handler     Handler
	HandlerName string // for introspection only
}

// Routes returns a snapshot of all registered routes sorted by path, then method.
func (r *Router) Routes() []Route {
	table := *r.table.Load()

	routes := make([]Route, 0, r.count())
	for _, paths := range table {
		for _, route := range paths {
			routes = append(routes, *route)
		}
	}

	slices.SortFunc(routes, func(a, b Route) int {
		if c := cmp.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return cmp.Compare(a.Method, b.Method)
	})
	return routes
}

// handlerName returns a readable name for a handler: its own name for a
// [Namer], the function name for a [HandlerFunc] and the dynamic type
// otherwise. Function names are best effort; closures are renamed by the
// compiler when their parent is inlined.
func handlerName(h Handler) string {
	if n, ok := h.(Namer); ok {
		return n.Name()
	}

	fn, ok := h.(HandlerFunc)
	if !ok {
		return fmt.Sprintf("%T", h)
	}

	funcPtr := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if funcPtr == nil {
		return "unknown"
	}
	return cleanHandlerFuncName(funcPtr.Name())
}

// cleanHandlerFuncName strips the module path and simplifies closure names.
//
//	rivaas.dev/hello/internal/hello.Handler.func1 -> hello.Handler.func1
func cleanHandlerFuncName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}
