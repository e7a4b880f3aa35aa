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
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentResolve checks that readers observe either the old or the new
// table while registrations are in flight, never a partial one.
func TestConcurrentResolve(t *testing.T) {
	t.Parallel()
	r := New()
	r.GET("/hello", textHandler("hello"))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				h, err := r.Resolve(http.MethodGet, "/hello")
				if !assert.NoError(t, err) {
					return
				}
				resp, err := h.Handle(NewRequest(context.Background(), http.MethodGet, "/hello", nil, nil))
				assert.NoError(t, err)
				assert.Equal(t, "hello", string(resp.Body))
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				path := fmt.Sprintf("/r%d/%d", i, j)
				assert.NoError(t, r.Register(http.MethodGet, path, textHandler(path)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1+8*50, r.Len())
	r.Freeze()

	h, err := r.Resolve(http.MethodGet, "/r3/49")
	require.NoError(t, err)
	resp, err := h.Handle(NewRequest(context.Background(), http.MethodGet, "/r3/49", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "/r3/49", string(resp.Body))
}
