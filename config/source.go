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

package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
)

// Source loads configuration data. Returned keys may use any case; nested
// sections are nested maps.
type Source interface {
	Load(ctx context.Context) (map[string]any, error)
}

// File loads configuration from a file or from in-memory content.
type File struct {
	path    string
	data    []byte
	format  Format
	decoder Decoder
}

// NewFile creates a File source for path decoded as format.
func NewFile(path string, format Format) *File {
	return &File{path: path, format: format}
}

// NewContent creates a File source for data decoded as format.
func NewContent(data []byte, format Format) *File {
	return &File{data: data, format: format}
}

// Load reads and decodes the file.
func (f *File) Load(context.Context) (map[string]any, error) {
	decoder, err := decoderFor(f.format)
	if err != nil {
		return nil, err
	}

	data := f.data
	if f.path != "" {
		data, err = os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
	}

	var conf map[string]any
	if err = decoder.Decode(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.format, err)
	}
	return conf, nil
}

func (f *File) String() string {
	if f.path != "" {
		return "file:" + f.path
	}
	return "content:" + string(f.format)
}

// Env loads environment variables starting with prefix. The remainder of
// the name is split at the first underscore into section and key:
//
//	HELLO_SERVER_PORT=8080             -> server.port = "8080"
//	HELLO_SERVER_READ_HEADER_TIMEOUT=5s -> server.read_header_timeout = "5s"
//	HELLO_LOG_LEVEL=debug              -> log.level = "debug"
type Env struct {
	prefix  string
	environ func() []string
}

// NewEnv creates an Env source for prefix.
func NewEnv(prefix string) *Env {
	return &Env{prefix: prefix, environ: os.Environ}
}

// Load reads the matching variables.
func (e *Env) Load(context.Context) (map[string]any, error) {
	conf := make(map[string]any)
	for _, kv := range e.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, e.prefix) {
			continue
		}

		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, e.prefix)), "_")
		if !ok || section == "" || key == "" {
			continue
		}
		setPath(conf, section+"."+key, strings.TrimSpace(value))
	}
	return conf, nil
}

func (e *Env) String() string {
	return "env:" + e.prefix
}

// Alias maps single environment variables to configuration keys, such as
// PORT to server.port. Unset or empty variables are skipped.
type Alias struct {
	names  map[string]string
	lookup func(string) (string, bool)
}

// NewAlias creates an Alias source from variable name to dotted key.
func NewAlias(names map[string]string) *Alias {
	return &Alias{names: names, lookup: os.LookupEnv}
}

// Load reads the aliased variables.
func (a *Alias) Load(context.Context) (map[string]any, error) {
	conf := make(map[string]any)
	for name, key := range a.names {
		if v, ok := a.lookup(name); ok && v != "" {
			setPath(conf, key, strings.TrimSpace(v))
		}
	}
	return conf, nil
}

func (a *Alias) String() string {
	return "env-alias"
}

// Values is a static source keyed by dotted paths, used for command-line
// overrides and tests.
type Values map[string]any

// Load expands dotted keys into nested maps.
func (v Values) Load(context.Context) (map[string]any, error) {
	conf := make(map[string]any)
	for k, val := range v {
		setPath(conf, k, val)
	}
	return conf, nil
}

func (Values) String() string {
	return "values"
}

// setPath stores value at the dotted path, creating maps as needed. A scalar
// in the way is replaced.
func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(strings.ToLower(path), ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// normalizeMapKeys lowercases keys recursively and converts nested
// map[any]any values to map[string]any.
func normalizeMapKeys(m map[string]any) map[string]any {
	normalized := make(map[string]any, len(m))
	for k, v := range m {
		switch v.(type) {
		case map[string]any, map[any]any:
			normalized[strings.ToLower(k)] = normalizeMapKeys(cast.ToStringMap(v))
		default:
			normalized[strings.ToLower(k)] = v
		}
	}
	return normalized
}

func sourceName(i int, src Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("source[%d]", i)
}
