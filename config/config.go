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
	"errors"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Config is the complete helloserver configuration.
type Config struct {
	Server  Server  `config:"server"`
	Log     Log     `config:"log"`
	Metrics Metrics `config:"metrics"`
	Tracing Tracing `config:"tracing"`
}

// Server configures the HTTP listener and connection handling.
type Server struct {
	Host              string        `config:"host"`
	Port              int           `config:"port" default:"3000" validate:"min=1,max=65535"`
	ReadHeaderTimeout time.Duration `config:"read_header_timeout" default:"10s" validate:"gte=0"`
	ReadTimeout       time.Duration `config:"read_timeout" default:"30s" validate:"gte=0"`
	WriteTimeout      time.Duration `config:"write_timeout" default:"30s" validate:"gte=0"`
	IdleTimeout       time.Duration `config:"idle_timeout" default:"120s" validate:"gte=0"`
	ShutdownTimeout   time.Duration `config:"shutdown_timeout" default:"10s" validate:"gt=0"`
	MaxHeaderBytes    int           `config:"max_header_bytes" default:"1048576" validate:"gt=0"`
	MaxBodyBytes      int64         `config:"max_body_bytes" default:"10485760" validate:"gte=0"`
}

// Addr returns the listen address in host:port form.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Log configures the process logger.
type Log struct {
	Level       string `config:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Format      string `config:"format" default:"json" validate:"oneof=json text console"`
	ServiceName string `config:"service_name" default:"helloserver" validate:"required"`
	Environment string `config:"environment"`
}

// Metrics configures the OpenTelemetry meter provider.
type Metrics struct {
	Enabled  bool   `config:"enabled"`
	Provider string `config:"provider" default:"prometheus" validate:"oneof=prometheus stdout otlp"`
	Addr     string `config:"addr" default:":9090"`
	Path     string `config:"path" default:"/metrics" validate:"startswith=/"`
	Endpoint string `config:"endpoint"`
}

// Tracing configures the OpenTelemetry tracer provider.
type Tracing struct {
	Enabled    bool    `config:"enabled"`
	Exporter   string  `config:"exporter" default:"noop" validate:"oneof=noop stdout otlp otlp-http"`
	Endpoint   string  `config:"endpoint"`
	Insecure   bool    `config:"insecure"`
	SampleRate float64 `config:"sample_rate" default:"1" validate:"gte=0,lte=1"`
}

// Option configures [Load].
type Option func(*loader)

type loader struct {
	sources []Source
}

// WithSource appends a source. Later sources override earlier ones.
func WithSource(src Source) Option {
	return func(l *loader) { l.sources = append(l.sources, src) }
}

// WithFile appends a file source with the format detected from the
// extension. An empty path is ignored so an unset --config flag can be
// passed straight through.
func WithFile(path string) Option {
	return func(l *loader) {
		if path == "" {
			return
		}
		format, err := DetectFormat(path)
		if err != nil {
			l.sources = append(l.sources, failingSource{name: "file:" + path, err: err})
			return
		}
		l.sources = append(l.sources, NewFile(path, format))
	}
}

// WithFileAs appends a file source decoded as format.
func WithFileAs(path string, format Format) Option {
	return WithSource(NewFile(path, format))
}

// WithEnv appends an environment source for prefix.
func WithEnv(prefix string) Option {
	return WithSource(NewEnv(prefix))
}

// WithPortEnv appends the bare PORT variable as an alias of server.port.
func WithPortEnv() Option {
	return WithSource(NewAlias(map[string]string{"PORT": "server.port"}))
}

// WithValues appends static dotted-key overrides.
func WithValues(v map[string]any) Option {
	return WithSource(Values(v))
}

type failingSource struct {
	name string
	err  error
}

func (f failingSource) Load(context.Context) (map[string]any, error) { return nil, f.err }
func (f failingSource) String() string                                { return f.name }

// Load merges all sources, binds the result over the defaults and
// validates it.
//
// Errors:
//   - [*Error] with Operation "load" if a source fails
//   - [*Error] with Operation "merge" if maps cannot be merged
//   - [*Error] with Operation "bind" if a value has the wrong type
//   - [*Error] with Operation "validate" if a constraint fails
func Load(ctx context.Context, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	values, err := l.merge(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err = applyDefaults(cfg); err != nil {
		return nil, NewError("defaults", "bind", err)
	}
	if err = bind(values, cfg); err != nil {
		return nil, NewError("binding", "bind", err)
	}
	if err = Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	cfg := &Config{}
	if err := applyDefaults(cfg); err != nil {
		panic("config: invalid default tag: " + err.Error())
	}
	return cfg
}

func (l *loader) merge(ctx context.Context) (map[string]any, error) {
	merged := make(map[string]any)
	for i, src := range l.sources {
		if err := ctx.Err(); err != nil {
			return nil, NewError(sourceName(i, src), "load", err)
		}

		conf, err := src.Load(ctx)
		if err != nil {
			return nil, NewError(sourceName(i, src), "load", err)
		}
		if conf == nil {
			continue
		}

		if err = mergo.Map(&merged, normalizeMapKeys(conf), mergo.WithOverride); err != nil {
			return nil, NewError(sourceName(i, src), "merge", err)
		}
	}
	return merged, nil
}

func bind(values map[string]any, target *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		Result:           target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err = decoder.Decode(values); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("config"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tag constraints. The returned
// error names the first failing key, e.g. server.port.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		return NewFieldError("binding", field, "validate",
			fmt.Errorf("value %v fails %q constraint %s", fe.Value(), fe.Tag(), fe.Param()))
	}
	return NewError("binding", "validate", err)
}
