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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"rivaas.dev/hello/config"
	"rivaas.dev/hello/internal/hello"
	"rivaas.dev/hello/logging"
	"rivaas.dev/hello/metrics"
	"rivaas.dev/hello/router"
	"rivaas.dev/hello/server"
	"rivaas.dev/hello/tracing"
)

const (
	envPrefix            = "HELLO_"
	observabilityTimeout = 5 * time.Second
)

// overrides turns the flags set on the command line into config values.
// Flags left at their defaults do not shadow the file or environment.
func (o *rootOptions) overrides() map[string]any {
	values := map[string]any{}
	if o.flags == nil {
		return values
	}
	if o.flags.Changed("host") {
		values["server.host"] = o.host
	}
	if o.flags.Changed("port") {
		values["server.port"] = o.port
	}
	if o.flags.Changed("log-level") {
		values["log.level"] = o.logLevel
	}
	if o.flags.Changed("log-format") {
		values["log.format"] = o.logFormat
	}
	return values
}

func (o *rootOptions) loadConfig(ctx context.Context) (*config.Config, error) {
	var opts []config.Option
	if o.configPath != "" {
		opts = append(opts, config.WithFile(o.configPath))
	}
	opts = append(opts,
		config.WithPortEnv(),
		config.WithEnv(envPrefix),
		config.WithValues(o.overrides()),
	)
	return config.Load(ctx, opts...)
}

func runServe(ctx context.Context, opts *rootOptions, stdout io.Writer) error {
	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, stdout)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown(context.Background()) }()

	recorder, err := newRecorder(cfg, logger)
	if err != nil {
		return err
	}
	tracer, err := newTracer(ctx, cfg, logger)
	if err != nil {
		shutdownObservability(logger, recorder, nil)
		return err
	}
	defer shutdownObservability(logger, recorder, tracer)

	r, err := buildRouter(logger)
	if err != nil {
		return err
	}

	srv, err := server.New(r,
		server.WithConfig(cfg.Server),
		server.WithLogger(logger),
		server.WithMetrics(recorder),
		server.WithTracer(tracer),
		server.WithName(cfg.Log.ServiceName),
	)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

// newLogger builds the process logger and installs it as the slog default,
// so libraries logging through slog share its handler.
func newLogger(cfg config.Log, out io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	handler, err := logging.ParseHandlerType(cfg.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(
		logging.WithHandlerType(handler),
		logging.WithOutput(out),
		logging.WithLevel(level),
		logging.WithServiceName(cfg.ServiceName),
		logging.WithServiceVersion(version),
		logging.WithEnvironment(cfg.Environment),
		logging.WithGlobalLogger(),
	)
}

// newRecorder returns nil when metrics are disabled; a nil Recorder records
// nothing.
func newRecorder(cfg *config.Config, logger *logging.Logger) (*metrics.Recorder, error) {
	if !cfg.Metrics.Enabled {
		return metrics.Disabled(), nil
	}

	opts := []metrics.Option{
		metrics.WithServiceName(cfg.Log.ServiceName),
		metrics.WithServiceVersion(version),
		metrics.WithLogger(logger.Logger()),
	}
	switch provider := metrics.Provider(cfg.Metrics.Provider); provider {
	case metrics.OTLPProvider:
		opts = append(opts, metrics.WithOTLP(cfg.Metrics.Endpoint))
	case metrics.StdoutProvider:
		opts = append(opts, metrics.WithStdout(nil))
	default:
		opts = append(opts, metrics.WithProvider(provider))
	}

	recorder, err := metrics.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if recorder.Provider() == metrics.PrometheusProvider {
		if _, err := recorder.StartServer(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
			_ = recorder.Shutdown(context.Background())
			return nil, err
		}
	}
	return recorder, nil
}

func newTracer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*tracing.Tracer, error) {
	if !cfg.Tracing.Enabled {
		return tracing.Disabled(), nil
	}

	var otlpOpts []tracing.OTLPOption
	if cfg.Tracing.Insecure {
		otlpOpts = append(otlpOpts, tracing.OTLPInsecure())
	}

	opts := []tracing.Option{
		tracing.WithServiceName(cfg.Log.ServiceName),
		tracing.WithServiceVersion(version),
		tracing.WithSampleRate(cfg.Tracing.SampleRate),
		tracing.WithLogger(logger.Logger()),
	}
	switch tracing.Provider(cfg.Tracing.Exporter) {
	case tracing.OTLPProvider:
		opts = append(opts, tracing.WithOTLP(cfg.Tracing.Endpoint, otlpOpts...))
	case tracing.OTLPHTTPProvider:
		opts = append(opts, tracing.WithOTLPHTTP(cfg.Tracing.Endpoint, otlpOpts...))
	case tracing.StdoutProvider:
		opts = append(opts, tracing.WithStdout(nil))
	default:
		opts = append(opts, tracing.WithNoop())
	}

	tracer, err := tracing.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	return tracer, nil
}

// shutdownObservability flushes exporters with a fresh deadline; the serve
// context is already cancelled when this runs.
func shutdownObservability(logger *logging.Logger, recorder *metrics.Recorder, tracer *tracing.Tracer) {
	ctx, cancel := context.WithTimeout(context.Background(), observabilityTimeout)
	defer cancel()

	if err := errors.Join(recorder.Shutdown(ctx), tracer.Shutdown(ctx)); err != nil {
		logger.Warn("observability shutdown failed", "error", err)
	}
}

// buildRouter registers every route the process serves. Registration events
// are logged at debug level; the server freezes the table when it starts.
func buildRouter(logger *logging.Logger) (*router.Router, error) {
	r := router.New(router.WithDiagnostics(router.DiagnosticHandlerFunc(func(e router.DiagnosticEvent) {
		args := make([]any, 0, 2+2*len(e.Fields))
		args = append(args, "kind", string(e.Kind))
		for k, v := range e.Fields {
			args = append(args, k, v)
		}
		logger.Debug(e.Message, args...)
	})))

	if err := hello.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}
